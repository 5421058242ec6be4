package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// BcryptCost is the cost factor for password hashes
const BcryptCost = 12

// ErrUnauthenticated is returned when no valid, active principal can be derived from credentials
var ErrUnauthenticated = errors.New("auth: unauthenticated")

// PrincipalLookup loads the current role and status of a principal
type PrincipalLookup interface {
	LookupPrincipal(ctx context.Context, id uuid.UUID) (*Principal, error)
}

// Authenticator turns bearer credentials into a verified Principal.
// Role and status are always read from the store so a deactivation takes effect on the next request.
type Authenticator struct {
	tokens    *TokenIssuer
	principal PrincipalLookup
}

// NewAuthenticator creates a new Authenticator
func NewAuthenticator(tokens *TokenIssuer, lookup PrincipalLookup) *Authenticator {
	return &Authenticator{tokens: tokens, principal: lookup}
}

// Authenticate verifies the token and returns the active principal it belongs to
func (a *Authenticator) Authenticate(ctx context.Context, token string) (Principal, error) {
	if token == "" {
		return Principal{}, ErrUnauthenticated
	}

	_, id, err := a.tokens.Verify(token)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	p, err := a.principal.LookupPrincipal(ctx, id)
	if err != nil {
		return Principal{}, fmt.Errorf("failed to load principal: %w", err)
	}
	if p == nil || !p.IsActive() {
		return Principal{}, ErrUnauthenticated
	}
	return *p, nil
}

// HashPassword returns a bcrypt hash of the password
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches the stored bcrypt hash
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
