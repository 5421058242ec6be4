// Package auth provides the authentication boundary of the service: role and permission catalogs,
// bearer token issuing/verification, and the Authenticator that turns a token into a Principal.
// See internal/middleware/auth.go for the request-time logic that uses these primitives.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "shopdesk"

// Claims represents the JWT claims structure
type Claims struct {
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 session tokens with a single shared secret
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenIssuer creates a TokenIssuer. A zero ttl defaults to one hour.
func NewTokenIssuer(secret string, ttl time.Duration) (*TokenIssuer, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if ttl == 0 {
		ttl = time.Hour
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl}, nil
}

// ResolveSecret returns the configured secret. In dev mode an empty secret is replaced with a
// random one and a warning is logged; outside dev mode it is an error.
func ResolveSecret(configured string, devMode bool) (string, error) {
	if configured != "" {
		if len(configured) < 32 {
			slog.Warn("jwt secret is shorter than the recommended 32 characters")
		}
		return configured, nil
	}
	if !devMode {
		return "", errors.New("SECURITY ERROR: auth.jwt_secret is required in production. " +
			"Generate a secure secret with: openssl rand -hex 32")
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate jwt secret: %w", err)
	}
	slog.Warn("auth.jwt_secret not set, using auto-generated secret; sessions will not survive restarts")
	return hex.EncodeToString(buf), nil
}

// Issue creates a signed token for the principal
func (t *TokenIssuer) Issue(p Principal) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(t.ttl)
	claims := &Claims{
		UserID: p.ID.String(),
		Role:   p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   p.ID.String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify parses and validates a token and returns the subject id
func (t *TokenIssuer) Verify(tokenString string) (*Claims, uuid.UUID, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return t.secret, nil
	}, jwt.WithIssuer(issuer))
	if err != nil {
		return nil, uuid.Nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, uuid.Nil, errors.New("invalid token")
	}

	id, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("invalid subject: %w", err)
	}
	return claims, id, nil
}
