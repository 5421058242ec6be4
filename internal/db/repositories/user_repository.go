// Package repositories implements the data access layer for shopdesk.
// Each repository encapsulates the queries for one entity and runs on an sqlx.ExtContext, so the same
// code serves plain reads against the pool and writes inside a transaction opened by db.Store.
// Lookups return (nil, nil) when no row matches.
package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopdesk/shopdesk/internal/auth"
	"github.com/shopdesk/shopdesk/internal/db/models"
)

const userColumns = `id, email, name, password_hash, role, status, created_at, updated_at`

// UserRepository handles principal database operations
type UserRepository struct {
	db sqlx.ExtContext
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db sqlx.ExtContext) *UserRepository {
	return &UserRepository{db: db}
}

// CreateUser inserts a new principal
func (r *UserRepository) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, name, password_hash, role, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		user.ID, user.Email, user.Name, user.PasswordHash, user.Role, user.Status, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by ID
func (r *UserRepository) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// LockUser retrieves a user by ID and holds a row lock until the transaction ends
func (r *UserRepository) LockUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id)
}

// GetUserByEmail retrieves a user by email
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *UserRepository) getOne(ctx context.Context, query string, arg any) (*models.User, error) {
	user := &models.User{}
	if err := sqlx.GetContext(ctx, r.db, user, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// UpdateUserStatus sets the account status of a user
func (r *UserRepository) UpdateUserStatus(ctx context.Context, id uuid.UUID, status auth.Status) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET status = $1, updated_at = $2 WHERE id = $3`,
		status, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update user status: %w", err)
	}
	return nil
}

// LookupPrincipal implements auth.PrincipalLookup
func (r *UserRepository) LookupPrincipal(ctx context.Context, id uuid.UUID) (*auth.Principal, error) {
	user, err := r.GetUser(ctx, id)
	if err != nil || user == nil {
		return nil, err
	}
	p := user.Principal()
	return &p, nil
}
