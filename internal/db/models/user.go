// Package models - user.go defines the User model: an account that acts as a Principal with a role
// and an account status. Users are never deleted, only deactivated.
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopdesk/shopdesk/internal/auth"
)

// User represents a principal account
type User struct {
	ID           uuid.UUID   `db:"id" json:"id"`
	Email        string      `db:"email" json:"email"`
	Name         string      `db:"name" json:"name"`
	PasswordHash string      `db:"password_hash" json:"-"`
	Role         auth.Role   `db:"role" json:"role"`
	Status       auth.Status `db:"status" json:"status"`
	CreatedAt    time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at" json:"updated_at"`
}

// Principal returns the authorization view of the user
func (u *User) Principal() auth.Principal {
	return auth.Principal{ID: u.ID, Role: u.Role, Status: u.Status}
}
