// Package models - permission_grant.go defines per-worker capability grants on a
// (module, permission) pair. Absence of a grant means default deny.
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopdesk/shopdesk/internal/auth"
)

// PermissionGrant gives a worker a direct capability
type PermissionGrant struct {
	ID         uuid.UUID       `db:"id" json:"id"`
	UserID     uuid.UUID       `db:"user_id" json:"user_id"`
	Module     auth.Module     `db:"module" json:"module"`
	Permission auth.Permission `db:"permission" json:"permission"`
	IsActive   bool            `db:"is_active" json:"is_active"`
	GrantedBy  *uuid.UUID      `db:"granted_by" json:"granted_by,omitempty"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at" json:"updated_at"`
}
