// Package models - worker_assignment.go defines the join between a SHOP_WORKER and a shop.
// Assignments are deactivated, never deleted.
package models

import (
	"time"

	"github.com/google/uuid"
)

// WorkerAssignment binds a worker to a shop
type WorkerAssignment struct {
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	ShopID    uuid.UUID `db:"shop_id" json:"shop_id"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// RecordID is the audit record identifier of the assignment
func (a *WorkerAssignment) RecordID() string {
	return a.UserID.String() + ":" + a.ShopID.String()
}
