// Package models - shop.go defines the Shop model, the tenant unit of data partitioning.
// Every shop has exactly one owning principal.
package models

import (
	"time"

	"github.com/google/uuid"
)

// ShopStatus is the activation state of a shop
type ShopStatus string

const (
	ShopStatusActive   ShopStatus = "ACTIVE"
	ShopStatusInactive ShopStatus = "INACTIVE"
)

// Valid reports whether s is a known shop status
func (s ShopStatus) Valid() bool {
	return s == ShopStatusActive || s == ShopStatusInactive
}

// Shop represents a tenant
type Shop struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	OwnerID   uuid.UUID  `db:"owner_id" json:"owner_id"`
	Name      string     `db:"name" json:"name"`
	Status    ShopStatus `db:"status" json:"status"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// IsActive reports whether the shop is visible to non-admin principals
func (s *Shop) IsActive() bool {
	return s.Status == ShopStatusActive
}
