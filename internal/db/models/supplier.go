package models

import (
	"time"

	"github.com/google/uuid"
)

// Supplier is a vendor a shop purchases stock from
type Supplier struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	ShopID    uuid.UUID  `db:"shop_id" json:"shop_id"`
	Name      string     `db:"name" json:"name"`
	Phone     *string    `db:"phone" json:"phone,omitempty"`
	Email     *string    `db:"email" json:"email,omitempty"`
	Address   *string    `db:"address" json:"address,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
}
