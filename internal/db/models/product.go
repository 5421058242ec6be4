// Package models - product.go and supplier.go define the shop catalog records that worker
// mutations can target through approval requests. Deletes are soft so sales history keeps its references.
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a sellable item (handset, accessory, ...) of one shop
type Product struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	ShopID        uuid.UUID       `db:"shop_id" json:"shop_id"`
	Name          string          `db:"name" json:"name"`
	Brand         *string         `db:"brand" json:"brand,omitempty"`
	Model         *string         `db:"model" json:"model,omitempty"`
	SKU           *string         `db:"sku" json:"sku,omitempty"`
	Price         decimal.Decimal `db:"price" json:"price"`
	CostPrice     decimal.Decimal `db:"cost_price" json:"cost_price"`
	StockQuantity int             `db:"stock_quantity" json:"stock_quantity"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
	DeletedAt     *time.Time      `db:"deleted_at" json:"deleted_at,omitempty"`
}
