// record_repository.go implements RecordRepository for the shop catalog tables that approval
// requests can target. Reads exclude soft-deleted rows and are always scoped by shop.
package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopdesk/shopdesk/internal/db/models"
)

const (
	productColumns  = `id, shop_id, name, brand, model, sku, price, cost_price, stock_quantity, created_at, updated_at, deleted_at`
	supplierColumns = `id, shop_id, name, phone, email, address, created_at, updated_at, deleted_at`
)

// RecordRepository handles product and supplier database operations
type RecordRepository struct {
	db sqlx.ExtContext
}

// NewRecordRepository creates a new RecordRepository
func NewRecordRepository(db sqlx.ExtContext) *RecordRepository {
	return &RecordRepository{db: db}
}

// ============================================================================
// Products
// ============================================================================

// InsertProduct inserts a new product
func (r *RecordRepository) InsertProduct(ctx context.Context, p *models.Product) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO products (id, shop_id, name, brand, model, sku, price, cost_price, stock_quantity, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		p.ID, p.ShopID, p.Name, p.Brand, p.Model, p.SKU, p.Price, p.CostPrice, p.StockQuantity, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert product: %w", err)
	}
	return nil
}

// GetProduct retrieves a live product of a shop
func (r *RecordRepository) GetProduct(ctx context.Context, shopID, id uuid.UUID) (*models.Product, error) {
	p := &models.Product{}
	err := sqlx.GetContext(ctx, r.db, p, `
		SELECT `+productColumns+` FROM products
		WHERE id = $1 AND shop_id = $2 AND deleted_at IS NULL
		FOR UPDATE`, id, shopID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return p, nil
}

// UpdateProduct writes every mutable field of a live product
func (r *RecordRepository) UpdateProduct(ctx context.Context, p *models.Product) (bool, error) {
	p.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET name = $1, brand = $2, model = $3, sku = $4, price = $5, cost_price = $6, stock_quantity = $7, updated_at = $8
		WHERE id = $9 AND shop_id = $10 AND deleted_at IS NULL`,
		p.Name, p.Brand, p.Model, p.SKU, p.Price, p.CostPrice, p.StockQuantity, p.UpdatedAt, p.ID, p.ShopID,
	)
	return affectedOne(res, err, "update product")
}

// SoftDeleteProduct marks a live product deleted
func (r *RecordRepository) SoftDeleteProduct(ctx context.Context, shopID, id uuid.UUID) (bool, error) {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		UPDATE products SET deleted_at = $1, updated_at = $1
		WHERE id = $2 AND shop_id = $3 AND deleted_at IS NULL`,
		now, id, shopID,
	)
	return affectedOne(res, err, "delete product")
}

// ============================================================================
// Suppliers
// ============================================================================

// InsertSupplier inserts a new supplier
func (r *RecordRepository) InsertSupplier(ctx context.Context, s *models.Supplier) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	now := time.Now().UTC()
	s.CreatedAt = now
	s.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO suppliers (id, shop_id, name, phone, email, address, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.ID, s.ShopID, s.Name, s.Phone, s.Email, s.Address, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert supplier: %w", err)
	}
	return nil
}

// GetSupplier retrieves a live supplier of a shop
func (r *RecordRepository) GetSupplier(ctx context.Context, shopID, id uuid.UUID) (*models.Supplier, error) {
	s := &models.Supplier{}
	err := sqlx.GetContext(ctx, r.db, s, `
		SELECT `+supplierColumns+` FROM suppliers
		WHERE id = $1 AND shop_id = $2 AND deleted_at IS NULL
		FOR UPDATE`, id, shopID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get supplier: %w", err)
	}
	return s, nil
}

// UpdateSupplier writes every mutable field of a live supplier
func (r *RecordRepository) UpdateSupplier(ctx context.Context, s *models.Supplier) (bool, error) {
	s.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		UPDATE suppliers SET name = $1, phone = $2, email = $3, address = $4, updated_at = $5
		WHERE id = $6 AND shop_id = $7 AND deleted_at IS NULL`,
		s.Name, s.Phone, s.Email, s.Address, s.UpdatedAt, s.ID, s.ShopID,
	)
	return affectedOne(res, err, "update supplier")
}

// SoftDeleteSupplier marks a live supplier deleted
func (r *RecordRepository) SoftDeleteSupplier(ctx context.Context, shopID, id uuid.UUID) (bool, error) {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		UPDATE suppliers SET deleted_at = $1, updated_at = $1
		WHERE id = $2 AND shop_id = $3 AND deleted_at IS NULL`,
		now, id, shopID,
	)
	return affectedOne(res, err, "delete supplier")
}

func affectedOne(res sql.Result, err error, op string) (bool, error) {
	if err != nil {
		return false, fmt.Errorf("failed to %s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to %s: %w", op, err)
	}
	return n == 1, nil
}
