// shop_repository.go implements ShopRepository: tenant lookups in deterministic creation order
// and status updates used by the status cascade.
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

const shopColumns = `s.id, s.owner_id, s.name, s.status, s.created_at, s.updated_at`

// ShopRepository handles shop database operations
type ShopRepository struct {
	db sqlx.ExtContext
}

// NewShopRepository creates a new ShopRepository
func NewShopRepository(db sqlx.ExtContext) *ShopRepository {
	return &ShopRepository{db: db}
}

// CreateShop inserts a new shop
func (r *ShopRepository) CreateShop(ctx context.Context, shop *models.Shop) error {
	if shop.ID == uuid.Nil {
		shop.ID = uuid.New()
	}
	if shop.Status == "" {
		shop.Status = models.ShopStatusActive
	}
	now := time.Now().UTC()
	shop.CreatedAt = now
	shop.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO shops (id, owner_id, name, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		shop.ID, shop.OwnerID, shop.Name, shop.Status, shop.CreatedAt, shop.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create shop: %w", err)
	}
	return nil
}

// GetShop retrieves a shop by ID regardless of status
func (r *ShopRepository) GetShop(ctx context.Context, id uuid.UUID) (*models.Shop, error) {
	return r.getOne(ctx, `SELECT `+shopColumns+` FROM shops s WHERE s.id = $1`, id)
}

// LockShop retrieves a shop by ID and holds a row lock until the transaction ends
func (r *ShopRepository) LockShop(ctx context.Context, id uuid.UUID) (*models.Shop, error) {
	return r.getOne(ctx, `SELECT `+shopColumns+` FROM shops s WHERE s.id = $1 FOR UPDATE`, id)
}

func (r *ShopRepository) getOne(ctx context.Context, query string, id uuid.UUID) (*models.Shop, error) {
	shop := &models.Shop{}
	if err := sqlx.GetContext(ctx, r.db, shop, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get shop: %w", err)
	}
	return shop, nil
}

// ListActiveShops returns every ACTIVE shop
func (r *ShopRepository) ListActiveShops(ctx context.Context) ([]*models.Shop, error) {
	return r.list(ctx, `
		SELECT `+shopColumns+` FROM shops s
		WHERE s.status = 'ACTIVE'
		ORDER BY s.created_at ASC, s.id ASC`)
}

// ListShopsByOwner returns all shops of an owner, any status
func (r *ShopRepository) ListShopsByOwner(ctx context.Context, ownerID uuid.UUID) ([]*models.Shop, error) {
	return r.list(ctx, `
		SELECT `+shopColumns+` FROM shops s
		WHERE s.owner_id = $1
		ORDER BY s.created_at ASC, s.id ASC`, ownerID)
}

// ListShopsForWorker returns the ACTIVE shops a worker holds an active assignment on
func (r *ShopRepository) ListShopsForWorker(ctx context.Context, workerID uuid.UUID) ([]*models.Shop, error) {
	return r.list(ctx, `
		SELECT `+shopColumns+` FROM shops s
		JOIN worker_assignments wa ON wa.shop_id = s.id
		WHERE wa.user_id = $1 AND wa.is_active AND s.status = 'ACTIVE'
		ORDER BY s.created_at ASC, s.id ASC`, workerID)
}

func (r *ShopRepository) list(ctx context.Context, query string, args ...any) ([]*models.Shop, error) {
	shops := make([]*models.Shop, 0)
	if err := sqlx.SelectContext(ctx, r.db, &shops, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list shops: %w", err)
	}
	return shops, nil
}

// UpdateShopStatus sets the status of a shop
func (r *ShopRepository) UpdateShopStatus(ctx context.Context, id uuid.UUID, status models.ShopStatus) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE shops SET status = $1, updated_at = $2 WHERE id = $3`,
		status, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update shop status: %w", err)
	}
	return nil
}
