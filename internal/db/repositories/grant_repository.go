// grant_repository.go implements GrantRepository for per-worker permission grants.
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

const grantColumns = `id, user_id, module, permission, is_active, granted_by, created_at, updated_at`

// GrantRepository handles permission grant database operations
type GrantRepository struct {
	db sqlx.ExtContext
}

// NewGrantRepository creates a new GrantRepository
func NewGrantRepository(db sqlx.ExtContext) *GrantRepository {
	return &GrantRepository{db: db}
}

// ListGrants returns the grants of a user ordered by module then permission
func (r *GrantRepository) ListGrants(ctx context.Context, userID uuid.UUID, activeOnly bool) ([]*models.PermissionGrant, error) {
	query := `SELECT ` + grantColumns + ` FROM permission_grants WHERE user_id = $1`
	if activeOnly {
		query += ` AND is_active`
	}
	query += ` ORDER BY module, permission`

	grants := make([]*models.PermissionGrant, 0)
	if err := sqlx.SelectContext(ctx, r.db, &grants, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list grants: %w", err)
	}
	return grants, nil
}

// GetGrant retrieves a grant by its natural key, active or not
func (r *GrantRepository) GetGrant(ctx context.Context, userID uuid.UUID, module auth.Module, perm auth.Permission) (*models.PermissionGrant, error) {
	g := &models.PermissionGrant{}
	err := sqlx.GetContext(ctx, r.db, g, `
		SELECT `+grantColumns+` FROM permission_grants
		WHERE user_id = $1 AND module = $2 AND permission = $3`,
		userID, module, perm,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get grant: %w", err)
	}
	return g, nil
}

// UpsertGrant creates an active grant or reactivates an existing one
func (r *GrantRepository) UpsertGrant(ctx context.Context, g *models.PermissionGrant) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	now := time.Now().UTC()
	err := sqlx.GetContext(ctx, r.db, g, `
		INSERT INTO permission_grants (id, user_id, module, permission, is_active, granted_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, TRUE, $5, $6, $6)
		ON CONFLICT (user_id, module, permission)
		DO UPDATE SET is_active = TRUE, granted_by = EXCLUDED.granted_by, updated_at = EXCLUDED.updated_at
		RETURNING `+grantColumns,
		g.ID, g.UserID, g.Module, g.Permission, g.GrantedBy, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert grant: %w", err)
	}
	return nil
}

// DeactivateGrant marks a grant inactive
func (r *GrantRepository) DeactivateGrant(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE permission_grants SET is_active = FALSE, updated_at = $1 WHERE id = $2`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to deactivate grant: %w", err)
	}
	return nil
}
