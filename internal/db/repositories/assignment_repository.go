// assignment_repository.go implements AssignmentRepository for worker-to-shop assignments.
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

const assignmentColumns = `user_id, shop_id, is_active, created_at, updated_at`

// AssignmentRepository handles worker assignment database operations
type AssignmentRepository struct {
	db sqlx.ExtContext
}

// NewAssignmentRepository creates a new AssignmentRepository
func NewAssignmentRepository(db sqlx.ExtContext) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// GetAssignment retrieves the assignment of a worker to a shop, active or not
func (r *AssignmentRepository) GetAssignment(ctx context.Context, userID, shopID uuid.UUID) (*models.WorkerAssignment, error) {
	a := &models.WorkerAssignment{}
	err := sqlx.GetContext(ctx, r.db, a,
		`SELECT `+assignmentColumns+` FROM worker_assignments WHERE user_id = $1 AND shop_id = $2`,
		userID, shopID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}
	return a, nil
}

// ListActiveAssignmentsByShop returns the active assignments on a shop
func (r *AssignmentRepository) ListActiveAssignmentsByShop(ctx context.Context, shopID uuid.UUID) ([]*models.WorkerAssignment, error) {
	out := make([]*models.WorkerAssignment, 0)
	err := sqlx.SelectContext(ctx, r.db, &out, `
		SELECT `+assignmentColumns+` FROM worker_assignments
		WHERE shop_id = $1 AND is_active
		ORDER BY created_at ASC, user_id ASC`, shopID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	return out, nil
}

// ListAssignmentsByWorker returns every assignment of a worker, active or not
func (r *AssignmentRepository) ListAssignmentsByWorker(ctx context.Context, userID uuid.UUID) ([]*models.WorkerAssignment, error) {
	out := make([]*models.WorkerAssignment, 0)
	err := sqlx.SelectContext(ctx, r.db, &out, `
		SELECT `+assignmentColumns+` FROM worker_assignments
		WHERE user_id = $1
		ORDER BY created_at ASC, shop_id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	return out, nil
}

// UpsertAssignment creates an active assignment or reactivates an existing one
func (r *AssignmentRepository) UpsertAssignment(ctx context.Context, a *models.WorkerAssignment) error {
	now := time.Now().UTC()
	err := sqlx.GetContext(ctx, r.db, a, `
		INSERT INTO worker_assignments (user_id, shop_id, is_active, created_at, updated_at)
		VALUES ($1, $2, TRUE, $3, $3)
		ON CONFLICT (user_id, shop_id) DO UPDATE SET is_active = TRUE, updated_at = EXCLUDED.updated_at
		RETURNING `+assignmentColumns,
		a.UserID, a.ShopID, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert assignment: %w", err)
	}
	return nil
}

// SetAssignmentActive flips the active flag of an assignment
func (r *AssignmentRepository) SetAssignmentActive(ctx context.Context, userID, shopID uuid.UUID, active bool) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE worker_assignments SET is_active = $1, updated_at = $2
		WHERE user_id = $3 AND shop_id = $4`,
		active, time.Now().UTC(), userID, shopID,
	)
	if err != nil {
		return fmt.Errorf("failed to update assignment: %w", err)
	}
	return nil
}
