// approval_repository.go implements ApprovalRepository. Status changes go through TransitionApproval,
// a compare-and-swap on the current status, so two reviewers racing on one request cannot both win.
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

const approvalColumns = `a.id, a.shop_id, a.requested_by, a.type, a.table_name, a.record_id, a.request_data,
	a.reason, a.status, a.reviewed_by, a.review_note, a.failure_reason, a.created_at, a.decided_at, a.updated_at`

// ApprovalRepository handles approval request database operations
type ApprovalRepository struct {
	db sqlx.ExtContext
}

// NewApprovalRepository creates a new ApprovalRepository
func NewApprovalRepository(db sqlx.ExtContext) *ApprovalRepository {
	return &ApprovalRepository{db: db}
}

// CreateApproval inserts a new PENDING approval request
func (r *ApprovalRepository) CreateApproval(ctx context.Context, req *models.ApprovalRequest) error {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	now := time.Now().UTC()
	req.Status = models.ApprovalStatusPending
	req.CreatedAt = now
	req.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO approval_requests
			(id, shop_id, requested_by, type, table_name, record_id, request_data, reason, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		req.ID, req.ShopID, req.RequestedBy, req.Type, req.TableName, req.RecordID,
		[]byte(req.RequestData), req.Reason, req.Status, req.CreatedAt, req.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create approval request: %w", err)
	}
	return nil
}

// GetApproval retrieves an approval request by ID
func (r *ApprovalRepository) GetApproval(ctx context.Context, id uuid.UUID) (*models.ApprovalRequest, error) {
	return r.getOne(ctx, `
		SELECT `+approvalColumns+`, u.name AS requested_by_name
		FROM approval_requests a
		LEFT JOIN users u ON u.id = a.requested_by
		WHERE a.id = $1`, id)
}

// LockApproval retrieves an approval request and holds a row lock until the transaction ends
func (r *ApprovalRepository) LockApproval(ctx context.Context, id uuid.UUID) (*models.ApprovalRequest, error) {
	return r.getOne(ctx, `SELECT `+approvalColumns+` FROM approval_requests a WHERE a.id = $1 FOR UPDATE`, id)
}

func (r *ApprovalRepository) getOne(ctx context.Context, query string, id uuid.UUID) (*models.ApprovalRequest, error) {
	req := &models.ApprovalRequest{}
	if err := sqlx.GetContext(ctx, r.db, req, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get approval request: %w", err)
	}
	return req, nil
}

// TransitionApproval moves a request from status `from` to t.To. It reports false when the
// request was no longer in `from`.
func (r *ApprovalRepository) TransitionApproval(ctx context.Context, id uuid.UUID, from models.ApprovalStatus, t models.ApprovalTransition) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE approval_requests
		SET status = $1,
			reviewed_by = COALESCE($2, reviewed_by),
			review_note = COALESCE($3, review_note),
			failure_reason = COALESCE($4, failure_reason),
			decided_at = COALESCE($5, decided_at),
			updated_at = $6
		WHERE id = $7 AND status = $8`,
		t.To, t.ReviewedBy, t.ReviewNote, t.FailureReason, t.DecidedAt, time.Now().UTC(), id, from,
	)
	if err != nil {
		return false, fmt.Errorf("failed to transition approval request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ListApprovals lists the requests of a shop, newest first, with the total match count
func (r *ApprovalRepository) ListApprovals(ctx context.Context, f models.ApprovalFilter) ([]*models.ApprovalRequest, int, error) {
	where := ` WHERE a.shop_id = $1`
	args := []any{f.ShopID}
	paramIndex := 2

	if f.Status != nil {
		where += fmt.Sprintf(` AND a.status = $%d`, paramIndex)
		args = append(args, *f.Status)
		paramIndex++
	}
	if f.RequesterID != nil {
		where += fmt.Sprintf(` AND a.requested_by = $%d`, paramIndex)
		args = append(args, *f.RequesterID)
		paramIndex++
	}

	var total int
	if err := sqlx.GetContext(ctx, r.db, &total, `SELECT COUNT(*) FROM approval_requests a`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count approval requests: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT ` + approvalColumns + `, u.name AS requested_by_name
		FROM approval_requests a
		LEFT JOIN users u ON u.id = a.requested_by` + where +
		fmt.Sprintf(` ORDER BY a.created_at DESC, a.id DESC LIMIT $%d OFFSET $%d`, paramIndex, paramIndex+1)
	args = append(args, limit, f.Offset)

	out := make([]*models.ApprovalRequest, 0)
	if err := sqlx.SelectContext(ctx, r.db, &out, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list approval requests: %w", err)
	}
	return out, total, nil
}

// ListStalePending returns requests across all shops that have been PENDING since before cutoff,
// oldest first
func (r *ApprovalRepository) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]*models.ApprovalRequest, error) {
	out := make([]*models.ApprovalRequest, 0)
	err := sqlx.SelectContext(ctx, r.db, &out, `
		SELECT `+approvalColumns+`
		FROM approval_requests a
		WHERE a.status = $1 AND a.created_at < $2
		ORDER BY a.created_at ASC, a.id ASC
		LIMIT $3`, models.ApprovalStatusPending, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale approval requests: %w", err)
	}
	return out, nil
}
