// audit_repository.go implements AuditRepository. The audit_logs table is append-only: the repository
// offers inserts and keyset-paginated reads, and the schema rejects UPDATE and DELETE with a trigger.
package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopdesk/shopdesk/internal/db/models"
)

// AuditRepository handles audit log database operations
type AuditRepository struct {
	db sqlx.ExtContext
}

// NewAuditRepository creates a new AuditRepository
func NewAuditRepository(db sqlx.ExtContext) *AuditRepository {
	return &AuditRepository{db: db}
}

// InsertAuditLog appends an entry. The ID and timestamp are assigned here when unset.
func (r *AuditRepository) InsertAuditLog(ctx context.Context, log *models.AuditLog) error {
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_id, shop_id, action, table_name, record_id, changes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		log.ID, log.ActorID, log.ShopID, log.Action, log.TableName, log.RecordID, log.Changes, log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}
	return nil
}

// QueryAuditLogs returns up to limit entries matching f, ordered by (created_at, id) descending,
// starting strictly after the cursor when one is given.
func (r *AuditRepository) QueryAuditLogs(ctx context.Context, f models.AuditFilter, after *models.AuditCursor, limit int) ([]*models.AuditLog, error) {
	query := `
		SELECT id, actor_id, shop_id, action, table_name, record_id, changes, created_at
		FROM audit_logs
		WHERE 1=1`
	args := make([]any, 0)
	paramIndex := 1

	if f.ActorID != nil {
		query += fmt.Sprintf(` AND actor_id = $%d`, paramIndex)
		args = append(args, *f.ActorID)
		paramIndex++
	}
	if f.ShopID != nil {
		query += fmt.Sprintf(` AND shop_id = $%d`, paramIndex)
		args = append(args, *f.ShopID)
		paramIndex++
	}
	if f.TableName != "" {
		query += fmt.Sprintf(` AND table_name = $%d`, paramIndex)
		args = append(args, f.TableName)
		paramIndex++
	}
	if f.RecordID != "" {
		query += fmt.Sprintf(` AND record_id = $%d`, paramIndex)
		args = append(args, f.RecordID)
		paramIndex++
	}
	if f.Action != "" {
		query += fmt.Sprintf(` AND action = $%d`, paramIndex)
		args = append(args, f.Action)
		paramIndex++
	}
	if f.From != nil {
		query += fmt.Sprintf(` AND created_at >= $%d`, paramIndex)
		args = append(args, *f.From)
		paramIndex++
	}
	if f.To != nil {
		query += fmt.Sprintf(` AND created_at <= $%d`, paramIndex)
		args = append(args, *f.To)
		paramIndex++
	}
	if after != nil {
		query += fmt.Sprintf(` AND (created_at, id) < ($%d, $%d)`, paramIndex, paramIndex+1)
		args = append(args, after.CreatedAt, after.ID)
		paramIndex += 2
	}

	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d`, paramIndex)
	args = append(args, limit)

	logs := make([]*models.AuditLog, 0)
	if err := sqlx.SelectContext(ctx, r.db, &logs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	return logs, nil
}
