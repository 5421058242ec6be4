// Package audit is the append-only record of privileged state transitions. Entries are written
// through the caller's transaction so an entry exists exactly when its mutation committed; reads
// are keyset-paginated newest first. Committed entries can additionally be shipped to external
// destinations (file, webhook) for retention outside the database.
package audit

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopdesk/shopdesk/internal/db/models"
	"github.com/shopdesk/shopdesk/internal/safego"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// ErrInvalidEntry is returned by Record for an entry missing required fields
var ErrInvalidEntry = errors.New("audit: invalid entry")

// ErrInvalidCursor is returned by Query for a cursor it did not issue
var ErrInvalidCursor = errors.New("audit: invalid cursor")

// Writer appends entries; satisfied by repositories bound to a transaction
type Writer interface {
	InsertAuditLog(ctx context.Context, log *models.AuditLog) error
}

// Reader reads entries in (created_at, id) descending order
type Reader interface {
	QueryAuditLogs(ctx context.Context, f models.AuditFilter, after *models.AuditCursor, limit int) ([]*models.AuditLog, error)
}

// Entry is what a caller records
type Entry struct {
	ActorID   uuid.UUID
	ShopID    *uuid.UUID
	Action    models.AuditAction
	TableName string
	RecordID  string
	Changes   models.AuditChanges
}

// Page is one page of a query. NextCursor is empty on the last page.
type Page struct {
	Entries    []*models.AuditLog `json:"entries"`
	NextCursor string             `json:"next_cursor,omitempty"`
}

// Trail records and queries audit entries
type Trail struct {
	reader  Reader
	shipper Shipper
	logger  *slog.Logger
}

// NewTrail creates a Trail. shipper may be nil.
func NewTrail(reader Reader, shipper Shipper, logger *slog.Logger) *Trail {
	if logger == nil {
		logger = slog.Default()
	}
	return &Trail{reader: reader, shipper: shipper, logger: logger}
}

// Record appends an entry through w. Any failure must abort the caller's transaction.
func (t *Trail) Record(ctx context.Context, w Writer, e Entry) (*models.AuditLog, error) {
	if e.ActorID == uuid.Nil || e.Action == "" || e.TableName == "" || e.RecordID == "" {
		return nil, fmt.Errorf("%w: actor, action, table and record are required", ErrInvalidEntry)
	}

	log := &models.AuditLog{
		ID:        uuid.New(),
		ActorID:   e.ActorID,
		ShopID:    e.ShopID,
		Action:    e.Action,
		TableName: e.TableName,
		RecordID:  e.RecordID,
		Changes:   e.Changes,
		CreatedAt: time.Now().UTC(),
	}
	if err := w.InsertAuditLog(ctx, log); err != nil {
		return nil, fmt.Errorf("audit: record %s %s/%s: %w", e.Action, e.TableName, e.RecordID, err)
	}
	return log, nil
}

// Query returns one page of entries matching f, starting after cursor ("" for the first page)
func (t *Trail) Query(ctx context.Context, f models.AuditFilter, cursor string, limit int) (*Page, error) {
	after, err := DecodeCursor(cursor)
	if err != nil {
		return nil, err
	}
	limit = clampPageSize(limit)

	logs, err := t.reader.QueryAuditLogs(ctx, f, after, limit+1)
	if err != nil {
		return nil, fmt.Errorf("audit: query: %w", err)
	}

	page := &Page{Entries: logs}
	if len(logs) > limit {
		page.Entries = logs[:limit]
		last := page.Entries[limit-1]
		page.NextCursor = EncodeCursor(models.AuditCursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return page, nil
}

// All lazily iterates every entry matching f, fetching pageSize entries at a time. Iteration stops
// at the first error, which is yielded once.
func (t *Trail) All(ctx context.Context, f models.AuditFilter, pageSize int) iter.Seq2[*models.AuditLog, error] {
	pageSize = clampPageSize(pageSize)
	return func(yield func(*models.AuditLog, error) bool) {
		var after *models.AuditCursor
		for {
			logs, err := t.reader.QueryAuditLogs(ctx, f, after, pageSize)
			if err != nil {
				yield(nil, fmt.Errorf("audit: query: %w", err))
				return
			}
			for _, l := range logs {
				if !yield(l, nil) {
					return
				}
			}
			if len(logs) < pageSize {
				return
			}
			last := logs[len(logs)-1]
			after = &models.AuditCursor{CreatedAt: last.CreatedAt, ID: last.ID}
		}
	}
}

// Ship forwards committed entries to the configured shipper in the background
func (t *Trail) Ship(entries ...*models.AuditLog) {
	if t.shipper == nil || len(entries) == 0 {
		return
	}
	safego.Go("audit-ship", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		for _, e := range entries {
			if err := t.shipper.Ship(ctx, e); err != nil {
				t.logger.Warn("audit shipping failed", "audit_id", e.ID, "action", e.Action, "error", err)
			}
		}
	})
}

func clampPageSize(n int) int {
	if n <= 0 {
		return defaultPageSize
	}
	if n > maxPageSize {
		return maxPageSize
	}
	return n
}

// EncodeCursor renders a keyset position as an opaque token
func EncodeCursor(c models.AuditCursor) string {
	raw := c.CreatedAt.UTC().Format(time.RFC3339Nano) + "|" + c.ID.String()
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a token produced by EncodeCursor. The empty string means "from the start".
func DecodeCursor(s string) (*models.AuditCursor, error) {
	if s == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	ts, id, ok := strings.Cut(string(raw), "|")
	if !ok {
		return nil, ErrInvalidCursor
	}
	createdAt, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	return &models.AuditCursor{CreatedAt: createdAt, ID: uid}, nil
}
