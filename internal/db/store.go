// store.go implements the transactional unit of work consumed by the access services. Every
// transaction runs at SERIALIZABLE isolation under a bounded timeout; serialization failures and
// deadlocks surface as access.ErrTransactionConflict so callers can retry once.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopdesk/shopdesk/internal/access"
	"github.com/shopdesk/shopdesk/internal/db/repositories"
)

// PostgreSQL SQLSTATE codes treated as a lost race
const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
)

// Store hands out repositories bound either to the pool or to a transaction
type Store struct {
	db        *sqlx.DB
	txTimeout time.Duration
}

// NewStore creates a Store. A non-positive txTimeout disables the per-transaction deadline.
func NewStore(db *sqlx.DB, txTimeout time.Duration) *Store {
	return &Store{db: db, txTimeout: txTimeout}
}

// Reader returns repositories bound to the pool for read-only use
func (s *Store) Reader() access.Queries {
	return repositories.NewQueries(s.db)
}

// WithinTx runs fn inside one serializable transaction. The transaction commits only when fn
// returns nil; any error, panic or timeout rolls everything back.
func (s *Store) WithinTx(ctx context.Context, fn func(q access.Queries) error) error {
	if s.txTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.txTimeout)
		defer cancel()
	}

	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return mapTxError(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(repositories.NewQueries(tx)); err != nil {
		return mapTxError(err)
	}

	if err := tx.Commit(); err != nil {
		return mapTxError(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

// Ping checks database connectivity for readiness probes
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func mapTxError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case sqlStateSerializationFailure, sqlStateDeadlockDetected:
			return fmt.Errorf("%w: %s", access.ErrTransactionConflict, pqErr.Message)
		}
	}
	return err
}
