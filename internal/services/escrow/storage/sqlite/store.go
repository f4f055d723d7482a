// Package sqlite provides a SQLite-backed escrow storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	sqlitemigrate "github.com/louisbranch/escrow/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/escrow/internal/services/escrow/domain/ledger"
	"github.com/louisbranch/escrow/internal/services/escrow/domain/withdrawal"
	"github.com/louisbranch/escrow/internal/services/escrow/storage"
	"github.com/louisbranch/escrow/internal/services/escrow/storage/sqlite/migrations"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Store persists escrow state in SQLite.
type Store struct {
	sqlDB *sql.DB
	// writeMu serializes atomic units inside the process; _txlock=immediate
	// serializes them against other processes sharing the file.
	writeMu sync.Mutex
}

// Open opens a SQLite escrow store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(context.Background(), sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Atomic runs fn inside one immediate transaction.
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if fn == nil {
		return fmt.Errorf("atomic function is required")
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	sqlTx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = sqlTx.Rollback()
		}
	}()

	if err := fn(ctx, &txStore{q: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	committed = true
	return nil
}

// ListPendingWithdrawals returns pending withdrawals requested at or before
// requestedBefore.
func (s *Store) ListPendingWithdrawals(ctx context.Context, requestedBefore ledger.Timestamp) ([]withdrawal.Withdrawal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+withdrawalColumns+`
		   FROM withdrawals
		  WHERE status = ? AND requested_at <= ?
		  ORDER BY requested_at, id`,
		string(withdrawal.StatusPending), int64(requestedBefore),
	)
	if err != nil {
		return nil, fmt.Errorf("list pending withdrawals: %w", err)
	}
	return collectWithdrawals(rows)
}

// ListRequestedRefunds returns refunds still awaiting delivery that were
// requested at or before requestedBefore.
func (s *Store) ListRequestedRefunds(ctx context.Context, requestedBefore ledger.Timestamp) ([]withdrawal.Refund, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+refundColumns+`
		   FROM refunds
		  WHERE status = ? AND requested_at <= ?
		  ORDER BY requested_at, id`,
		string(withdrawal.RefundRequested), int64(requestedBefore),
	)
	if err != nil {
		return nil, fmt.Errorf("list requested refunds: %w", err)
	}
	return collectRefunds(rows)
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

var _ storage.Store = (*Store)(nil)
