package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/rickgao/signal-bridge/internal/database"
	"github.com/rickgao/signal-bridge/internal/model"
)

// SQLiteConfig configures the SQLite store.
type SQLiteConfig struct {
	Path        string
	BusyTimeout time.Duration // Max wait on the writer's lock
	MaxConns    int           // Concurrent readers
}

// SQLite reads from an embedded database opened read-only.
type SQLite struct {
	db     *sql.DB
	logger *slog.Logger
	closed atomic.Bool
}

// NewSQLite opens the database file read-only.
func NewSQLite(ctx context.Context, cfg SQLiteConfig, logger *slog.Logger) (*SQLite, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := database.OpenSQLite(ctx, cfg.Path, cfg.BusyTimeout, cfg.MaxConns)
	if err != nil {
		return nil, err
	}

	logger.Info("sqlite store opened",
		"path", cfg.Path,
		"busy_timeout", cfg.BusyTimeout,
	)

	return &SQLite{db: db, logger: logger}, nil
}

// Query runs the resource's newest-first select.
func (s *SQLite) Query(ctx context.Context, resource string, limit int) ([]model.Row, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	spec, n, err := resolve(resource, limit)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, spec.SelectSQL("?"), n)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", spec.Name, err)
	}
	defer rows.Close()

	return scanRows(rows, spec.Columns)
}

// Ping verifies the database is readable.
func (s *SQLite) Ping(ctx context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return s.db.PingContext(ctx)
}

// Close closes the database handle.
func (s *SQLite) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}
