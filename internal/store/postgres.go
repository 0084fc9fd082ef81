package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/signal-bridge/internal/config"
	"github.com/rickgao/signal-bridge/internal/database"
	"github.com/rickgao/signal-bridge/internal/model"
)

// Postgres reads from PostgreSQL/TimescaleDB tables with the same layout as
// the embedded store.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgres connects a read-only pool.
func NewPostgres(ctx context.Context, cfg config.DBConfig, lockTimeout time.Duration, logger *slog.Logger) (*Postgres, error) {
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := database.ConnectPostgres(ctx, cfg, lockTimeout)
	if err != nil {
		return nil, err
	}

	logger.Info("postgres store connected",
		"host", cfg.Host,
		"port", cfg.Port,
		"database", cfg.Name,
	)

	return &Postgres{pool: pool, logger: logger}, nil
}

// Query runs the resource's select inside a read-only transaction.
func (p *Postgres) Query(ctx context.Context, resource string, limit int) ([]model.Row, error) {
	spec, n, err := resolve(resource, limit)
	if err != nil {
		return nil, err
	}

	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("begin read-only tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, spec.SelectSQL("$1"), n)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", spec.Name, err)
	}
	defer rows.Close()

	out := make([]model.Row, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, model.Row{Columns: spec.Columns, Values: values})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return out, nil
}

// Ping verifies the pool is healthy.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close closes the pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
