package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rickgao/signal-bridge/internal/config"
)

// Open builds the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig, readers int, logger *slog.Logger) (Store, error) {
	switch cfg.Driver {
	case config.DriverSQLite, "":
		return NewSQLite(ctx, SQLiteConfig{
			Path:        cfg.Path,
			BusyTimeout: cfg.BusyTimeout,
			MaxConns:    readers,
		}, logger)
	case config.DriverPostgres:
		return NewPostgres(ctx, cfg.Postgres, cfg.BusyTimeout, logger)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
