package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/rickgao/signal-bridge/internal/model"
	"github.com/rickgao/signal-bridge/internal/protocol"
)

// Errors
var (
	ErrUnknownResource = errors.New(protocol.ErrCodeUnknownResource)
	ErrClosed          = errors.New("store closed")
)

// Store answers resource queries.
type Store interface {
	// Query returns up to limit rows, newest first, with columns in catalog order.
	Query(ctx context.Context, resource string, limit int) ([]model.Row, error)

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error

	// Close releases the underlying handles.
	Close() error
}

// resolve validates the resource and clamps the limit.
func resolve(resource string, limit int) (model.ResourceSpec, int, error) {
	spec, ok := model.Lookup(resource)
	if !ok {
		return model.ResourceSpec{}, 0, ErrUnknownResource
	}
	return spec, protocol.WithLimit(limit).EffectiveLimit(protocol.MaxLimit), nil
}

// scanner is satisfied by *sql.Rows.
type scanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// scanRows reads rows into model.Row values using the catalog's column names.
func scanRows(rows scanner, columns []string) ([]model.Row, error) {
	out := make([]model.Row, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, model.Row{Columns: columns, Values: values})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}
