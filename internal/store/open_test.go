package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rickgao/signal-bridge/internal/config"
)

func configWithDriver(driver string) config.StoreConfig {
	return config.StoreConfig{Driver: driver}
}

func TestOpen_SQLite(t *testing.T) {
	path := seedDB(t, 2)

	s, err := Open(context.Background(), config.StoreConfig{Driver: config.DriverSQLite, Path: path}, 2, nil)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Ping(context.Background()))
	rows, err := s.Query(context.Background(), "probabilities", 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
}
