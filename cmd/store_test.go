//go:build !integration

package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/yield-atlas/internal/config"
	"github.com/sells-group/yield-atlas/internal/store"
)

func TestInitStore_None(t *testing.T) {
	for _, driver := range []string{"", "none"} {
		st, err := initStore(context.Background(), config.StoreConfig{Driver: driver})
		require.NoError(t, err)
		assert.Nil(t, st)
	}
}

func TestInitStore_SQLite(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "runs.db")
	st, err := initStore(context.Background(), config.StoreConfig{Driver: "sqlite", DatabaseURL: dsn, SRID: 4269})
	require.NoError(t, err)
	require.NotNil(t, st)
	defer st.Close() //nolint:errcheck

	require.NoError(t, st.Migrate(context.Background()))
}

func TestInitStore_PostgresNeedsURL(t *testing.T) {
	_, err := initStore(context.Background(), config.StoreConfig{Driver: "postgres"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database_url")
}

func TestInitStore_Unsupported(t *testing.T) {
	_, err := initStore(context.Background(), config.StoreConfig{Driver: "mongo"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported store driver")
}

func TestRequireStore_None(t *testing.T) {
	_, err := requireStore(context.Background(), config.StoreConfig{Driver: "none"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "needs a store")
}

func TestOpenStore_MigratesSQLite(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "runs.db")
	st, err := openStore(context.Background(), config.StoreConfig{Driver: "sqlite", DatabaseURL: dsn})
	require.NoError(t, err)
	require.NotNil(t, st)
	defer st.Close() //nolint:errcheck

	runs, err := st.ListRuns(context.Background(), store.RunFilter{})
	require.NoError(t, err)
	assert.Empty(t, runs)
}
