package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/snippet-vault/internal/config"
)

func TestOpen_SQLiteCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "snippets.db")

	store, err := Open(context.Background(), config.Storage{Driver: config.DriverSQLite, SQLitePath: path})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	assert.NoError(t, store.Ping(context.Background()))
	assert.FileExists(t, path)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.Storage{Driver: "postgres"})
	assert.ErrorContains(t, err, "unknown storage driver")
}
