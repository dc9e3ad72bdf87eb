package sqlite_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dukex/flowstore/pkg/persistence"
	"github.com/dukex/flowstore/pkg/persistence/persistencetest"
	"github.com/dukex/flowstore/pkg/persistence/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) (*sqlite.Persistence, context.Context, string) {
	t.Helper()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "flowstore.db")

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	store, err := sqlite.NewPersistence(ctx, logger, "sqlite://"+path)
	require.NoError(t, err)

	t.Cleanup(func() {
		err := store.Close(ctx)
		require.NoError(t, err)
	})

	return store, ctx, path
}

func TestSQLite_Contract(t *testing.T) {
	persistencetest.Run(t, func(t *testing.T) persistence.Persistence {
		store, _, _ := setupTestDB(t)

		return store
	})
}

func TestNewPersistence_Migrations(t *testing.T) {
	store, ctx, path := setupTestDB(t)

	var version int

	err := store.DB().GetContext(ctx, &version, "SELECT MAX(version) FROM schema_migrations")
	require.NoError(t, err)
	assert.Equal(t, 2, version)

	var foreignKeys int

	err = store.DB().GetContext(ctx, &foreignKeys, "PRAGMA foreign_keys")
	require.NoError(t, err)
	assert.Equal(t, 1, foreignKeys)

	require.NoError(t, store.Close(ctx))

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	reopened, err := sqlite.NewPersistence(ctx, logger, path)
	require.NoError(t, err)

	t.Cleanup(func() { _ = reopened.Close(ctx) })

	var applied int

	err = reopened.DB().GetContext(ctx, &applied, "SELECT COUNT(*) FROM schema_migrations")
	require.NoError(t, err)
	assert.Equal(t, 2, applied)
}

func TestHealthCheck(t *testing.T) {
	store, ctx, _ := setupTestDB(t)

	assert.NoError(t, store.HealthCheck(ctx))
}

func TestConnectionsCannotJoinWorkflows(t *testing.T) {
	store, ctx, _ := setupTestDB(t)

	first := persistencetest.CreateWorkflow(t, store, "user_1", "first", time.Now().UTC())
	second := persistencetest.CreateWorkflow(t, store, "user_1", "second", time.Now().UTC())

	_, err := store.DB().ExecContext(ctx, `
		INSERT INTO connections (id, workflow_id, from_node_id, to_node_id, from_output, to_input, created_at, updated_at)
		VALUES ('conn_x', ?, ?, ?, '', '', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`,
		first.ID, first.Nodes[0].ID, second.Nodes[0].ID,
	)
	assert.Error(t, err)
}

func TestMigrate_RejectsNewerSchema(t *testing.T) {
	store, ctx, _ := setupTestDB(t)

	_, err := store.DB().ExecContext(ctx,
		"INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)", 99, time.Now().UTC())
	require.NoError(t, err)

	err = store.Migrate(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newer than the latest known migration")
}
