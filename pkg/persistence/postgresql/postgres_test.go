package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/dukex/flowstore/pkg/models"
	"github.com/dukex/flowstore/pkg/persistence"
	"github.com/dukex/flowstore/pkg/persistence/persistencetest"
	"github.com/dukex/flowstore/pkg/persistence/postgresql"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

var postgresContainer *postgres.PostgresContainer

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	// Drop tables in reverse dependency order (children first, parents last)
	for _, table := range []string{"connections", "nodes", "workflows", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	_, err = db.ExecContext(ctx, "DROP TYPE IF EXISTS node_type")
	require.NoError(t, err)

	err = db.Close()
	require.NoError(t, err)
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context, string) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping PostgreSQL container tests in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("flowstore_test"),
			postgres.WithUsername("flowstore"),
			postgres.WithPassword("flowstore"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	store, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		err := store.Close(ctx)
		require.NoError(t, err)

		dropDb(ctx, t, databaseURL)

		cancel()
	})

	return store, ctx, databaseURL
}

func TestPostgres_Contract(t *testing.T) {
	persistencetest.Run(t, func(t *testing.T) persistence.Persistence {
		store, _, _ := setupTestDB(t)

		return store
	})
}

func TestNewPersistence_Migrations(t *testing.T) {
	store, ctx, databaseURL := setupTestDB(t)

	var version int

	err := store.DB().GetContext(ctx, &version, "SELECT MAX(version) FROM schema_migrations")
	require.NoError(t, err)
	assert.Equal(t, 2, version)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	again, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)
	require.NoError(t, again.Close(ctx))
}

func TestNodeTypeEnumRejectsUnknownValues(t *testing.T) {
	store, ctx, _ := setupTestDB(t)

	workflow := persistencetest.CreateWorkflow(t, store, "user_1", "enum", time.Now().UTC())

	_, err := store.DB().ExecContext(ctx, `
		INSERT INTO nodes (id, workflow_id, name, type, position)
		VALUES ('nd_bad', $1, 'bad', 'GEMINI_AI', '{"x":0,"y":0}')`, workflow.ID)
	assert.Error(t, err)
}

// Concurrent replacements of one workflow serialize on the workflow row, so
// the stored graph is always exactly one of the submissions.
func TestConcurrentReplacementsLastWriterWins(t *testing.T) {
	store, ctx, _ := setupTestDB(t)

	workflow := persistencetest.CreateWorkflow(t, store, "user_1", "racy", time.Now().UTC())
	repo := store.WorkflowRepository()

	const writers = 8

	var wg sync.WaitGroup

	errs := make(chan error, writers)

	for i := range writers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			nodes := []models.GraphNode{
				{ID: workflow.Nodes[0].ID, Type: models.NodeTypeInitial},
				{ID: workflow.Nodes[0].ID + "_" + string(rune('a'+i)), Type: models.NodeTypeAction},
			}

			edges := []models.GraphEdge{{Source: nodes[0].ID, Target: nodes[1].ID}}

			_, err := repo.ReplaceGraph(ctx, workflow.ID, "user_1", persistence.GraphReplacement{
				Nodes: nodes,
				Edges: edges,
				At:    time.Now().UTC(),
			})
			errs <- err
		}()
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	got, err := repo.GetByID(ctx, workflow.ID, "user_1")
	require.NoError(t, err)
	require.Len(t, got.Nodes, 2)

	connections, err := store.ConnectionRepository().GetByWorkflow(ctx, workflow.ID)
	require.NoError(t, err)
	require.Len(t, connections, 1)

	ids := map[string]bool{got.Nodes[0].ID: true, got.Nodes[1].ID: true}
	assert.True(t, ids[connections[0].FromNodeID])
	assert.True(t, ids[connections[0].ToNodeID])
}
