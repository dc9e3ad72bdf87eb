package client_test

import (
	"context"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/dukex/flowstore/pkg/client"
	"github.com/dukex/flowstore/pkg/editor"
	"github.com/dukex/flowstore/pkg/entitlements"
	"github.com/dukex/flowstore/pkg/models"
	"github.com/dukex/flowstore/pkg/persistence"
	"github.com/dukex/flowstore/pkg/persistence/sqlite"
	"github.com/dukex/flowstore/pkg/services"
	"github.com/dukex/flowstore/pkg/web"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T) string {
	t.Helper()

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	store, err := sqlite.NewPersistence(ctx, logger, filepath.Join(t.TempDir(), "flowstore.db"))
	require.NoError(t, err)

	workflowService := services.NewWorkflow(store, entitlements.NewStatic("user-1"), services.WithLogger(logger))

	app := fiber.New()
	web.NewAPIHandlers(workflowService, services.NewValidator(), logger).Register(app)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() {
		_ = app.Listener(ln, fiber.ListenConfig{DisableStartupMessage: true})
	}()

	t.Cleanup(func() {
		require.NoError(t, app.Shutdown())
		require.NoError(t, store.Close(ctx))
	})

	return "http://" + ln.Addr().String()
}

func TestClient_WorkflowLifecycle(t *testing.T) {
	ctx := context.Background()
	c := client.New(startServer(t), "user-1")

	created, err := c.Create(ctx, client.CreateRequest{Name: "remote"})
	require.NoError(t, err)
	assert.Equal(t, "remote", created.Name)

	graph, err := c.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, graph.Nodes, 1)

	nodes := append(graph.Nodes, models.GraphNode{
		ID:       "nd_99",
		Type:     models.NodeTypeHTTPRequest,
		Position: models.Position{X: 100},
		Data:     map[string]any{"method": "GET"},
	})
	edges := []models.GraphEdge{{
		Source:       graph.Nodes[0].ID,
		Target:       "nd_99",
		SourceHandle: "source-1",
		TargetHandle: "target-1",
	}}

	updated, err := c.UpdateGraph(ctx, created.ID, nodes, edges)
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)

	graph, err = c.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Len(t, graph.Nodes, 2)
	assert.Len(t, graph.Edges, 1)

	page, err := c.List(ctx, 1, 10, "REM")
	require.NoError(t, err)
	assert.Equal(t, 1, page.TotalCount)

	renamed, err := c.Rename(ctx, created.ID, "renamed")
	require.NoError(t, err)
	assert.Equal(t, "renamed", renamed.Name)

	removed, err := c.Remove(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, removed.ID)

	_, err = c.Get(ctx, created.ID)
	require.ErrorIs(t, err, persistence.ErrWorkflowNotFound)
}

func TestClient_ErrorsMatchServiceKinds(t *testing.T) {
	ctx := context.Background()
	url := startServer(t)

	_, err := client.New(url, "user-free").Create(ctx, client.CreateRequest{})
	require.ErrorIs(t, err, services.ErrForbidden)

	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "forbidden", apiErr.Type)

	_, err = client.New(url, "").List(ctx, 0, 0, "")
	require.ErrorIs(t, err, services.ErrUnauthenticated)

	_, err = client.New(url, "user-1").List(ctx, 0, 1000, "")
	require.ErrorIs(t, err, services.ErrInvalidRequest)
}

func TestClient_DrivesSyncLoop(t *testing.T) {
	ctx := context.Background()
	c := client.New(startServer(t), "user-1")

	created, err := c.Create(ctx, client.CreateRequest{Name: "synced"})
	require.NoError(t, err)

	remote, err := c.Get(ctx, created.ID)
	require.NoError(t, err)

	graph := editor.NewGraph(created.ID)
	graph.Load(remote.Nodes, remote.Edges)

	added := graph.AddNode(models.NodeTypeAction, "Notify", models.Position{X: 200}, nil)
	_, err = graph.Connect(remote.Nodes[0].ID, added.ID, "source-1", "target-1")
	require.NoError(t, err)

	settings := editor.DefaultSettings()
	settings.AutoSave = false

	loop := editor.NewSyncLoop(c, settings)
	t.Cleanup(loop.Close)

	loop.Mount(graph)
	require.NoError(t, loop.SaveNow(ctx))

	stored, err := c.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Nodes, 2)
	require.Len(t, stored.Edges, 1)
	assert.Equal(t, added.ID, stored.Edges[0].Target)
}
