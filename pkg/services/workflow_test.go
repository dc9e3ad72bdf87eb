package services_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dukex/flowstore/pkg/entitlements"
	"github.com/dukex/flowstore/pkg/events"
	"github.com/dukex/flowstore/pkg/idgen"
	"github.com/dukex/flowstore/pkg/mocks"
	"github.com/dukex/flowstore/pkg/models"
	"github.com/dukex/flowstore/pkg/persistence"
	"github.com/dukex/flowstore/pkg/persistence/sqlite"
	"github.com/dukex/flowstore/pkg/services"
	"github.com/dukex/flowstore/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	alice = "user-alice"
	bob   = "user-bob"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func setupService(t *testing.T, opts ...services.Option) (*services.Workflow, persistence.Persistence) {
	t.Helper()

	ctx := context.Background()

	store, err := sqlite.NewPersistence(ctx, testLogger(), filepath.Join(t.TempDir(), "flowstore.db"))
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, store.Close(ctx))
	})

	opts = append([]services.Option{services.WithLogger(testLogger())}, opts...)

	return services.NewWorkflow(store, entitlements.NewStatic(alice, bob), opts...), store
}

func TestWorkflow_Create(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	workflow, err := svc.Create(ctx, alice, services.CreateWorkflowRequest{})
	require.NoError(t, err)

	assert.True(t, idgen.HasPrefix(workflow.ID, idgen.Workflows))
	assert.Regexp(t, `^[a-z]+-[a-z]+-[a-z]+$`, workflow.Name)
	assert.Equal(t, alice, workflow.OwnerID)
	assert.Equal(t, workflow.CreatedAt, workflow.UpdatedAt)

	graph, err := svc.GetOne(ctx, workflow.ID, alice)
	require.NoError(t, err)
	require.Len(t, graph.Nodes, 1)
	assert.Equal(t, models.NodeTypeInitial, graph.Nodes[0].Type)
	assert.Equal(t, "Initial Node", graph.Nodes[0].Name)
	assert.Equal(t, models.Position{}, graph.Nodes[0].Position)
	assert.Empty(t, graph.Edges)
}

func TestWorkflow_CreateKeepsGivenName(t *testing.T) {
	svc, _ := setupService(t)

	description := "sends a digest"

	workflow, err := svc.Create(context.Background(), alice, services.CreateWorkflowRequest{
		Name:        "Daily digest",
		Description: &description,
	})
	require.NoError(t, err)

	assert.Equal(t, "Daily digest", workflow.Name)
	require.NotNil(t, workflow.Description)
	assert.Equal(t, description, *workflow.Description)
}

func TestWorkflow_CreateRequiresPremium(t *testing.T) {
	svc, store := setupService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "user-free", services.CreateWorkflowRequest{Name: "nope"})
	require.Error(t, err)
	assert.True(t, services.IsForbiddenError(err))

	count, err := store.WorkflowRepository().Count(ctx, "user-free", "")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestWorkflow_CreateEntitlementFailure(t *testing.T) {
	checker := &mocks.MockChecker{}
	checker.On("IsPremium", mock.Anything, alice).Return(false, errors.New("redis down"))

	store := mocks.NewMockPersistence()

	svc := services.NewWorkflow(store, checker, services.WithLogger(testLogger()))

	_, err := svc.Create(context.Background(), alice, services.CreateWorkflowRequest{})
	require.Error(t, err)
	assert.True(t, services.IsInternalError(err))

	store.Workflows.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	checker.AssertExpectations(t)
}

func TestWorkflow_RequiresCaller(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "", services.CreateWorkflowRequest{})
	assert.True(t, services.IsUnauthenticatedError(err))

	_, err = svc.List(ctx, "", services.ListWorkflowsRequest{})
	assert.True(t, services.IsUnauthenticatedError(err))

	_, err = svc.GetOne(ctx, "wfl_abc123", "")
	assert.True(t, services.IsUnauthenticatedError(err))

	_, err = svc.Update(ctx, "wfl_abc123", "", services.UpdateWorkflowRequest{})
	assert.True(t, services.IsUnauthenticatedError(err))

	_, err = svc.Remove(ctx, "wfl_abc123", "")
	assert.True(t, services.IsUnauthenticatedError(err))
}

func TestWorkflow_UpdateReplacesGraph(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	workflow, err := svc.Create(ctx, alice, services.CreateWorkflowRequest{Name: "graph"})
	require.NoError(t, err)

	nodes, edges := testutil.CreateLinearGraph(3)
	nodes = append(nodes, testutil.CreateTestNode(testutil.WithNodeType("GEMINI_AI"), testutil.WithNodeName("")))
	edges = append(edges, testutil.CreateTestEdge(nodes[0].ID, "nd_missing"))

	resp, err := svc.Update(ctx, workflow.ID, alice, services.UpdateWorkflowRequest{Nodes: nodes, Edges: edges})
	require.NoError(t, err)

	assert.Equal(t, workflow.ID, resp.Workflow.ID)
	assert.False(t, resp.Workflow.UpdatedAt.Before(workflow.UpdatedAt))
	assert.Equal(t, []string{nodes[3].ID}, resp.CoercedNodes)
	require.Len(t, resp.DroppedEdges, 1)
	assert.Equal(t, "nd_missing", resp.DroppedEdges[0].Target)

	graph, err := svc.GetOne(ctx, workflow.ID, alice)
	require.NoError(t, err)
	assert.Len(t, graph.Nodes, 4)
	assert.Len(t, graph.Edges, 2)

	for _, node := range graph.Nodes {
		if node.ID == nodes[3].ID {
			assert.Equal(t, models.NodeTypeInitial, node.Type)
			assert.Equal(t, models.DefaultNodeName, node.Name)
		}
	}

	for _, edge := range graph.Edges {
		assert.True(t, idgen.HasPrefix(edge.ID, idgen.Connections))
	}
}

func TestWorkflow_UpdateEmptyGraphClears(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	workflow, err := svc.Create(ctx, alice, services.CreateWorkflowRequest{Name: "clear"})
	require.NoError(t, err)

	_, err = svc.Update(ctx, workflow.ID, alice, services.UpdateWorkflowRequest{})
	require.NoError(t, err)

	graph, err := svc.GetOne(ctx, workflow.ID, alice)
	require.NoError(t, err)
	assert.Empty(t, graph.Nodes)
	assert.Empty(t, graph.Edges)
}

func TestWorkflow_UpdateNotFoundForOtherOwner(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	workflow, err := svc.Create(ctx, alice, services.CreateWorkflowRequest{Name: "private"})
	require.NoError(t, err)

	_, err = svc.Update(ctx, workflow.ID, bob, services.UpdateWorkflowRequest{})
	require.Error(t, err)
	assert.True(t, persistence.IsWorkflowNotFound(err))

	_, err = svc.GetOne(ctx, workflow.ID, bob)
	assert.True(t, persistence.IsWorkflowNotFound(err))

	graph, err := svc.GetOne(ctx, workflow.ID, alice)
	require.NoError(t, err)
	assert.Len(t, graph.Nodes, 1)
}

func TestWorkflow_UpdateRejectsInvalidGraph(t *testing.T) {
	svc, _ := setupService(t)

	_, err := svc.Update(context.Background(), "wfl_abc123", alice, services.UpdateWorkflowRequest{
		Nodes: []models.GraphNode{{ID: ""}},
	})
	require.Error(t, err)
	assert.True(t, services.IsValidationError(err))
}

func TestWorkflow_UpdateConflict(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, alice, services.CreateWorkflowRequest{Name: "first"})
	require.NoError(t, err)

	second, err := svc.Create(ctx, alice, services.CreateWorkflowRequest{Name: "second"})
	require.NoError(t, err)

	shared := testutil.CreateTestNode()

	_, err = svc.Update(ctx, first.ID, alice, services.UpdateWorkflowRequest{Nodes: []models.GraphNode{shared}})
	require.NoError(t, err)

	_, err = svc.Update(ctx, second.ID, alice, services.UpdateWorkflowRequest{Nodes: []models.GraphNode{shared}})
	require.Error(t, err)
	assert.True(t, services.IsConflictError(err))

	graph, err := svc.GetOne(ctx, second.ID, alice)
	require.NoError(t, err)
	assert.Len(t, graph.Nodes, 1, "failed replacement must leave the previous graph")
}

func TestWorkflow_UpdateStoreFailureIsInternal(t *testing.T) {
	store := mocks.NewMockPersistence()
	store.Workflows.On("ReplaceGraph", mock.Anything, "wfl_abc123", alice, mock.Anything).
		Return(nil, errors.New("connection reset"))

	svc := services.NewWorkflow(store, entitlements.AllowAll(), services.WithLogger(testLogger()))

	_, err := svc.Update(context.Background(), "wfl_abc123", alice, services.UpdateWorkflowRequest{})
	require.Error(t, err)
	assert.True(t, services.IsInternalError(err))
	assert.Contains(t, err.Error(), "failed to update workflow")
}

func TestWorkflow_GetOneDegradesOnConnectionFailure(t *testing.T) {
	now := time.Now().UTC()

	store := mocks.NewMockPersistence()
	store.Workflows.On("GetGraph", mock.Anything, "wfl_abc123", alice).Return(&persistence.StoredGraph{
		Workflow: &models.Workflow{
			ID:        "wfl_abc123",
			Name:      "degraded",
			OwnerID:   alice,
			CreatedAt: now,
			UpdatedAt: now,
			Nodes: []*models.Node{
				{ID: "nd_aaaaaa", WorkflowID: "wfl_abc123", Name: "Initial Node", Type: models.NodeTypeInitial},
			},
		},
		Connections:    []*models.Connection{},
		ConnectionsErr: errors.New("timeout"),
	}, nil)

	svc := services.NewWorkflow(store, entitlements.AllowAll(), services.WithLogger(testLogger()))

	graph, err := svc.GetOne(context.Background(), "wfl_abc123", alice)
	require.NoError(t, err)
	assert.Len(t, graph.Nodes, 1)
	assert.NotNil(t, graph.Edges)
	assert.Empty(t, graph.Edges)
	assert.NotNil(t, graph.Nodes[0].Data)
}

func TestWorkflow_GetOneReadsOneSnapshot(t *testing.T) {
	now := time.Now().UTC()

	store := mocks.NewMockPersistence()
	store.Workflows.On("GetGraph", mock.Anything, "wfl_abc123", alice).Return(&persistence.StoredGraph{
		Workflow: &models.Workflow{
			ID:        "wfl_abc123",
			OwnerID:   alice,
			CreatedAt: now,
			UpdatedAt: now,
			Nodes: []*models.Node{
				{ID: "nd_first", WorkflowID: "wfl_abc123", Type: models.NodeTypeInitial},
				{ID: "nd_second", WorkflowID: "wfl_abc123", Type: models.NodeTypeAction},
			},
		},
		Connections: []*models.Connection{
			{ID: "conn_aaaaaa", WorkflowID: "wfl_abc123", FromNodeID: "nd_first", ToNodeID: "nd_second"},
		},
	}, nil).Once()

	svc := services.NewWorkflow(store, entitlements.AllowAll(), services.WithLogger(testLogger()))

	graph, err := svc.GetOne(context.Background(), "wfl_abc123", alice)
	require.NoError(t, err)
	require.Len(t, graph.Edges, 1)
	assert.Equal(t, "nd_first", graph.Edges[0].Source)
	assert.Equal(t, "nd_second", graph.Edges[0].Target)

	store.Workflows.AssertExpectations(t)
	store.Workflows.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything, mock.Anything)
	store.Connections.AssertNotCalled(t, "GetByWorkflow", mock.Anything, mock.Anything)
}

func TestWorkflow_List(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0

	svc, _ := setupService(t, services.WithClock(func() time.Time {
		tick++

		return base.Add(time.Duration(tick) * time.Second)
	}))
	ctx := context.Background()

	for _, name := range []string{"alpha report", "beta report", "gamma", "delta report", "epsilon", "zeta report"} {
		_, err := svc.Create(ctx, alice, services.CreateWorkflowRequest{Name: name})
		require.NoError(t, err)
	}

	_, err := svc.Create(ctx, bob, services.CreateWorkflowRequest{Name: "bob report"})
	require.NoError(t, err)

	page, err := svc.List(ctx, alice, services.ListWorkflowsRequest{})
	require.NoError(t, err)

	assert.Equal(t, 6, page.TotalCount)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, services.DefaultPageSize, page.PageSize)
	assert.Equal(t, 2, page.TotalPages)
	assert.True(t, page.HasNextPage)
	assert.False(t, page.HasPreviousPage)
	require.Len(t, page.Items, 5)
	assert.Equal(t, "zeta report", page.Items[0].Name, "newest first")

	search, err := svc.List(ctx, alice, services.ListWorkflowsRequest{Search: "REPORT", PageSize: 2, Page: 2})
	require.NoError(t, err)
	assert.Equal(t, 4, search.TotalCount)
	require.Len(t, search.Items, 2)
	assert.Equal(t, "beta report", search.Items[0].Name)
	assert.Equal(t, "alpha report", search.Items[1].Name)
	assert.False(t, search.HasNextPage)
	assert.True(t, search.HasPreviousPage)
}

func TestWorkflow_ListRejectsBadPagination(t *testing.T) {
	svc, _ := setupService(t)

	_, err := svc.List(context.Background(), alice, services.ListWorkflowsRequest{PageSize: 101})
	assert.True(t, services.IsValidationError(err))

	_, err = svc.List(context.Background(), alice, services.ListWorkflowsRequest{Page: -1})
	assert.True(t, services.IsValidationError(err))
}

func TestWorkflow_UpdateNameAndRemove(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	workflow, err := svc.Create(ctx, alice, services.CreateWorkflowRequest{Name: "old"})
	require.NoError(t, err)

	_, err = svc.UpdateName(ctx, workflow.ID, alice, "")
	assert.True(t, services.IsValidationError(err))

	renamed, err := svc.UpdateName(ctx, workflow.ID, alice, "new")
	require.NoError(t, err)
	assert.Equal(t, "new", renamed.Name)

	_, err = svc.Remove(ctx, workflow.ID, bob)
	assert.True(t, persistence.IsWorkflowNotFound(err))

	removed, err := svc.Remove(ctx, workflow.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, workflow.ID, removed.ID)

	_, err = svc.GetOne(ctx, workflow.ID, alice)
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestWorkflow_PublishesEvents(t *testing.T) {
	publisher := &mocks.MockEventBus{}
	publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	svc, _ := setupService(t, services.WithEventPublisher(publisher))
	ctx := context.Background()

	workflow, err := svc.Create(ctx, alice, services.CreateWorkflowRequest{Name: "events"})
	require.NoError(t, err)

	_, err = svc.Update(ctx, workflow.ID, alice, services.UpdateWorkflowRequest{})
	require.NoError(t, err)

	_, err = svc.Remove(ctx, workflow.ID, alice)
	require.NoError(t, err)

	publisher.AssertNumberOfCalls(t, "Publish", 3)
	publisher.AssertCalled(t, "Publish", mock.Anything, workflow.ID, mock.MatchedBy(func(e events.WorkflowGraphReplaced) bool {
		return e.WorkflowID == workflow.ID && e.NodeCount == 0
	}))
}

func TestWorkflow_PublishFailureDoesNotFailWrite(t *testing.T) {
	publisher := &mocks.MockEventBus{}
	publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker unavailable"))

	svc, _ := setupService(t, services.WithEventPublisher(publisher))

	_, err := svc.Create(context.Background(), alice, services.CreateWorkflowRequest{Name: "still stored"})
	assert.NoError(t, err)
}

func TestWorkflow_HealthCheck(t *testing.T) {
	svc, _ := setupService(t)

	message, ok := svc.HealthCheck(context.Background())
	assert.True(t, ok)
	assert.Equal(t, "Persistence layer is healthy", message)
}
