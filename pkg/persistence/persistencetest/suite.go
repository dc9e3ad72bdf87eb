// Package persistencetest holds the behavior every persistence backend must share.
package persistencetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/dukex/flowstore/pkg/idgen"
	"github.com/dukex/flowstore/pkg/models"
	"github.com/dukex/flowstore/pkg/persistence"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty, migrated store. Cleanup is the factory's job.
type Factory func(t *testing.T) persistence.Persistence

const (
	owner = "user_owner"
	other = "user_other"
)

var base = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// Run exercises a backend against the shared contract.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("create seeds an initial node", func(t *testing.T) { testCreate(t, newStore(t)) })
	t.Run("replace then read returns the submitted graph", func(t *testing.T) { testReplaceRoundTrip(t, newStore(t)) })
	t.Run("dangling edges are dropped", func(t *testing.T) { testDanglingEdges(t, newStore(t)) })
	t.Run("empty replacement clears the graph", func(t *testing.T) { testClear(t, newStore(t)) })
	t.Run("identical replacements are idempotent", func(t *testing.T) { testIdempotent(t, newStore(t)) })
	t.Run("unknown types are coerced", func(t *testing.T) { testCoercion(t, newStore(t)) })
	t.Run("duplicate node id conflicts and keeps the old graph", func(t *testing.T) { testDuplicateNode(t, newStore(t)) })
	t.Run("foreign node id conflicts", func(t *testing.T) { testForeignNode(t, newStore(t)) })
	t.Run("duplicate edge conflicts", func(t *testing.T) { testDuplicateEdge(t, newStore(t)) })
	t.Run("other owners see not found", func(t *testing.T) { testOwnership(t, newStore(t)) })
	t.Run("delete cascades", func(t *testing.T) { testDeleteCascades(t, newStore(t)) })
	t.Run("list paginates and searches", func(t *testing.T) { testList(t, newStore(t)) })
	t.Run("rename and touch", func(t *testing.T) { testRenameAndTouch(t, newStore(t)) })
	t.Run("graph reads follow submission order", func(t *testing.T) { testSubmissionOrder(t, newStore(t)) })
	t.Run("graph reads never see a half replaced graph", func(t *testing.T) { testSnapshotRead(t, newStore(t)) })
}

// CreateWorkflow stores a workflow for ownerID with a seed node and returns it.
func CreateWorkflow(t *testing.T, store persistence.Persistence, ownerID, name string, createdAt time.Time) *models.Workflow {
	t.Helper()

	workflow := &models.Workflow{
		ID:        idgen.New(idgen.Workflows),
		Name:      name,
		OwnerID:   ownerID,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}

	seed := &models.Node{
		ID:         idgen.New(idgen.Nodes),
		WorkflowID: workflow.ID,
		Name:       "Initial Node",
		Type:       models.NodeTypeInitial,
		Data:       models.NodeData{},
		CreatedAt:  createdAt,
		UpdatedAt:  createdAt,
	}

	err := store.WorkflowRepository().Create(context.Background(), workflow, seed)
	require.NoError(t, err)

	return workflow
}

func sampleGraph(seedID string) ([]models.GraphNode, []models.GraphEdge) {
	nodes := []models.GraphNode{
		{ID: seedID, Type: models.NodeTypeInitial, Name: "Initial Node", Position: models.Position{X: 0, Y: 0}, Data: map[string]any{}},
		{ID: "nd_99" + seedID[3:], Type: models.NodeTypeHTTPRequest, Name: "Fetch", Position: models.Position{X: 100, Y: 0}, Data: map[string]any{"method": "GET"}},
	}

	edges := []models.GraphEdge{
		{Source: nodes[0].ID, Target: nodes[1].ID, SourceHandle: "source-1", TargetHandle: "target-1"},
	}

	return nodes, edges
}

func readGraph(t *testing.T, store persistence.Persistence, id string) ([]models.GraphNode, []models.GraphEdge) {
	t.Helper()

	ctx := context.Background()

	workflow, err := store.WorkflowRepository().GetByID(ctx, id, owner)
	require.NoError(t, err)

	nodes := make([]models.GraphNode, 0, len(workflow.Nodes))
	for _, node := range workflow.Nodes {
		nodes = append(nodes, node.ToGraphNode())
	}

	connections, err := store.ConnectionRepository().GetByWorkflow(ctx, id)
	require.NoError(t, err)

	edges := make([]models.GraphEdge, 0, len(connections))
	for _, connection := range connections {
		edges = append(edges, connection.ToGraphEdge())
	}

	return nodes, edges
}

var graphOptions = cmp.Options{
	cmpopts.SortSlices(func(a, b models.GraphNode) bool { return a.ID < b.ID }),
	cmpopts.SortSlices(func(a, b models.GraphEdge) bool { return fmt.Sprint(a.Key()) < fmt.Sprint(b.Key()) }),
	cmpopts.IgnoreFields(models.GraphEdge{}, "ID"),
	cmpopts.EquateEmpty(),
}

func assertGraph(t *testing.T, store persistence.Persistence, id string, wantNodes []models.GraphNode, wantEdges []models.GraphEdge) {
	t.Helper()

	nodes, edges := readGraph(t, store, id)

	if diff := cmp.Diff(wantNodes, nodes, graphOptions); diff != "" {
		t.Errorf("nodes mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff(wantEdges, edges, graphOptions); diff != "" {
		t.Errorf("edges mismatch (-want +got):\n%s", diff)
	}

	for _, edge := range edges {
		assert.True(t, idgen.HasPrefix(edge.ID, idgen.Connections), "edge id %q", edge.ID)
	}

	stored, err := store.WorkflowRepository().GetGraph(context.Background(), id, owner)
	require.NoError(t, err)
	require.NoError(t, stored.ConnectionsErr)

	snapshotNodes := make([]models.GraphNode, 0, len(stored.Workflow.Nodes))
	for _, node := range stored.Workflow.Nodes {
		snapshotNodes = append(snapshotNodes, node.ToGraphNode())
	}

	snapshotEdges := make([]models.GraphEdge, 0, len(stored.Connections))
	for _, connection := range stored.Connections {
		snapshotEdges = append(snapshotEdges, connection.ToGraphEdge())
	}

	assert.Equal(t, nodes, snapshotNodes)
	assert.Equal(t, edges, snapshotEdges)
}

func replace(t *testing.T, store persistence.Persistence, id string, nodes []models.GraphNode, edges []models.GraphEdge) *persistence.ReplaceResult {
	t.Helper()

	result, err := store.WorkflowRepository().ReplaceGraph(context.Background(), id, owner, persistence.GraphReplacement{
		Nodes: nodes,
		Edges: edges,
		At:    time.Now().UTC().Truncate(time.Microsecond),
	})
	require.NoError(t, err)

	return result
}

func testCreate(t *testing.T, store persistence.Persistence) {
	workflow := CreateWorkflow(t, store, owner, "brave-orange-falcon", base)

	got, err := store.WorkflowRepository().GetByID(context.Background(), workflow.ID, owner)
	require.NoError(t, err)

	assert.Equal(t, "brave-orange-falcon", got.Name)
	assert.Equal(t, owner, got.OwnerID)
	assert.Nil(t, got.Description)
	assert.WithinDuration(t, base, got.CreatedAt, time.Microsecond)

	require.Len(t, got.Nodes, 1)
	assert.Equal(t, models.NodeTypeInitial, got.Nodes[0].Type)
	assert.Equal(t, "Initial Node", got.Nodes[0].Name)
	assert.Equal(t, models.Position{}, got.Nodes[0].Position)
	assert.Empty(t, got.Nodes[0].Data)

	_, edges := readGraph(t, store, workflow.ID)
	assert.Empty(t, edges)
}

func testReplaceRoundTrip(t *testing.T, store persistence.Persistence) {
	workflow := CreateWorkflow(t, store, owner, "round trip", base)
	nodes, edges := sampleGraph(workflow.Nodes[0].ID)

	result := replace(t, store, workflow.ID, nodes, edges)

	assert.Equal(t, 2, result.NodeCount)
	assert.Equal(t, 1, result.EdgeCount)
	assert.Empty(t, result.CoercedNodes)
	assert.Empty(t, result.DroppedEdges)
	assert.True(t, result.Workflow.UpdatedAt.After(workflow.UpdatedAt))

	assertGraph(t, store, workflow.ID, nodes, edges)
}

func testDanglingEdges(t *testing.T, store persistence.Persistence) {
	workflow := CreateWorkflow(t, store, owner, "dangling", base)
	nodes, edges := sampleGraph(workflow.Nodes[0].ID)
	edges[0].Target = "nd_missing"

	result := replace(t, store, workflow.ID, nodes, edges)

	assert.Equal(t, 0, result.EdgeCount)
	require.Len(t, result.DroppedEdges, 1)
	assert.Equal(t, "nd_missing", result.DroppedEdges[0].Target)

	assertGraph(t, store, workflow.ID, nodes, nil)
}

func testClear(t *testing.T, store persistence.Persistence) {
	workflow := CreateWorkflow(t, store, owner, "clear", base)
	nodes, edges := sampleGraph(workflow.Nodes[0].ID)

	replace(t, store, workflow.ID, nodes, edges)
	replace(t, store, workflow.ID, nil, nil)

	assertGraph(t, store, workflow.ID, nil, nil)
}

func testIdempotent(t *testing.T, store persistence.Persistence) {
	workflow := CreateWorkflow(t, store, owner, "idempotent", base)
	nodes, edges := sampleGraph(workflow.Nodes[0].ID)

	replace(t, store, workflow.ID, nodes, edges)
	firstNodes, firstEdges := readGraph(t, store, workflow.ID)

	replace(t, store, workflow.ID, nodes, edges)
	secondNodes, secondEdges := readGraph(t, store, workflow.ID)

	if diff := cmp.Diff(firstNodes, secondNodes, graphOptions); diff != "" {
		t.Errorf("nodes changed between identical replacements (-first +second):\n%s", diff)
	}

	if diff := cmp.Diff(firstEdges, secondEdges, graphOptions); diff != "" {
		t.Errorf("edges changed between identical replacements (-first +second):\n%s", diff)
	}
}

func testCoercion(t *testing.T, store persistence.Persistence) {
	workflow := CreateWorkflow(t, store, owner, "coercion", base)

	result := replace(t, store, workflow.ID, []models.GraphNode{
		{ID: workflow.Nodes[0].ID, Type: "OPENAI_AI", Position: models.Position{X: 1.5, Y: -3.25}},
	}, nil)

	assert.Equal(t, []string{workflow.Nodes[0].ID}, result.CoercedNodes)

	assertGraph(t, store, workflow.ID, []models.GraphNode{
		{ID: workflow.Nodes[0].ID, Type: models.NodeTypeInitial, Name: models.DefaultNodeName, Position: models.Position{X: 1.5, Y: -3.25}, Data: map[string]any{}},
	}, nil)
}

func testDuplicateNode(t *testing.T, store persistence.Persistence) {
	workflow := CreateWorkflow(t, store, owner, "duplicate", base)
	nodes, edges := sampleGraph(workflow.Nodes[0].ID)
	replace(t, store, workflow.ID, nodes, edges)

	duplicated := append([]models.GraphNode{}, nodes...)
	duplicated = append(duplicated, models.GraphNode{ID: nodes[1].ID, Type: models.NodeTypeAction})

	_, err := store.WorkflowRepository().ReplaceGraph(context.Background(), workflow.ID, owner, persistence.GraphReplacement{
		Nodes: duplicated,
		At:    time.Now().UTC(),
	})
	require.Error(t, err)
	assert.True(t, persistence.IsConflict(err), "expected conflict, got %v", err)

	assertGraph(t, store, workflow.ID, nodes, edges)
}

func testForeignNode(t *testing.T, store persistence.Persistence) {
	first := CreateWorkflow(t, store, owner, "first", base)
	second := CreateWorkflow(t, store, owner, "second", base.Add(time.Second))

	_, err := store.WorkflowRepository().ReplaceGraph(context.Background(), second.ID, owner, persistence.GraphReplacement{
		Nodes: []models.GraphNode{{ID: first.Nodes[0].ID, Type: models.NodeTypeAction}},
		At:    time.Now().UTC(),
	})
	require.Error(t, err)
	assert.True(t, persistence.IsConflict(err), "expected conflict, got %v", err)

	nodes, _ := readGraph(t, store, first.ID)
	require.Len(t, nodes, 1)
	assert.Equal(t, models.NodeTypeInitial, nodes[0].Type)
}

func testDuplicateEdge(t *testing.T, store persistence.Persistence) {
	workflow := CreateWorkflow(t, store, owner, "duplicate edge", base)
	nodes, edges := sampleGraph(workflow.Nodes[0].ID)

	_, err := store.WorkflowRepository().ReplaceGraph(context.Background(), workflow.ID, owner, persistence.GraphReplacement{
		Nodes: nodes,
		Edges: append(edges, edges[0]),
		At:    time.Now().UTC(),
	})
	require.Error(t, err)
	assert.True(t, persistence.IsConflict(err), "expected conflict, got %v", err)

	assertGraph(t, store, workflow.ID, []models.GraphNode{workflow.Nodes[0].ToGraphNode()}, nil)
}

func testOwnership(t *testing.T, store persistence.Persistence) {
	ctx := context.Background()
	repo := store.WorkflowRepository()
	workflow := CreateWorkflow(t, store, owner, "private", base)

	_, err := repo.GetByID(ctx, workflow.ID, other)
	assert.True(t, persistence.IsWorkflowNotFound(err))

	nodes, edges := sampleGraph(workflow.Nodes[0].ID)

	_, err = repo.ReplaceGraph(ctx, workflow.ID, other, persistence.GraphReplacement{Nodes: nodes, Edges: edges, At: time.Now().UTC()})
	assert.True(t, persistence.IsWorkflowNotFound(err))

	_, err = repo.UpdateName(ctx, workflow.ID, other, "stolen", time.Now().UTC())
	assert.True(t, persistence.IsWorkflowNotFound(err))

	_, err = repo.Delete(ctx, workflow.ID, other)
	assert.True(t, persistence.IsWorkflowNotFound(err))

	_, err = repo.GetByID(ctx, "wfl_nope", owner)
	assert.True(t, persistence.IsWorkflowNotFound(err))

	_, err = repo.GetGraph(ctx, workflow.ID, other)
	assert.True(t, persistence.IsWorkflowNotFound(err))

	got, err := repo.GetByID(ctx, workflow.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, "private", got.Name)
	assert.Len(t, got.Nodes, 1)
}

func testDeleteCascades(t *testing.T, store persistence.Persistence) {
	ctx := context.Background()
	repo := store.WorkflowRepository()

	workflow := CreateWorkflow(t, store, owner, "doomed", base)
	nodes, edges := sampleGraph(workflow.Nodes[0].ID)
	replace(t, store, workflow.ID, nodes, edges)

	removed, err := repo.Delete(ctx, workflow.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, workflow.ID, removed.ID)
	assert.Equal(t, "doomed", removed.Name)

	_, err = repo.GetByID(ctx, workflow.ID, owner)
	assert.True(t, persistence.IsWorkflowNotFound(err))

	connections, err := store.ConnectionRepository().GetByWorkflow(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Empty(t, connections)

	// The node ids are free again only if the rows are gone.
	reborn := CreateWorkflow(t, store, owner, "reborn", base.Add(time.Second))
	reused := append([]models.GraphNode{{ID: reborn.Nodes[0].ID, Type: models.NodeTypeInitial}}, nodes...)
	replace(t, store, reborn.ID, reused, edges)

	_, err = repo.Delete(ctx, workflow.ID, owner)
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func testList(t *testing.T, store persistence.Persistence) {
	ctx := context.Background()
	repo := store.WorkflowRepository()

	names := []string{"Alpha sync", "beta SYNC", "gamma", "delta_sync", "epsilon 100%", "zeta sync"}
	for i, name := range names {
		CreateWorkflow(t, store, owner, name, base.Add(time.Duration(i)*time.Minute))
	}

	CreateWorkflow(t, store, other, "other sync", base)

	count, err := repo.Count(ctx, owner, "")
	require.NoError(t, err)
	assert.Equal(t, len(names), count)

	firstPage, err := repo.List(ctx, persistence.ListOptions{OwnerID: owner, Limit: 4, Offset: 0})
	require.NoError(t, err)
	require.Len(t, firstPage, 4)
	assert.Equal(t, "zeta sync", firstPage[0].Name)
	assert.Equal(t, "gamma", firstPage[3].Name)

	secondPage, err := repo.List(ctx, persistence.ListOptions{OwnerID: owner, Limit: 4, Offset: 4})
	require.NoError(t, err)
	require.Len(t, secondPage, 2)
	assert.Equal(t, "beta SYNC", secondPage[0].Name)
	assert.Equal(t, "Alpha sync", secondPage[1].Name)

	count, err = repo.Count(ctx, owner, "Sync")
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	matched, err := repo.List(ctx, persistence.ListOptions{OwnerID: owner, Search: "sYnC", Limit: 10})
	require.NoError(t, err)
	require.Len(t, matched, 4)

	for _, workflow := range matched {
		assert.Equal(t, owner, workflow.OwnerID)
	}

	literal, err := repo.List(ctx, persistence.ListOptions{OwnerID: owner, Search: "_", Limit: 10})
	require.NoError(t, err)
	require.Len(t, literal, 1)
	assert.Equal(t, "delta_sync", literal[0].Name)

	percent, err := repo.Count(ctx, owner, "100%")
	require.NoError(t, err)
	assert.Equal(t, 1, percent)

	beyond, err := repo.List(ctx, persistence.ListOptions{OwnerID: owner, Limit: 5, Offset: 50})
	require.NoError(t, err)
	assert.Empty(t, beyond)
}

func testRenameAndTouch(t *testing.T, store persistence.Persistence) {
	ctx := context.Background()
	repo := store.WorkflowRepository()
	workflow := CreateWorkflow(t, store, owner, "before", base)

	renamedAt := base.Add(time.Hour)

	renamed, err := repo.UpdateName(ctx, workflow.ID, owner, "after", renamedAt)
	require.NoError(t, err)
	assert.Equal(t, "after", renamed.Name)
	assert.WithinDuration(t, renamedAt, renamed.UpdatedAt, time.Microsecond)

	touchedAt := base.Add(2 * time.Hour)
	require.NoError(t, repo.TouchUpdatedAt(ctx, workflow.ID, touchedAt))

	got, err := repo.GetByID(ctx, workflow.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, "after", got.Name)
	assert.WithinDuration(t, touchedAt, got.UpdatedAt, time.Microsecond)
	assert.WithinDuration(t, base, got.CreatedAt, time.Microsecond)

	err = repo.TouchUpdatedAt(ctx, "wfl_nope", touchedAt)
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func graphNodeIDs(stored *persistence.StoredGraph) []string {
	ids := make([]string, 0, len(stored.Workflow.Nodes))
	for _, node := range stored.Workflow.Nodes {
		ids = append(ids, node.ID)
	}

	return ids
}

func testSubmissionOrder(t *testing.T, store persistence.Persistence) {
	workflow := CreateWorkflow(t, store, owner, "ordered", base)
	suffix := workflow.Nodes[0].ID[3:]

	nodes := []models.GraphNode{
		{ID: "nd_zz" + suffix, Type: models.NodeTypeManualTrigger, Position: models.Position{X: 0}},
		{ID: "nd_aa" + suffix, Type: models.NodeTypeAction, Position: models.Position{X: 100}},
		{ID: "nd_mm" + suffix, Type: models.NodeTypeLoop, Position: models.Position{X: 200}},
	}
	edges := []models.GraphEdge{
		{Source: nodes[1].ID, Target: nodes[2].ID},
		{Source: nodes[0].ID, Target: nodes[1].ID},
	}

	replace(t, store, workflow.ID, nodes, edges)

	stored, err := store.WorkflowRepository().GetGraph(context.Background(), workflow.ID, owner)
	require.NoError(t, err)
	require.NoError(t, stored.ConnectionsErr)

	assert.Equal(t, []string{nodes[0].ID, nodes[1].ID, nodes[2].ID}, graphNodeIDs(stored))

	require.Len(t, stored.Connections, 2)
	assert.Equal(t, edges[0].Key(), stored.Connections[0].ToGraphEdge().Key())
	assert.Equal(t, edges[1].Key(), stored.Connections[1].ToGraphEdge().Key())

	workflow, err = store.WorkflowRepository().GetByID(context.Background(), workflow.ID, owner)
	require.NoError(t, err)
	require.Len(t, workflow.Nodes, 3)
	assert.Equal(t, nodes[2].ID, workflow.Nodes[2].ID)

	connections, err := store.ConnectionRepository().GetByWorkflow(context.Background(), workflow.ID)
	require.NoError(t, err)
	require.Len(t, connections, 2)
	assert.Equal(t, nodes[1].ID, connections[0].FromNodeID)
}

func testSnapshotRead(t *testing.T, store persistence.Persistence) {
	ctx := context.Background()
	repo := store.WorkflowRepository()

	workflow := CreateWorkflow(t, store, owner, "contended", base)
	suffix := workflow.Nodes[0].ID[3:]

	graphs := make([][]models.GraphNode, 2)
	edges := make([][]models.GraphEdge, 2)

	for i, prefix := range []string{"nd_a", "nd_b"} {
		graphs[i] = []models.GraphNode{
			{ID: prefix + "1" + suffix, Type: models.NodeTypeInitial},
			{ID: prefix + "2" + suffix, Type: models.NodeTypeAction},
		}
		edges[i] = []models.GraphEdge{{Source: graphs[i][0].ID, Target: graphs[i][1].ID}}
	}

	const rounds = 40

	done := make(chan error, 1)

	go func() {
		for i := range rounds {
			_, err := repo.ReplaceGraph(ctx, workflow.ID, owner, persistence.GraphReplacement{
				Nodes: graphs[i%2],
				Edges: edges[i%2],
				At:    time.Now().UTC(),
			})
			if err != nil {
				done <- err

				return
			}
		}

		done <- nil
	}()

	for {
		stored, err := repo.GetGraph(ctx, workflow.ID, owner)
		require.NoError(t, err)
		require.NoError(t, stored.ConnectionsErr)

		present := make(map[string]bool, len(stored.Workflow.Nodes))
		for _, node := range stored.Workflow.Nodes {
			present[node.ID] = true
		}

		for _, connection := range stored.Connections {
			assert.True(t, present[connection.FromNodeID] && present[connection.ToNodeID],
				"connection %s -> %s read beside nodes %v", connection.FromNodeID, connection.ToNodeID, graphNodeIDs(stored))
		}

		select {
		case err := <-done:
			require.NoError(t, err)

			return
		default:
		}
	}
}
