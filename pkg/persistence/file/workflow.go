package file

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dukex/flowstore/pkg/models"
	"github.com/dukex/flowstore/pkg/persistence"
)

// WorkflowRepository handles workflow-related file operations.
type WorkflowRepository struct {
	persistence *Persistence
}

func (wr *WorkflowRepository) Create(_ context.Context, workflow *models.Workflow, seed *models.Node) error {
	fp := wr.persistence

	fp.mu.Lock()
	defer fp.mu.Unlock()

	existing, err := fp.readArena(workflow.ID)
	if err != nil {
		return err
	}

	if existing != nil {
		return persistence.NewConflictError("Create", workflow.ID, errors.New("workflow id already exists"))
	}

	a := &arena{Workflow: workflow}

	if seed != nil {
		if owner, taken := fp.nodeOwners[seed.ID]; taken {
			return persistence.NewConflictError("Create", workflow.ID, fmt.Errorf("node %s belongs to workflow %s", seed.ID, owner))
		}

		a.Nodes = []*models.Node{seed}
	}

	err = fp.writeArena(a)
	if err != nil {
		return err
	}

	if seed != nil {
		fp.nodeOwners[seed.ID] = workflow.ID
	}

	workflow.Nodes = a.Nodes

	return nil
}

func (wr *WorkflowRepository) List(_ context.Context, opts persistence.ListOptions) ([]*models.Workflow, error) {
	matching, err := wr.matching(opts.OwnerID, opts.Search)
	if err != nil {
		return nil, err
	}

	if opts.Offset >= len(matching) {
		return []*models.Workflow{}, nil
	}

	end := min(opts.Offset+opts.Limit, len(matching))

	return matching[opts.Offset:end], nil
}

func (wr *WorkflowRepository) Count(_ context.Context, ownerID, search string) (int, error) {
	matching, err := wr.matching(ownerID, search)
	if err != nil {
		return 0, err
	}

	return len(matching), nil
}

// matching returns the owner's workflows whose name contains search,
// ignoring case, newest first.
func (wr *WorkflowRepository) matching(ownerID, search string) ([]*models.Workflow, error) {
	fp := wr.persistence

	fp.mu.RLock()
	arenas, err := fp.readArenas()
	fp.mu.RUnlock()

	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(search)
	workflows := make([]*models.Workflow, 0, len(arenas))

	for _, a := range arenas {
		if a.Workflow.OwnerID != ownerID {
			continue
		}

		if needle != "" && !strings.Contains(strings.ToLower(a.Workflow.Name), needle) {
			continue
		}

		workflows = append(workflows, a.Workflow)
	}

	sort.Slice(workflows, func(i, j int) bool {
		if workflows[i].CreatedAt.Equal(workflows[j].CreatedAt) {
			return workflows[i].ID > workflows[j].ID
		}

		return workflows[i].CreatedAt.After(workflows[j].CreatedAt)
	})

	return workflows, nil
}

func (wr *WorkflowRepository) GetByID(_ context.Context, id, ownerID string) (*models.Workflow, error) {
	fp := wr.persistence

	fp.mu.RLock()
	defer fp.mu.RUnlock()

	a, err := wr.owned("GetByID", id, ownerID)
	if err != nil {
		return nil, err
	}

	a.Workflow.Nodes = a.Nodes

	return a.Workflow, nil
}

// GetGraph reads the whole graph from a single arena document.
func (wr *WorkflowRepository) GetGraph(_ context.Context, id, ownerID string) (*persistence.StoredGraph, error) {
	fp := wr.persistence

	fp.mu.RLock()
	defer fp.mu.RUnlock()

	a, err := wr.owned("GetGraph", id, ownerID)
	if err != nil {
		return nil, err
	}

	a.Workflow.Nodes = a.Nodes

	connections := a.Connections
	if connections == nil {
		connections = []*models.Connection{}
	}

	return &persistence.StoredGraph{
		Workflow:    a.Workflow,
		Connections: connections,
	}, nil
}

// ReplaceGraph swaps the arena's nodes and connections in one atomic write.
func (wr *WorkflowRepository) ReplaceGraph(
	ctx context.Context,
	id, ownerID string,
	graph persistence.GraphReplacement,
) (*persistence.ReplaceResult, error) {
	fp := wr.persistence

	fp.mu.Lock()
	defer fp.mu.Unlock()

	a, err := wr.owned("ReplaceGraph", id, ownerID)
	if err != nil {
		return nil, err
	}

	nodes, coerced := persistence.PrepareNodes(id, graph.Nodes, graph.At)
	inserted := make(map[string]struct{}, len(nodes))

	for _, node := range nodes {
		if _, duplicate := inserted[node.ID]; duplicate {
			return nil, persistence.NewConflictError("ReplaceGraph", id, fmt.Errorf("duplicate node id %s", node.ID))
		}

		if owner, taken := fp.nodeOwners[node.ID]; taken && owner != id {
			return nil, persistence.NewConflictError("ReplaceGraph", id, fmt.Errorf("node %s belongs to workflow %s", node.ID, owner))
		}

		inserted[node.ID] = struct{}{}
	}

	connections, dropped := persistence.PrepareConnections(id, inserted, graph.Edges, graph.At)
	seen := make(map[models.EdgeKey]struct{}, len(connections))

	for _, connection := range connections {
		key := connection.ToGraphEdge().Key()
		if _, duplicate := seen[key]; duplicate {
			return nil, persistence.NewConflictError("ReplaceGraph", id, fmt.Errorf("duplicate connection %s -> %s", key.Source, key.Target))
		}

		seen[key] = struct{}{}
	}

	previous := a.Nodes

	a.Nodes = nodes
	a.Connections = connections
	a.Workflow.UpdatedAt = graph.At

	err = fp.writeArena(a)
	if err != nil {
		return nil, err
	}

	for _, node := range previous {
		delete(fp.nodeOwners, node.ID)
	}

	for _, node := range nodes {
		fp.nodeOwners[node.ID] = id
	}

	if len(coerced) > 0 || len(dropped) > 0 {
		fp.logger.WarnContext(ctx, "graph stored with degradations",
			"workflow_id", id,
			"coerced_nodes", coerced,
			"dropped_edges", len(dropped),
		)
	}

	a.Workflow.Nodes = nodes

	return &persistence.ReplaceResult{
		Workflow:     a.Workflow,
		NodeCount:    len(nodes),
		EdgeCount:    len(connections),
		CoercedNodes: coerced,
		DroppedEdges: dropped,
	}, nil
}

func (wr *WorkflowRepository) UpdateName(_ context.Context, id, ownerID, name string, at time.Time) (*models.Workflow, error) {
	fp := wr.persistence

	fp.mu.Lock()
	defer fp.mu.Unlock()

	a, err := wr.owned("UpdateName", id, ownerID)
	if err != nil {
		return nil, err
	}

	a.Workflow.Name = name
	a.Workflow.UpdatedAt = at

	err = fp.writeArena(a)
	if err != nil {
		return nil, err
	}

	return a.Workflow, nil
}

func (wr *WorkflowRepository) Delete(_ context.Context, id, ownerID string) (*models.Workflow, error) {
	fp := wr.persistence

	fp.mu.Lock()
	defer fp.mu.Unlock()

	a, err := wr.owned("Delete", id, ownerID)
	if err != nil {
		return nil, err
	}

	err = fp.removeArena(id)
	if err != nil {
		return nil, err
	}

	for _, node := range a.Nodes {
		delete(fp.nodeOwners, node.ID)
	}

	return a.Workflow, nil
}

func (wr *WorkflowRepository) TouchUpdatedAt(_ context.Context, id string, at time.Time) error {
	fp := wr.persistence

	fp.mu.Lock()
	defer fp.mu.Unlock()

	a, err := fp.readArena(id)
	if err != nil {
		return err
	}

	if a == nil {
		return persistence.NewWorkflowError("TouchUpdatedAt", id, persistence.ErrWorkflowNotFound)
	}

	a.Workflow.UpdatedAt = at

	return fp.writeArena(a)
}

// owned loads the arena of a workflow that belongs to ownerID. Callers hold fp.mu.
func (wr *WorkflowRepository) owned(op, id, ownerID string) (*arena, error) {
	a, err := wr.persistence.readArena(id)
	if err != nil {
		return nil, err
	}

	if a == nil || a.Workflow.OwnerID != ownerID {
		return nil, persistence.NewWorkflowError(op, id, persistence.ErrWorkflowNotFound)
	}

	return a, nil
}
