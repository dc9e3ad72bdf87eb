// Package editor holds the client side of graph editing: an in-memory
// editing surface and the loop that keeps the stored graph in sync with it.
package editor

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/dukex/flowstore/pkg/idgen"
	"github.com/dukex/flowstore/pkg/models"
)

var (
	ErrNodeNotFound  = errors.New("node not found")
	ErrEdgeNotFound  = errors.New("edge not found")
	ErrDuplicateEdge = errors.New("edge already exists")
)

// Graph is the in-memory editing surface of one workflow. It is safe for
// concurrent use by the editing UI and the sync loop.
type Graph struct {
	workflowID string

	mu    sync.RWMutex
	nodes []models.GraphNode
	edges []models.GraphEdge
}

// NewGraph returns an empty surface bound to workflowID.
func NewGraph(workflowID string) *Graph {
	return &Graph{
		workflowID: workflowID,
		nodes:      []models.GraphNode{},
		edges:      []models.GraphEdge{},
	}
}

func (g *Graph) WorkflowID() string {
	return g.workflowID
}

// Load replaces the whole content of the surface, typically with the graph
// returned by a read.
func (g *Graph) Load(nodes []models.GraphNode, edges []models.GraphEdge) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.nodes = cloneNodes(nodes)
	g.edges = slices.Clone(edges)

	if g.edges == nil {
		g.edges = []models.GraphEdge{}
	}
}

// AddNode draws a new node with a client-minted id.
func (g *Graph) AddNode(nodeType models.NodeType, name string, position models.Position, data map[string]any) models.GraphNode {
	if data == nil {
		data = map[string]any{}
	}

	node := models.GraphNode{
		ID:       idgen.New(idgen.Nodes),
		Type:     nodeType,
		Name:     name,
		Position: position,
		Data:     maps.Clone(data),
	}

	g.mu.Lock()
	g.nodes = append(g.nodes, node)
	g.mu.Unlock()

	return node
}

func (g *Graph) MoveNode(id string, position models.Position) error {
	return g.updateNode(id, func(node *models.GraphNode) {
		node.Position = position
	})
}

func (g *Graph) UpdateNodeData(id string, data map[string]any) error {
	return g.updateNode(id, func(node *models.GraphNode) {
		node.Data = maps.Clone(data)
		if node.Data == nil {
			node.Data = map[string]any{}
		}
	})
}

func (g *Graph) RenameNode(id, name string) error {
	return g.updateNode(id, func(node *models.GraphNode) {
		node.Name = name
	})
}

func (g *Graph) updateNode(id string, update func(*models.GraphNode)) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	i := g.indexOfNode(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}

	update(&g.nodes[i])

	return nil
}

// RemoveNode deletes the node together with every edge touching it.
func (g *Graph) RemoveNode(id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	i := g.indexOfNode(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}

	g.nodes = slices.Delete(g.nodes, i, i+1)
	g.edges = slices.DeleteFunc(g.edges, func(edge models.GraphEdge) bool {
		return edge.Source == id || edge.Target == id
	})

	return nil
}

// Connect links two existing nodes through the given ports.
func (g *Graph) Connect(source, target, sourceHandle, targetHandle string) (models.GraphEdge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, id := range []string{source, target} {
		if g.indexOfNode(id) < 0 {
			return models.GraphEdge{}, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
		}
	}

	edge := models.GraphEdge{
		ID:           idgen.New(idgen.Connections),
		Source:       source,
		Target:       target,
		SourceHandle: sourceHandle,
		TargetHandle: targetHandle,
	}

	for _, existing := range g.edges {
		if existing.Key() == edge.Key() {
			return models.GraphEdge{}, ErrDuplicateEdge
		}
	}

	g.edges = append(g.edges, edge)

	return edge, nil
}

func (g *Graph) Disconnect(edgeID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	i := slices.IndexFunc(g.edges, func(edge models.GraphEdge) bool {
		return edge.ID == edgeID
	})
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrEdgeNotFound, edgeID)
	}

	g.edges = slices.Delete(g.edges, i, i+1)

	return nil
}

// Snapshot returns copies of the current nodes and edges.
func (g *Graph) Snapshot() ([]models.GraphNode, []models.GraphEdge) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return cloneNodes(g.nodes), slices.Clone(g.edges)
}

type serializedGraph struct {
	Nodes []models.GraphNode `json:"nodes"`
	Edges []models.GraphEdge `json:"edges"`
}

// Serialize encodes nodes and edges into a stable JSON document used to
// detect changes between sync ticks.
func Serialize(nodes []models.GraphNode, edges []models.GraphEdge) ([]byte, error) {
	data, err := json.Marshal(serializedGraph{Nodes: nodes, Edges: edges})
	if err != nil {
		return nil, fmt.Errorf("failed to serialize graph: %w", err)
	}

	return data, nil
}

func (g *Graph) indexOfNode(id string) int {
	return slices.IndexFunc(g.nodes, func(node models.GraphNode) bool {
		return node.ID == id
	})
}

func cloneNodes(nodes []models.GraphNode) []models.GraphNode {
	cloned := make([]models.GraphNode, len(nodes))

	for i, node := range nodes {
		node.Data = maps.Clone(node.Data)
		cloned[i] = node
	}

	return cloned
}
