// Package testutil provides test data builders for workflow graphs.
package testutil

import (
	"github.com/dukex/flowstore/pkg/idgen"
	"github.com/dukex/flowstore/pkg/models"
)

// CreateTestNode creates a client-shaped node with default values that can be overridden.
func CreateTestNode(overrides ...func(*models.GraphNode)) models.GraphNode {
	node := models.GraphNode{
		ID:       idgen.New(idgen.Nodes),
		Type:     models.NodeTypeAction,
		Name:     "Test Node",
		Position: models.Position{X: 100, Y: 200},
		Data:     map[string]any{"message": "test"},
	}

	for _, override := range overrides {
		override(&node)
	}

	return node
}

// WithNodeID sets the node identifier.
func WithNodeID(id string) func(*models.GraphNode) {
	return func(node *models.GraphNode) {
		node.ID = id
	}
}

// WithNodeType sets the node type, valid or not.
func WithNodeType(nodeType models.NodeType) func(*models.GraphNode) {
	return func(node *models.GraphNode) {
		node.Type = nodeType
	}
}

func WithNodeName(name string) func(*models.GraphNode) {
	return func(node *models.GraphNode) {
		node.Name = name
	}
}

func WithPosition(x, y float64) func(*models.GraphNode) {
	return func(node *models.GraphNode) {
		node.Position = models.Position{X: x, Y: y}
	}
}

func WithData(data map[string]any) func(*models.GraphNode) {
	return func(node *models.GraphNode) {
		node.Data = data
	}
}

// CreateTestEdge connects source to target through the default ports.
func CreateTestEdge(source, target string, overrides ...func(*models.GraphEdge)) models.GraphEdge {
	edge := models.GraphEdge{
		Source:       source,
		Target:       target,
		SourceHandle: "source-1",
		TargetHandle: "target-1",
	}

	for _, override := range overrides {
		override(&edge)
	}

	return edge
}

// WithHandles sets the source and target ports of an edge.
func WithHandles(sourceHandle, targetHandle string) func(*models.GraphEdge) {
	return func(edge *models.GraphEdge) {
		edge.SourceHandle = sourceHandle
		edge.TargetHandle = targetHandle
	}
}

// CreateLinearGraph returns n nodes chained by n-1 edges.
func CreateLinearGraph(n int) ([]models.GraphNode, []models.GraphEdge) {
	nodes := make([]models.GraphNode, 0, n)
	edges := make([]models.GraphEdge, 0, n)

	for i := range n {
		nodes = append(nodes, CreateTestNode())

		if i > 0 {
			edges = append(edges, CreateTestEdge(nodes[i-1].ID, nodes[i].ID))
		}
	}

	return nodes, edges
}
