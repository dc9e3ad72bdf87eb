// Package persistence provides the storage abstraction for workflow graphs.
package persistence

import (
	"context"
	"time"

	"github.com/dukex/flowstore/pkg/models"
)

type Persistence interface {
	WorkflowRepository() WorkflowRepository
	ConnectionRepository() ConnectionRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// WorkflowRepository stores workflows together with their node set.
// Every owner-scoped method reports ErrWorkflowNotFound when the workflow is
// absent or belongs to someone else.
type WorkflowRepository interface {
	// Create inserts the workflow and its seed node atomically.
	Create(ctx context.Context, workflow *models.Workflow, seed *models.Node) error
	List(ctx context.Context, opts ListOptions) ([]*models.Workflow, error)
	Count(ctx context.Context, ownerID, search string) (int, error)
	// GetByID returns the workflow with Nodes populated.
	GetByID(ctx context.Context, id, ownerID string) (*models.Workflow, error)
	// GetGraph reads the workflow, its nodes and its connections from one
	// consistent snapshot, so a concurrent replacement is seen whole or not
	// at all.
	GetGraph(ctx context.Context, id, ownerID string) (*StoredGraph, error)
	// ReplaceGraph atomically swaps the whole node and connection set.
	ReplaceGraph(ctx context.Context, id, ownerID string, graph GraphReplacement) (*ReplaceResult, error)
	UpdateName(ctx context.Context, id, ownerID, name string, at time.Time) (*models.Workflow, error)
	// Delete removes the workflow, cascading to its nodes and connections,
	// and returns the removed record.
	Delete(ctx context.Context, id, ownerID string) (*models.Workflow, error)
	TouchUpdatedAt(ctx context.Context, id string, at time.Time) error
}

type ConnectionRepository interface {
	GetByWorkflow(ctx context.Context, workflowID string) ([]*models.Connection, error)
}

// ListOptions scopes a workflow listing to one owner and one page.
type ListOptions struct {
	OwnerID string
	Search  string
	Limit   int
	Offset  int
}

// GraphReplacement is the complete graph submitted by an editor.
type GraphReplacement struct {
	Nodes []models.GraphNode
	Edges []models.GraphEdge
	At    time.Time
}

// ReplaceResult describes the committed graph and the silent degradations
// applied while storing it.
type ReplaceResult struct {
	Workflow     *models.Workflow
	NodeCount    int
	EdgeCount    int
	CoercedNodes []string
	DroppedEdges []models.GraphEdge
}

// StoredGraph is a workflow read together with its whole graph.
type StoredGraph struct {
	// Workflow has Nodes populated.
	Workflow    *models.Workflow
	Connections []*models.Connection

	// ConnectionsErr is set when the connections could not be read. The
	// workflow and its nodes are still valid in that case.
	ConnectionsErr error
}
