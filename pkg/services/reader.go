package services

import (
	"context"

	"github.com/dukex/flowstore/pkg/models"
	"github.com/dukex/flowstore/pkg/otelhelper"
	"github.com/dukex/flowstore/pkg/persistence"
	"go.opentelemetry.io/otel/attribute"
)

// GetOne assembles the client-shaped graph of the caller's workflow.
// A failing connection read degrades to an empty edge set so the nodes stay
// visible.
func (w *Workflow) GetOne(ctx context.Context, workflowID, ownerID string) (*models.WorkflowGraph, error) {
	const op = "GetOne"

	ctx, span := otelhelper.StartSpan(ctx, w.tracer, "services.Workflow.GetOne",
		attribute.String(otelhelper.WorkflowIDKey, workflowID),
	)
	defer span.End()

	if ownerID == "" {
		return nil, newUnauthenticatedError(op)
	}

	stored, err := w.persistence.WorkflowRepository().GetGraph(ctx, workflowID, ownerID)
	if err != nil {
		otelhelper.SetError(span, err)

		if persistence.IsWorkflowNotFound(err) {
			return nil, err
		}

		return nil, newInternalError(op, "failed to load workflow", err)
	}

	nodes := make([]models.GraphNode, 0, len(stored.Workflow.Nodes))
	for _, node := range stored.Workflow.Nodes {
		nodes = append(nodes, node.ToGraphNode())
	}

	return &models.WorkflowGraph{
		Workflow: stored.Workflow,
		Nodes:    nodes,
		Edges:    w.readEdges(ctx, workflowID, stored),
	}, nil
}

// readEdges maps the stored connections, degrading to no edges when they
// could not be read.
func (w *Workflow) readEdges(ctx context.Context, workflowID string, stored *persistence.StoredGraph) []models.GraphEdge {
	if stored.ConnectionsErr != nil {
		w.logger.WarnContext(ctx, "failed to read connections, returning no edges",
			"workflow_id", workflowID,
			"error", stored.ConnectionsErr,
		)

		return []models.GraphEdge{}
	}

	edges := make([]models.GraphEdge, 0, len(stored.Connections))
	for _, connection := range stored.Connections {
		edges = append(edges, connection.ToGraphEdge())
	}

	return edges
}
