package sqlbase

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dukex/flowstore/pkg/models"
	"github.com/dukex/flowstore/pkg/persistence"
)

// ReplaceGraph swaps the whole node and connection set of the owner's
// workflow in a single transaction.
//
// Nodes keep their client-assigned ids, unknown types are stored as INITIAL
// and edges whose endpoints were not inserted are dropped. Deleting the old
// nodes removes the old connections through the cascading foreign keys.
func (r *WorkflowRepository) ReplaceGraph(
	ctx context.Context,
	id, ownerID string,
	graph persistence.GraphReplacement,
) (*persistence.ReplaceResult, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer r.rollback(ctx, tx)

	workflow := &models.Workflow{}

	lookup := `SELECT ` + workflowColumns + `
		FROM workflows
		WHERE id = ? AND owner_id = ?` + r.dialect.LockClause

	err = tx.GetContext(ctx, workflow, tx.Rebind(lookup), id, ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewWorkflowError("ReplaceGraph", id, persistence.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to lock workflow: %w", err)
	}

	_, err = tx.ExecContext(ctx, tx.Rebind(`DELETE FROM nodes WHERE workflow_id = ?`), id)
	if err != nil {
		return nil, fmt.Errorf("failed to delete existing nodes: %w", err)
	}

	nodes, coerced := persistence.PrepareNodes(id, graph.Nodes, graph.At)
	inserted := make(map[string]struct{}, len(nodes))

	for _, node := range nodes {
		insertedID, err := insertNode(ctx, tx, node)
		if err != nil {
			return nil, r.writeError("ReplaceGraph", id, "failed to insert node "+node.ID, err)
		}

		inserted[insertedID] = struct{}{}
	}

	connections, dropped := persistence.PrepareConnections(id, inserted, graph.Edges, graph.At)

	for _, connection := range connections {
		err = insertConnection(ctx, tx, connection)
		if err != nil {
			return nil, r.writeError("ReplaceGraph", id, "failed to insert connection", err)
		}
	}

	err = touchUpdatedAt(ctx, tx, id, graph.At)
	if err != nil {
		return nil, err
	}

	err = tx.Commit()
	if err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	workflow.UpdatedAt = graph.At
	workflow.Nodes = nodes

	if len(coerced) > 0 || len(dropped) > 0 {
		r.logger.WarnContext(ctx, "graph stored with degradations",
			"workflow_id", id,
			"coerced_nodes", coerced,
			"dropped_edges", len(dropped),
		)
	}

	return &persistence.ReplaceResult{
		Workflow:     workflow,
		NodeCount:    len(nodes),
		EdgeCount:    len(connections),
		CoercedNodes: coerced,
		DroppedEdges: dropped,
	}, nil
}
