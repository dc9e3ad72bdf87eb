package persistence

import (
	"time"

	"github.com/dukex/flowstore/pkg/idgen"
	"github.com/dukex/flowstore/pkg/models"
)

// PrepareNodes turns submitted nodes into rows ready for insertion, numbered
// in submission order. Unknown
// types become INITIAL, missing names become "unknown" and missing payloads
// become empty objects. The ids of coerced nodes are returned alongside.
func PrepareNodes(workflowID string, nodes []models.GraphNode, at time.Time) ([]*models.Node, []string) {
	rows := make([]*models.Node, 0, len(nodes))

	var coerced []string

	for i, node := range nodes {
		nodeType, wasCoerced := models.CoerceNodeType(node.Type)
		if wasCoerced {
			coerced = append(coerced, node.ID)
		}

		name := node.Name
		if name == "" {
			name = models.DefaultNodeName
		}

		data := models.NodeData(node.Data)
		if data == nil {
			data = models.NodeData{}
		}

		rows = append(rows, &models.Node{
			ID:         node.ID,
			WorkflowID: workflowID,
			Name:       name,
			Type:       nodeType,
			Position:   node.Position,
			Data:       data,
			Ordinal:    i,
			CreatedAt:  at,
			UpdatedAt:  at,
		})
	}

	return rows, coerced
}

// PrepareConnections keeps the edges whose endpoints were actually inserted
// and turns them into rows with freshly minted ids.
func PrepareConnections(
	workflowID string,
	inserted map[string]struct{},
	edges []models.GraphEdge,
	at time.Time,
) ([]*models.Connection, []models.GraphEdge) {
	kept, dropped := models.FilterEdges(edges, inserted)

	rows := make([]*models.Connection, 0, len(kept))

	for i, edge := range kept {
		rows = append(rows, &models.Connection{
			ID:         idgen.New(idgen.Connections),
			WorkflowID: workflowID,
			FromNodeID: edge.Source,
			ToNodeID:   edge.Target,
			FromOutput: edge.SourceHandle,
			ToInput:    edge.TargetHandle,
			Ordinal:    i,
			CreatedAt:  at,
			UpdatedAt:  at,
		})
	}

	return rows, dropped
}
