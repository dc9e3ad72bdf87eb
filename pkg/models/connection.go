package models

import "time"

// Connection is a directed edge between two nodes of the same workflow.
type Connection struct {
	ID         string    `json:"id"         db:"id"`
	WorkflowID string    `json:"workflowId" db:"workflow_id"`
	FromNodeID string    `json:"fromNodeId" db:"from_node_id"`
	ToNodeID   string    `json:"toNodeId"   db:"to_node_id"`
	FromOutput string    `json:"fromOutput" db:"from_output"`
	ToInput    string    `json:"toInput"    db:"to_input"`
	Ordinal    int       `json:"ordinal"    db:"ordinal"`
	CreatedAt  time.Time `json:"createdAt"  db:"created_at"`
	UpdatedAt  time.Time `json:"updatedAt"  db:"updated_at"`
}

// GraphEdge is the client-shaped representation of a connection.
type GraphEdge struct {
	ID           string `json:"id,omitempty"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle"`
	TargetHandle string `json:"targetHandle"`
}

// ToGraphEdge converts a stored connection into its client-shaped form.
func (c *Connection) ToGraphEdge() GraphEdge {
	return GraphEdge{
		ID:           c.ID,
		Source:       c.FromNodeID,
		Target:       c.ToNodeID,
		SourceHandle: c.FromOutput,
		TargetHandle: c.ToInput,
	}
}

// EdgeKey identifies an edge by its endpoints and ports.
type EdgeKey struct {
	Source       string
	Target       string
	SourceHandle string
	TargetHandle string
}

// Key returns the uniqueness key of the edge.
func (e GraphEdge) Key() EdgeKey {
	return EdgeKey{
		Source:       e.Source,
		Target:       e.Target,
		SourceHandle: e.SourceHandle,
		TargetHandle: e.TargetHandle,
	}
}

// FilterEdges splits edges into those whose source and target are both in
// nodeIDs and those that would dangle.
func FilterEdges(edges []GraphEdge, nodeIDs map[string]struct{}) (kept, dropped []GraphEdge) {
	kept = make([]GraphEdge, 0, len(edges))

	for _, edge := range edges {
		_, hasSource := nodeIDs[edge.Source]
		_, hasTarget := nodeIDs[edge.Target]

		if hasSource && hasTarget {
			kept = append(kept, edge)

			continue
		}

		dropped = append(dropped, edge)
	}

	return kept, dropped
}
