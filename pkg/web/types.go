package web

import "github.com/dukex/flowstore/pkg/models"

// CreateWorkflowRequest is the optional body of POST /workflows.
type CreateWorkflowRequest struct {
	Name        string  `json:"name"                  validate:"max=255"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=2000"`
}

// UpdateGraphRequest is the body of PUT /workflows/:id/graph.
type UpdateGraphRequest struct {
	Nodes []models.GraphNode `json:"nodes" validate:"dive"`
	Edges []models.GraphEdge `json:"edges" validate:"dive"`
}

// RenameWorkflowRequest is the body of PATCH /workflows/:id.
type RenameWorkflowRequest struct {
	Name string `json:"name" validate:"required,max=255"`
}

// UpdateGraphResponse is returned after a graph replacement.
type UpdateGraphResponse struct {
	Workflow *models.Workflow `json:"workflow"`
}
