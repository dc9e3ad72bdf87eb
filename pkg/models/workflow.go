// Package models defines the core domain models for persisted workflow graphs.
package models

import "time"

// Workflow is a named, owned automation graph.
type Workflow struct {
	ID          string    `json:"id"                    db:"id"`
	Name        string    `json:"name"                  db:"name"`
	Description *string   `json:"description,omitempty" db:"description"`
	OwnerID     string    `json:"ownerId"               db:"owner_id"`
	CreatedAt   time.Time `json:"createdAt"             db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt"             db:"updated_at"`

	// Nodes is populated by reads that load the graph, never serialized directly.
	Nodes []*Node `json:"-" db:"-"`
}

// WorkflowGraph is the client-shaped view of a workflow and its graph.
type WorkflowGraph struct {
	*Workflow

	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// Page holds one page of a paginated listing.
type Page[T any] struct {
	Items           []T  `json:"items"`
	TotalCount      int  `json:"totalCount"`
	Page            int  `json:"page"`
	PageSize        int  `json:"pageSize"`
	TotalPages      int  `json:"totalPages"`
	HasNextPage     bool `json:"hasNextPage"`
	HasPreviousPage bool `json:"hasPreviousPage"`
}

// NewPage computes the page metadata for a listing.
func NewPage[T any](items []T, totalCount, page, pageSize int) Page[T] {
	totalPages := 0
	if pageSize > 0 {
		totalPages = (totalCount + pageSize - 1) / pageSize
	}

	if items == nil {
		items = []T{}
	}

	return Page[T]{
		Items:           items,
		TotalCount:      totalCount,
		Page:            page,
		PageSize:        pageSize,
		TotalPages:      totalPages,
		HasNextPage:     page < totalPages,
		HasPreviousPage: page > 1,
	}
}
