// Package events defines the workflow lifecycle notifications published by the store.
package events

import (
	"time"

	"github.com/dukex/flowstore/pkg/models"
	"github.com/google/uuid"
)

type EventType string

// Topic carries every workflow lifecycle event.
const Topic = "flowstore.workflows"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	WorkflowCreatedEvent       EventType = "workflow.created"
	WorkflowGraphReplacedEvent EventType = "workflow.graph.replaced"
	WorkflowRenamedEvent       EventType = "workflow.renamed"
	WorkflowDeletedEvent       EventType = "workflow.deleted"
)

type BaseEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	WorkflowID string    `json:"workflow_id"`
	OwnerID    string    `json:"owner_id"`
}

// NewBaseEvent stamps a new event with a fresh id and the current time.
func NewBaseEvent(eventType EventType, workflowID, ownerID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
		OwnerID:    ownerID,
	}
}

type WorkflowCreated struct {
	BaseEvent

	Name string `json:"name"`
}

func (e WorkflowCreated) GetType() EventType {
	return WorkflowCreatedEvent
}

// WorkflowGraphReplaced reports a committed full replacement, including the
// silent degradations applied to the submitted graph.
type WorkflowGraphReplaced struct {
	BaseEvent

	NodeCount    int                `json:"node_count"`
	EdgeCount    int                `json:"edge_count"`
	CoercedNodes []string           `json:"coerced_nodes,omitempty"`
	DroppedEdges []models.GraphEdge `json:"dropped_edges,omitempty"`
}

func (e WorkflowGraphReplaced) GetType() EventType {
	return WorkflowGraphReplacedEvent
}

type WorkflowRenamed struct {
	BaseEvent

	Name string `json:"name"`
}

func (e WorkflowRenamed) GetType() EventType {
	return WorkflowRenamedEvent
}

type WorkflowDeleted struct {
	BaseEvent
}

func (e WorkflowDeleted) GetType() EventType {
	return WorkflowDeletedEvent
}
