package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// NodeType is the closed set of persistable node types.
type NodeType string

const (
	NodeTypeInitial       NodeType = "INITIAL"
	NodeTypeManualTrigger NodeType = "MANUAL_TRIGGER"
	NodeTypeHTTPRequest   NodeType = "HTTP_REQUEST"
	NodeTypeAction        NodeType = "ACTION"
	NodeTypeCondition     NodeType = "CONDITION"
	NodeTypeLoop          NodeType = "LOOP"
)

// NodeTypes lists every persistable node type in declaration order.
var NodeTypes = []NodeType{
	NodeTypeInitial,
	NodeTypeManualTrigger,
	NodeTypeHTTPRequest,
	NodeTypeAction,
	NodeTypeCondition,
	NodeTypeLoop,
}

// Valid reports whether t is one of the persistable node types.
func (t NodeType) Valid() bool {
	for _, known := range NodeTypes {
		if t == known {
			return true
		}
	}

	return false
}

// CoerceNodeType maps unknown or empty types to INITIAL.
// The second return value is true when the input had to be coerced.
func CoerceNodeType(t NodeType) (NodeType, bool) {
	if t.Valid() {
		return t, false
	}

	return NodeTypeInitial, true
}

// DefaultNodeName is stored for nodes submitted without a name.
const DefaultNodeName = "unknown"

// Position is a node's location on the editing canvas.
type Position struct {
	X float64 `json:"x" validate:"finite"`
	Y float64 `json:"y" validate:"finite"`
}

// Value stores the position as a JSON document.
func (p Position) Value() (driver.Value, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal position: %w", err)
	}

	return string(b), nil
}

// Scan reads a position stored as a JSON document.
func (p *Position) Scan(src any) error {
	return scanJSON(src, p)
}

// NodeData is the opaque per-type configuration payload of a node.
type NodeData map[string]any

// Value stores the payload as a JSON document, empty payloads become "{}".
func (d NodeData) Value() (driver.Value, error) {
	if d == nil {
		return "{}", nil
	}

	b, err := json.Marshal(map[string]any(d))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal node data: %w", err)
	}

	return string(b), nil
}

// Scan reads a payload stored as a JSON document.
func (d *NodeData) Scan(src any) error {
	data := map[string]any{}

	if err := scanJSON(src, &data); err != nil {
		return err
	}

	*d = data

	return nil
}

func scanJSON(src any, dest any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("unsupported JSON column type %T", src)
	}
}

// Node is a typed step of a workflow as stored. Ordinal is the node's
// position in the submitted graph and orders reads.
type Node struct {
	ID         string    `json:"id"         db:"id"`
	WorkflowID string    `json:"workflowId" db:"workflow_id"`
	Name       string    `json:"name"       db:"name"`
	Type       NodeType  `json:"type"       db:"type"`
	Position   Position  `json:"position"   db:"position"`
	Data       NodeData  `json:"data"       db:"data"`
	Ordinal    int       `json:"ordinal"    db:"ordinal"`
	CreatedAt  time.Time `json:"createdAt"  db:"created_at"`
	UpdatedAt  time.Time `json:"updatedAt"  db:"updated_at"`
}

// GraphNode is the client-shaped representation of a node.
type GraphNode struct {
	ID       string         `json:"id"             validate:"required"`
	Type     NodeType       `json:"type"`
	Name     string         `json:"name,omitempty"`
	Position Position       `json:"position"`
	Data     map[string]any `json:"data"`
}

// ToGraphNode converts a stored node into its client-shaped form.
func (n *Node) ToGraphNode() GraphNode {
	data := map[string]any(n.Data)
	if data == nil {
		data = map[string]any{}
	}

	return GraphNode{
		ID:       n.ID,
		Type:     n.Type,
		Name:     n.Name,
		Position: n.Position,
		Data:     data,
	}
}
