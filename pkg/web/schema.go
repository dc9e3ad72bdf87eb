package web

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// graphSchema constrains the shape of a submitted graph. Node types are left
// open and nullable since unknown types are coerced when stored; null handles
// are stored as "". Edge endpoints may name missing nodes, such edges are
// dropped when stored.
const graphSchema = `{
  "type": "object",
  "required": ["nodes", "edges"],
  "properties": {
    "nodes": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "position"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "type": {"type": ["string", "null"]},
          "name": {"type": ["string", "null"]},
          "position": {
            "type": "object",
            "required": ["x", "y"],
            "properties": {
              "x": {"type": "number"},
              "y": {"type": "number"}
            }
          },
          "data": {"type": ["object", "null"]}
        }
      }
    },
    "edges": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["source", "target"],
        "properties": {
          "id": {"type": ["string", "null"]},
          "source": {"type": "string"},
          "target": {"type": "string"},
          "sourceHandle": {"type": ["string", "null"]},
          "targetHandle": {"type": ["string", "null"]}
        }
      }
    }
  }
}`

var graphSchemaLoader = gojsonschema.NewStringLoader(graphSchema)

// validateGraphBody checks a raw request body against the graph schema.
func validateGraphBody(body []byte) error {
	result, err := gojsonschema.Validate(graphSchemaLoader, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return err
	}

	if !result.Valid() {
		var errors []string
		for _, desc := range result.Errors() {
			errors = append(errors, desc.String())
		}

		return fmt.Errorf("validation errors: %s", strings.Join(errors, "; "))
	}

	return nil
}
