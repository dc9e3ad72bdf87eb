// Package idgen mints prefixed identifiers for workflows, nodes and connections.
//
// Identifiers have the form "{prefix}_{random}" and can be minted by clients
// before the row they name exists. Collisions are not checked here; the store
// reports them as conflicts.
package idgen

import (
	"fmt"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Entity names a table that owns prefixed identifiers.
type Entity string

const (
	Workflows   Entity = "workflows"
	Nodes       Entity = "nodes"
	Connections Entity = "connections"
)

// DefaultLength is the length of the random suffix.
const DefaultLength = 6

var prefixes = map[Entity]string{
	Workflows:   "wfl",
	Nodes:       "nd",
	Connections: "conn",
}

// Prefix returns the identifier prefix of an entity.
func Prefix(entity Entity) (string, error) {
	prefix, ok := prefixes[entity]
	if !ok {
		return "", fmt.Errorf("unknown entity %q", entity)
	}

	return prefix, nil
}

// Generate mints an identifier with a random suffix of the given length.
func Generate(entity Entity, length int) (string, error) {
	prefix, err := Prefix(entity)
	if err != nil {
		return "", err
	}

	suffix, err := gonanoid.New(length)
	if err != nil {
		return "", fmt.Errorf("failed to generate %s id: %w", entity, err)
	}

	return prefix + "_" + suffix, nil
}

// New mints an identifier with the default suffix length. It panics on an
// unknown entity.
func New(entity Entity) string {
	id, err := Generate(entity, DefaultLength)
	if err != nil {
		panic(err)
	}

	return id
}

// HasPrefix reports whether id was minted for entity.
func HasPrefix(id string, entity Entity) bool {
	prefix, err := Prefix(entity)
	if err != nil {
		return false
	}

	return strings.HasPrefix(id, prefix+"_")
}
