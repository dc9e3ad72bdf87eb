package file

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dukex/flowstore/pkg/models"
	"github.com/google/renameio/v2"
)

const workflowsDir = "workflows"

type arena struct {
	Workflow    *models.Workflow     `json:"workflow"`
	Nodes       []*models.Node       `json:"nodes"`
	Connections []*models.Connection `json:"connections"`
}

func (fp *Persistence) arenaPath(id string) (string, bool) {
	if id == "" || filepath.Base(id) != id || id == "." || id == ".." {
		return "", false
	}

	return filepath.Join(fp.root, workflowsDir, id+".json"), true
}

// readArena returns nil when the workflow does not exist.
func (fp *Persistence) readArena(id string) (*arena, error) {
	path, ok := fp.arenaPath(id)
	if !ok {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to read workflow file: %w", err)
	}

	a := &arena{}

	err = json.Unmarshal(data, a)
	if err != nil {
		return nil, fmt.Errorf("failed to decode workflow file %s: %w", id, err)
	}

	if a.Workflow == nil {
		return nil, fmt.Errorf("workflow file %s has no workflow", id)
	}

	return a, nil
}

// writeArena replaces the arena document atomically.
func (fp *Persistence) writeArena(a *arena) error {
	path, ok := fp.arenaPath(a.Workflow.ID)
	if !ok {
		return fmt.Errorf("invalid workflow id %q", a.Workflow.ID)
	}

	if a.Nodes == nil {
		a.Nodes = []*models.Node{}
	}

	if a.Connections == nil {
		a.Connections = []*models.Connection{}
	}

	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode workflow: %w", err)
	}

	err = renameio.WriteFile(path, data, 0o644)
	if err != nil {
		return fmt.Errorf("failed to write workflow file: %w", err)
	}

	return nil
}

func (fp *Persistence) removeArena(id string) error {
	path, ok := fp.arenaPath(id)
	if !ok {
		return nil
	}

	err := os.Remove(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove workflow file: %w", err)
	}

	return nil
}
