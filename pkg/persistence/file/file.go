// Package file provides file-based persistence for workflow graphs.
//
// Each workflow is an arena: one JSON document holding the workflow, its
// nodes and its connections. Removing the document removes everything it
// owns, which is how cascades work here.
package file

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dukex/flowstore/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the file system.
type Persistence struct {
	root   string
	logger *slog.Logger

	// mu serializes mutations across arenas so node id ownership stays consistent.
	mu         sync.RWMutex
	nodeOwners map[string]string

	workflowRepo   *WorkflowRepository
	connectionRepo *ConnectionRepository
}

// NewPersistence opens the store rooted at root, which may carry a "file://"
// scheme, and indexes the node ids of every existing arena.
func NewPersistence(logger *slog.Logger, root string) (*Persistence, error) {
	cleanRoot := strings.TrimPrefix(root, "file://")

	err := os.MkdirAll(filepath.Join(cleanRoot, workflowsDir), 0o755)
	if err != nil {
		return nil, fmt.Errorf("failed to create workflows directory: %w", err)
	}

	fp := &Persistence{
		root:       cleanRoot,
		logger:     logger,
		nodeOwners: make(map[string]string),
	}

	fp.workflowRepo = &WorkflowRepository{persistence: fp}
	fp.connectionRepo = &ConnectionRepository{persistence: fp}

	err = fp.buildIndex()
	if err != nil {
		return nil, err
	}

	return fp, nil
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return fp.workflowRepo
}

func (fp *Persistence) ConnectionRepository() persistence.ConnectionRepository {
	return fp.connectionRepo
}

func (fp *Persistence) buildIndex() error {
	arenas, err := fp.readArenas()
	if err != nil {
		return err
	}

	for _, a := range arenas {
		for _, node := range a.Nodes {
			fp.nodeOwners[node.ID] = a.Workflow.ID
		}
	}

	return nil
}

func (fp *Persistence) readArenas() ([]*arena, error) {
	jsonFiles, err := fs.Glob(os.DirFS(filepath.Join(fp.root, workflowsDir)), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow files: %w", err)
	}

	arenas := make([]*arena, 0, len(jsonFiles))

	for _, name := range jsonFiles {
		a, err := fp.readArena(strings.TrimSuffix(name, ".json"))
		if err != nil {
			return nil, err
		}

		if a != nil {
			arenas = append(arenas, a)
		}
	}

	return arenas, nil
}
