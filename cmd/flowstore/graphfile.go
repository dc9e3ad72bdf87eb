package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dukex/flowstore/pkg/editor"
	"github.com/dukex/flowstore/pkg/log"
	"github.com/dukex/flowstore/pkg/models"
	"github.com/fsnotify/fsnotify"
)

type graphFile struct {
	Nodes []models.GraphNode `json:"nodes"`
	Edges []models.GraphEdge `json:"edges"`
}

// readGraphFile decodes a {"nodes": [...], "edges": [...]} document, the
// same shape returned by `flowstore get`.
func readGraphFile(path string) ([]models.GraphNode, []models.GraphEdge, error) {
	if path == "" {
		return nil, nil, errors.New("a graph file is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read graph file: %w", err)
	}

	var graph graphFile

	err = json.Unmarshal(data, &graph)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode graph file %s: %w", path, err)
	}

	return graph.Nodes, graph.Edges, nil
}

// writeGraphFile stores the graph in the format read by readGraphFile.
func writeGraphFile(path string, nodes []models.GraphNode, edges []models.GraphEdge) error {
	data, err := json.MarshalIndent(graphFile{Nodes: nodes, Edges: edges}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode graph: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// watchGraphFile reloads graph from path every time the file is written
// until ctx is done. The directory is watched so editors that replace the
// file on save are followed.
func watchGraphFile(ctx context.Context, path string, graph *editor.Graph) error {
	logger := log.FromContext(ctx)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	err = watcher.Add(filepath.Dir(path))
	if err != nil {
		_ = watcher.Close()

		return fmt.Errorf("failed to watch %s: %w", path, err)
	}

	target := filepath.Clean(path)

	go func() {
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}

				if filepath.Clean(event.Name) != target || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}

				nodes, edges, err := readGraphFile(path)
				if err != nil {
					// Editors often write in several steps, the next event fixes it.
					logger.Debug("Ignoring unreadable graph file", "file", path, "error", err)

					continue
				}

				graph.Load(nodes, edges)
				logger.Info("Graph file reloaded", "nodes", len(nodes), "edges", len(edges))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}

				logger.Error("File watcher error", "error", err)
			}
		}
	}()

	return nil
}
