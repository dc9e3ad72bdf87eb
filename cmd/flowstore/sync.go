package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/dukex/flowstore/pkg/editor"
	"github.com/dukex/flowstore/pkg/log"
	cli "github.com/urfave/cli/v3"
)

func NewSyncCommand() *cli.Command {
	return &cli.Command{
		Name:      "sync",
		Usage:     "Edit a workflow through a local graph file, saving changes periodically",
		ArgsUsage: "<workflow-id> <graph.json>",
		Description: "The graph file is the editing surface: it is created from the stored graph " +
			"when missing and reloaded whenever it changes. Changes are pushed on every " +
			"auto-save tick following the editor settings, which are also watched.",
		Action: func(ctx context.Context, command *cli.Command) error {
			id, err := workflowArg(command)
			if err != nil {
				return err
			}

			path := command.Args().Get(1)
			if path == "" {
				return errors.New("a graph file is required")
			}

			logger := log.WithModule("sync").With("workflow_id", id)
			ctx = log.ContextWithLogger(ctx, logger)

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			c := newClient(command)
			out := command.Root().Writer

			graph := editor.NewGraph(id)

			_, err = os.Stat(path)
			if errors.Is(err, fs.ErrNotExist) {
				remote, err := c.Get(ctx, id)
				if err != nil {
					return err
				}

				err = writeGraphFile(path, remote.Nodes, remote.Edges)
				if err != nil {
					return err
				}
			}

			nodes, edges, err := readGraphFile(path)
			if err != nil {
				return err
			}

			graph.Load(nodes, edges)

			settingsStore := newSettingsStore(command)

			settings, err := settingsStore.Load()
			if err != nil {
				return err
			}

			loop := editor.NewSyncLoop(c, settings,
				editor.WithSyncLogger(logger),
				editor.OnSaved(func(workflowID string) {
					fmt.Fprintf(out, "saved %s\n", workflowID)
				}),
				editor.OnError(func(workflowID string, err error) {
					fmt.Fprintf(out, "failed to save %s: %v\n", workflowID, err)
				}),
			)
			defer loop.Close()

			loop.Mount(graph)

			err = watchGraphFile(ctx, path, graph)
			if err != nil {
				return err
			}

			err = settingsStore.Watch(loop.ApplySettings)
			if err != nil {
				logger.Warn("Settings changes will not be applied", "error", err)
			}

			if !loop.Armed() {
				fmt.Fprintln(out, "auto-save is disabled, changes are saved on exit")
			}

			<-ctx.Done()

			// Push whatever changed since the last issued save.
			saved, err := loop.Flush(context.Background())
			if err == nil && !saved {
				fmt.Fprintln(out, "no changes to save")
			}

			return err
		},
	}
}
