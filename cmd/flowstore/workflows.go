package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dukex/flowstore/pkg/client"
	cli "github.com/urfave/cli/v3"
)

func NewCreateCommand() *cli.Command {
	return &cli.Command{
		Name:  "create",
		Usage: "Create a workflow seeded with an initial node",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "name",
				Usage: "Workflow name, a random one is picked when empty",
			},
			&cli.StringFlag{
				Name:  "description",
				Usage: "Workflow description",
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			req := client.CreateRequest{Name: command.String("name")}

			if description := command.String("description"); description != "" {
				req.Description = &description
			}

			workflow, err := newClient(command).Create(ctx, req)
			if err != nil {
				return err
			}

			return printJSON(command.Root().Writer, workflow)
		},
	}
}

func NewListCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List workflows, newest first",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "page", Value: 1},
			&cli.IntFlag{Name: "page-size", Value: 5},
			&cli.StringFlag{Name: "search", Usage: "Case-insensitive name filter"},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			page, err := newClient(command).List(ctx,
				command.Int("page"),
				command.Int("page-size"),
				command.String("search"),
			)
			if err != nil {
				return fmt.Errorf("failed to list workflows: %w", err)
			}

			out := command.Root().Writer

			for _, workflow := range page.Items {
				fmt.Fprintf(out, "%s\t%s\t%s\n", workflow.ID, workflow.Name, workflow.UpdatedAt.Format("2006-01-02 15:04:05"))
			}

			fmt.Fprintf(out, "page %d/%d, %d workflows\n", page.Page, page.TotalPages, page.TotalCount)

			return nil
		},
	}
}

func NewGetCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Print a workflow with its graph as JSON",
		ArgsUsage: "<workflow-id>",
		Action: func(ctx context.Context, command *cli.Command) error {
			id, err := workflowArg(command)
			if err != nil {
				return err
			}

			graph, err := newClient(command).Get(ctx, id)
			if err != nil {
				return err
			}

			return printJSON(command.Root().Writer, graph)
		},
	}
}

func NewRenameCommand() *cli.Command {
	return &cli.Command{
		Name:      "rename",
		Usage:     "Rename a workflow",
		ArgsUsage: "<workflow-id> <name>",
		Action: func(ctx context.Context, command *cli.Command) error {
			id, err := workflowArg(command)
			if err != nil {
				return err
			}

			name := command.Args().Get(1)
			if name == "" {
				return errors.New("a new name is required")
			}

			workflow, err := newClient(command).Rename(ctx, id, name)
			if err != nil {
				return err
			}

			return printJSON(command.Root().Writer, workflow)
		},
	}
}

func NewRemoveCommand() *cli.Command {
	return &cli.Command{
		Name:      "remove",
		Aliases:   []string{"rm"},
		Usage:     "Delete a workflow with its nodes and connections",
		ArgsUsage: "<workflow-id>",
		Action: func(ctx context.Context, command *cli.Command) error {
			id, err := workflowArg(command)
			if err != nil {
				return err
			}

			workflow, err := newClient(command).Remove(ctx, id)
			if err != nil {
				return err
			}

			fmt.Fprintf(command.Root().Writer, "removed %s (%s)\n", workflow.ID, workflow.Name)

			return nil
		},
	}
}

func NewPushCommand() *cli.Command {
	return &cli.Command{
		Name:      "push",
		Usage:     "Replace the stored graph with the content of a graph file",
		ArgsUsage: "<workflow-id> <graph.json>",
		Action: func(ctx context.Context, command *cli.Command) error {
			id, err := workflowArg(command)
			if err != nil {
				return err
			}

			nodes, edges, err := readGraphFile(command.Args().Get(1))
			if err != nil {
				return err
			}

			workflow, err := newClient(command).UpdateGraph(ctx, id, nodes, edges)
			if err != nil {
				return err
			}

			fmt.Fprintf(command.Root().Writer, "pushed %d nodes and %d edges to %s at %s\n",
				len(nodes), len(edges), workflow.ID, workflow.UpdatedAt.Format("15:04:05"))

			return nil
		},
	}
}

func workflowArg(command *cli.Command) (string, error) {
	id := command.Args().First()
	if id == "" {
		return "", errors.New("a workflow id is required")
	}

	return id, nil
}

func printJSON(w io.Writer, v any) error {
	if w == nil {
		w = os.Stdout
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	return encoder.Encode(v)
}
