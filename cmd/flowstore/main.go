// Package main provides the flowstore command line client.
package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/dukex/flowstore/pkg/client"
	"github.com/dukex/flowstore/pkg/log"
	cli "github.com/urfave/cli/v3"
)

func main() {
	command := &cli.Command{
		Name:                  "flowstore",
		Usage:                 "Manage and edit workflow graphs stored by a Flowstore API",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "api-url",
				Usage:   "Base URL of the Flowstore API",
				Value:   "http://localhost:9091",
				Sources: cli.EnvVars("FLOWSTORE_API_URL"),
			},
			&cli.StringFlag{
				Name:    "user",
				Aliases: []string{"u"},
				Usage:   "Caller id sent to the API",
				Sources: cli.EnvVars("FLOWSTORE_USER"),
			},
			&cli.StringFlag{
				Name:    "settings",
				Usage:   "Path of the editor settings file",
				Value:   defaultSettingsPath(),
				Sources: cli.EnvVars("FLOWSTORE_SETTINGS"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "warn",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Before: func(ctx context.Context, command *cli.Command) (context.Context, error) {
			log.Setup(command.String("log-level"))

			return ctx, nil
		},
		Commands: []*cli.Command{
			NewCreateCommand(),
			NewListCommand(),
			NewGetCommand(),
			NewRenameCommand(),
			NewRemoveCommand(),
			NewPushCommand(),
			NewSettingsCommand(),
			NewSyncCommand(),
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		log.WithModule("cli").Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func newClient(command *cli.Command) *client.Client {
	return client.New(command.String("api-url"), command.String("user"))
}

func defaultSettingsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "flowstore.yaml"
	}

	return filepath.Join(dir, "flowstore", "settings.yaml")
}
