package main

import (
	"context"
	"os"

	"github.com/dukex/flowstore/pkg/log"
	"github.com/joho/godotenv"
	cli "github.com/urfave/cli/v3"
)

func main() {
	// A missing .env file is fine, flags and the environment still apply.
	_ = godotenv.Load()

	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "flowstore-api",
		Usage:                 "Serve the workflow graph API",
		EnableShellCompletion: true,
		Flags:                 apiFlags(),
		Action: func(ctx context.Context, command *cli.Command) error {
			return runAPI(ctx, command)
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		logger.Error("API exited with error", "error", err)
		os.Exit(1)
	}
}
