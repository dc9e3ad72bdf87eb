package main

import (
	"context"
	"log/slog"

	"github.com/dukex/flowstore/pkg/editor"
	cli "github.com/urfave/cli/v3"
)

func newSettingsStore(command *cli.Command) *editor.SettingsStore {
	return editor.NewSettingsStore(command.String("settings"), slog.Default())
}

func NewSettingsCommand() *cli.Command {
	return &cli.Command{
		Name:  "settings",
		Usage: "Show or change the editor settings",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "auto-save",
				Usage: "Enable periodic saving while syncing",
			},
			&cli.IntFlag{
				Name:  "interval",
				Usage: "Auto-save interval in milliseconds (at least 1000)",
			},
			&cli.BoolFlag{
				Name:  "notifications",
				Usage: "Enable save notifications",
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			store := newSettingsStore(command)

			settings, err := store.Load()
			if err != nil {
				return err
			}

			changed := false

			if command.IsSet("auto-save") {
				settings.AutoSave = command.Bool("auto-save")
				changed = true
			}

			if command.IsSet("interval") {
				settings.AutoSaveInterval = command.Int("interval")
				changed = true
			}

			if command.IsSet("notifications") {
				settings.Notifications.Enabled = command.Bool("notifications")
				changed = true
			}

			if changed {
				if err := store.Save(settings); err != nil {
					return err
				}
			}

			return printJSON(command.Root().Writer, settings)
		},
	}
}
