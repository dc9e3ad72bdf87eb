package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/dukex/flowstore/pkg/cmd"
	"github.com/dukex/flowstore/pkg/log"
	"github.com/dukex/flowstore/pkg/otelhelper"
	"github.com/dukex/flowstore/pkg/services"
	cli "github.com/urfave/cli/v3"
)

const defaultPort = 9091

func apiFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:    "port",
			Aliases: []string{"p"},
			Usage:   "Port to run the API server on",
			Value:   defaultPort,
			Sources: cli.EnvVars("PORT"),
		},
		&cli.StringFlag{
			Name:     "database-url",
			Usage:    "Persistence URL (postgres://, sqlite://, or a file store directory)",
			Required: true,
			Sources:  cli.EnvVars("DATABASE_URL"),
		},
		&cli.StringFlag{
			Name:    "premium-users",
			Usage:   "Comma separated ids of users allowed to create workflows, * for everyone",
			Sources: cli.EnvVars("PREMIUM_USERS"),
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "Redis URL holding the premium users set, overrides --premium-users",
			Sources: cli.EnvVars("REDIS_URL"),
		},
		&cli.StringFlag{
			Name:    "event-bus",
			Usage:   "Event bus type for lifecycle events (kafka, memory), empty disables",
			Sources: cli.EnvVars("EVENT_BUS_TYPE"),
		},
		&cli.StringFlag{
			Name:    "kafka-brokers",
			Usage:   "Comma separated Kafka brokers",
			Value:   "localhost:9092",
			Sources: cli.EnvVars("KAFKA_BROKERS"),
		},
		&cli.BoolFlag{
			Name:    "otel-enabled",
			Usage:   "Export traces over OTLP/HTTP",
			Sources: cli.EnvVars("OTEL_ENABLED"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level (debug, info, warn, error)",
			Value:   "info",
			Sources: cli.EnvVars("LOG_LEVEL"),
		},
	}
}

func runAPI(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"))

	logger := log.WithModule("api")

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.InfoContext(ctx, "Initializing Flowstore API")

	opts := []services.Option{services.WithLogger(logger)}

	if command.Bool("otel-enabled") {
		tracer, provider, err := otelhelper.NewTracer(ctx, "flowstore-api")
		if err != nil {
			return fmt.Errorf("failed to initialize tracer: %w", err)
		}

		defer func() {
			if err := provider.Shutdown(context.Background()); err != nil {
				logger.Error("Failed to shutdown tracer provider", "error", err)
			}
		}()

		opts = append(opts, services.WithTracer(tracer))
	}

	persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return err
	}

	defer func() {
		if err := persistence.Close(context.Background()); err != nil {
			logger.Error("Failed to close persistence", "error", err)
		}
	}()

	checker, closeEntitlements, err := cmd.NewEntitlements(command.String("redis-url"), command.String("premium-users"))
	if err != nil {
		return err
	}

	defer func() {
		if err := closeEntitlements(); err != nil {
			logger.Error("Failed to close entitlements", "error", err)
		}
	}()

	eventBus, err := cmd.NewEventBus(command.String("event-bus"), command.String("kafka-brokers"), logger)
	if err != nil {
		return err
	}

	if eventBus != nil {
		defer func() {
			if err := eventBus.Close(); err != nil {
				logger.Error("Failed to close event bus", "error", err)
			}
		}()

		opts = append(opts, services.WithEventPublisher(eventBus))
	}

	api := NewAPI(logger, services.NewWorkflow(persistence, checker, opts...))

	return api.Run(ctx, command.Int("port"))
}
