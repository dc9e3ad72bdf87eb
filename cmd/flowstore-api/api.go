// Package main provides the Flowstore API server.
package main

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/dukex/flowstore/pkg/services"
	"github.com/dukex/flowstore/pkg/web"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

type API struct {
	logger          *slog.Logger
	workflowService *services.Workflow
}

func NewAPI(logger *slog.Logger, workflowService *services.Workflow) *API {
	return &API{
		logger:          logger,
		workflowService: workflowService,
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(a.workflowService, services.NewValidator(), a.logger)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker(healthcheck.Config{
		Probe: func(c fiber.Ctx) bool {
			_, ok := a.workflowService.HealthCheck(c.Context())

			return ok
		},
	}))

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Flowstore API")
	})

	handlers.Register(app)

	return app
}

// Run serves until ctx is cancelled, then shuts the server down.
func (a *API) Run(ctx context.Context, port int) error {
	app := a.App()

	go func() {
		<-ctx.Done()

		a.logger.Info("Shutting down Flowstore API")

		if err := app.Shutdown(); err != nil {
			a.logger.Error("Failed to shutdown API", "error", err)
		}
	}()

	a.logger.Info("Flowstore API listening", "port", port)

	return app.Listen(":"+strconv.Itoa(port), fiber.ListenConfig{DisableStartupMessage: true})
}
