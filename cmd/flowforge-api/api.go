// Package main provides the flowforge API server.
package main

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/dukex/flowforge/pkg/web"
)

type API struct {
	logger *slog.Logger
	config web.Config
	app    *fiber.App
}

func NewAPI(logger *slog.Logger, config web.Config) *API {
	return &API{logger: logger, config: config}
}

func (a *API) App() *fiber.App {
	if a.app != nil {
		return a.app
	}

	handlers := web.NewAPIHandlers(a.config)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("flowforge API")
	})

	handlers.Register(app)

	a.app = app

	return app
}

// Start blocks serving on port until Shutdown is called.
func (a *API) Start(port int) error {
	a.logger.Info("API listening", "port", port)

	return a.App().Listen(":"+strconv.Itoa(port), fiber.ListenConfig{DisableStartupMessage: true})
}

func (a *API) Shutdown(ctx context.Context) error {
	return a.App().ShutdownWithContext(ctx)
}
