// Package main provides the Socialflow API server implementation.
package main

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/dukex/socialflow/pkg/accounts"
	"github.com/dukex/socialflow/pkg/eventbus"
	"github.com/dukex/socialflow/pkg/executions"
	"github.com/dukex/socialflow/pkg/persistence"
	"github.com/dukex/socialflow/pkg/routines"
	"github.com/dukex/socialflow/pkg/services"
	"github.com/dukex/socialflow/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	recoverer "github.com/gofiber/fiber/v3/middleware/recover"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	runner      executions.Runner
	directory   accounts.Directory
	eventBus    eventbus.EventBus
	validate    *validator.Validate

	scheduler *routines.Scheduler
	app       *fiber.App
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	runner executions.Runner,
	directory accounts.Directory,
	eventBus eventbus.EventBus,
) *API {
	if eventBus == nil {
		eventBus = eventbus.Nop{}
	}

	api := &API{
		persistence: persistence,
		logger:      logger,
		runner:      runner,
		directory:   directory,
		eventBus:    eventBus,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}

	api.app = api.build()

	return api
}

func (a *API) build() *fiber.App {
	workflowService := services.NewWorkflow(a.persistence, nil, a.logger)
	executionService := executions.NewService(a.runner, a.directory, a.persistence.ExecutionRepository(), a.eventBus, a.logger)

	a.scheduler = routines.NewScheduler(
		executionService,
		a.persistence.WorkflowRepository(),
		a.persistence.RoutineRepository(),
		a.eventBus,
		a.logger,
	)
	routineService := routines.NewService(a.persistence.RoutineRepository(), a.persistence.WorkflowRepository(), a.scheduler, a.logger)

	handlers := web.NewAPIHandlers(workflowService, executionService, routineService, a.validate)

	app := fiber.New()
	app.Use(recoverer.New())
	app.Use(cors.New(cors.Config{
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", web.UserIDHeader},
	}))
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker(healthcheck.Config{
		Probe: func(c fiber.Ctx) bool {
			return a.persistence.HealthCheck(c.Context()) == nil
		},
	}))

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Socialflow API")
	})

	handlers.Mount(app)

	return app
}

func (a *API) App() *fiber.App {
	return a.app
}

// Start schedules stored routines and serves HTTP until ctx is done.
func (a *API) Start(ctx context.Context, port int) error {
	if err := a.scheduler.Start(ctx); err != nil {
		return err
	}
	defer a.scheduler.Stop()

	errs := make(chan error, 1)

	go func() {
		errs <- a.app.Listen(":"+strconv.Itoa(port), fiber.ListenConfig{DisableStartupMessage: true})
	}()

	a.logger.InfoContext(ctx, "Socialflow API listening", "port", port)

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
		a.logger.Info("Shutting down Socialflow API")

		return a.app.Shutdown()
	}
}
