// Package main provides the Autograph API server.
package main

import (
	"log/slog"
	"strconv"

	"github.com/dukex/autograph/pkg/cache"
	"github.com/dukex/autograph/pkg/eventbus"
	"github.com/dukex/autograph/pkg/generation"
	"github.com/dukex/autograph/pkg/lifecycle"
	"github.com/dukex/autograph/pkg/persistence"
	"github.com/dukex/autograph/pkg/security"
	"github.com/dukex/autograph/pkg/services"
	"github.com/dukex/autograph/pkg/validation"
	"github.com/dukex/autograph/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"go.opentelemetry.io/otel/trace"
)

// Dependencies are the infrastructure the API is composed from.
type Dependencies struct {
	Persistence persistence.Persistence
	Cache       cache.ConversationCache
	EventBus    eventbus.EventBus
	Generator   generation.Generator
	Scanner     *security.Scanner
	Dispatcher  services.Dispatcher
	Tracer      trace.Tracer
	Config      services.Config
}

type API struct {
	logger   *slog.Logger
	deps     Dependencies
	validate *validator.Validate
}

func NewAPI(logger *slog.Logger, deps Dependencies) *API {
	return &API{
		logger:   logger,
		deps:     deps,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() (*fiber.App, error) {
	graphValidator := validation.Default()
	conversations := services.NewConversations(a.deps.Persistence, a.deps.Cache, a.logger)
	coordinator := lifecycle.NewCoordinator(a.deps.Persistence.WorkflowRecordRepository(), a.logger)

	synthesis, err := services.NewSynthesis(services.SynthesisDependencies{
		Conversations: conversations,
		Generator:     a.deps.Generator,
		Validator:     graphValidator,
		Scanner:       a.deps.Scanner,
		Coordinator:   coordinator,
		Publisher:     a.deps.EventBus,
		Tracer:        a.deps.Tracer,
		Logger:        a.logger,
	}, a.deps.Config)
	if err != nil {
		return nil, err
	}

	execution := services.NewExecution(services.ExecutionDependencies{
		Conversations: conversations,
		Validator:     graphValidator,
		Scanner:       a.deps.Scanner,
		Coordinator:   coordinator,
		Dispatcher:    a.deps.Dispatcher,
		Publisher:     a.deps.EventBus,
		Tracer:        a.deps.Tracer,
		Logger:        a.logger,
	})

	handlers := web.NewAPIHandlers(conversations, synthesis, execution, a.validate, a.logger)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Autograph API")
	})

	handlers.Register(app)

	return app, nil
}

func (a *API) Start(port int) error {
	app, err := a.App()
	if err != nil {
		return err
	}

	return app.Listen(":" + strconv.Itoa(port))
}
