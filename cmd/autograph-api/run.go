package main

import (
	"context"
	"fmt"

	"github.com/dukex/autograph/pkg/cmd"
	"github.com/dukex/autograph/pkg/config"
	"github.com/dukex/autograph/pkg/dispatch"
	"github.com/dukex/autograph/pkg/generation"
	"github.com/dukex/autograph/pkg/log"
	"github.com/dukex/autograph/pkg/otelhelper"
	"github.com/dukex/autograph/pkg/services"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "autograph-api"

func run(ctx context.Context, opts options) error {
	log.Setup(opts.logLevel)

	logger := log.WithModule("api")
	logger.InfoContext(ctx, "Initializing Autograph API")

	generationConfig := generation.ClientConfig{
		BaseURL: opts.generationBaseURL,
		APIKey:  opts.generationAPIKey,
		Model:   opts.generationModel,
	}

	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(generationConfig); err != nil {
		return fmt.Errorf("invalid generation configuration: %w", err)
	}

	scanner, err := config.ScannerFromFile(opts.securityPolicy)
	if err != nil {
		return fmt.Errorf("failed to load security policy: %w", err)
	}

	tracer, shutdown, err := newTracer(ctx, opts.tracing)
	if err != nil {
		return err
	}

	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.ErrorContext(ctx, "Failed to shutdown tracer provider", "error", err)
		}
	}()

	persistence, err := cmd.NewPersistence(ctx, log.WithModule("persistence"), opts.databaseURL)
	if err != nil {
		return err
	}

	defer func() {
		if err := persistence.Close(ctx); err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	conversationCache, err := cmd.NewCache(ctx, log.WithModule("cache"), opts.cacheURL)
	if err != nil {
		return err
	}

	defer func() {
		if err := conversationCache.Close(); err != nil {
			logger.ErrorContext(ctx, "Failed to close cache", "error", err)
		}
	}()

	eventBus, err := cmd.NewEventBus(opts.eventBus, opts.kafkaBrokers, log.WithModule("eventbus"))
	if err != nil {
		return err
	}

	defer func() {
		if err := eventBus.Close(); err != nil {
			logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}
	}()

	serviceConfig := services.DefaultConfig()
	serviceConfig.MaxInputLength = opts.maxInputLength
	serviceConfig.GenerationTimeout = opts.generationTimeout
	serviceConfig.AuditRejections = opts.auditRejections
	serviceConfig.Model = opts.generationModel

	api := NewAPI(log.WithModule("web"), Dependencies{
		Persistence: persistence,
		Cache:       conversationCache,
		EventBus:    eventBus,
		Generator:   generation.NewClient(generationConfig, log.WithModule("generation")),
		Scanner:     scanner,
		Dispatcher:  dispatch.New(log.WithModule("dispatch")),
		Tracer:      tracer,
		Config:      serviceConfig,
	})

	logger.InfoContext(ctx, "Starting API server", "port", opts.port, "model", opts.generationModel)

	return api.Start(opts.port)
}

// nolint:ireturn // Returning interface is intentional for OpenTelemetry tracing
func newTracer(ctx context.Context, enabled bool) (trace.Tracer, otelhelper.Shutdown, error) {
	if !enabled {
		return otelhelper.NoopTracer(), func(context.Context) error { return nil }, nil
	}

	tracer, shutdown, err := otelhelper.NewTracer(ctx, serviceName)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}

	return tracer, shutdown, nil
}
