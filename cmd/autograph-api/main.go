package main

import (
	"context"
	"os"
	"time"

	"github.com/dukex/autograph/pkg/log"
	"github.com/dukex/autograph/pkg/services"
	cli "github.com/urfave/cli/v3"
)

const (
	defaultPort              = 9092
	defaultGenerationBaseURL = "https://openrouter.ai/api/v1"
	defaultGenerationModel   = "openai/gpt-oss-20b"
)

func main() {
	cmd := &cli.Command{
		Name:                  "autograph-api",
		Usage:                 "Synthesize automation graphs from chat and dispatch them to n8n",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence (file://dir or postgres://...)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "cache-url",
				Usage:   "Conversation cache URL (memory:// or redis://...)",
				Value:   "memory://",
				Sources: cli.EnvVars("CACHE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "kafka-brokers",
				Usage:   "Comma separated Kafka brokers",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.StringFlag{
				Name:    "generation-base-url",
				Usage:   "Base URL of the OpenAI-compatible generation service",
				Value:   defaultGenerationBaseURL,
				Sources: cli.EnvVars("GENERATION_BASE_URL"),
			},
			&cli.StringFlag{
				Name:     "generation-api-key",
				Usage:    "API key of the generation service",
				Required: true,
				Sources:  cli.EnvVars("GENERATION_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "generation-model",
				Usage:   "Model used for synthesis",
				Value:   defaultGenerationModel,
				Sources: cli.EnvVars("GENERATION_MODEL"),
			},
			&cli.DurationFlag{
				Name:    "generation-timeout",
				Usage:   "Deadline of one generation call",
				Value:   services.DefaultGenerationTimeout,
				Sources: cli.EnvVars("GENERATION_TIMEOUT"),
			},
			&cli.IntFlag{
				Name:    "max-input-length",
				Usage:   "Maximum number of characters of a chat message",
				Value:   services.DefaultMaxInputLength,
				Sources: cli.EnvVars("MAX_INPUT_LENGTH"),
			},
			&cli.StringFlag{
				Name:    "security-policy",
				Usage:   "Path to a YAML security policy (defaults to the built-in policy)",
				Sources: cli.EnvVars("SECURITY_POLICY_FILE"),
			},
			&cli.BoolFlag{
				Name:    "audit-rejections",
				Usage:   "Record rejected generations as failed workflow records",
				Value:   true,
				Sources: cli.EnvVars("AUDIT_REJECTIONS"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Export traces over OTLP/HTTP",
				Sources: cli.EnvVars("TRACING_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			return run(ctx, options{
				port:              command.Int("port"),
				databaseURL:       command.String("database-url"),
				cacheURL:          command.String("cache-url"),
				eventBus:          command.String("event-bus"),
				kafkaBrokers:      command.String("kafka-brokers"),
				generationBaseURL: command.String("generation-base-url"),
				generationAPIKey:  command.String("generation-api-key"),
				generationModel:   command.String("generation-model"),
				generationTimeout: command.Duration("generation-timeout"),
				maxInputLength:    command.Int("max-input-length"),
				securityPolicy:    command.String("security-policy"),
				auditRejections:   command.Bool("audit-rejections"),
				tracing:           command.Bool("tracing"),
				logLevel:          command.String("log-level"),
			})
		},
	}

	err := cmd.Run(context.Background(), os.Args)
	if err != nil {
		log.WithModule("api").Error("API stopped", "error", err)
		os.Exit(1)
	}
}

type options struct {
	port              int
	databaseURL       string
	cacheURL          string
	eventBus          string
	kafkaBrokers      string
	generationBaseURL string
	generationAPIKey  string
	generationModel   string
	generationTimeout time.Duration
	maxInputLength    int
	securityPolicy    string
	auditRejections   bool
	tracing           bool
	logLevel          string
}
