package services

import (
	"time"
)

const (
	DefaultMaxInputLength    = 2000
	DefaultGenerationTimeout = 60 * time.Second
	DefaultTitleLength       = 80
	DefaultConversationTitle = "New conversation"
)

// Config holds the tunables of the synthesis and execution services.
type Config struct {
	// MaxInputLength bounds the user text, counted in characters.
	MaxInputLength    int           `validate:"min=1"`
	GenerationTimeout time.Duration `validate:"gt=0"`
	// AuditRejections persists rejected generations as failed workflow records.
	AuditRejections bool
	Model           string
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MaxInputLength:    DefaultMaxInputLength,
		GenerationTimeout: DefaultGenerationTimeout,
		AuditRejections:   true,
	}
}

// Validate checks the config with its struct tags.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return requestError("services.Config", err)
	}

	return nil
}
