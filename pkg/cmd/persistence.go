// Package cmd holds the composition-root factories shared by the binaries.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/dukex/autograph/pkg/persistence"
	"github.com/dukex/autograph/pkg/persistence/file"
	"github.com/dukex/autograph/pkg/persistence/postgresql"
)

var supportedPersistenceProviders = []string{"file", "postgres", "postgresql"}

// NewPersistence opens the backend named by the URL scheme: file://dir or postgres://...
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch parsePersistenceProvider(databaseURL) {
	case "postgres", "postgresql":
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	case "file":
		root := strings.TrimPrefix(databaseURL, "file://")
		if err := os.MkdirAll(root, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}

		logger.InfoContext(ctx, "Using file persistence", "root", root)

		return file.NewPersistence(root), nil
	default:
		return nil, fmt.Errorf("unsupported database url %q: expected one of %s", databaseURL, strings.Join(supportedPersistenceProviders, ", "))
	}
}

func parsePersistenceProvider(databaseURL string) string {
	provider, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return ""
	}

	for _, supported := range supportedPersistenceProviders {
		if provider == supported {
			return provider
		}
	}

	return ""
}
