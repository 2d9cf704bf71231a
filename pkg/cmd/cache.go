package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukex/autograph/pkg/cache"
)

const conversationCacheTTL = 5 * time.Minute

// NewCache returns the conversation cache named by the URL: memory:// (default) or redis://...
func NewCache(ctx context.Context, logger *slog.Logger, cacheURL string) (cache.ConversationCache, error) {
	switch {
	case cacheURL == "" || strings.HasPrefix(cacheURL, "memory://"):
		return cache.NewMemory(conversationCacheTTL), nil
	case strings.HasPrefix(cacheURL, "redis://"), strings.HasPrefix(cacheURL, "rediss://"):
		return cache.NewRedis(ctx, logger, cacheURL, conversationCacheTTL)
	default:
		return nil, fmt.Errorf("unsupported cache url %q", cacheURL)
	}
}
