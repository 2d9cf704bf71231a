// Package cache holds per-user conversation summaries, invalidated on every conversation mutation.
package cache

import (
	"context"

	"github.com/dukex/autograph/pkg/models"
)

// ConversationCache is a staleness-tolerant cache of a user's conversation list.
type ConversationCache interface {
	// Get returns the cached summaries and whether an entry was present.
	Get(ctx context.Context, userID string) ([]models.ConversationSummary, bool, error)
	Set(ctx context.Context, userID string, summaries []models.ConversationSummary) error
	Invalidate(ctx context.Context, userID string) error
	Close() error
}
