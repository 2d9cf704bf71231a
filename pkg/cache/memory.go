package cache

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/dukex/autograph/pkg/models"
)

type memoryEntry struct {
	summaries []models.ConversationSummary
	expires   time.Time
}

// Memory is an in-process ConversationCache with a fixed TTL.
type Memory struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemory creates an in-process cache. A non-positive ttl keeps entries until invalidated.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{ttl: ttl, entries: make(map[string]memoryEntry), now: time.Now}
}

func (m *Memory) Get(_ context.Context, userID string) ([]models.ConversationSummary, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[userID]
	if !ok {
		return nil, false, nil
	}

	if !entry.expires.IsZero() && !m.now().Before(entry.expires) {
		delete(m.entries, userID)

		return nil, false, nil
	}

	return slices.Clone(entry.summaries), true, nil
}

func (m *Memory) Set(_ context.Context, userID string, summaries []models.ConversationSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := memoryEntry{summaries: slices.Clone(summaries)}
	if m.ttl > 0 {
		entry.expires = m.now().Add(m.ttl)
	}

	m.entries[userID] = entry

	return nil
}

func (m *Memory) Invalidate(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, userID)

	return nil
}

func (m *Memory) Close() error {
	return nil
}
