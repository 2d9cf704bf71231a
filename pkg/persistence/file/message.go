package file

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dukex/autograph/pkg/models"
	"github.com/dukex/autograph/pkg/persistence"
	"github.com/google/uuid"
)

// MessageRepository keeps each conversation's messages in one JSON array file.
type MessageRepository struct {
	p *Persistence
}

// Append stores a message at the end of its conversation.
func (r *MessageRepository) Append(_ context.Context, message *models.MessageRecord) error {
	if message.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate message ID: %w", err)
		}

		message.ID = id.String()
	}

	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}

	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	exists, err := r.p.conversationExists(message.ConversationID)
	if err != nil {
		return err
	}

	if !exists {
		return persistence.NewConversationError("AppendMessage", message.ConversationID, persistence.ErrConversationNotFound)
	}

	var messages []*models.MessageRecord
	if _, err := r.p.read(messagesDir, message.ConversationID, &messages); err != nil {
		return err
	}

	messages = append(messages, message)

	return r.p.write(messagesDir, message.ConversationID, messages)
}

// ListByConversation returns messages oldest first, truncated to the oldest limit when limit is positive.
func (r *MessageRepository) ListByConversation(_ context.Context, conversationID string, limit int) ([]*models.MessageRecord, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	var messages []*models.MessageRecord
	if _, err := r.p.read(messagesDir, conversationID, &messages); err != nil {
		return nil, err
	}

	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})

	if limit > 0 && len(messages) > limit {
		messages = messages[:limit]
	}

	if messages == nil {
		messages = make([]*models.MessageRecord, 0)
	}

	return messages, nil
}
