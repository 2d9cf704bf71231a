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

// ConversationRepository handles conversation file operations.
type ConversationRepository struct {
	p *Persistence
}

// Create stores a new conversation.
func (r *ConversationRepository) Create(_ context.Context, conversation *models.ConversationRecord) error {
	if conversation.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate conversation ID: %w", err)
		}

		conversation.ID = id.String()
	}

	if conversation.CreatedAt.IsZero() {
		conversation.CreatedAt = time.Now().UTC()
	}

	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	return r.p.write(conversationsDir, conversation.ID, conversation)
}

// GetByID retrieves a conversation by its ID.
func (r *ConversationRepository) GetByID(_ context.Context, id string) (*models.ConversationRecord, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	return r.get(id)
}

func (r *ConversationRepository) get(id string) (*models.ConversationRecord, error) {
	var conversation models.ConversationRecord

	found, err := r.p.read(conversationsDir, id, &conversation)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, persistence.NewConversationError("GetByID", id, persistence.ErrConversationNotFound)
	}

	return &conversation, nil
}

// ListByUser returns the user's conversations, newest first.
func (r *ConversationRepository) ListByUser(_ context.Context, userID string) ([]*models.ConversationRecord, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	ids, err := r.p.ids(conversationsDir)
	if err != nil {
		return nil, err
	}

	conversations := make([]*models.ConversationRecord, 0, len(ids))

	for _, id := range ids {
		conversation, err := r.get(id)
		if err != nil {
			if persistence.IsConversationNotFound(err) {
				continue
			}

			return nil, fmt.Errorf("failed to load conversation %s: %w", id, err)
		}

		if conversation.UserID == userID {
			conversations = append(conversations, conversation)
		}
	}

	sort.Slice(conversations, func(i, j int) bool {
		if !conversations[i].CreatedAt.Equal(conversations[j].CreatedAt) {
			return conversations[i].CreatedAt.After(conversations[j].CreatedAt)
		}

		return conversations[i].ID > conversations[j].ID
	})

	return conversations, nil
}

// UpdateTitle replaces the conversation title.
func (r *ConversationRepository) UpdateTitle(_ context.Context, id string, title *string) (*models.ConversationRecord, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	conversation, err := r.get(id)
	if err != nil {
		return nil, err
	}

	conversation.Title = title

	if err := r.p.write(conversationsDir, id, conversation); err != nil {
		return nil, err
	}

	return conversation, nil
}

// Delete removes a conversation along with its messages and workflow records.
func (r *ConversationRepository) Delete(_ context.Context, id string) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	exists, err := r.p.conversationExists(id)
	if err != nil {
		return err
	}

	if !exists {
		return persistence.NewConversationError("Delete", id, persistence.ErrConversationNotFound)
	}

	workflowIDs, err := r.p.ids(workflowsDir)
	if err != nil {
		return err
	}

	for _, workflowID := range workflowIDs {
		var record models.WorkflowRecord

		found, err := r.p.read(workflowsDir, workflowID, &record)
		if err != nil {
			return err
		}

		if found && record.ConversationID == id {
			if err := r.p.remove(workflowsDir, workflowID); err != nil {
				return err
			}
		}
	}

	if err := r.p.remove(messagesDir, id); err != nil {
		return err
	}

	return r.p.remove(conversationsDir, id)
}
