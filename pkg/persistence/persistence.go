// Package persistence provides the data storage abstraction for conversations, messages and workflow records.
package persistence

import (
	"context"

	"github.com/dukex/autograph/pkg/models"
)

// Persistence groups the repositories of one storage backend.
type Persistence interface {
	ConversationRepository() ConversationRepository
	MessageRepository() MessageRepository
	WorkflowRecordRepository() WorkflowRecordRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// ConversationRepository stores conversations.
type ConversationRepository interface {
	// Create assigns ID and CreatedAt when empty and stores the conversation.
	Create(ctx context.Context, conversation *models.ConversationRecord) error
	GetByID(ctx context.Context, id string) (*models.ConversationRecord, error)
	// ListByUser returns the user's conversations, newest first.
	ListByUser(ctx context.Context, userID string) ([]*models.ConversationRecord, error)
	UpdateTitle(ctx context.Context, id string, title *string) (*models.ConversationRecord, error)
	// Delete removes the conversation together with its messages and workflow records.
	Delete(ctx context.Context, id string) error
}

// MessageRepository stores messages.
type MessageRepository interface {
	// Append assigns ID and CreatedAt when empty and stores the message.
	Append(ctx context.Context, message *models.MessageRecord) error
	// ListByConversation returns messages oldest first. A positive limit keeps the oldest limit messages.
	ListByConversation(ctx context.Context, conversationID string, limit int) ([]*models.MessageRecord, error)
}

// WorkflowUpdate is the full set of fields written by a status transition.
type WorkflowUpdate struct {
	Status models.WorkflowStatus
	Result *models.AutomationGraph
	Error  *string
}

// WorkflowRecordRepository stores workflow records.
type WorkflowRecordRepository interface {
	// Create assigns ID and CreatedAt when empty and stores the record.
	Create(ctx context.Context, record *models.WorkflowRecord) error
	GetByID(ctx context.Context, id string) (*models.WorkflowRecord, error)
	// ListByConversation returns the conversation's records, newest first.
	ListByConversation(ctx context.Context, conversationID string) ([]*models.WorkflowRecord, error)
	// Update applies update only if the stored status still equals expected,
	// returning ErrStatusConflict otherwise.
	Update(ctx context.Context, id string, expected models.WorkflowStatus, update WorkflowUpdate) (*models.WorkflowRecord, error)
}
