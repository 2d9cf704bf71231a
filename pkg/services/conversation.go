package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/dukex/autograph/pkg/apperr"
	"github.com/dukex/autograph/pkg/cache"
	"github.com/dukex/autograph/pkg/models"
	"github.com/dukex/autograph/pkg/persistence"
)

// Conversations manages conversations and messages scoped to their owner.
type Conversations struct {
	persistence persistence.Persistence
	cache       cache.ConversationCache
	logger      *slog.Logger
}

// NewConversations creates a conversation service.
func NewConversations(p persistence.Persistence, c cache.ConversationCache, logger *slog.Logger) *Conversations {
	return &Conversations{persistence: p, cache: c, logger: logger}
}

// HealthCheck checks the health of the persistence layer.
func (s *Conversations) HealthCheck(ctx context.Context) (string, bool) {
	if s.persistence == nil {
		return "Persistence layer not initialized", false
	}

	if err := s.persistence.HealthCheck(ctx); err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// ConversationDetail is a conversation with its messages (oldest first) and workflow records (newest first).
type ConversationDetail struct {
	*models.ConversationRecord

	Messages  []*models.MessageRecord  `json:"messages"`
	Workflows []*models.WorkflowRecord `json:"workflows"`
}

// AppendMessageRequest describes a message added through the messages surface.
type AppendMessageRequest struct {
	Role     models.MessageRole `validate:"required,oneof=user assistant system"`
	Content  string             `validate:"required"`
	Metadata json.RawMessage
	Tokens   *int `validate:"omitempty,min=0"`
	Error    *string
}

// normalizeTitle trims title, returning nil when nothing is left.
func normalizeTitle(title *string) *string {
	if title == nil {
		return nil
	}

	trimmed := strings.TrimSpace(*title)
	if trimmed == "" {
		return nil
	}

	return &trimmed
}

// Create stores a new conversation for userID.
func (s *Conversations) Create(ctx context.Context, userID string, title *string) (*models.ConversationRecord, error) {
	const op = "services.CreateConversation"

	if userID == "" {
		return nil, inputError(op, ErrEmptyUserID)
	}

	conversation := &models.ConversationRecord{UserID: userID, Title: normalizeTitle(title)}
	if err := s.persistence.ConversationRepository().Create(ctx, conversation); err != nil {
		return nil, storageError(op, err)
	}

	s.invalidate(ctx, userID)

	s.logger.InfoContext(ctx, "Conversation created", "conversation_id", conversation.ID, "user_id", userID)

	return conversation, nil
}

// List returns the user's conversation summaries, newest first, served through the cache.
func (s *Conversations) List(ctx context.Context, userID string) ([]models.ConversationSummary, error) {
	const op = "services.ListConversations"

	if userID == "" {
		return nil, inputError(op, ErrEmptyUserID)
	}

	if cached, ok, err := s.cache.Get(ctx, userID); err != nil {
		s.logger.WarnContext(ctx, "Conversation cache read failed", "user_id", userID, "error", err)
	} else if ok {
		return cached, nil
	}

	conversations, err := s.persistence.ConversationRepository().ListByUser(ctx, userID)
	if err != nil {
		return nil, storageError(op, err)
	}

	summaries := make([]models.ConversationSummary, 0, len(conversations))
	for _, conversation := range conversations {
		summaries = append(summaries, conversation.Summary())
	}

	if err := s.cache.Set(ctx, userID, summaries); err != nil {
		s.logger.WarnContext(ctx, "Conversation cache write failed", "user_id", userID, "error", err)
	}

	return summaries, nil
}

// Owned returns the conversation when it belongs to userID. A conversation owned by
// someone else is reported as not found.
func (s *Conversations) Owned(ctx context.Context, userID, id string) (*models.ConversationRecord, error) {
	const op = "services.GetConversation"

	if userID == "" {
		return nil, inputError(op, ErrEmptyUserID)
	}

	conversation, err := s.persistence.ConversationRepository().GetByID(ctx, id)
	if err != nil {
		return nil, storageError(op, err)
	}

	if conversation.UserID != userID {
		return nil, apperr.New(op, apperr.KindNotFound, "conversation not found")
	}

	return conversation, nil
}

// Get returns the conversation with its messages and workflow records.
func (s *Conversations) Get(ctx context.Context, userID, id string) (*ConversationDetail, error) {
	const op = "services.GetConversation"

	conversation, err := s.Owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	messages, err := s.persistence.MessageRepository().ListByConversation(ctx, id, 0)
	if err != nil {
		return nil, storageError(op, err)
	}

	workflows, err := s.persistence.WorkflowRecordRepository().ListByConversation(ctx, id)
	if err != nil {
		return nil, storageError(op, err)
	}

	return &ConversationDetail{ConversationRecord: conversation, Messages: messages, Workflows: workflows}, nil
}

// Rename replaces the title; a blank title clears it.
func (s *Conversations) Rename(ctx context.Context, userID, id string, title *string) (*models.ConversationRecord, error) {
	const op = "services.RenameConversation"

	if _, err := s.Owned(ctx, userID, id); err != nil {
		return nil, err
	}

	conversation, err := s.persistence.ConversationRepository().UpdateTitle(ctx, id, normalizeTitle(title))
	if err != nil {
		return nil, storageError(op, err)
	}

	s.invalidate(ctx, userID)

	return conversation, nil
}

// Delete removes the conversation with its messages and workflow records.
func (s *Conversations) Delete(ctx context.Context, userID, id string) error {
	const op = "services.DeleteConversation"

	if _, err := s.Owned(ctx, userID, id); err != nil {
		return err
	}

	if err := s.persistence.ConversationRepository().Delete(ctx, id); err != nil {
		return storageError(op, err)
	}

	s.invalidate(ctx, userID)

	s.logger.InfoContext(ctx, "Conversation deleted", "conversation_id", id, "user_id", userID)

	return nil
}

// ListMessages returns messages oldest first. A non-positive limit is unbounded.
func (s *Conversations) ListMessages(ctx context.Context, userID, id string, limit int) ([]*models.MessageRecord, error) {
	const op = "services.ListMessages"

	if _, err := s.Owned(ctx, userID, id); err != nil {
		return nil, err
	}

	messages, err := s.persistence.MessageRepository().ListByConversation(ctx, id, max(limit, 0))
	if err != nil {
		return nil, storageError(op, err)
	}

	return messages, nil
}

// AppendMessage adds a message to the user's conversation.
func (s *Conversations) AppendMessage(ctx context.Context, userID, id string, req AppendMessageRequest) (*models.MessageRecord, error) {
	const op = "services.AppendMessage"

	if err := validate.Struct(req); err != nil {
		return nil, requestError(op, err)
	}

	if strings.TrimSpace(req.Content) == "" {
		return nil, inputError(op, ErrEmptyMessage)
	}

	if len(req.Metadata) > 0 && !json.Valid(req.Metadata) {
		return nil, apperr.New(op, apperr.KindInput, "metadata must be valid JSON")
	}

	if _, err := s.Owned(ctx, userID, id); err != nil {
		return nil, err
	}

	return s.append(ctx, op, &models.MessageRecord{
		ConversationID: id,
		Role:           req.Role,
		Content:        req.Content,
		Metadata:       req.Metadata,
		Tokens:         req.Tokens,
		Error:          req.Error,
	})
}

// ListWorkflows returns the conversation's workflow records, newest first.
func (s *Conversations) ListWorkflows(ctx context.Context, userID, id string) ([]*models.WorkflowRecord, error) {
	const op = "services.ListWorkflows"

	if _, err := s.Owned(ctx, userID, id); err != nil {
		return nil, err
	}

	records, err := s.persistence.WorkflowRecordRepository().ListByConversation(ctx, id)
	if err != nil {
		return nil, storageError(op, err)
	}

	return records, nil
}

// OwnedWorkflow returns the workflow record when its conversation belongs to userID.
// A record in someone else's conversation is forbidden.
func (s *Conversations) OwnedWorkflow(ctx context.Context, userID, workflowID string) (*models.WorkflowRecord, error) {
	const op = "services.GetWorkflow"

	if userID == "" {
		return nil, inputError(op, ErrEmptyUserID)
	}

	record, err := s.persistence.WorkflowRecordRepository().GetByID(ctx, workflowID)
	if err != nil {
		return nil, storageError(op, err)
	}

	conversation, err := s.persistence.ConversationRepository().GetByID(ctx, record.ConversationID)
	if err != nil {
		return nil, storageError(op, err)
	}

	if conversation.UserID != userID {
		return nil, apperr.New(op, apperr.KindForbidden, "workflow belongs to another user")
	}

	return record, nil
}

// resolve returns the user's conversation, creating one titled from text when id is empty.
func (s *Conversations) resolve(ctx context.Context, userID, id, text string) (*models.ConversationRecord, error) {
	if id != "" {
		return s.Owned(ctx, userID, id)
	}

	title := DefaultConversationTitle
	if trimmed := []rune(strings.TrimSpace(text)); len(trimmed) > 0 {
		title = string(trimmed[:min(len(trimmed), DefaultTitleLength)])
	}

	return s.Create(ctx, userID, &title)
}

func (s *Conversations) append(ctx context.Context, op string, message *models.MessageRecord) (*models.MessageRecord, error) {
	if err := s.persistence.MessageRepository().Append(ctx, message); err != nil {
		return nil, storageError(op, err)
	}

	return message, nil
}

func (s *Conversations) invalidate(ctx context.Context, userID string) {
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		s.logger.WarnContext(ctx, "Conversation cache invalidation failed", "user_id", userID, "error", err)
	}
}
