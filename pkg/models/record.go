package models

import (
	"encoding/json"
	"time"
)

// WorkflowStatus represents the lifecycle state of a workflow record.
type WorkflowStatus string

const (
	WorkflowStatusPending   WorkflowStatus = "pending"   // Created, waiting for dispatch
	WorkflowStatusRunning   WorkflowStatus = "running"   // Claimed, dispatch in flight
	WorkflowStatusFailed    WorkflowStatus = "failed"    // Dispatch or generation rejected
	WorkflowStatusCompleted WorkflowStatus = "completed" // Terminal success
)

// Valid reports whether s is one of the known statuses.
func (s WorkflowStatus) Valid() bool {
	switch s {
	case WorkflowStatusPending, WorkflowStatusRunning, WorkflowStatusFailed, WorkflowStatusCompleted:
		return true
	default:
		return false
	}
}

// WorkflowRecord tracks one graph from generation through execution outcome.
type WorkflowRecord struct {
	ID             string           `json:"id"`
	ConversationID string           `json:"conversationId"`
	Status         WorkflowStatus   `json:"status"`
	Result         *AutomationGraph `json:"result"`
	Error          *string          `json:"error"`
	CreatedAt      time.Time        `json:"createdAt"`
}

// ConversationRecord owns messages and workflow records.
type ConversationRecord struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Title     *string   `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
}

// ConversationSummary is the cached list-view of a conversation.
type ConversationSummary struct {
	ID        string    `json:"id"`
	Title     *string   `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
}

// Summary returns the list-view projection of the conversation.
func (c *ConversationRecord) Summary() ConversationSummary {
	return ConversationSummary{ID: c.ID, Title: c.Title, CreatedAt: c.CreatedAt}
}

// MessageRole identifies the author of a message.
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleSystem    MessageRole = "system"
)

// Valid reports whether r is one of the known roles.
func (r MessageRole) Valid() bool {
	return r == MessageRoleUser || r == MessageRoleAssistant || r == MessageRoleSystem
}

// MessageRecord is one chat turn. Metadata may carry a workflowId back-reference;
// the reference is advisory and may dangle.
type MessageRecord struct {
	ID             string          `json:"id"`
	ConversationID string          `json:"conversationId"`
	Role           MessageRole     `json:"role"`
	Content        string          `json:"content"`
	Metadata       json.RawMessage `json:"metadata"`
	Tokens         *int            `json:"tokens"`
	Error          *string         `json:"error"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// WorkflowID returns the workflowId stored in the message metadata, if any.
func (m *MessageRecord) WorkflowID() (string, bool) {
	if len(m.Metadata) == 0 {
		return "", false
	}

	var meta struct {
		WorkflowID string `json:"workflowId"`
	}

	if err := json.Unmarshal(m.Metadata, &meta); err != nil || meta.WorkflowID == "" {
		return "", false
	}

	return meta.WorkflowID, true
}
