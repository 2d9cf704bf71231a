package web

import (
	"encoding/json"

	"github.com/dukex/autograph/pkg/models"
)

// ChatRequest asks for a workflow to be synthesized from a chat message.
type ChatRequest struct {
	ConversationID string `json:"conversation_id" validate:"omitempty,max=64"`
	Message        string `json:"message"         validate:"required"`
}

type CreateConversationRequest struct {
	Title *string `json:"title"`
}

type RenameConversationRequest struct {
	Title *string `json:"title"`
}

type AppendMessageRequest struct {
	Role     models.MessageRole `json:"role"     validate:"required,oneof=user assistant system"`
	Content  string             `json:"content"  validate:"required"`
	Metadata json.RawMessage    `json:"metadata"`
	Tokens   *int               `json:"tokens"   validate:"omitempty,min=0"`
	Error    *string            `json:"error"`
}

type CreateWorkflowRequest struct {
	Graph json.RawMessage `json:"graph" validate:"required"`
}

// UpdateWorkflowRequest is a manual status change of a workflow record.
type UpdateWorkflowRequest struct {
	Status models.WorkflowStatus `json:"status" validate:"required,oneof=pending running failed completed"`
	Result json.RawMessage       `json:"result"`
	Error  *string               `json:"error"`
}

// ExecuteWorkflowRequest carries the per-call engine credentials. They are never stored.
type ExecuteWorkflowRequest struct {
	InstanceURL string `json:"instance_url" validate:"required,url"`
	APIKey      string `json:"api_key"      validate:"required"`
}

// DispatchRequest runs a graph against the engine without recording it.
type DispatchRequest struct {
	InstanceURL string          `json:"instance_url" validate:"required,url"`
	APIKey      string          `json:"api_key"      validate:"required"`
	Graph       json.RawMessage `json:"graph"        validate:"required"`
}
