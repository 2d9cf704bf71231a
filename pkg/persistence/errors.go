// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrConversationNotFound indicates a conversation was not found by the given identifier.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrWorkflowNotFound indicates a workflow record was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrStatusConflict indicates a conditional update found a different stored status.
	ErrStatusConflict = errors.New("workflow status changed concurrently")
)

// RecordError wraps record-related errors with additional context.
type RecordError struct {
	Op       string // Operation being performed (e.g., "GetByID", "Update")
	Entity   string // "conversation", "message" or "workflow"
	RecordID string // Record ID if applicable
	Err      error  // Underlying error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("%s operation failed for %s %s: %v", e.Op, e.Entity, e.RecordID, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for record errors.
func (e *RecordError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewConversationError creates a new conversation error with context.
func NewConversationError(op, id string, err error) *RecordError {
	return &RecordError{Op: op, Entity: "conversation", RecordID: id, Err: err}
}

// NewWorkflowError creates a new workflow record error with context.
func NewWorkflowError(op, id string, err error) *RecordError {
	return &RecordError{Op: op, Entity: "workflow", RecordID: id, Err: err}
}

// IsConversationNotFound checks if an error indicates a conversation was not found.
func IsConversationNotFound(err error) bool {
	return errors.Is(err, ErrConversationNotFound)
}

// IsWorkflowNotFound checks if an error indicates a workflow record was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsStatusConflict checks if an error indicates a lost conditional update.
func IsStatusConflict(err error) bool {
	return errors.Is(err, ErrStatusConflict)
}
