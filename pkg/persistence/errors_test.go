package persistence_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/dukex/autograph/pkg/persistence"
	"github.com/stretchr/testify/assert"
)

func TestStandardizedErrors(t *testing.T) {
	t.Parallel()

	t.Run("error checking functions work correctly", func(t *testing.T) {
		workflowErr := persistence.NewWorkflowError("GetByID", "workflow-123", persistence.ErrWorkflowNotFound)
		conversationErr := persistence.NewConversationError("Delete", "conv-1", persistence.ErrConversationNotFound)
		conflictErr := fmt.Errorf("claim: %w", persistence.NewWorkflowError("Update", "workflow-123", persistence.ErrStatusConflict))

		assert.True(t, persistence.IsWorkflowNotFound(workflowErr))
		assert.True(t, persistence.IsConversationNotFound(conversationErr))
		assert.True(t, persistence.IsStatusConflict(conflictErr))
		assert.False(t, persistence.IsWorkflowNotFound(conversationErr))

		assert.True(t, errors.Is(workflowErr, persistence.ErrWorkflowNotFound))
	})

	t.Run("record error contains context", func(t *testing.T) {
		err := persistence.NewWorkflowError("Update", "workflow-123", persistence.ErrStatusConflict)

		assert.Contains(t, err.Error(), "Update")
		assert.Contains(t, err.Error(), "workflow workflow-123")
		assert.Contains(t, err.Error(), "status changed concurrently")
	})
}
