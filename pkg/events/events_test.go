package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvents_GetType(t *testing.T) {
	assert.Equal(t, WorkflowSynthesizedEvent, WorkflowSynthesized{}.GetType())
	assert.Equal(t, WorkflowRefusedEvent, WorkflowRefused{}.GetType())
	assert.Equal(t, WorkflowRejectedEvent, WorkflowRejected{}.GetType())
	assert.Equal(t, WorkflowExecutionStartedEvent, WorkflowExecutionStarted{}.GetType())
	assert.Equal(t, WorkflowExecutionCompletedEvent, WorkflowExecutionCompleted{}.GetType())
	assert.Equal(t, WorkflowExecutionFailedEvent, WorkflowExecutionFailed{}.GetType())
}

func TestWorkflowRejected_JSON(t *testing.T) {
	event := WorkflowRejected{
		BaseEvent: NewBaseEvent(WorkflowRejectedEvent, "conv-1", "wf-1"),
		Kind:      "security_policy_violation",
		Reason:    "node type is denied",
	}

	data, err := json.Marshal(event)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"workflow.rejected"`)
	assert.Contains(t, string(data), `"conversation_id":"conv-1"`)
	assert.Contains(t, string(data), `"kind":"security_policy_violation"`)

	var decoded WorkflowRejected
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, event.ID, decoded.ID)
	assert.Equal(t, event.Reason, decoded.Reason)
	assert.True(t, event.Timestamp.Equal(decoded.Timestamp))
}

func TestNewBaseEvent_OmitsEmptyWorkflow(t *testing.T) {
	data, err := json.Marshal(WorkflowRefused{BaseEvent: NewBaseEvent(WorkflowRefusedEvent, "conv-1", ""), Reason: "no"})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "workflow_id")
}
