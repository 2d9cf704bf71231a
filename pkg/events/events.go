// Package events defines the workflow lifecycle notifications published by the synthesis and execution services.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Topic carries every workflow lifecycle event.
const Topic = "autograph.workflows"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Synthesis outcomes.
	WorkflowSynthesizedEvent EventType = "workflow.synthesized"
	WorkflowRefusedEvent     EventType = "workflow.refused"
	WorkflowRejectedEvent    EventType = "workflow.rejected"

	// Manual execution outcomes.
	WorkflowExecutionStartedEvent   EventType = "workflow.execution.started"
	WorkflowExecutionCompletedEvent EventType = "workflow.execution.completed"
	WorkflowExecutionFailedEvent    EventType = "workflow.execution.failed"
)

type BaseEvent struct {
	ID             string    `json:"id"`
	Type           EventType `json:"type"`
	Timestamp      time.Time `json:"timestamp"`
	ConversationID string    `json:"conversation_id,omitempty"`
	WorkflowID     string    `json:"workflow_id,omitempty"`
}

type WorkflowSynthesized struct {
	BaseEvent

	Name      string `json:"name"`
	NodeCount int    `json:"node_count"`
}

func (e WorkflowSynthesized) GetType() EventType {
	return WorkflowSynthesizedEvent
}

type WorkflowRefused struct {
	BaseEvent

	Reason string `json:"reason"`
}

func (e WorkflowRefused) GetType() EventType {
	return WorkflowRefusedEvent
}

// WorkflowRejected reports a generation that failed extraction, validation or scanning.
type WorkflowRejected struct {
	BaseEvent

	Kind   string `json:"kind"`
	Reason string `json:"reason"`
}

func (e WorkflowRejected) GetType() EventType {
	return WorkflowRejectedEvent
}

type WorkflowExecutionStarted struct {
	BaseEvent

	InstanceHost string `json:"instance_host"`
}

func (e WorkflowExecutionStarted) GetType() EventType {
	return WorkflowExecutionStartedEvent
}

type WorkflowExecutionCompleted struct {
	BaseEvent

	EngineID string        `json:"engine_id,omitempty"`
	Duration time.Duration `json:"duration"`
}

func (e WorkflowExecutionCompleted) GetType() EventType {
	return WorkflowExecutionCompletedEvent
}

type WorkflowExecutionFailed struct {
	BaseEvent

	Error    string        `json:"error"`
	Duration time.Duration `json:"duration"`
}

func (e WorkflowExecutionFailed) GetType() EventType {
	return WorkflowExecutionFailedEvent
}

func NewBaseEvent(eventType EventType, conversationID, workflowID string) BaseEvent {
	return BaseEvent{
		ID:             uuid.New().String(),
		Type:           eventType,
		Timestamp:      time.Now().UTC(),
		ConversationID: conversationID,
		WorkflowID:     workflowID,
	}
}
