package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/dukex/autograph/pkg/apperr"
	"github.com/dukex/autograph/pkg/eventbus"
	"github.com/dukex/autograph/pkg/events"
	"github.com/dukex/autograph/pkg/extract"
	"github.com/dukex/autograph/pkg/generation"
	"github.com/dukex/autograph/pkg/lifecycle"
	"github.com/dukex/autograph/pkg/models"
	"github.com/dukex/autograph/pkg/otelhelper"
	"github.com/dukex/autograph/pkg/security"
	"github.com/dukex/autograph/pkg/validation"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// SynthesisDependencies are the collaborators of the synthesis pipeline.
type SynthesisDependencies struct {
	Conversations *Conversations
	Generator     generation.Generator
	Validator     *validation.Validator
	Scanner       *security.Scanner
	Coordinator   *lifecycle.Coordinator
	Publisher     eventbus.EventPublisher
	Tracer        trace.Tracer
	Logger        *slog.Logger
}

// Synthesis turns free text into a validated, scanned and recorded automation graph.
type Synthesis struct {
	SynthesisDependencies

	config Config
}

// NewSynthesis creates the synthesis pipeline.
func NewSynthesis(deps SynthesisDependencies, config Config) (*Synthesis, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	if deps.Tracer == nil {
		deps.Tracer = otelhelper.NoopTracer()
	}

	return &Synthesis{SynthesisDependencies: deps, config: config}, nil
}

// SynthesizeRequest is one chat turn. An empty ConversationID starts a new conversation.
type SynthesizeRequest struct {
	UserID         string
	ConversationID string
	Text           string
}

// SynthesisResult is a successful turn: either a completed workflow or a refusal.
type SynthesisResult struct {
	ConversationID string                 `json:"conversation_id"`
	Message        *models.MessageRecord  `json:"message"`
	Workflow       *models.WorkflowRecord `json:"workflow,omitempty"`
	Refusal        *models.Refusal        `json:"refusal,omitempty"`
}

// Synthesize runs generation, extraction, validation and scanning for one user turn.
// Rejections are returned as errors; refusals are a successful result.
func (s *Synthesis) Synthesize(ctx context.Context, req SynthesizeRequest) (*SynthesisResult, error) {
	const op = "services.Synthesize"

	ctx, span := otelhelper.StartSpan(ctx, s.Tracer, "synthesis.synthesize",
		attribute.String(otelhelper.UserIDKey, req.UserID),
		attribute.String(otelhelper.ModelKey, s.config.Model),
	)
	defer span.End()

	result, err := s.synthesize(ctx, op, req)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	span.SetAttributes(attribute.String(otelhelper.ConversationIDKey, result.ConversationID))

	if result.Workflow != nil {
		span.SetAttributes(attribute.String(otelhelper.WorkflowIDKey, result.Workflow.ID))
	}

	return result, nil
}

func (s *Synthesis) synthesize(ctx context.Context, op string, req SynthesizeRequest) (*SynthesisResult, error) {
	if req.UserID == "" {
		return nil, inputError(op, ErrEmptyUserID)
	}

	if strings.TrimSpace(req.Text) == "" {
		return nil, inputError(op, ErrEmptyMessage)
	}

	if utf8.RuneCountInString(req.Text) > s.config.MaxInputLength {
		return nil, inputError(op, ErrMessageTooLong)
	}

	conversation, err := s.Conversations.resolve(ctx, req.UserID, req.ConversationID, req.Text)
	if err != nil {
		return nil, err
	}

	history, err := s.history(ctx, op, conversation.ID)
	if err != nil {
		return nil, err
	}

	if _, err := s.Conversations.append(ctx, op, &models.MessageRecord{
		ConversationID: conversation.ID,
		Role:           models.MessageRoleUser,
		Content:        req.Text,
	}); err != nil {
		return nil, err
	}

	raw, err := s.generate(ctx, op, generation.CompilePrompt(req.Text, history))
	if err != nil {
		return nil, s.reject(ctx, conversation.ID, err)
	}

	candidate, err := extract.Object(raw)
	if err != nil {
		return nil, s.reject(ctx, conversation.ID, err)
	}

	outcome, err := s.Validator.Validate(candidate)
	if err != nil {
		return nil, s.reject(ctx, conversation.ID, err)
	}

	if outcome.IsRefusal() {
		return s.refuse(ctx, op, conversation.ID, candidate, outcome.Refusal)
	}

	if _, err := s.Scanner.Check(outcome.Graph); err != nil {
		return nil, s.reject(ctx, conversation.ID, err)
	}

	record, err := s.Coordinator.CompleteDirectly(ctx, conversation.ID, outcome.Graph)
	if err != nil {
		return nil, err
	}

	metadata, err := json.Marshal(map[string]string{"workflowId": record.ID})
	if err != nil {
		return nil, apperr.Wrap(op, apperr.KindInternal, "failed to encode message metadata", err)
	}

	message, err := s.Conversations.append(ctx, op, &models.MessageRecord{
		ConversationID: conversation.ID,
		Role:           models.MessageRoleAssistant,
		Content:        raw,
		Metadata:       metadata,
	})
	if err != nil {
		return nil, err
	}

	s.Logger.InfoContext(ctx, "Workflow synthesized",
		"conversation_id", conversation.ID,
		"workflow_id", record.ID,
		"node_count", len(outcome.Graph.Nodes),
	)

	s.publish(ctx, conversation.ID, events.WorkflowSynthesized{
		BaseEvent: events.NewBaseEvent(events.WorkflowSynthesizedEvent, conversation.ID, record.ID),
		Name:      outcome.Graph.Name,
		NodeCount: len(outcome.Graph.Nodes),
	})

	return &SynthesisResult{ConversationID: conversation.ID, Message: message, Workflow: record}, nil
}

// history returns the conversation's earlier turns for the prompt.
func (s *Synthesis) history(ctx context.Context, op, conversationID string) ([]generation.Turn, error) {
	messages, err := s.Conversations.persistence.MessageRepository().ListByConversation(ctx, conversationID, 0)
	if err != nil {
		return nil, storageError(op, err)
	}

	turns := make([]generation.Turn, 0, len(messages))
	for _, message := range messages {
		turns = append(turns, generation.Turn{Role: message.Role, Content: message.Content})
	}

	return turns, nil
}

func (s *Synthesis) generate(ctx context.Context, op string, prompt generation.Prompt) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.GenerationTimeout)
	defer cancel()

	raw, err := s.Generator.Generate(ctx, prompt)
	if err == nil {
		return raw, nil
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) && !apperr.Is(err, apperr.KindUpstreamGeneration) {
		return "", apperr.Wrap(op, apperr.KindUpstreamGeneration, "generation timed out", err)
	}

	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return "", err
	}

	return "", apperr.Wrap(op, apperr.KindUpstreamGeneration, "generation failed", err)
}

func (s *Synthesis) refuse(ctx context.Context, op, conversationID, candidate string, refusal *models.Refusal) (*SynthesisResult, error) {
	message, err := s.Conversations.append(ctx, op, &models.MessageRecord{
		ConversationID: conversationID,
		Role:           models.MessageRoleAssistant,
		Content:        candidate,
		Metadata:       json.RawMessage(`{"kind":"refusal"}`),
	})
	if err != nil {
		return nil, err
	}

	s.Logger.InfoContext(ctx, "Generation refused", "conversation_id", conversationID, "reason", refusal.Reason)

	s.publish(ctx, conversationID, events.WorkflowRefused{
		BaseEvent: events.NewBaseEvent(events.WorkflowRefusedEvent, conversationID, ""),
		Reason:    refusal.Reason,
	})

	return &SynthesisResult{ConversationID: conversationID, Message: message, Refusal: refusal}, nil
}

// reject audits a failed generation and returns cause unchanged.
func (s *Synthesis) reject(ctx context.Context, conversationID string, cause error) error {
	kind := apperr.KindOf(cause)
	reason := describe(cause)

	s.Logger.WarnContext(ctx, "Generation rejected", "conversation_id", conversationID, "kind", kind, "reason", reason)

	var workflowID string

	if s.config.AuditRejections {
		record, err := s.Coordinator.RecordRejection(ctx, conversationID, string(kind)+": "+reason)
		if err != nil {
			s.Logger.ErrorContext(ctx, "Failed to audit rejected generation", "conversation_id", conversationID, "error", err)
		} else {
			workflowID = record.ID
		}
	}

	s.publish(ctx, conversationID, events.WorkflowRejected{
		BaseEvent: events.NewBaseEvent(events.WorkflowRejectedEvent, conversationID, workflowID),
		Kind:      string(kind),
		Reason:    reason,
	})

	return cause
}

func (s *Synthesis) publish(ctx context.Context, key string, event eventbus.Event) {
	if s.Publisher == nil {
		return
	}

	if err := s.Publisher.Publish(ctx, key, event); err != nil {
		s.Logger.ErrorContext(ctx, "Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}
