package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"time"

	"github.com/dukex/autograph/pkg/apperr"
	"github.com/dukex/autograph/pkg/dispatch"
	"github.com/dukex/autograph/pkg/eventbus"
	"github.com/dukex/autograph/pkg/events"
	"github.com/dukex/autograph/pkg/lifecycle"
	"github.com/dukex/autograph/pkg/models"
	"github.com/dukex/autograph/pkg/otelhelper"
	"github.com/dukex/autograph/pkg/security"
	"github.com/dukex/autograph/pkg/validation"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

// Dispatcher submits a graph to the execution engine.
type Dispatcher interface {
	Dispatch(ctx context.Context, req dispatch.Request) (dispatch.Result, error)
}

// ExecutionDependencies are the collaborators of manual execution.
type ExecutionDependencies struct {
	Conversations *Conversations
	Validator     *validation.Validator
	Scanner       *security.Scanner
	Coordinator   *lifecycle.Coordinator
	Dispatcher    Dispatcher
	Publisher     eventbus.EventPublisher
	Tracer        trace.Tracer
	Logger        *slog.Logger
}

// Execution runs stored or hand-provided graphs against the engine.
type Execution struct {
	ExecutionDependencies

	reruns singleflight.Group
}

// NewExecution creates the manual execution service.
func NewExecution(deps ExecutionDependencies) *Execution {
	if deps.Tracer == nil {
		deps.Tracer = otelhelper.NoopTracer()
	}

	return &Execution{ExecutionDependencies: deps}
}

// ExecuteRequest runs one stored workflow. Credentials are used for this call only.
type ExecuteRequest struct {
	UserID      string
	WorkflowID  string
	InstanceURL string
	APIKey      string
}

// ExecutionResult is the record after a successful dispatch plus the engine's id.
type ExecutionResult struct {
	Workflow *models.WorkflowRecord `json:"workflow"`
	EngineID string                 `json:"engine_id,omitempty"`
}

// TransitionRequest is a manual status change. Result is a graph in wire form.
type TransitionRequest struct {
	Status models.WorkflowStatus
	Result json.RawMessage
	Error  *string
}

// graph validates and scans a hand-provided graph.
func (s *Execution) graph(op string, raw json.RawMessage) (*models.AutomationGraph, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, inputError(op, ErrGraphRequired)
	}

	outcome, err := s.Validator.Validate(string(raw))
	if err != nil {
		return nil, err
	}

	if outcome.IsRefusal() {
		return nil, apperr.Schema(op, []apperr.Violation{{Path: "graph", Message: "a refusal is not an automation graph"}})
	}

	if _, err := s.Scanner.Check(outcome.Graph); err != nil {
		return nil, err
	}

	return outcome.Graph, nil
}

// CreatePending stores a hand-provided graph as a pending record in the user's conversation.
func (s *Execution) CreatePending(ctx context.Context, userID, conversationID string, raw json.RawMessage) (*models.WorkflowRecord, error) {
	const op = "services.CreatePendingWorkflow"

	if _, err := s.Conversations.Owned(ctx, userID, conversationID); err != nil {
		return nil, err
	}

	graph, err := s.graph(op, raw)
	if err != nil {
		return nil, err
	}

	return s.Coordinator.CreatePending(ctx, conversationID, graph)
}

// Execute dispatches the stored workflow. A completed record is re-run through a new
// pending record in the same conversation; overlapping re-runs of one record against
// one instance share a single dispatch. A running record is a conflict.
func (s *Execution) Execute(ctx context.Context, req ExecuteRequest) (*ExecutionResult, error) {
	const op = "services.Execute"

	ctx, span := otelhelper.StartSpan(ctx, s.Tracer, "execution.execute",
		attribute.String(otelhelper.UserIDKey, req.UserID),
		attribute.String(otelhelper.WorkflowIDKey, req.WorkflowID),
	)
	defer span.End()

	result, err := s.execute(ctx, op, req)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	span.SetAttributes(
		attribute.String(otelhelper.WorkflowStatusKey, string(result.Workflow.Status)),
		attribute.String(otelhelper.EngineIDKey, result.EngineID),
	)

	return result, nil
}

func (s *Execution) execute(ctx context.Context, op string, req ExecuteRequest) (*ExecutionResult, error) {
	if _, err := dispatch.Endpoint(req.InstanceURL); err != nil || req.APIKey == "" {
		return nil, apperr.New(op, apperr.KindInput, "a valid instance url and api key are required")
	}

	record, err := s.Conversations.OwnedWorkflow(ctx, req.UserID, req.WorkflowID)
	if err != nil {
		return nil, err
	}

	if record.Status == models.WorkflowStatusRunning {
		return nil, apperr.New(op, apperr.KindConflict, "workflow "+record.ID+" is already running")
	}

	if record.Result == nil {
		return nil, apperr.New(op, apperr.KindPersistence, "workflow "+record.ID+" has no graph to execute")
	}

	graph, err := s.Validator.ValidateGraph(record.Result)
	if err != nil {
		return nil, err
	}

	if _, err := s.Scanner.Check(graph); err != nil {
		return nil, err
	}

	if record.Status != models.WorkflowStatusCompleted {
		return s.run(ctx, req, record, graph)
	}

	shared, err, _ := s.reruns.Do(record.ID+"\x00"+req.InstanceURL, func() (any, error) {
		pending, err := s.Coordinator.CreatePending(ctx, record.ConversationID, graph)
		if err != nil {
			return nil, err
		}

		return s.run(ctx, req, pending, graph)
	})
	if err != nil {
		return nil, err
	}

	return shared.(*ExecutionResult), nil
}

// run claims record and dispatches graph, recording the outcome on the record.
func (s *Execution) run(ctx context.Context, req ExecuteRequest, record *models.WorkflowRecord, graph *models.AutomationGraph) (*ExecutionResult, error) {
	running, err := s.Coordinator.ClaimRecord(ctx, record)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, running.ConversationID, events.WorkflowExecutionStarted{
		BaseEvent:    events.NewBaseEvent(events.WorkflowExecutionStartedEvent, running.ConversationID, running.ID),
		InstanceHost: instanceHost(req.InstanceURL),
	})

	started := time.Now()

	dispatched, dispatchErr := s.Dispatcher.Dispatch(ctx, dispatch.Request{
		InstanceURL: req.InstanceURL,
		APIKey:      req.APIKey,
		Graph:       graph,
	})
	if dispatchErr != nil {
		reason := describe(dispatchErr)

		if _, err := s.Coordinator.Fail(ctx, running.ID, reason); err != nil {
			s.Logger.ErrorContext(ctx, "Failed to record execution failure", "workflow_id", running.ID, "error", err)
		}

		s.publish(ctx, running.ConversationID, events.WorkflowExecutionFailed{
			BaseEvent: events.NewBaseEvent(events.WorkflowExecutionFailedEvent, running.ConversationID, running.ID),
			Error:     reason,
			Duration:  time.Since(started),
		})

		return nil, dispatchErr
	}

	completed, err := s.Coordinator.Complete(ctx, running.ID, graph)
	if err != nil {
		return nil, err
	}

	s.Logger.InfoContext(ctx, "Workflow executed", "workflow_id", completed.ID, "engine_id", dispatched.EngineID)

	s.publish(ctx, completed.ConversationID, events.WorkflowExecutionCompleted{
		BaseEvent: events.NewBaseEvent(events.WorkflowExecutionCompletedEvent, completed.ConversationID, completed.ID),
		EngineID:  dispatched.EngineID,
		Duration:  time.Since(started),
	})

	return &ExecutionResult{Workflow: completed, EngineID: dispatched.EngineID}, nil
}

// DispatchStateless validates, scans and dispatches a graph without recording it.
func (s *Execution) DispatchStateless(ctx context.Context, instanceURL, apiKey string, raw json.RawMessage) (dispatch.Result, error) {
	const op = "services.DispatchStateless"

	graph, err := s.graph(op, raw)
	if err != nil {
		return dispatch.Result{}, err
	}

	return s.Dispatcher.Dispatch(ctx, dispatch.Request{InstanceURL: instanceURL, APIKey: apiKey, Graph: graph})
}

// Transition applies a manual status change through the coordinator's transition table.
func (s *Execution) Transition(ctx context.Context, userID, workflowID string, req TransitionRequest) (*models.WorkflowRecord, error) {
	const op = "services.TransitionWorkflow"

	if !req.Status.Valid() {
		return nil, inputError(op, ErrInvalidStatus)
	}

	if _, err := s.Conversations.OwnedWorkflow(ctx, userID, workflowID); err != nil {
		return nil, err
	}

	var result *models.AutomationGraph

	if len(req.Result) > 0 && string(req.Result) != "null" {
		graph, err := s.graph(op, req.Result)
		if err != nil {
			return nil, err
		}

		result = graph
	}

	return s.Coordinator.Transition(ctx, workflowID, req.Status, result, req.Error)
}

func (s *Execution) publish(ctx context.Context, key string, event eventbus.Event) {
	if s.Publisher == nil {
		return
	}

	if err := s.Publisher.Publish(ctx, key, event); err != nil {
		s.Logger.ErrorContext(ctx, "Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}

func instanceHost(instanceURL string) string {
	u, err := url.Parse(instanceURL)
	if err != nil {
		return ""
	}

	return u.Host
}
