package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dukex/autograph/pkg/apperr"
	"github.com/dukex/autograph/pkg/dispatch"
	"github.com/dukex/autograph/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type engine struct {
	server *httptest.Server
	calls  atomic.Int32
	status int
}

func newEngine(t *testing.T, status int) *engine {
	t.Helper()

	e := &engine{status: status}
	e.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		e.calls.Add(1)

		if r.Header.Get(dispatch.APIKeyHeader) != "engine-key" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message": "unauthorized"}`))

			return
		}

		w.WriteHeader(e.status)

		if e.status >= 300 {
			_, _ = w.Write([]byte(`{"message": "workflow has issues"}`))

			return
		}

		_, _ = w.Write([]byte(`{"id": "engine-7"}`))
	}))
	t.Cleanup(e.server.Close)

	return e
}

func newExecution(f *fixture) *Execution {
	return NewExecution(ExecutionDependencies{
		Conversations: f.conversations,
		Validator:     f.validator,
		Scanner:       f.scanner,
		Coordinator:   f.coordinator,
		Dispatcher:    dispatch.New(discardLogger()),
		Publisher:     f.publisher,
		Logger:        discardLogger(),
	})
}

func TestExecution_PendingToCompleted(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	execution := newExecution(f)
	engine := newEngine(t, http.StatusOK)
	ctx := t.Context()

	conversation, err := f.conversations.Create(ctx, "alice", nil)
	require.NoError(t, err)

	pending, err := execution.CreatePending(ctx, "alice", conversation.ID, json.RawMessage(validGraph))
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusPending, pending.Status)

	result, err := execution.Execute(ctx, ExecuteRequest{UserID: "alice", WorkflowID: pending.ID, InstanceURL: engine.server.URL, APIKey: "engine-key"})
	require.NoError(t, err)
	assert.Equal(t, "engine-7", result.EngineID)
	assert.Equal(t, pending.ID, result.Workflow.ID)
	assert.Equal(t, models.WorkflowStatusCompleted, result.Workflow.Status)
	assert.Equal(t, int32(1), engine.calls.Load())
}

func TestExecution_EngineFailureMarksFailed(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	execution := newExecution(f)
	engine := newEngine(t, http.StatusBadRequest)
	ctx := t.Context()

	conversation, err := f.conversations.Create(ctx, "alice", nil)
	require.NoError(t, err)

	pending, err := execution.CreatePending(ctx, "alice", conversation.ID, json.RawMessage(validGraph))
	require.NoError(t, err)

	_, err = execution.Execute(ctx, ExecuteRequest{UserID: "alice", WorkflowID: pending.ID, InstanceURL: engine.server.URL, APIKey: "engine-key"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrExecutionTransport)

	stored, err := f.conversations.OwnedWorkflow(ctx, "alice", pending.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusFailed, stored.Status)
	require.NotNil(t, stored.Error)
	assert.Contains(t, *stored.Error, "workflow has issues")
	assert.NotNil(t, stored.Result, "a failed dispatch keeps its graph for retry")

	engine.status = http.StatusOK

	retried, err := execution.Execute(ctx, ExecuteRequest{UserID: "alice", WorkflowID: pending.ID, InstanceURL: engine.server.URL, APIKey: "engine-key"})
	require.NoError(t, err)
	assert.Equal(t, pending.ID, retried.Workflow.ID)
	assert.Equal(t, models.WorkflowStatusCompleted, retried.Workflow.Status)
}

func TestExecution_CompletedRecordIsRerunAsNewRecord(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	execution := newExecution(f)
	engine := newEngine(t, http.StatusOK)
	ctx := t.Context()

	conversation, err := f.conversations.Create(ctx, "alice", nil)
	require.NoError(t, err)

	outcome, err := f.validator.Validate(validGraph)
	require.NoError(t, err)

	completed, err := f.coordinator.CompleteDirectly(ctx, conversation.ID, outcome.Graph)
	require.NoError(t, err)

	result, err := execution.Execute(ctx, ExecuteRequest{UserID: "alice", WorkflowID: completed.ID, InstanceURL: engine.server.URL, APIKey: "engine-key"})
	require.NoError(t, err)
	assert.NotEqual(t, completed.ID, result.Workflow.ID)
	assert.Equal(t, conversation.ID, result.Workflow.ConversationID)

	records, err := f.conversations.ListWorkflows(ctx, "alice", conversation.ID)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestExecution_AcceptedWithoutEngineID(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	execution := newExecution(f)
	ctx := t.Context()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	t.Cleanup(server.Close)

	conversation, err := f.conversations.Create(ctx, "alice", nil)
	require.NoError(t, err)

	pending, err := execution.CreatePending(ctx, "alice", conversation.ID, json.RawMessage(validGraph))
	require.NoError(t, err)

	result, err := execution.Execute(ctx, ExecuteRequest{UserID: "alice", WorkflowID: pending.ID, InstanceURL: server.URL, APIKey: "engine-key"})
	require.NoError(t, err)
	assert.Empty(t, result.EngineID)

	stored, err := f.conversations.OwnedWorkflow(ctx, "alice", pending.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusCompleted, stored.Status)
}

func TestExecution_ConcurrentRerunsShareOneDispatch(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	execution := newExecution(f)
	ctx := t.Context()

	var calls atomic.Int32

	received := make(chan struct{}, 1)
	release := make(chan struct{})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		received <- struct{}{}
		<-release

		_, _ = w.Write([]byte(`{"id": "engine-8"}`))
	}))
	t.Cleanup(server.Close)

	conversation, err := f.conversations.Create(ctx, "alice", nil)
	require.NoError(t, err)

	outcome, err := f.validator.Validate(validGraph)
	require.NoError(t, err)

	completed, err := f.coordinator.CompleteDirectly(ctx, conversation.ID, outcome.Graph)
	require.NoError(t, err)

	req := ExecuteRequest{UserID: "alice", WorkflowID: completed.ID, InstanceURL: server.URL, APIKey: "engine-key"}

	const callers = 5

	var wg sync.WaitGroup

	results := make([]*ExecutionResult, callers)

	start := func(i int) {
		wg.Add(1)

		go func() {
			defer wg.Done()

			result, err := execution.Execute(ctx, req)
			assert.NoError(t, err)

			results[i] = result
		}()
	}

	start(0)
	<-received

	for i := 1; i < callers; i++ {
		start(i)
	}

	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())

	for _, result := range results {
		require.NotNil(t, result)
		assert.Equal(t, results[0].Workflow.ID, result.Workflow.ID)
	}

	records, err := f.conversations.ListWorkflows(ctx, "alice", conversation.ID)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestExecution_RejectsBeforeDispatch(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	execution := newExecution(f)
	engine := newEngine(t, http.StatusOK)
	ctx := t.Context()

	conversation, err := f.conversations.Create(ctx, "alice", nil)
	require.NoError(t, err)

	_, err = execution.CreatePending(ctx, "alice", conversation.ID, json.RawMessage(unsafeGraph))
	assert.ErrorIs(t, err, apperr.ErrSecurityPolicy)

	_, err = execution.CreatePending(ctx, "alice", conversation.ID, json.RawMessage(`{"error": "no"}`))
	assert.ErrorIs(t, err, apperr.ErrSchemaValidation)

	_, err = execution.CreatePending(ctx, "alice", conversation.ID, nil)
	assert.ErrorIs(t, err, apperr.ErrInput)

	rejected, err := f.coordinator.RecordRejection(ctx, conversation.ID, "parse_error: bad")
	require.NoError(t, err)

	_, err = execution.Execute(ctx, ExecuteRequest{UserID: "alice", WorkflowID: rejected.ID, InstanceURL: engine.server.URL, APIKey: "engine-key"})
	assert.ErrorIs(t, err, apperr.ErrPersistence)

	pending, err := execution.CreatePending(ctx, "alice", conversation.ID, json.RawMessage(validGraph))
	require.NoError(t, err)

	_, err = execution.Execute(ctx, ExecuteRequest{UserID: "bob", WorkflowID: pending.ID, InstanceURL: engine.server.URL, APIKey: "engine-key"})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = execution.Execute(ctx, ExecuteRequest{UserID: "alice", WorkflowID: pending.ID, InstanceURL: "not a url", APIKey: "engine-key"})
	assert.ErrorIs(t, err, apperr.ErrInput)

	_, err = f.coordinator.Claim(ctx, pending.ID)
	require.NoError(t, err)

	_, err = execution.Execute(ctx, ExecuteRequest{UserID: "alice", WorkflowID: pending.ID, InstanceURL: engine.server.URL, APIKey: "engine-key"})
	assert.ErrorIs(t, err, apperr.ErrConflict, "a running record cannot be executed again")

	assert.Zero(t, engine.calls.Load())
}

func TestExecution_DispatchStateless(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	execution := newExecution(f)
	engine := newEngine(t, http.StatusOK)

	result, err := execution.DispatchStateless(t.Context(), engine.server.URL, "engine-key", json.RawMessage(validGraph))
	require.NoError(t, err)
	assert.Equal(t, "engine-7", result.EngineID)

	_, err = execution.DispatchStateless(t.Context(), engine.server.URL, "wrong", json.RawMessage(validGraph))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrExecutionTransport)
	assert.Contains(t, err.Error(), "unauthorized")

	_, err = execution.DispatchStateless(t.Context(), engine.server.URL, "engine-key", json.RawMessage(unsafeGraph))
	assert.ErrorIs(t, err, apperr.ErrSecurityPolicy)
	assert.Equal(t, int32(2), engine.calls.Load())
}

func TestExecution_Transition(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	execution := newExecution(f)
	ctx := t.Context()

	conversation, err := f.conversations.Create(ctx, "alice", nil)
	require.NoError(t, err)

	pending, err := execution.CreatePending(ctx, "alice", conversation.ID, json.RawMessage(validGraph))
	require.NoError(t, err)

	_, err = execution.Transition(ctx, "alice", pending.ID, TransitionRequest{Status: models.WorkflowStatusCompleted, Result: json.RawMessage(validGraph)})
	assert.ErrorIs(t, err, apperr.ErrConflict, "pending cannot skip running")

	_, err = execution.Transition(ctx, "alice", pending.ID, TransitionRequest{Status: "paused"})
	assert.ErrorIs(t, err, apperr.ErrInput)

	_, err = execution.Transition(ctx, "bob", pending.ID, TransitionRequest{Status: models.WorkflowStatusRunning})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	running, err := execution.Transition(ctx, "alice", pending.ID, TransitionRequest{Status: models.WorkflowStatusRunning})
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusRunning, running.Status)

	_, err = execution.Transition(ctx, "alice", pending.ID, TransitionRequest{Status: models.WorkflowStatusFailed})
	assert.ErrorIs(t, err, apperr.ErrPersistence, "failed requires an error")

	message := "stopped by operator"

	failed, err := execution.Transition(ctx, "alice", pending.ID, TransitionRequest{Status: models.WorkflowStatusFailed, Error: &message})
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusFailed, failed.Status)
}
