// Package lifecycle owns the workflow record state machine.
//
// Records enter the machine through one of three named constructors:
// CompleteDirectly for graphs produced end-to-end by synthesis, CreatePending for
// graphs awaiting manual execution, and RecordRejection for audited generation
// failures. After creation a record only changes through Transition or Claim.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/autograph/pkg/apperr"
	"github.com/dukex/autograph/pkg/models"
	"github.com/dukex/autograph/pkg/persistence"
)

var transitions = map[models.WorkflowStatus][]models.WorkflowStatus{
	models.WorkflowStatusPending: {models.WorkflowStatusRunning},
	models.WorkflowStatusRunning: {models.WorkflowStatusCompleted, models.WorkflowStatusFailed},
}

// claims are the edges a dispatch takes. They sit outside the manual table so a
// failed dispatch can be retried in place while failed stays final for Transition.
var claims = map[models.WorkflowStatus]models.WorkflowStatus{
	models.WorkflowStatusPending: models.WorkflowStatusRunning,
	models.WorkflowStatusFailed:  models.WorkflowStatusRunning,
}

// CanTransition reports whether from -> to is in the transition table.
func CanTransition(from, to models.WorkflowStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}

	return false
}

// IsTerminal reports whether no manual transition leaves status. A terminal
// status may still be claimable, see CanClaim.
func IsTerminal(status models.WorkflowStatus) bool {
	return len(transitions[status]) == 0
}

// CanClaim reports whether a dispatch may start from status.
func CanClaim(status models.WorkflowStatus) bool {
	_, ok := claims[status]

	return ok
}

// Coordinator creates and transitions workflow records.
type Coordinator struct {
	records persistence.WorkflowRecordRepository
	logger  *slog.Logger
}

// NewCoordinator creates a coordinator over records.
func NewCoordinator(records persistence.WorkflowRecordRepository, logger *slog.Logger) *Coordinator {
	return &Coordinator{records: records, logger: logger}
}

// CompleteDirectly stores graph as an already completed record. This is the
// synthesis path; it never passes through pending or running.
func (c *Coordinator) CompleteDirectly(ctx context.Context, conversationID string, graph *models.AutomationGraph) (*models.WorkflowRecord, error) {
	if graph == nil {
		return nil, apperr.New("lifecycle.CompleteDirectly", apperr.KindPersistence, "completed records require a result")
	}

	return c.create(ctx, "lifecycle.CompleteDirectly", &models.WorkflowRecord{
		ConversationID: conversationID,
		Status:         models.WorkflowStatusCompleted,
		Result:         graph,
	})
}

// CreatePending stores graph as a record awaiting dispatch.
func (c *Coordinator) CreatePending(ctx context.Context, conversationID string, graph *models.AutomationGraph) (*models.WorkflowRecord, error) {
	if graph == nil {
		return nil, apperr.New("lifecycle.CreatePending", apperr.KindPersistence, "pending records require a graph")
	}

	return c.create(ctx, "lifecycle.CreatePending", &models.WorkflowRecord{
		ConversationID: conversationID,
		Status:         models.WorkflowStatusPending,
		Result:         graph,
	})
}

// RecordRejection stores a failed record for a generation that never produced a usable graph.
func (c *Coordinator) RecordRejection(ctx context.Context, conversationID, reason string) (*models.WorkflowRecord, error) {
	if reason == "" {
		return nil, apperr.New("lifecycle.RecordRejection", apperr.KindPersistence, "failed records require an error")
	}

	return c.create(ctx, "lifecycle.RecordRejection", &models.WorkflowRecord{
		ConversationID: conversationID,
		Status:         models.WorkflowStatusFailed,
		Error:          &reason,
	})
}

func (c *Coordinator) create(ctx context.Context, op string, record *models.WorkflowRecord) (*models.WorkflowRecord, error) {
	if err := c.records.Create(ctx, record); err != nil {
		return nil, storageError(op, record.ConversationID, err)
	}

	c.logger.InfoContext(ctx, "Workflow record created",
		"workflow_id", record.ID,
		"conversation_id", record.ConversationID,
		"status", record.Status)

	return record, nil
}

// Transition moves the record to target following the transition table.
// Completed requires result and failed requires errMessage; when result is nil
// for running or failed the stored graph is kept.
func (c *Coordinator) Transition(ctx context.Context, id string, target models.WorkflowStatus, result *models.AutomationGraph, errMessage *string) (*models.WorkflowRecord, error) {
	const op = "lifecycle.Transition"

	if !target.Valid() {
		return nil, apperr.New(op, apperr.KindInput, fmt.Sprintf("unknown workflow status %q", target))
	}

	record, err := c.records.GetByID(ctx, id)
	if err != nil {
		return nil, storageError(op, id, err)
	}

	if !CanTransition(record.Status, target) {
		return nil, apperr.New(op, apperr.KindConflict, fmt.Sprintf("transition %s -> %s is not allowed", record.Status, target))
	}

	update, err := buildUpdate(op, record, target, result, errMessage)
	if err != nil {
		return nil, err
	}

	return c.apply(ctx, op, record, update)
}

// Claim atomically moves a pending or failed record to running. Of several
// concurrent claimants at most one succeeds; the others get a conflict.
func (c *Coordinator) Claim(ctx context.Context, id string) (*models.WorkflowRecord, error) {
	const op = "lifecycle.Claim"

	record, err := c.records.GetByID(ctx, id)
	if err != nil {
		return nil, storageError(op, id, err)
	}

	return c.ClaimRecord(ctx, record)
}

// ClaimRecord is Claim for a record the caller already loaded. The conditional
// write still checks the stored status.
func (c *Coordinator) ClaimRecord(ctx context.Context, record *models.WorkflowRecord) (*models.WorkflowRecord, error) {
	const op = "lifecycle.Claim"

	target, ok := claims[record.Status]
	if !ok {
		return nil, apperr.New(op, apperr.KindConflict, fmt.Sprintf("workflow %s is %s and cannot be dispatched", record.ID, record.Status))
	}

	if record.Result == nil {
		return nil, apperr.New(op, apperr.KindPersistence, fmt.Sprintf("workflow %s has no graph to dispatch", record.ID))
	}

	return c.apply(ctx, op, record, persistence.WorkflowUpdate{
		Status: target,
		Result: record.Result,
	})
}

// Complete moves a running record to completed.
func (c *Coordinator) Complete(ctx context.Context, id string, result *models.AutomationGraph) (*models.WorkflowRecord, error) {
	return c.Transition(ctx, id, models.WorkflowStatusCompleted, result, nil)
}

// Fail moves a running record to failed.
func (c *Coordinator) Fail(ctx context.Context, id, message string) (*models.WorkflowRecord, error) {
	return c.Transition(ctx, id, models.WorkflowStatusFailed, nil, &message)
}

func (c *Coordinator) apply(ctx context.Context, op string, record *models.WorkflowRecord, update persistence.WorkflowUpdate) (*models.WorkflowRecord, error) {
	updated, err := c.records.Update(ctx, record.ID, record.Status, update)
	if err != nil {
		return nil, storageError(op, record.ID, err)
	}

	c.logger.InfoContext(ctx, "Workflow record transitioned",
		"workflow_id", record.ID,
		"from", record.Status,
		"to", updated.Status)

	return updated, nil
}

func buildUpdate(op string, record *models.WorkflowRecord, target models.WorkflowStatus, result *models.AutomationGraph, errMessage *string) (persistence.WorkflowUpdate, error) {
	update := persistence.WorkflowUpdate{Status: target, Result: result}

	switch target {
	case models.WorkflowStatusCompleted:
		if result == nil {
			return update, apperr.New(op, apperr.KindPersistence, "completed records require a result")
		}
	case models.WorkflowStatusFailed:
		if errMessage == nil {
			return update, apperr.New(op, apperr.KindPersistence, "failed records require an error")
		}

		update.Error = errMessage
	}

	if update.Result == nil {
		update.Result = record.Result
	}

	return update, nil
}

func storageError(op, id string, err error) error {
	switch {
	case persistence.IsWorkflowNotFound(err):
		return apperr.Wrap(op, apperr.KindNotFound, "workflow "+id+" not found", err)
	case persistence.IsConversationNotFound(err):
		return apperr.Wrap(op, apperr.KindNotFound, "conversation "+id+" not found", err)
	case persistence.IsStatusConflict(err):
		return apperr.Wrap(op, apperr.KindConflict, "workflow "+id+" was modified concurrently", err)
	default:
		return apperr.Wrap(op, apperr.KindInternal, "", err)
	}
}
