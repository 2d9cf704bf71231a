package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/autograph/pkg/models"
	"github.com/dukex/autograph/pkg/persistence"
	"github.com/google/uuid"
)

// WorkflowRecordRepository handles workflow record database operations.
type WorkflowRecordRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

const workflowColumns = `
			id
		  , conversation_id
		  , status
		  , result
		  , error
		  , created_at`

func scanWorkflow(row scanner) (*models.WorkflowRecord, error) {
	var (
		record models.WorkflowRecord
		status string
		result []byte
	)

	err := row.Scan(&record.ID, &record.ConversationID, &status, &result, &record.Error, &record.CreatedAt)
	if err != nil {
		return nil, err
	}

	record.Status = models.WorkflowStatus(status)
	record.CreatedAt = record.CreatedAt.UTC()

	if len(result) > 0 {
		var graph models.AutomationGraph
		if err := json.Unmarshal(result, &graph); err != nil {
			return nil, fmt.Errorf("failed to unmarshal workflow result %s: %w", record.ID, err)
		}

		record.Result = &graph
	}

	return &record, nil
}

// Create inserts a new workflow record.
func (r *WorkflowRecordRepository) Create(ctx context.Context, record *models.WorkflowRecord) error {
	if record.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate workflow ID: %w", err)
		}

		record.ID = id.String()
	}

	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	result, err := resultParam(record.Result)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO workflows (id, conversation_id, status, result, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, record.ID, record.ConversationID, string(record.Status), result, record.Error, record.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return persistence.NewConversationError("CreateWorkflow", record.ConversationID, persistence.ErrConversationNotFound)
		}

		return fmt.Errorf("failed to insert workflow %s: %w", record.ID, err)
	}

	return nil
}

// GetByID retrieves a workflow record by its ID.
func (r *WorkflowRecordRepository) GetByID(ctx context.Context, id string) (*models.WorkflowRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+workflowColumns+` FROM workflows WHERE id = $1`, id)

	record, err := scanWorkflow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}

	return record, nil
}

// ListByConversation returns the conversation's records, newest first.
func (r *WorkflowRecordRepository) ListByConversation(ctx context.Context, conversationID string) ([]*models.WorkflowRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+workflowColumns+`
		FROM workflows
		WHERE conversation_id = $1
		ORDER BY created_at DESC, id DESC
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	records := make([]*models.WorkflowRecord, 0)

	for rows.Next() {
		record, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	return records, nil
}

// Update applies update when the stored status equals expected. The status
// predicate in the WHERE clause makes the claim atomic across processes.
func (r *WorkflowRecordRepository) Update(ctx context.Context, id string, expected models.WorkflowStatus, update persistence.WorkflowUpdate) (*models.WorkflowRecord, error) {
	result, err := resultParam(update.Result)
	if err != nil {
		return nil, err
	}

	row := r.db.QueryRowContext(ctx, `
		UPDATE workflows
		SET status = $1, result = $2, error = $3
		WHERE id = $4 AND status = $5
		RETURNING `+workflowColumns,
		string(update.Status), result, update.Error, id, string(expected))

	record, err := scanWorkflow(row)
	if err == nil {
		return record, nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to update workflow %s: %w", id, err)
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM workflows WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check workflow %s: %w", id, err)
	}

	if !exists {
		return nil, persistence.NewWorkflowError("Update", id, persistence.ErrWorkflowNotFound)
	}

	return nil, persistence.NewWorkflowError("Update", id, persistence.ErrStatusConflict)
}

func resultParam(graph *models.AutomationGraph) (any, error) {
	if graph == nil {
		return nil, nil
	}

	value, err := jsonParam(graph)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal workflow result: %w", err)
	}

	return value, nil
}
