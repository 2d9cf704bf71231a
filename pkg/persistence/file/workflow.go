package file

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dukex/autograph/pkg/models"
	"github.com/dukex/autograph/pkg/persistence"
	"github.com/google/uuid"
)

// WorkflowRecordRepository handles workflow record file operations.
type WorkflowRecordRepository struct {
	p *Persistence
}

// Create stores a new workflow record.
func (r *WorkflowRecordRepository) Create(_ context.Context, record *models.WorkflowRecord) error {
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

	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	exists, err := r.p.conversationExists(record.ConversationID)
	if err != nil {
		return err
	}

	if !exists {
		return persistence.NewConversationError("CreateWorkflow", record.ConversationID, persistence.ErrConversationNotFound)
	}

	return r.p.write(workflowsDir, record.ID, record)
}

// GetByID retrieves a workflow record by its ID.
func (r *WorkflowRecordRepository) GetByID(_ context.Context, id string) (*models.WorkflowRecord, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	return r.get(id)
}

func (r *WorkflowRecordRepository) get(id string) (*models.WorkflowRecord, error) {
	var record models.WorkflowRecord

	found, err := r.p.read(workflowsDir, id, &record)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
	}

	return &record, nil
}

// ListByConversation returns the conversation's records, newest first.
func (r *WorkflowRecordRepository) ListByConversation(_ context.Context, conversationID string) ([]*models.WorkflowRecord, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	ids, err := r.p.ids(workflowsDir)
	if err != nil {
		return nil, err
	}

	records := make([]*models.WorkflowRecord, 0)

	for _, id := range ids {
		record, err := r.get(id)
		if err != nil {
			if persistence.IsWorkflowNotFound(err) {
				continue
			}

			return nil, err
		}

		if record.ConversationID == conversationID {
			records = append(records, record)
		}
	}

	sort.Slice(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.After(records[j].CreatedAt)
		}

		return records[i].ID > records[j].ID
	})

	return records, nil
}

// Update applies update when the stored status equals expected.
func (r *WorkflowRecordRepository) Update(_ context.Context, id string, expected models.WorkflowStatus, update persistence.WorkflowUpdate) (*models.WorkflowRecord, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	record, err := r.get(id)
	if err != nil {
		return nil, err
	}

	if record.Status != expected {
		return nil, persistence.NewWorkflowError("Update", id, persistence.ErrStatusConflict)
	}

	record.Status = update.Status
	record.Result = update.Result
	record.Error = update.Error

	if err := r.p.write(workflowsDir, id, record); err != nil {
		return nil, err
	}

	return record, nil
}
