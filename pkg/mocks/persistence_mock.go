package mocks

import (
	"context"

	"github.com/dukex/autograph/pkg/models"
	"github.com/dukex/autograph/pkg/persistence"
	"github.com/stretchr/testify/mock"
)

// MockWorkflowRecordRepository is a mock implementation of persistence.WorkflowRecordRepository interface.
type MockWorkflowRecordRepository struct {
	mock.Mock
}

func (m *MockWorkflowRecordRepository) Create(ctx context.Context, record *models.WorkflowRecord) error {
	args := m.Called(ctx, record)

	return args.Error(0)
}

func (m *MockWorkflowRecordRepository) GetByID(ctx context.Context, id string) (*models.WorkflowRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.WorkflowRecord), args.Error(1)
}

func (m *MockWorkflowRecordRepository) ListByConversation(ctx context.Context, conversationID string) ([]*models.WorkflowRecord, error) {
	args := m.Called(ctx, conversationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.WorkflowRecord), args.Error(1)
}

func (m *MockWorkflowRecordRepository) Update(ctx context.Context, id string, expected models.WorkflowStatus, update persistence.WorkflowUpdate) (*models.WorkflowRecord, error) {
	args := m.Called(ctx, id, expected, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.WorkflowRecord), args.Error(1)
}

// MockMessageRepository is a mock implementation of persistence.MessageRepository interface.
type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) Append(ctx context.Context, message *models.MessageRecord) error {
	args := m.Called(ctx, message)

	return args.Error(0)
}

func (m *MockMessageRepository) ListByConversation(ctx context.Context, conversationID string, limit int) ([]*models.MessageRecord, error) {
	args := m.Called(ctx, conversationID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.MessageRecord), args.Error(1)
}
