package mocks

import (
	"context"

	"github.com/dukex/autograph/pkg/generation"
	"github.com/stretchr/testify/mock"
)

// MockGenerator is a mock implementation of generation.Generator interface.
type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, prompt generation.Prompt) (string, error) {
	args := m.Called(ctx, prompt)

	return args.String(0), args.Error(1)
}
