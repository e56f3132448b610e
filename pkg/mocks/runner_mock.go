package mocks

import (
	"context"

	"github.com/dukex/socialflow/pkg/models"
	"github.com/stretchr/testify/mock"
)

// MockRunner is a mock implementation of executions.Runner interface.
type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) Submit(ctx context.Context, snapshot *models.Workflow, accountRef string) (string, error) {
	args := m.Called(ctx, snapshot, accountRef)

	return args.String(0), args.Error(1)
}

func (m *MockRunner) Status(ctx context.Context, executionID string) (*models.ExecutionStatus, error) {
	args := m.Called(ctx, executionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.ExecutionStatus), args.Error(1)
}

func (m *MockRunner) Stop(ctx context.Context, executionID, accountRef string) error {
	args := m.Called(ctx, executionID, accountRef)

	return args.Error(0)
}
