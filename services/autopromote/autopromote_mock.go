package autopromote

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockApprovalsRepository is a mock implementation of the ApprovalsRepository interface
type MockApprovalsRepository struct {
	mock.Mock
}

func (m *MockApprovalsRepository) HasPendingApprovals(ctx context.Context, taskID string) (bool, error) {
	args := m.Called(ctx, taskID)
	return args.Bool(0), args.Error(1)
}
