package pickup

import (
	"context"

	"github.com/samber/mo"
	"github.com/stretchr/testify/mock"

	"mcbackend/models"
)

// MockPickupService is a mock implementation of the pickup service
// surface used by the HTTP handlers.
type MockPickupService struct {
	mock.Mock
}

func (m *MockPickupService) PickupNextTask(ctx context.Context, agentID string) (mo.Option[*models.Task], error) {
	args := m.Called(ctx, agentID)
	return args.Get(0).(mo.Option[*models.Task]), args.Error(1)
}

func (m *MockPickupService) ReleaseTask(ctx context.Context, taskID, agentID string) (bool, error) {
	args := m.Called(ctx, taskID, agentID)
	return args.Bool(0), args.Error(1)
}

func (m *MockPickupService) CompleteTask(ctx context.Context, taskID, agentID, resultSummary string) (bool, error) {
	args := m.Called(ctx, taskID, agentID, resultSummary)
	return args.Bool(0), args.Error(1)
}

func (m *MockPickupService) GetAssignedTasks(ctx context.Context, agentID string) ([]*models.Task, error) {
	args := m.Called(ctx, agentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Task), args.Error(1)
}

func (m *MockPickupService) GetWorkStatus(ctx context.Context, agentID string) (*models.AgentWorkStatus, error) {
	args := m.Called(ctx, agentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AgentWorkStatus), args.Error(1)
}
