package taskqueue

import (
	"context"

	"github.com/samber/mo"
	"github.com/stretchr/testify/mock"

	"mcbackend/models"
)

// MockTaskQueueService is a mock implementation of the services.TaskQueueService interface
type MockTaskQueueService struct {
	mock.Mock
}

func (m *MockTaskQueueService) GetPendingEntries(
	ctx context.Context,
	boardID *string,
	limit int,
) ([]*models.TaskQueueEntry, error) {
	args := m.Called(ctx, boardID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.TaskQueueEntry), args.Error(1)
}

func (m *MockTaskQueueService) FindBestAgentForTask(
	ctx context.Context,
	entry *models.TaskQueueEntry,
) (mo.Option[*models.AgentMatchResult], error) {
	args := m.Called(ctx, entry)
	return args.Get(0).(mo.Option[*models.AgentMatchResult]), args.Error(1)
}

func (m *MockTaskQueueService) AssignTaskToAgent(
	ctx context.Context,
	taskID, agentID string,
	autoClaimed bool,
) (mo.Option[*models.Task], error) {
	args := m.Called(ctx, taskID, agentID, autoClaimed)
	return args.Get(0).(mo.Option[*models.Task]), args.Error(1)
}

func (m *MockTaskQueueService) AutoAssignSingleTask(
	ctx context.Context,
	taskID string,
) (mo.Option[*models.Task], error) {
	args := m.Called(ctx, taskID)
	return args.Get(0).(mo.Option[*models.Task]), args.Error(1)
}

func (m *MockTaskQueueService) ProcessQueue(
	ctx context.Context,
	boardID *string,
	limit int,
) (*models.QueueProcessResult, error) {
	args := m.Called(ctx, boardID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.QueueProcessResult), args.Error(1)
}
