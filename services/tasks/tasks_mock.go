package tasks

import (
	"context"

	"github.com/samber/mo"
	"github.com/stretchr/testify/mock"

	"mcbackend/models"
)

// MockTasksService is a mock implementation of the services.TasksService interface
type MockTasksService struct {
	mock.Mock
}

func (m *MockTasksService) GetTaskByID(ctx context.Context, id string) (mo.Option[*models.Task], error) {
	args := m.Called(ctx, id)
	return args.Get(0).(mo.Option[*models.Task]), args.Error(1)
}

func (m *MockTasksService) GetPendingTasks(
	ctx context.Context,
	boardID *string,
	limit int,
) ([]*models.Task, error) {
	args := m.Called(ctx, boardID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Task), args.Error(1)
}

func (m *MockTasksService) GetTagIDsForTasks(
	ctx context.Context,
	taskIDs []string,
) (map[string][]string, error) {
	args := m.Called(ctx, taskIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string][]string), args.Error(1)
}

func (m *MockTasksService) AssignTask(
	ctx context.Context,
	taskID, agentID string,
	fromStatus models.TaskStatus,
	autoClaimed bool,
) (bool, error) {
	args := m.Called(ctx, taskID, agentID, fromStatus, autoClaimed)
	return args.Bool(0), args.Error(1)
}

func (m *MockTasksService) ReleaseTask(ctx context.Context, taskID, agentID string) (bool, error) {
	args := m.Called(ctx, taskID, agentID)
	return args.Bool(0), args.Error(1)
}

func (m *MockTasksService) UpdateTaskStatusByAssignee(
	ctx context.Context,
	taskID, agentID string,
	toStatus models.TaskStatus,
) (bool, error) {
	args := m.Called(ctx, taskID, agentID, toStatus)
	return args.Bool(0), args.Error(1)
}

func (m *MockTasksService) PromoteTaskFromReview(ctx context.Context, taskID string) (bool, error) {
	args := m.Called(ctx, taskID)
	return args.Bool(0), args.Error(1)
}

func (m *MockTasksService) GetTasksInReview(ctx context.Context) ([]*models.Task, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Task), args.Error(1)
}

func (m *MockTasksService) CountActiveTasksForAgent(
	ctx context.Context,
	agentID string,
	statuses []models.TaskStatus,
) (int, error) {
	args := m.Called(ctx, agentID, statuses)
	return args.Int(0), args.Error(1)
}

func (m *MockTasksService) GetTasksByAssignee(
	ctx context.Context,
	agentID string,
	statuses []models.TaskStatus,
) ([]*models.Task, error) {
	args := m.Called(ctx, agentID, statuses)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Task), args.Error(1)
}

func (m *MockTasksService) GetNextPickupTask(ctx context.Context) (mo.Option[*models.Task], error) {
	args := m.Called(ctx)
	return args.Get(0).(mo.Option[*models.Task]), args.Error(1)
}

func (m *MockTasksService) CountPickupableTasks(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}
