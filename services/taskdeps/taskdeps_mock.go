package taskdeps

import (
	"context"

	"github.com/stretchr/testify/mock"

	"mcbackend/models"
)

// MockTaskDependenciesService is a mock implementation of the
// services.TaskDependenciesService interface
type MockTaskDependenciesService struct {
	mock.Mock
}

func (m *MockTaskDependenciesService) GetDependencyIDs(ctx context.Context, taskID string) ([]string, error) {
	args := m.Called(ctx, taskID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockTaskDependenciesService) GetStatusesByTaskIDs(
	ctx context.Context,
	taskIDs []string,
) (map[string]models.TaskStatus, error) {
	args := m.Called(ctx, taskIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]models.TaskStatus), args.Error(1)
}
