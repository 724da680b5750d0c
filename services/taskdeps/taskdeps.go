package taskdeps

import (
	"context"
	"fmt"
	"log"

	"mcbackend/core"
	"mcbackend/models"
)

type TaskDependenciesRepository interface {
	GetDependencyIDs(ctx context.Context, taskID string) ([]string, error)
	GetStatusesByTaskIDs(ctx context.Context, taskIDs []string) (map[string]models.TaskStatus, error)
}

type TaskDependenciesService struct {
	depsRepo TaskDependenciesRepository
}

func NewTaskDependenciesService(repo TaskDependenciesRepository) *TaskDependenciesService {
	return &TaskDependenciesService{depsRepo: repo}
}

func (s *TaskDependenciesService) GetDependencyIDs(ctx context.Context, taskID string) ([]string, error) {
	log.Printf("📋 Starting to get dependency ids for task: %s", taskID)
	if !core.IsValidULID(taskID) {
		return nil, fmt.Errorf("task ID must be a valid ULID")
	}

	ids, err := s.depsRepo.GetDependencyIDs(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to get dependency ids: %w", err)
	}

	log.Printf("📋 Completed successfully - task %s has %d dependencies", taskID, len(ids))
	return ids, nil
}

func (s *TaskDependenciesService) GetStatusesByTaskIDs(
	ctx context.Context,
	taskIDs []string,
) (map[string]models.TaskStatus, error) {
	log.Printf("📋 Starting to get statuses for %d dependency tasks", len(taskIDs))
	for _, id := range taskIDs {
		if !core.IsValidULID(id) {
			return nil, fmt.Errorf("task ID must be a valid ULID")
		}
	}

	statuses, err := s.depsRepo.GetStatusesByTaskIDs(ctx, taskIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to get dependency statuses: %w", err)
	}

	log.Printf("📋 Completed successfully - retrieved %d dependency statuses", len(statuses))
	return statuses, nil
}
