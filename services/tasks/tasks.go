package tasks

import (
	"context"
	"fmt"
	"log"

	"github.com/samber/mo"

	"mcbackend/core"
	"mcbackend/models"
)

type TasksRepository interface {
	CreateTask(ctx context.Context, task *models.Task) error
	GetTaskByID(ctx context.Context, id string) (mo.Option[*models.Task], error)
	GetPendingTasks(ctx context.Context, boardID *string, limit int) ([]*models.Task, error)
	GetNextPickupTask(ctx context.Context) (mo.Option[*models.Task], error)
	AssignTask(ctx context.Context, taskID, agentID string, fromStatus models.TaskStatus, autoClaimed bool) (bool, error)
	ReleaseTask(ctx context.Context, taskID, agentID string) (bool, error)
	UpdateTaskStatusByAssignee(ctx context.Context, taskID, agentID string, toStatus models.TaskStatus) (bool, error)
	PromoteTaskFromReview(ctx context.Context, taskID string) (bool, error)
	GetTasksInReview(ctx context.Context) ([]*models.Task, error)
	CountActiveTasksForAgent(ctx context.Context, agentID string, statuses []models.TaskStatus) (int, error)
	GetTasksByAssignee(ctx context.Context, agentID string, statuses []models.TaskStatus) ([]*models.Task, error)
	CountPickupableTasks(ctx context.Context) (int, error)
	GetTagIDsForTasks(ctx context.Context, taskIDs []string) (map[string][]string, error)
}

type TasksService struct {
	tasksRepo TasksRepository
}

func NewTasksService(repo TasksRepository) *TasksService {
	return &TasksService{tasksRepo: repo}
}

func (s *TasksService) GetTaskByID(ctx context.Context, id string) (mo.Option[*models.Task], error) {
	log.Printf("📋 Starting to get task by ID: %s", id)
	if !core.IsValidULID(id) {
		return mo.None[*models.Task](), fmt.Errorf("task ID must be a valid ULID")
	}

	maybeTask, err := s.tasksRepo.GetTaskByID(ctx, id)
	if err != nil {
		return mo.None[*models.Task](), fmt.Errorf("failed to get task: %w", err)
	}

	log.Printf("📋 Completed successfully - retrieved task by ID: %s", id)
	return maybeTask, nil
}

func (s *TasksService) GetPendingTasks(
	ctx context.Context,
	boardID *string,
	limit int,
) ([]*models.Task, error) {
	log.Printf("📋 Starting to get pending tasks (limit: %d)", limit)
	if boardID != nil && !core.IsValidULID(*boardID) {
		return nil, fmt.Errorf("board ID must be a valid ULID")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive")
	}

	tasks, err := s.tasksRepo.GetPendingTasks(ctx, boardID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending tasks: %w", err)
	}

	log.Printf("📋 Completed successfully - retrieved %d pending tasks", len(tasks))
	return tasks, nil
}

func (s *TasksService) GetTagIDsForTasks(
	ctx context.Context,
	taskIDs []string,
) (map[string][]string, error) {
	log.Printf("📋 Starting to get tag ids for %d tasks", len(taskIDs))
	for _, id := range taskIDs {
		if !core.IsValidULID(id) {
			return nil, fmt.Errorf("task ID must be a valid ULID")
		}
	}

	tagMap, err := s.tasksRepo.GetTagIDsForTasks(ctx, taskIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to get tags for tasks: %w", err)
	}

	log.Printf("📋 Completed successfully - retrieved tags for %d tasks", len(tagMap))
	return tagMap, nil
}

// AssignTask performs the guarded claim write. A false return means the
// task was no longer claimable, not an error.
func (s *TasksService) AssignTask(
	ctx context.Context,
	taskID, agentID string,
	fromStatus models.TaskStatus,
	autoClaimed bool,
) (bool, error) {
	log.Printf("📋 Starting to assign task %s to agent %s (auto: %t)", taskID, agentID, autoClaimed)
	if !core.IsValidULID(taskID) {
		return false, fmt.Errorf("task ID must be a valid ULID")
	}
	if !core.IsValidULID(agentID) {
		return false, fmt.Errorf("agent ID must be a valid ULID")
	}
	if fromStatus == "" {
		return false, fmt.Errorf("fromStatus cannot be empty")
	}

	assigned, err := s.tasksRepo.AssignTask(ctx, taskID, agentID, fromStatus, autoClaimed)
	if err != nil {
		return false, fmt.Errorf("failed to assign task: %w", err)
	}

	log.Printf("📋 Completed successfully - task %s assignment to %s (claimed: %t)", taskID, agentID, assigned)
	return assigned, nil
}

func (s *TasksService) ReleaseTask(ctx context.Context, taskID, agentID string) (bool, error) {
	log.Printf("📋 Starting to release task %s from agent %s", taskID, agentID)
	if !core.IsValidULID(taskID) {
		return false, fmt.Errorf("task ID must be a valid ULID")
	}
	if !core.IsValidULID(agentID) {
		return false, fmt.Errorf("agent ID must be a valid ULID")
	}

	released, err := s.tasksRepo.ReleaseTask(ctx, taskID, agentID)
	if err != nil {
		return false, fmt.Errorf("failed to release task: %w", err)
	}

	log.Printf("📋 Completed successfully - task %s release (applied: %t)", taskID, released)
	return released, nil
}

func (s *TasksService) UpdateTaskStatusByAssignee(
	ctx context.Context,
	taskID, agentID string,
	toStatus models.TaskStatus,
) (bool, error) {
	log.Printf("📋 Starting to update task %s status to %s by agent %s", taskID, toStatus, agentID)
	if !core.IsValidULID(taskID) {
		return false, fmt.Errorf("task ID must be a valid ULID")
	}
	if !core.IsValidULID(agentID) {
		return false, fmt.Errorf("agent ID must be a valid ULID")
	}
	if toStatus == "" {
		return false, fmt.Errorf("toStatus cannot be empty")
	}

	updated, err := s.tasksRepo.UpdateTaskStatusByAssignee(ctx, taskID, agentID, toStatus)
	if err != nil {
		return false, fmt.Errorf("failed to update task status: %w", err)
	}

	log.Printf("📋 Completed successfully - task %s status update to %s (applied: %t)", taskID, toStatus, updated)
	return updated, nil
}

func (s *TasksService) PromoteTaskFromReview(ctx context.Context, taskID string) (bool, error) {
	log.Printf("📋 Starting to promote task %s from review", taskID)
	if !core.IsValidULID(taskID) {
		return false, fmt.Errorf("task ID must be a valid ULID")
	}

	promoted, err := s.tasksRepo.PromoteTaskFromReview(ctx, taskID)
	if err != nil {
		return false, fmt.Errorf("failed to promote task: %w", err)
	}

	log.Printf("📋 Completed successfully - task %s promotion (applied: %t)", taskID, promoted)
	return promoted, nil
}

func (s *TasksService) GetTasksInReview(ctx context.Context) ([]*models.Task, error) {
	log.Printf("📋 Starting to get tasks in review")
	tasks, err := s.tasksRepo.GetTasksInReview(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get tasks in review: %w", err)
	}

	log.Printf("📋 Completed successfully - retrieved %d tasks in review", len(tasks))
	return tasks, nil
}

func (s *TasksService) CountActiveTasksForAgent(
	ctx context.Context,
	agentID string,
	statuses []models.TaskStatus,
) (int, error) {
	log.Printf("📋 Starting to count active tasks for agent: %s", agentID)
	if !core.IsValidULID(agentID) {
		return 0, fmt.Errorf("agent ID must be a valid ULID")
	}
	if len(statuses) == 0 {
		return 0, fmt.Errorf("statuses cannot be empty")
	}

	count, err := s.tasksRepo.CountActiveTasksForAgent(ctx, agentID, statuses)
	if err != nil {
		return 0, fmt.Errorf("failed to count active tasks: %w", err)
	}

	log.Printf("📋 Completed successfully - agent %s holds %d active tasks", agentID, count)
	return count, nil
}

func (s *TasksService) GetTasksByAssignee(
	ctx context.Context,
	agentID string,
	statuses []models.TaskStatus,
) ([]*models.Task, error) {
	log.Printf("📋 Starting to get tasks assigned to agent: %s", agentID)
	if !core.IsValidULID(agentID) {
		return nil, fmt.Errorf("agent ID must be a valid ULID")
	}
	if len(statuses) == 0 {
		return nil, fmt.Errorf("statuses cannot be empty")
	}

	tasks, err := s.tasksRepo.GetTasksByAssignee(ctx, agentID, statuses)
	if err != nil {
		return nil, fmt.Errorf("failed to get tasks by assignee: %w", err)
	}

	log.Printf("📋 Completed successfully - retrieved %d tasks for agent %s", len(tasks), agentID)
	return tasks, nil
}

func (s *TasksService) GetNextPickupTask(ctx context.Context) (mo.Option[*models.Task], error) {
	log.Printf("📋 Starting to get next pickup task")
	maybeTask, err := s.tasksRepo.GetNextPickupTask(ctx)
	if err != nil {
		return mo.None[*models.Task](), fmt.Errorf("failed to get next pickup task: %w", err)
	}

	log.Printf("📋 Completed successfully - next pickup task lookup (found: %t)", maybeTask.IsPresent())
	return maybeTask, nil
}

func (s *TasksService) CountPickupableTasks(ctx context.Context) (int, error) {
	log.Printf("📋 Starting to count pickupable tasks")
	count, err := s.tasksRepo.CountPickupableTasks(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count pickupable tasks: %w", err)
	}

	log.Printf("📋 Completed successfully - %d pickupable tasks", count)
	return count, nil
}
