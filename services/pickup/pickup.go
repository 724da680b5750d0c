package pickup

import (
	"context"
	"fmt"
	"log"

	"github.com/samber/mo"

	"mcbackend/core"
	"mcbackend/models"
	"mcbackend/services"
)

var activeStatuses = []models.TaskStatus{models.TaskStatusInProgress, models.TaskStatusReview}

// PickupService is the agent-initiated work path: an agent asks for the
// next available task instead of waiting for the queue scheduler. The
// same guarded claim write backs both paths, so they can run against the
// same tasks concurrently.
type PickupService struct {
	tasksService         services.TasksService
	agentsService        services.AgentsService
	taskDepsService      services.TaskDependenciesService
	activityService      services.ActivityService
	notificationsService services.NotificationsService
	txManager            services.TransactionManager
	maxClaimedTasks      int
}

func NewPickupService(
	tasksService services.TasksService,
	agentsService services.AgentsService,
	taskDepsService services.TaskDependenciesService,
	activityService services.ActivityService,
	notificationsService services.NotificationsService,
	txManager services.TransactionManager,
	maxClaimedTasks int,
) *PickupService {
	return &PickupService{
		tasksService:         tasksService,
		agentsService:        agentsService,
		taskDepsService:      taskDepsService,
		activityService:      activityService,
		notificationsService: notificationsService,
		txManager:            txManager,
		maxClaimedTasks:      maxClaimedTasks,
	}
}

// PickupNextTask claims the next pickupable task for the agent. Returns
// None when the agent is at its claim cap, no work is available, or the
// claim lost a race.
func (s *PickupService) PickupNextTask(ctx context.Context, agentID string) (mo.Option[*models.Task], error) {
	log.Printf("📋 Starting task pickup for agent: %s", agentID)
	if !core.IsValidULID(agentID) {
		return mo.None[*models.Task](), fmt.Errorf("agent ID must be a valid ULID")
	}

	var claimedTask *models.Task
	var agentName string

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		maybeAgent, err := s.agentsService.GetAgentByID(txCtx, agentID)
		if err != nil {
			return err
		}
		agent, ok := maybeAgent.Get()
		if !ok {
			return fmt.Errorf("agent %s: %w", agentID, core.ErrNotFound)
		}
		agentName = agent.Name

		activeCount, err := s.tasksService.CountActiveTasksForAgent(txCtx, agentID, activeStatuses)
		if err != nil {
			return err
		}
		if activeCount >= s.maxClaimedTasks {
			log.Printf("📋 Agent %s is at the claim cap (%d), no pickup", agentID, s.maxClaimedTasks)
			return nil
		}

		maybeTask, err := s.tasksService.GetNextPickupTask(txCtx)
		if err != nil {
			return err
		}
		task, ok := maybeTask.Get()
		if !ok {
			return nil
		}

		satisfied, err := s.dependenciesSatisfied(txCtx, task.ID)
		if err != nil {
			return err
		}
		if !satisfied {
			log.Printf("📋 Next pickup task %s is dependency-blocked, skipping", task.ID)
			return nil
		}

		claimed, err := s.tasksService.AssignTask(txCtx, task.ID, agentID, models.TaskStatusPending, true)
		if err != nil {
			return err
		}
		if !claimed {
			log.Printf("📋 Pickup claim for task %s lost the race", task.ID)
			return fmt.Errorf("task %s: %w", task.ID, core.ErrPreconditionFailed)
		}

		if _, err := s.agentsService.TransitionAgentStatus(
			txCtx, agentID, agent.Status, models.AgentStatusBusy, nil); err != nil {
			return err
		}

		refreshed, err := s.tasksService.GetTaskByID(txCtx, task.ID)
		if err != nil {
			return err
		}
		if t, ok := refreshed.Get(); ok {
			claimedTask = t
		}
		return nil
	})
	if err != nil {
		// A lost claim is an expected race outcome, not a failure
		if core.IsPreconditionFailedError(err) {
			return mo.None[*models.Task](), nil
		}
		return mo.None[*models.Task](), fmt.Errorf("failed to pick up task: %w", err)
	}
	if claimedTask == nil {
		return mo.None[*models.Task](), nil
	}

	s.activityService.Record(ctx, "task.picked_up",
		fmt.Sprintf("Task %q picked up by %s", claimedTask.Title, agentName),
		&agentID, &claimedTask.ID)
	s.notificationsService.NotifyTaskAssigned(ctx, claimedTask, agentName, true)

	log.Printf("📋 Completed successfully - agent %s picked up task %s", agentID, claimedTask.ID)
	return mo.Some(claimedTask), nil
}

// ReleaseTask hands a task back to the queue. Only the current assignee
// may release; false means the agent no longer held it.
func (s *PickupService) ReleaseTask(ctx context.Context, taskID, agentID string) (bool, error) {
	log.Printf("📋 Starting to release task %s for agent %s", taskID, agentID)
	if !core.IsValidULID(taskID) {
		return false, fmt.Errorf("task ID must be a valid ULID")
	}
	if !core.IsValidULID(agentID) {
		return false, fmt.Errorf("agent ID must be a valid ULID")
	}

	released, err := s.tasksService.ReleaseTask(ctx, taskID, agentID)
	if err != nil {
		return false, fmt.Errorf("failed to release task: %w", err)
	}
	if released {
		s.activityService.Record(ctx, "task.released",
			fmt.Sprintf("Task %s released back to the queue", taskID), &agentID, &taskID)
		s.maybeIdleAgent(ctx, agentID)
	}

	log.Printf("📋 Completed successfully - task %s release (applied: %t)", taskID, released)
	return released, nil
}

// CompleteTask moves a task to review on behalf of its assignee. False
// means the agent did not hold the task.
func (s *PickupService) CompleteTask(
	ctx context.Context,
	taskID, agentID, resultSummary string,
) (bool, error) {
	log.Printf("📋 Starting to complete task %s for agent %s", taskID, agentID)
	if !core.IsValidULID(taskID) {
		return false, fmt.Errorf("task ID must be a valid ULID")
	}
	if !core.IsValidULID(agentID) {
		return false, fmt.Errorf("agent ID must be a valid ULID")
	}

	updated, err := s.tasksService.UpdateTaskStatusByAssignee(ctx, taskID, agentID, models.TaskStatusReview)
	if err != nil {
		return false, fmt.Errorf("failed to complete task: %w", err)
	}
	if !updated {
		return false, nil
	}

	s.activityService.Record(ctx, "task.completed",
		fmt.Sprintf("Task %s moved to review", taskID), &agentID, &taskID)

	maybeTask, err := s.tasksService.GetTaskByID(ctx, taskID)
	if err == nil {
		if task, ok := maybeTask.Get(); ok {
			agentName := agentID
			if maybeAgent, aerr := s.agentsService.GetAgentByID(ctx, agentID); aerr == nil {
				if agent, ok := maybeAgent.Get(); ok {
					agentName = agent.Name
				}
			}
			s.notificationsService.NotifyTaskCompleted(ctx, task, agentName, resultSummary)
		}
	}

	s.maybeIdleAgent(ctx, agentID)

	log.Printf("📋 Completed successfully - task %s moved to review by %s", taskID, agentID)
	return true, nil
}

// GetAssignedTasks lists the agent's current working set.
func (s *PickupService) GetAssignedTasks(ctx context.Context, agentID string) ([]*models.Task, error) {
	if !core.IsValidULID(agentID) {
		return nil, fmt.Errorf("agent ID must be a valid ULID")
	}
	return s.tasksService.GetTasksByAssignee(ctx, agentID, activeStatuses)
}

// GetWorkStatus reports the agent's working set, how many tasks are
// waiting in the pickup queue, and whether the agent may claim another.
func (s *PickupService) GetWorkStatus(ctx context.Context, agentID string) (*models.AgentWorkStatus, error) {
	if !core.IsValidULID(agentID) {
		return nil, fmt.Errorf("agent ID must be a valid ULID")
	}

	tasks, err := s.tasksService.GetTasksByAssignee(ctx, agentID, activeStatuses)
	if err != nil {
		return nil, fmt.Errorf("failed to get assigned tasks: %w", err)
	}
	available, err := s.tasksService.CountPickupableTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count pickupable tasks: %w", err)
	}
	activeCount, err := s.tasksService.CountActiveTasksForAgent(ctx, agentID, activeStatuses)
	if err != nil {
		return nil, fmt.Errorf("failed to count active tasks: %w", err)
	}

	return &models.AgentWorkStatus{
		Tasks:          tasks,
		AvailableTasks: available,
		CanClaim:       available > 0 && activeCount < s.maxClaimedTasks,
	}, nil
}

// maybeIdleAgent flips a busy agent back to online when it holds no more
// in-progress work. Best effort, a lost guard just means a fresher
// signal already landed.
func (s *PickupService) maybeIdleAgent(ctx context.Context, agentID string) {
	activeCount, err := s.tasksService.CountActiveTasksForAgent(ctx, agentID,
		[]models.TaskStatus{models.TaskStatusInProgress})
	if err != nil {
		log.Printf("⚠️ Failed to count remaining tasks for agent %s: %v", agentID, err)
		return
	}
	if activeCount > 0 {
		return
	}

	if _, err := s.agentsService.TransitionAgentStatus(
		ctx, agentID, models.AgentStatusBusy, models.AgentStatusOnline, nil); err != nil {
		log.Printf("⚠️ Failed to idle agent %s: %v", agentID, err)
	}
}

func (s *PickupService) dependenciesSatisfied(ctx context.Context, taskID string) (bool, error) {
	depIDs, err := s.taskDepsService.GetDependencyIDs(ctx, taskID)
	if err != nil {
		return false, fmt.Errorf("failed to get dependencies: %w", err)
	}
	if len(depIDs) == 0 {
		return true, nil
	}

	statuses, err := s.taskDepsService.GetStatusesByTaskIDs(ctx, depIDs)
	if err != nil {
		return false, fmt.Errorf("failed to get dependency statuses: %w", err)
	}

	for _, depID := range depIDs {
		status, exists := statuses[depID]
		if !exists {
			continue
		}
		if status != models.TaskStatusDone {
			return false, nil
		}
	}

	return true, nil
}
