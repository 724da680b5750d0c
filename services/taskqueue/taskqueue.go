package taskqueue

import (
	"context"
	"fmt"
	"log"

	"github.com/samber/mo"

	"mcbackend/core"
	"mcbackend/models"
	"mcbackend/services"
)

// activeStatuses are the task statuses that count toward an agent's load.
var activeStatuses = []models.TaskStatus{models.TaskStatusInProgress, models.TaskStatusReview}

// TaskQueueService drains unassigned work to the best available agent.
// Assignment is decided by score but committed by a guarded write, so
// two concurrent passes can race safely: exactly one claim wins.
type TaskQueueService struct {
	tasksService         services.TasksService
	agentsService        services.AgentsService
	boardsService        services.BoardsService
	taskDepsService      services.TaskDependenciesService
	activityService      services.ActivityService
	notificationsService services.NotificationsService
	txManager            services.TransactionManager
}

func NewTaskQueueService(
	tasksService services.TasksService,
	agentsService services.AgentsService,
	boardsService services.BoardsService,
	taskDepsService services.TaskDependenciesService,
	activityService services.ActivityService,
	notificationsService services.NotificationsService,
	txManager services.TransactionManager,
) *TaskQueueService {
	return &TaskQueueService{
		tasksService:         tasksService,
		agentsService:        agentsService,
		boardsService:        boardsService,
		taskDepsService:      taskDepsService,
		activityService:      activityService,
		notificationsService: notificationsService,
		txManager:            txManager,
	}
}

// GetPendingEntries returns unassigned inbox tasks decorated with their
// tag sets, in scheduling order.
func (s *TaskQueueService) GetPendingEntries(
	ctx context.Context,
	boardID *string,
	limit int,
) ([]*models.TaskQueueEntry, error) {
	tasks, err := s.tasksService.GetPendingTasks(ctx, boardID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending tasks: %w", err)
	}
	if len(tasks) == 0 {
		return nil, nil
	}

	taskIDs := make([]string, 0, len(tasks))
	for _, t := range tasks {
		taskIDs = append(taskIDs, t.ID)
	}
	tagMap, err := s.tasksService.GetTagIDsForTasks(ctx, taskIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to get tags for pending tasks: %w", err)
	}

	entries := make([]*models.TaskQueueEntry, 0, len(tasks))
	for _, t := range tasks {
		entries = append(entries, &models.TaskQueueEntry{
			TaskID:    t.ID,
			BoardID:   t.BoardID,
			Priority:  t.Priority,
			Title:     t.Title,
			TagIDs:    tagMap[t.ID],
			CreatedAt: t.CreatedAt,
		})
	}

	return entries, nil
}

// FindBestAgentForTask scores every available agent on the task's board
// and returns the highest-scoring eligible one. Returns None when the
// task is dependency-blocked or no agent qualifies.
func (s *TaskQueueService) FindBestAgentForTask(
	ctx context.Context,
	entry *models.TaskQueueEntry,
) (mo.Option[*models.AgentMatchResult], error) {
	if entry == nil {
		return mo.None[*models.AgentMatchResult](), fmt.Errorf("entry cannot be nil")
	}

	satisfied, err := s.dependenciesSatisfied(ctx, entry.TaskID)
	if err != nil {
		return mo.None[*models.AgentMatchResult](), err
	}
	if !satisfied {
		log.Printf("📋 Task %s is dependency-blocked, skipping matching", entry.TaskID)
		return mo.None[*models.AgentMatchResult](), nil
	}

	agents, err := s.agentsService.GetAvailableAgents(ctx, entry.BoardID)
	if err != nil {
		return mo.None[*models.AgentMatchResult](), fmt.Errorf("failed to get available agents: %w", err)
	}
	if len(agents) == 0 {
		return mo.None[*models.AgentMatchResult](), nil
	}

	var best *models.AgentMatchResult
	for _, agent := range agents {
		activeCount, err := s.tasksService.CountActiveTasksForAgent(ctx, agent.ID, activeStatuses)
		if err != nil {
			return mo.None[*models.AgentMatchResult](), fmt.Errorf("failed to count load for agent %s: %w", agent.ID, err)
		}
		score, matched, availability := ComputeMatchScore(entry.Priority, entry.TagIDs, agent.SkillTags, activeCount)
		if score <= 0 {
			continue
		}

		candidate := &models.AgentMatchResult{
			AgentID:           agent.ID,
			AgentName:         agent.Name,
			MatchScore:        score,
			MatchedSkills:     matched,
			AvailabilityScore: availability,
		}
		if best == nil ||
			candidate.MatchScore > best.MatchScore ||
			(candidate.MatchScore == best.MatchScore && candidate.AvailabilityScore > best.AvailabilityScore) {
			best = candidate
		}
	}

	if best == nil {
		return mo.None[*models.AgentMatchResult](), nil
	}
	return mo.Some(best), nil
}

// AssignTaskToAgent commits one assignment. The dependency check reruns
// inside the transaction and the claim itself is a guarded write, so a
// task can never be handed out twice or assigned while blocked.
// Returns None when the claim lost the race or preconditions failed.
func (s *TaskQueueService) AssignTaskToAgent(
	ctx context.Context,
	taskID, agentID string,
	autoClaimed bool,
) (mo.Option[*models.Task], error) {
	log.Printf("📋 Starting to assign task %s to agent %s", taskID, agentID)
	if !core.IsValidULID(taskID) {
		return mo.None[*models.Task](), fmt.Errorf("task ID must be a valid ULID")
	}
	if !core.IsValidULID(agentID) {
		return mo.None[*models.Task](), fmt.Errorf("agent ID must be a valid ULID")
	}

	var claimedTask *models.Task
	var claimedAgent *models.Agent

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		maybeAgent, err := s.agentsService.GetAgentByID(txCtx, agentID)
		if err != nil {
			return err
		}
		agent, ok := maybeAgent.Get()
		if !ok {
			log.Printf("⚠️ Agent %s no longer exists, skipping assignment", agentID)
			return nil
		}

		satisfied, err := s.dependenciesSatisfied(txCtx, taskID)
		if err != nil {
			return err
		}
		if !satisfied {
			log.Printf("📋 Task %s became dependency-blocked, skipping assignment", taskID)
			return nil
		}

		claimed, err := s.tasksService.AssignTask(txCtx, taskID, agentID, models.TaskStatusInbox, autoClaimed)
		if err != nil {
			return err
		}
		if !claimed {
			log.Printf("📋 Task %s was no longer claimable, another claim won", taskID)
			return fmt.Errorf("task %s: %w", taskID, core.ErrPreconditionFailed)
		}

		// Losing this guard just means a liveness signal got there
		// first, the claim itself stands either way
		if _, err := s.agentsService.TransitionAgentStatus(
			txCtx, agentID, agent.Status, models.AgentStatusBusy, nil); err != nil {
			return err
		}

		maybeTask, err := s.tasksService.GetTaskByID(txCtx, taskID)
		if err != nil {
			return err
		}
		task, ok := maybeTask.Get()
		if !ok {
			return fmt.Errorf("task %s vanished after claim", taskID)
		}

		claimedTask = task
		claimedAgent = agent
		return nil
	})
	if err != nil {
		// A lost claim is an expected race outcome, not a failure
		if core.IsPreconditionFailedError(err) {
			return mo.None[*models.Task](), nil
		}
		return mo.None[*models.Task](), fmt.Errorf("failed to assign task: %w", err)
	}
	if claimedTask == nil {
		return mo.None[*models.Task](), nil
	}

	s.activityService.Record(ctx, "task.assigned",
		fmt.Sprintf("Task %q assigned to %s", claimedTask.Title, claimedAgent.Name),
		&claimedAgent.ID, &claimedTask.ID)
	s.notificationsService.NotifyTaskAssigned(ctx, claimedTask, claimedAgent.Name, autoClaimed)

	log.Printf("📋 Completed successfully - assigned task %s to agent %s", taskID, agentID)
	return mo.Some(claimedTask), nil
}

// AutoAssignSingleTask matches and assigns one specific task, used by
// the on-demand assignment endpoint.
func (s *TaskQueueService) AutoAssignSingleTask(ctx context.Context, taskID string) (mo.Option[*models.Task], error) {
	log.Printf("📋 Starting to auto-assign task: %s", taskID)
	if !core.IsValidULID(taskID) {
		return mo.None[*models.Task](), fmt.Errorf("task ID must be a valid ULID")
	}

	maybeTask, err := s.tasksService.GetTaskByID(ctx, taskID)
	if err != nil {
		return mo.None[*models.Task](), err
	}
	task, ok := maybeTask.Get()
	if !ok {
		return mo.None[*models.Task](), fmt.Errorf("task %s: %w", taskID, core.ErrNotFound)
	}
	if task.Status != models.TaskStatusInbox || task.AssignedAgentID != nil {
		log.Printf("📋 Task %s is not claimable (status: %s)", taskID, task.Status)
		return mo.None[*models.Task](), nil
	}

	maybeBoard, err := s.boardsService.GetBoardByID(ctx, task.BoardID)
	if err != nil {
		return mo.None[*models.Task](), err
	}
	board, ok := maybeBoard.Get()
	if !ok {
		return mo.None[*models.Task](), fmt.Errorf("board %s: %w", task.BoardID, core.ErrNotFound)
	}
	if board.MaxAgents <= 0 {
		log.Printf("📋 Board %s has auto-assignment disabled (max_agents=%d)", board.Name, board.MaxAgents)
		return mo.None[*models.Task](), nil
	}

	tagMap, err := s.tasksService.GetTagIDsForTasks(ctx, []string{task.ID})
	if err != nil {
		return mo.None[*models.Task](), err
	}

	entry := &models.TaskQueueEntry{
		TaskID:    task.ID,
		BoardID:   task.BoardID,
		Priority:  task.Priority,
		Title:     task.Title,
		TagIDs:    tagMap[task.ID],
		CreatedAt: task.CreatedAt,
	}

	maybeMatch, err := s.FindBestAgentForTask(ctx, entry)
	if err != nil {
		return mo.None[*models.Task](), err
	}
	match, ok := maybeMatch.Get()
	if !ok {
		log.Printf("📋 No eligible agent for task %s", taskID)
		return mo.None[*models.Task](), nil
	}

	return s.AssignTaskToAgent(ctx, taskID, match.AgentID, true)
}

// ProcessQueue runs one scheduling pass: match and assign each pending
// entry in priority order. Per-task failures are counted, not fatal, so
// one bad task cannot stall the queue.
func (s *TaskQueueService) ProcessQueue(
	ctx context.Context,
	boardID *string,
	limit int,
) (*models.QueueProcessResult, error) {
	log.Printf("📋 Starting queue processing pass")

	entries, err := s.GetPendingEntries(ctx, boardID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get queue entries: %w", err)
	}

	result := &models.QueueProcessResult{}
	for _, entry := range entries {
		result.Processed++

		maybeMatch, err := s.FindBestAgentForTask(ctx, entry)
		if err != nil {
			log.Printf("❌ Failed to match task %s: %v", entry.TaskID, err)
			result.Errored++
			continue
		}
		match, ok := maybeMatch.Get()
		if !ok {
			result.Skipped++
			continue
		}

		maybeTask, err := s.AssignTaskToAgent(ctx, entry.TaskID, match.AgentID, true)
		if err != nil {
			log.Printf("❌ Failed to assign task %s: %v", entry.TaskID, err)
			result.Errored++
			continue
		}
		if maybeTask.IsPresent() {
			result.Assigned++
		} else {
			result.Skipped++
		}
	}

	log.Printf("📋 Completed successfully - queue pass: %d processed, %d assigned, %d skipped, %d errored",
		result.Processed, result.Assigned, result.Skipped, result.Errored)
	return result, nil
}

// dependenciesSatisfied reports whether every dependency of the task is
// done. Dependencies pointing at deleted tasks do not block.
func (s *TaskQueueService) dependenciesSatisfied(ctx context.Context, taskID string) (bool, error) {
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
