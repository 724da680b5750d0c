package services

import (
	"context"
	"time"

	"github.com/samber/mo"

	"mcbackend/models"
)

// AgentsService defines the interface for agent-related operations
type AgentsService interface {
	GetAgentByID(ctx context.Context, id string) (mo.Option[*models.Agent], error)
	GetAgentBySessionKey(ctx context.Context, sessionKey string) (mo.Option[*models.Agent], error)
	GetAllAgents(ctx context.Context) ([]*models.Agent, error)
	GetAgentsByGatewayID(ctx context.Context, gatewayID string) ([]*models.Agent, error)
	GetAvailableAgents(ctx context.Context, boardID string) ([]*models.Agent, error)
	// TransitionAgentStatus applies a conditional status change: the
	// write only lands if the agent is still in fromStatus. Returns
	// false when the guard did not match.
	TransitionAgentStatus(
		ctx context.Context,
		id string,
		fromStatus, toStatus models.AgentStatus,
		lastSeenAt *time.Time,
	) (bool, error)
	TouchAgentLastSeen(ctx context.Context, id string, seenAt time.Time) error
	UpdateAgentLastHeartbeatAt(ctx context.Context, id string, heartbeatAt time.Time) error
}

// GatewaysService defines the interface for gateway lookups
type GatewaysService interface {
	GetGatewayByID(ctx context.Context, id string) (mo.Option[*models.Gateway], error)
	GetAllGateways(ctx context.Context) ([]*models.Gateway, error)
}

// TasksService defines the interface for task store operations
type TasksService interface {
	GetTaskByID(ctx context.Context, id string) (mo.Option[*models.Task], error)
	GetPendingTasks(ctx context.Context, boardID *string, limit int) ([]*models.Task, error)
	GetTagIDsForTasks(ctx context.Context, taskIDs []string) (map[string][]string, error)
	// AssignTask is the atomic claim - false means the task was no
	// longer available (status moved on or somebody else claimed it).
	AssignTask(
		ctx context.Context,
		taskID, agentID string,
		fromStatus models.TaskStatus,
		autoClaimed bool,
	) (bool, error)
	ReleaseTask(ctx context.Context, taskID, agentID string) (bool, error)
	UpdateTaskStatusByAssignee(
		ctx context.Context,
		taskID, agentID string,
		toStatus models.TaskStatus,
	) (bool, error)
	PromoteTaskFromReview(ctx context.Context, taskID string) (bool, error)
	GetTasksInReview(ctx context.Context) ([]*models.Task, error)
	CountActiveTasksForAgent(ctx context.Context, agentID string, statuses []models.TaskStatus) (int, error)
	GetTasksByAssignee(ctx context.Context, agentID string, statuses []models.TaskStatus) ([]*models.Task, error)
	GetNextPickupTask(ctx context.Context) (mo.Option[*models.Task], error)
	CountPickupableTasks(ctx context.Context) (int, error)
}

// BoardsService defines the interface for board lookups
type BoardsService interface {
	GetBoardByID(ctx context.Context, id string) (mo.Option[*models.Board], error)
}

// TaskDependenciesService reports dependency edges and the status of
// dependency tasks, used to gate assignment.
type TaskDependenciesService interface {
	GetDependencyIDs(ctx context.Context, taskID string) ([]string, error)
	GetStatusesByTaskIDs(ctx context.Context, taskIDs []string) (map[string]models.TaskStatus, error)
}

// ActivityService is the fire-and-forget activity sink. Record must
// never block or fail the caller's operation.
type ActivityService interface {
	Record(ctx context.Context, eventType, message string, agentID, taskID *string)
}

// NotificationsService delivers best-effort chat notifications.
// Failures are logged and swallowed, never propagated.
type NotificationsService interface {
	NotifyTaskAssigned(ctx context.Context, task *models.Task, agentName string, autoClaimed bool)
	NotifyTaskCompleted(ctx context.Context, task *models.Task, agentName, resultSummary string)
}

// LivenessService merges asynchronous status signals into one
// authoritative status per agent.
type LivenessService interface {
	// ApplyLifecycleEvent returns true when the event was folded into a
	// known agent's state, false when it was dropped or skipped.
	ApplyLifecycleEvent(
		ctx context.Context,
		sessionKey string,
		kind models.LifecycleKind,
		observedAt time.Time,
	) (bool, error)
	ApplyPollSnapshot(
		ctx context.Context,
		agent *models.Agent,
		activeSessionKeys map[string]models.RemoteSession,
		now time.Time,
		offlineAfter time.Duration,
	) (bool, error)
	ReconcileAllByTimeout(ctx context.Context, now time.Time, offlineAfter time.Duration) (map[models.AgentStatus]int, error)
}

// TaskQueueService matches pending work to available agents and
// performs atomic claims.
type TaskQueueService interface {
	GetPendingEntries(ctx context.Context, boardID *string, limit int) ([]*models.TaskQueueEntry, error)
	FindBestAgentForTask(ctx context.Context, entry *models.TaskQueueEntry) (mo.Option[*models.AgentMatchResult], error)
	AssignTaskToAgent(ctx context.Context, taskID, agentID string, autoClaimed bool) (mo.Option[*models.Task], error)
	AutoAssignSingleTask(ctx context.Context, taskID string) (mo.Option[*models.Task], error)
	ProcessQueue(ctx context.Context, boardID *string, limit int) (*models.QueueProcessResult, error)
}

// TransactionManager defines the interface for executing work inside a
// database transaction
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(context.Context) error) error
}
