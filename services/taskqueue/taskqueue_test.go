package taskqueue

import (
	"context"
	"testing"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"mcbackend/core"
	"mcbackend/models"
	"mcbackend/services/activity"
	"mcbackend/services/agents"
	"mcbackend/services/boards"
	"mcbackend/services/notifications"
	"mcbackend/services/taskdeps"
	"mcbackend/services/tasks"
	"mcbackend/services/txmanager"
	"mcbackend/testutils"
)

type queueFixture struct {
	tasksMock    *tasks.MockTasksService
	agentsMock   *agents.MockAgentsService
	boardsMock   *boards.MockBoardsService
	taskDepsMock *taskdeps.MockTaskDependenciesService
	activityMock *activity.MockActivityService
	notifMock    *notifications.MockNotificationsService
	txMock       *txmanager.MockTransactionManager
	service      *TaskQueueService
}

func newQueueFixture() *queueFixture {
	f := &queueFixture{
		tasksMock:    new(tasks.MockTasksService),
		agentsMock:   new(agents.MockAgentsService),
		boardsMock:   new(boards.MockBoardsService),
		taskDepsMock: new(taskdeps.MockTaskDependenciesService),
		activityMock: new(activity.MockActivityService),
		notifMock:    new(notifications.MockNotificationsService),
		txMock:       new(txmanager.MockTransactionManager),
	}
	f.service = NewTaskQueueService(
		f.tasksMock, f.agentsMock, f.boardsMock, f.taskDepsMock,
		f.activityMock, f.notifMock, f.txMock)
	return f
}

func TestFindBestAgentForTask(t *testing.T) {
	boardID := core.NewID("bd")

	entryFor := func(task *models.Task, tagIDs ...string) *models.TaskQueueEntry {
		return &models.TaskQueueEntry{
			TaskID:    task.ID,
			BoardID:   task.BoardID,
			Priority:  task.Priority,
			Title:     task.Title,
			TagIDs:    tagIDs,
			CreatedAt: task.CreatedAt,
		}
	}

	t.Run("prefers the agent with more matching skills", func(t *testing.T) {
		f := newQueueFixture()
		task := testutils.TestTask(boardID, models.TaskPriorityHigh)
		generalist := testutils.TestAgent(boardID, "go")
		specialist := testutils.TestAgent(boardID, "go", "sql")

		f.taskDepsMock.On("GetDependencyIDs", mock.Anything, task.ID).Return([]string{}, nil)
		f.agentsMock.On("GetAvailableAgents", mock.Anything, boardID).
			Return([]*models.Agent{generalist, specialist}, nil)
		f.tasksMock.On("CountActiveTasksForAgent", mock.Anything, generalist.ID, activeStatuses).Return(0, nil)
		f.tasksMock.On("CountActiveTasksForAgent", mock.Anything, specialist.ID, activeStatuses).Return(0, nil)

		maybeMatch, err := f.service.FindBestAgentForTask(context.Background(), entryFor(task, "go", "sql"))
		require.NoError(t, err)
		match, ok := maybeMatch.Get()
		require.True(t, ok)
		assert.Equal(t, specialist.ID, match.AgentID)
		assert.Equal(t, 95.0, match.MatchScore)
		assert.ElementsMatch(t, []string{"go", "sql"}, match.MatchedSkills)
	})

	t.Run("less loaded agent wins a tie", func(t *testing.T) {
		f := newQueueFixture()
		task := testutils.TestTask(boardID, models.TaskPriorityMedium)
		busy := testutils.TestAgent(boardID)
		free := testutils.TestAgent(boardID)

		f.taskDepsMock.On("GetDependencyIDs", mock.Anything, task.ID).Return([]string{}, nil)
		f.agentsMock.On("GetAvailableAgents", mock.Anything, boardID).
			Return([]*models.Agent{busy, free}, nil)
		f.tasksMock.On("CountActiveTasksForAgent", mock.Anything, busy.ID, activeStatuses).Return(1, nil)
		f.tasksMock.On("CountActiveTasksForAgent", mock.Anything, free.ID, activeStatuses).Return(0, nil)

		maybeMatch, err := f.service.FindBestAgentForTask(context.Background(), entryFor(task))
		require.NoError(t, err)
		match, ok := maybeMatch.Get()
		require.True(t, ok)
		assert.Equal(t, free.ID, match.AgentID)
	})

	t.Run("dependency-blocked task matches nobody", func(t *testing.T) {
		f := newQueueFixture()
		task := testutils.TestTask(boardID, models.TaskPriorityUrgent)
		depID := core.NewID("tk")

		f.taskDepsMock.On("GetDependencyIDs", mock.Anything, task.ID).Return([]string{depID}, nil)
		f.taskDepsMock.On("GetStatusesByTaskIDs", mock.Anything, []string{depID}).
			Return(map[string]models.TaskStatus{depID: models.TaskStatusInProgress}, nil)

		maybeMatch, err := f.service.FindBestAgentForTask(context.Background(), entryFor(task))
		require.NoError(t, err)
		assert.True(t, maybeMatch.IsAbsent())
		f.agentsMock.AssertNotCalled(t, "GetAvailableAgents", mock.Anything, mock.Anything)
	})

	t.Run("dependency on a deleted task does not block", func(t *testing.T) {
		f := newQueueFixture()
		task := testutils.TestTask(boardID, models.TaskPriorityMedium)
		agent := testutils.TestAgent(boardID)
		depID := core.NewID("tk")

		f.taskDepsMock.On("GetDependencyIDs", mock.Anything, task.ID).Return([]string{depID}, nil)
		f.taskDepsMock.On("GetStatusesByTaskIDs", mock.Anything, []string{depID}).
			Return(map[string]models.TaskStatus{}, nil)
		f.agentsMock.On("GetAvailableAgents", mock.Anything, boardID).Return([]*models.Agent{agent}, nil)
		f.tasksMock.On("CountActiveTasksForAgent", mock.Anything, agent.ID, activeStatuses).Return(0, nil)

		maybeMatch, err := f.service.FindBestAgentForTask(context.Background(), entryFor(task))
		require.NoError(t, err)
		assert.True(t, maybeMatch.IsPresent())
	})

	t.Run("heavily loaded agent stays eligible for urgent work", func(t *testing.T) {
		f := newQueueFixture()
		task := testutils.TestTask(boardID, models.TaskPriorityUrgent)
		saturated := testutils.TestAgent(boardID)

		f.taskDepsMock.On("GetDependencyIDs", mock.Anything, task.ID).Return([]string{}, nil)
		f.agentsMock.On("GetAvailableAgents", mock.Anything, boardID).
			Return([]*models.Agent{saturated}, nil)
		f.tasksMock.On("CountActiveTasksForAgent", mock.Anything, saturated.ID, activeStatuses).Return(3, nil)

		// Only a non-positive score disqualifies, load alone does not
		maybeMatch, err := f.service.FindBestAgentForTask(context.Background(), entryFor(task))
		require.NoError(t, err)
		match, ok := maybeMatch.Get()
		require.True(t, ok)
		assert.Equal(t, saturated.ID, match.AgentID)
		assert.Equal(t, 55.0, match.MatchScore)
	})

	t.Run("overloaded low-priority match is ineligible", func(t *testing.T) {
		f := newQueueFixture()
		task := testutils.TestTask(boardID, models.TaskPriorityLow)
		loaded := testutils.TestAgent(boardID)

		f.taskDepsMock.On("GetDependencyIDs", mock.Anything, task.ID).Return([]string{}, nil)
		f.agentsMock.On("GetAvailableAgents", mock.Anything, boardID).
			Return([]*models.Agent{loaded}, nil)
		f.tasksMock.On("CountActiveTasksForAgent", mock.Anything, loaded.ID, activeStatuses).Return(2, nil)

		maybeMatch, err := f.service.FindBestAgentForTask(context.Background(), entryFor(task))
		require.NoError(t, err)
		assert.True(t, maybeMatch.IsAbsent())
	})
}

func TestAssignTaskToAgent(t *testing.T) {
	boardID := core.NewID("bd")

	t.Run("successful claim assigns, flips the agent busy, and notifies", func(t *testing.T) {
		f := newQueueFixture()
		task := testutils.TestTask(boardID, models.TaskPriorityHigh)
		agent := testutils.TestAgent(boardID)

		f.txMock.On("WithTransaction", mock.Anything, mock.Anything).Return(nil)
		f.agentsMock.On("GetAgentByID", mock.Anything, agent.ID).Return(mo.Some(agent), nil)
		f.taskDepsMock.On("GetDependencyIDs", mock.Anything, task.ID).Return([]string{}, nil)
		f.tasksMock.On("AssignTask", mock.Anything, task.ID, agent.ID, models.TaskStatusInbox, true).
			Return(true, nil)
		f.agentsMock.On("TransitionAgentStatus", mock.Anything, agent.ID,
			models.AgentStatusOnline, models.AgentStatusBusy, (*time.Time)(nil)).Return(true, nil)
		f.tasksMock.On("GetTaskByID", mock.Anything, task.ID).Return(mo.Some(task), nil)
		f.activityMock.On("Record", mock.Anything, "task.assigned", mock.Anything, &agent.ID, &task.ID).Return()
		f.notifMock.On("NotifyTaskAssigned", mock.Anything, task, agent.Name, true).Return()

		maybeTask, err := f.service.AssignTaskToAgent(context.Background(), task.ID, agent.ID, true)
		require.NoError(t, err)
		assert.True(t, maybeTask.IsPresent())
		f.tasksMock.AssertExpectations(t)
		f.notifMock.AssertExpectations(t)
	})

	t.Run("lost claim race returns none without notifying", func(t *testing.T) {
		f := newQueueFixture()
		task := testutils.TestTask(boardID, models.TaskPriorityHigh)
		agent := testutils.TestAgent(boardID)

		f.txMock.On("WithTransaction", mock.Anything, mock.Anything).Return(nil)
		f.agentsMock.On("GetAgentByID", mock.Anything, agent.ID).Return(mo.Some(agent), nil)
		f.taskDepsMock.On("GetDependencyIDs", mock.Anything, task.ID).Return([]string{}, nil)
		f.tasksMock.On("AssignTask", mock.Anything, task.ID, agent.ID, models.TaskStatusInbox, true).
			Return(false, nil)

		maybeTask, err := f.service.AssignTaskToAgent(context.Background(), task.ID, agent.ID, true)
		require.NoError(t, err)
		assert.True(t, maybeTask.IsAbsent())
		f.notifMock.AssertNotCalled(t, "NotifyTaskAssigned",
			mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		f.agentsMock.AssertNotCalled(t, "TransitionAgentStatus",
			mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("dependency re-check inside the transaction blocks the claim", func(t *testing.T) {
		f := newQueueFixture()
		task := testutils.TestTask(boardID, models.TaskPriorityHigh)
		agent := testutils.TestAgent(boardID)
		depID := core.NewID("tk")

		f.txMock.On("WithTransaction", mock.Anything, mock.Anything).Return(nil)
		f.agentsMock.On("GetAgentByID", mock.Anything, agent.ID).Return(mo.Some(agent), nil)
		f.taskDepsMock.On("GetDependencyIDs", mock.Anything, task.ID).Return([]string{depID}, nil)
		f.taskDepsMock.On("GetStatusesByTaskIDs", mock.Anything, []string{depID}).
			Return(map[string]models.TaskStatus{depID: models.TaskStatusReview}, nil)

		maybeTask, err := f.service.AssignTaskToAgent(context.Background(), task.ID, agent.ID, true)
		require.NoError(t, err)
		assert.True(t, maybeTask.IsAbsent())
		f.tasksMock.AssertNotCalled(t, "AssignTask",
			mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestAutoAssignSingleTask(t *testing.T) {
	t.Run("matches and claims a specific inbox task", func(t *testing.T) {
		f := newQueueFixture()
		board := testutils.TestBoard()
		task := testutils.TestTask(board.ID, models.TaskPriorityHigh)
		agent := testutils.TestAgent(board.ID)

		f.tasksMock.On("GetTaskByID", mock.Anything, task.ID).Return(mo.Some(task), nil)
		f.boardsMock.On("GetBoardByID", mock.Anything, board.ID).Return(mo.Some(board), nil)
		f.tasksMock.On("GetTagIDsForTasks", mock.Anything, []string{task.ID}).
			Return(map[string][]string{}, nil)
		f.taskDepsMock.On("GetDependencyIDs", mock.Anything, task.ID).Return([]string{}, nil)
		f.agentsMock.On("GetAvailableAgents", mock.Anything, board.ID).
			Return([]*models.Agent{agent}, nil)
		f.tasksMock.On("CountActiveTasksForAgent", mock.Anything, agent.ID, activeStatuses).Return(0, nil)

		f.txMock.On("WithTransaction", mock.Anything, mock.Anything).Return(nil)
		f.agentsMock.On("GetAgentByID", mock.Anything, agent.ID).Return(mo.Some(agent), nil)
		f.tasksMock.On("AssignTask", mock.Anything, task.ID, agent.ID, models.TaskStatusInbox, true).
			Return(true, nil)
		f.agentsMock.On("TransitionAgentStatus", mock.Anything, agent.ID,
			models.AgentStatusOnline, models.AgentStatusBusy, (*time.Time)(nil)).Return(true, nil)
		f.activityMock.On("Record", mock.Anything, "task.assigned", mock.Anything, &agent.ID, &task.ID).Return()
		f.notifMock.On("NotifyTaskAssigned", mock.Anything, task, agent.Name, true).Return()

		maybeTask, err := f.service.AutoAssignSingleTask(context.Background(), task.ID)
		require.NoError(t, err)
		assert.True(t, maybeTask.IsPresent())
	})

	t.Run("board with max_agents zero disables auto-assignment", func(t *testing.T) {
		f := newQueueFixture()
		board := testutils.TestBoard()
		board.MaxAgents = 0
		task := testutils.TestTask(board.ID, models.TaskPriorityHigh)

		f.tasksMock.On("GetTaskByID", mock.Anything, task.ID).Return(mo.Some(task), nil)
		f.boardsMock.On("GetBoardByID", mock.Anything, board.ID).Return(mo.Some(board), nil)

		maybeTask, err := f.service.AutoAssignSingleTask(context.Background(), task.ID)
		require.NoError(t, err)
		assert.True(t, maybeTask.IsAbsent())
		f.agentsMock.AssertNotCalled(t, "GetAvailableAgents", mock.Anything, mock.Anything)
	})

	t.Run("already claimed task is not reassigned", func(t *testing.T) {
		f := newQueueFixture()
		board := testutils.TestBoard()
		task := testutils.TestTask(board.ID, models.TaskPriorityHigh)
		agentID := core.NewID("ag")
		task.Status = models.TaskStatusInProgress
		task.AssignedAgentID = &agentID

		f.tasksMock.On("GetTaskByID", mock.Anything, task.ID).Return(mo.Some(task), nil)

		maybeTask, err := f.service.AutoAssignSingleTask(context.Background(), task.ID)
		require.NoError(t, err)
		assert.True(t, maybeTask.IsAbsent())
		f.boardsMock.AssertNotCalled(t, "GetBoardByID", mock.Anything, mock.Anything)
	})

	t.Run("unknown task is an error", func(t *testing.T) {
		f := newQueueFixture()
		taskID := core.NewID("tk")

		f.tasksMock.On("GetTaskByID", mock.Anything, taskID).Return(mo.None[*models.Task](), nil)

		_, err := f.service.AutoAssignSingleTask(context.Background(), taskID)
		require.Error(t, err)
		assert.True(t, core.IsNotFoundError(err))
	})
}

func TestProcessQueue(t *testing.T) {
	boardID := core.NewID("bd")

	t.Run("assigns what it can and counts the rest", func(t *testing.T) {
		f := newQueueFixture()
		assignable := testutils.TestTask(boardID, models.TaskPriorityUrgent)
		unmatchable := testutils.TestTask(boardID, models.TaskPriorityLow)
		agent := testutils.TestAgent(boardID)

		f.tasksMock.On("GetPendingTasks", mock.Anything, (*string)(nil), 50).
			Return([]*models.Task{assignable, unmatchable}, nil)
		f.tasksMock.On("GetTagIDsForTasks", mock.Anything, []string{assignable.ID, unmatchable.ID}).
			Return(map[string][]string{}, nil)

		f.taskDepsMock.On("GetDependencyIDs", mock.Anything, assignable.ID).Return([]string{}, nil)
		f.taskDepsMock.On("GetDependencyIDs", mock.Anything, unmatchable.ID).Return([]string{}, nil)

		// First task sees a free agent, second sees nobody
		f.agentsMock.On("GetAvailableAgents", mock.Anything, boardID).
			Return([]*models.Agent{agent}, nil).Once()
		f.agentsMock.On("GetAvailableAgents", mock.Anything, boardID).
			Return([]*models.Agent{}, nil).Once()
		f.tasksMock.On("CountActiveTasksForAgent", mock.Anything, agent.ID, activeStatuses).Return(0, nil)

		f.txMock.On("WithTransaction", mock.Anything, mock.Anything).Return(nil)
		f.agentsMock.On("GetAgentByID", mock.Anything, agent.ID).Return(mo.Some(agent), nil)
		f.tasksMock.On("AssignTask", mock.Anything, assignable.ID, agent.ID, models.TaskStatusInbox, true).
			Return(true, nil)
		f.agentsMock.On("TransitionAgentStatus", mock.Anything, agent.ID,
			models.AgentStatusOnline, models.AgentStatusBusy, (*time.Time)(nil)).Return(true, nil)
		f.tasksMock.On("GetTaskByID", mock.Anything, assignable.ID).Return(mo.Some(assignable), nil)
		f.activityMock.On("Record", mock.Anything, "task.assigned", mock.Anything, &agent.ID, &assignable.ID).Return()
		f.notifMock.On("NotifyTaskAssigned", mock.Anything, assignable, agent.Name, true).Return()

		result, err := f.service.ProcessQueue(context.Background(), nil, 50)
		require.NoError(t, err)
		assert.Equal(t, 2, result.Processed)
		assert.Equal(t, 1, result.Assigned)
		assert.Equal(t, 1, result.Skipped)
		assert.Equal(t, 0, result.Errored)
	})

	t.Run("empty queue is a no-op", func(t *testing.T) {
		f := newQueueFixture()
		f.tasksMock.On("GetPendingTasks", mock.Anything, (*string)(nil), 50).
			Return([]*models.Task{}, nil)

		result, err := f.service.ProcessQueue(context.Background(), nil, 50)
		require.NoError(t, err)
		assert.Equal(t, 0, result.Processed)
	})
}
