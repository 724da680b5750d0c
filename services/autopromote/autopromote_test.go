package autopromote

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
	"mcbackend/services/boards"
	"mcbackend/services/tasks"
	"mcbackend/testutils"
)

type promoteFixture struct {
	tasksMock     *tasks.MockTasksService
	boardsMock    *boards.MockBoardsService
	approvalsMock *MockApprovalsRepository
	activityMock  *activity.MockActivityService
	service       *AutoPromoteService
}

func newPromoteFixture() *promoteFixture {
	f := &promoteFixture{
		tasksMock:     new(tasks.MockTasksService),
		boardsMock:    new(boards.MockBoardsService),
		approvalsMock: new(MockApprovalsRepository),
		activityMock:  new(activity.MockActivityService),
	}
	f.activityMock.On("Record",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return().Maybe()
	f.service = NewAutoPromoteService(f.tasksMock, f.boardsMock, f.approvalsMock, f.activityMock)
	return f
}

func reviewTask(board *models.Board, inReviewFor time.Duration, now time.Time) *models.Task {
	task := testutils.TestTask(board.ID, models.TaskPriorityMedium)
	agentID := core.NewID("ag")
	task.Status = models.TaskStatusReview
	task.AssignedAgentID = &agentID
	task.UpdatedAt = now.Add(-inReviewFor)
	return task
}

func TestPromoteEligibleTasks(t *testing.T) {
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	t.Run("promotes tasks past the board threshold", func(t *testing.T) {
		f := newPromoteFixture()
		board := testutils.TestBoard()
		board.AutoPromoteReviewHours = 24
		task := reviewTask(board, 25*time.Hour, now)

		f.tasksMock.On("GetTasksInReview", mock.Anything).Return([]*models.Task{task}, nil)
		f.boardsMock.On("GetBoardByID", mock.Anything, board.ID).Return(mo.Some(board), nil)
		f.approvalsMock.On("HasPendingApprovals", mock.Anything, task.ID).Return(false, nil)
		f.tasksMock.On("PromoteTaskFromReview", mock.Anything, task.ID).Return(true, nil)

		promoted, err := f.service.PromoteEligibleTasks(context.Background(), now)
		require.NoError(t, err)
		assert.Equal(t, 1, promoted)
	})

	t.Run("skips tasks still inside the window", func(t *testing.T) {
		f := newPromoteFixture()
		board := testutils.TestBoard()
		board.AutoPromoteReviewHours = 24
		task := reviewTask(board, 2*time.Hour, now)

		f.tasksMock.On("GetTasksInReview", mock.Anything).Return([]*models.Task{task}, nil)
		f.boardsMock.On("GetBoardByID", mock.Anything, board.ID).Return(mo.Some(board), nil)

		promoted, err := f.service.PromoteEligibleTasks(context.Background(), now)
		require.NoError(t, err)
		assert.Equal(t, 0, promoted)
		f.tasksMock.AssertNotCalled(t, "PromoteTaskFromReview", mock.Anything, mock.Anything)
	})

	t.Run("pending approvals block promotion", func(t *testing.T) {
		f := newPromoteFixture()
		board := testutils.TestBoard()
		board.AutoPromoteReviewHours = 24
		task := reviewTask(board, 48*time.Hour, now)

		f.tasksMock.On("GetTasksInReview", mock.Anything).Return([]*models.Task{task}, nil)
		f.boardsMock.On("GetBoardByID", mock.Anything, board.ID).Return(mo.Some(board), nil)
		f.approvalsMock.On("HasPendingApprovals", mock.Anything, task.ID).Return(true, nil)

		promoted, err := f.service.PromoteEligibleTasks(context.Background(), now)
		require.NoError(t, err)
		assert.Equal(t, 0, promoted)
		f.tasksMock.AssertNotCalled(t, "PromoteTaskFromReview", mock.Anything, mock.Anything)
	})

	t.Run("boards with auto-promotion disabled are ignored", func(t *testing.T) {
		f := newPromoteFixture()
		board := testutils.TestBoard()
		task := reviewTask(board, 200*time.Hour, now)

		f.tasksMock.On("GetTasksInReview", mock.Anything).Return([]*models.Task{task}, nil)
		f.boardsMock.On("GetBoardByID", mock.Anything, board.ID).Return(mo.Some(board), nil)

		promoted, err := f.service.PromoteEligibleTasks(context.Background(), now)
		require.NoError(t, err)
		assert.Equal(t, 0, promoted)
		f.approvalsMock.AssertNotCalled(t, "HasPendingApprovals", mock.Anything, mock.Anything)
	})

	t.Run("one failing task does not stall the sweep", func(t *testing.T) {
		f := newPromoteFixture()
		board := testutils.TestBoard()
		board.AutoPromoteReviewHours = 24
		failing := reviewTask(board, 48*time.Hour, now)
		healthy := reviewTask(board, 48*time.Hour, now)

		f.tasksMock.On("GetTasksInReview", mock.Anything).
			Return([]*models.Task{failing, healthy}, nil)
		f.boardsMock.On("GetBoardByID", mock.Anything, board.ID).Return(mo.Some(board), nil)
		f.approvalsMock.On("HasPendingApprovals", mock.Anything, failing.ID).
			Return(false, assert.AnError)
		f.approvalsMock.On("HasPendingApprovals", mock.Anything, healthy.ID).Return(false, nil)
		f.tasksMock.On("PromoteTaskFromReview", mock.Anything, healthy.ID).Return(true, nil)

		promoted, err := f.service.PromoteEligibleTasks(context.Background(), now)
		require.NoError(t, err)
		assert.Equal(t, 1, promoted)
	})
}
