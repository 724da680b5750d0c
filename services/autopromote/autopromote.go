package autopromote

import (
	"context"
	"fmt"
	"log"
	"time"

	"mcbackend/models"
	"mcbackend/services"
)

type ApprovalsRepository interface {
	HasPendingApprovals(ctx context.Context, taskID string) (bool, error)
}

// AutoPromoteService moves tasks out of review automatically once they
// have sat there long enough with nothing blocking them. Boards opt in
// by setting auto_promote_review_hours above zero.
type AutoPromoteService struct {
	tasksService    services.TasksService
	boardsService   services.BoardsService
	approvalsRepo   ApprovalsRepository
	activityService services.ActivityService
}

func NewAutoPromoteService(
	tasksService services.TasksService,
	boardsService services.BoardsService,
	approvalsRepo ApprovalsRepository,
	activityService services.ActivityService,
) *AutoPromoteService {
	return &AutoPromoteService{
		tasksService:    tasksService,
		boardsService:   boardsService,
		approvalsRepo:   approvalsRepo,
		activityService: activityService,
	}
}

// PromoteEligibleTasks runs one promotion sweep and returns how many
// tasks moved to done. Per-task failures are logged and skipped so one
// bad row cannot stall the sweep.
func (s *AutoPromoteService) PromoteEligibleTasks(ctx context.Context, now time.Time) (int, error) {
	log.Printf("📋 Starting auto-promotion sweep")

	tasks, err := s.tasksService.GetTasksInReview(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get tasks in review: %w", err)
	}

	// Board settings are stable within one sweep
	boardCache := make(map[string]*models.Board)
	promoted := 0

	for _, task := range tasks {
		board, ok := boardCache[task.BoardID]
		if !ok {
			maybeBoard, err := s.boardsService.GetBoardByID(ctx, task.BoardID)
			if err != nil {
				log.Printf("⚠️ Failed to load board %s for task %s: %v", task.BoardID, task.ID, err)
				continue
			}
			board, ok = maybeBoard.Get()
			if !ok {
				continue
			}
			boardCache[task.BoardID] = board
		}

		if board.AutoPromoteReviewHours <= 0 {
			continue
		}

		// updated_at is the closest stored proxy for when the task
		// entered review
		threshold := time.Duration(board.AutoPromoteReviewHours) * time.Hour
		if now.Sub(task.UpdatedAt) < threshold {
			continue
		}

		pending, err := s.approvalsRepo.HasPendingApprovals(ctx, task.ID)
		if err != nil {
			log.Printf("⚠️ Failed to check approvals for task %s: %v", task.ID, err)
			continue
		}
		if pending {
			continue
		}

		applied, err := s.tasksService.PromoteTaskFromReview(ctx, task.ID)
		if err != nil {
			log.Printf("❌ Failed to promote task %s: %v", task.ID, err)
			continue
		}
		if !applied {
			continue
		}

		promoted++
		s.activityService.Record(ctx, "task.auto_promoted",
			fmt.Sprintf("Task %q auto-promoted to done after %dh in review", task.Title, board.AutoPromoteReviewHours),
			task.AssignedAgentID, &task.ID)
	}

	log.Printf("📋 Completed successfully - auto-promotion sweep promoted %d of %d review tasks", promoted, len(tasks))
	return promoted, nil
}
