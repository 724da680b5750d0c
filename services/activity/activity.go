package activity

import (
	"context"
	"log"
	"time"

	"mcbackend/core"
	"mcbackend/models"
)

type ActivityEventsRepository interface {
	CreateActivityEvent(ctx context.Context, event *models.ActivityEvent) error
	GetRecentActivityEvents(ctx context.Context, limit int) ([]*models.ActivityEvent, error)
}

// ActivityService records audit events best-effort. Record detaches from
// the caller's context so a slow insert or a cancelled request never
// affects the operation being recorded.
type ActivityService struct {
	eventsRepo ActivityEventsRepository
}

func NewActivityService(repo ActivityEventsRepository) *ActivityService {
	return &ActivityService{eventsRepo: repo}
}

func (s *ActivityService) Record(ctx context.Context, eventType, message string, agentID, taskID *string) {
	if eventType == "" || message == "" {
		log.Printf("⚠️ Dropping activity event with empty type or message")
		return
	}

	event := &models.ActivityEvent{
		ID:        core.NewID("ae"),
		EventType: eventType,
		Message:   message,
		AgentID:   agentID,
		TaskID:    taskID,
	}

	go func() {
		recordCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := s.eventsRepo.CreateActivityEvent(recordCtx, event); err != nil {
			log.Printf("⚠️ Failed to record activity event %s: %v", eventType, err)
		}
	}()
}

func (s *ActivityService) GetRecentActivityEvents(ctx context.Context, limit int) ([]*models.ActivityEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.eventsRepo.GetRecentActivityEvents(ctx, limit)
}
