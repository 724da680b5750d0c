package notifications

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/slack-go/slack"

	"mcbackend/config"
	"mcbackend/models"
)

// NotificationsService posts task lifecycle notifications to a Slack
// incoming webhook. All sends are best-effort: failures are logged and
// swallowed so a chat outage never blocks scheduling.
type NotificationsService struct {
	cfg config.NotificationsConfig
}

func NewNotificationsService(cfg config.NotificationsConfig) *NotificationsService {
	return &NotificationsService{cfg: cfg}
}

func (s *NotificationsService) NotifyTaskAssigned(
	ctx context.Context,
	task *models.Task,
	agentName string,
	autoClaimed bool,
) {
	if !s.cfg.IsConfigured() {
		return
	}

	verb := "assigned to"
	if autoClaimed {
		verb = "auto-claimed by"
	}
	text := fmt.Sprintf("🤖 Task *%s* (%s priority) %s *%s*", task.Title, task.Priority, verb, agentName)
	s.post(text)
}

func (s *NotificationsService) NotifyTaskCompleted(
	ctx context.Context,
	task *models.Task,
	agentName, resultSummary string,
) {
	if !s.cfg.IsConfigured() {
		return
	}

	text := fmt.Sprintf("✅ Task *%s* completed by *%s*", task.Title, agentName)
	if resultSummary != "" {
		text += fmt.Sprintf("\n> %s", resultSummary)
	}
	s.post(text)
}

func (s *NotificationsService) post(text string) {
	webhookURL := s.cfg.WebhookURL

	go func() {
		postCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		msg := &slack.WebhookMessage{Text: text}
		if err := slack.PostWebhookContext(postCtx, webhookURL, msg); err != nil {
			log.Printf("⚠️ Failed to post notification webhook: %v", err)
		}
	}()
}
