package middleware

import (
	"context"
	"crypto/md5"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/slack-go/slack"

	"mcbackend/config"
)

// ErrorAlertMiddleware pushes panics and background failures to a Slack
// webhook. Repeated identical errors are deduplicated by hash so one
// crash-looping goroutine cannot flood the channel.
type ErrorAlertMiddleware struct {
	cfg           config.AlertConfig
	environment   string
	appName       string
	alertedErrors map[string]time.Time
	mutex         sync.Mutex
	alertCooldown time.Duration
}

func NewErrorAlertMiddleware(cfg config.AlertConfig, environment, appName string) *ErrorAlertMiddleware {
	return &ErrorAlertMiddleware{
		cfg:           cfg,
		environment:   environment,
		appName:       appName,
		alertedErrors: make(map[string]time.Time),
		alertCooldown: 10 * time.Minute,
	}
}

// HTTPMiddleware converts handler panics into alerts and a 500 instead
// of a dropped connection.
func (m *ErrorAlertMiddleware) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				errorMsg := fmt.Sprintf("HTTP %s %s: PANIC - %v", r.Method, r.URL.Path, rec)
				log.Printf("❌ %s", errorMsg)
				go m.sendAlert(errorMsg, fmt.Sprintf("HTTP %s %s (PANIC)", r.Method, r.URL.Path))
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// WrapBackgroundTask alerts on background task errors and panics.
func (m *ErrorAlertMiddleware) WrapBackgroundTask(taskName string, task func() error) func() error {
	return func() error {
		defer func() {
			if rec := recover(); rec != nil {
				errorMsg := fmt.Sprintf("Background task %s: PANIC - %v", taskName, rec)
				log.Printf("❌ %s", errorMsg)
				go m.sendAlert(errorMsg, fmt.Sprintf("Background task: %s (PANIC)", taskName))
			}
		}()

		if err := task(); err != nil {
			m.AlertOnError(err, fmt.Sprintf("Background task: %s", taskName))
			return err
		}
		return nil
	}
}

// AlertOnError sends one deduplicated alert for the error.
func (m *ErrorAlertMiddleware) AlertOnError(err error, errContext string) {
	errorMsg := fmt.Sprintf("%s: %v", errContext, err)
	hash := fmt.Sprintf("%x", md5.Sum([]byte(errorMsg)))

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if lastAlert, exists := m.alertedErrors[hash]; exists {
		if time.Since(lastAlert) < m.alertCooldown {
			return
		}
	}

	go m.sendAlert(errorMsg, errContext)
	m.alertedErrors[hash] = time.Now()
}

func (m *ErrorAlertMiddleware) sendAlert(errorMsg, errContext string) {
	if !m.cfg.IsConfigured() {
		return
	}

	envPrefix := ""
	if m.environment == "dev" {
		envPrefix = "[dev] "
	}

	headerText := slack.NewTextBlockObject(slack.PlainTextType,
		fmt.Sprintf("🚨 %s%s Error Alert", envPrefix, m.appName), true, false)
	fields := []*slack.TextBlockObject{
		slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("*Service:* %s", m.appName), false, false),
		slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("*Environment:* %s", m.environment), false, false),
		slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("*Context:* %s", errContext), false, false),
	}
	errText := slack.NewTextBlockObject(slack.MarkdownType,
		fmt.Sprintf("*Error:*\n```%s```", errorMsg), false, false)

	blocks := []slack.Block{
		slack.NewHeaderBlock(headerText),
		slack.NewSectionBlock(nil, fields, nil),
		slack.NewSectionBlock(errText, nil, nil),
	}
	if m.cfg.LogsURL != "" {
		logsText := slack.NewTextBlockObject(slack.MarkdownType,
			fmt.Sprintf("🔗 <%s|View Logs>", m.cfg.LogsURL), false, false)
		blocks = append(blocks, slack.NewSectionBlock(logsText, nil, nil))
	}

	msg := &slack.WebhookMessage{Blocks: &slack.Blocks{BlockSet: blocks}}

	alertCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := slack.PostWebhookContext(alertCtx, m.cfg.WebhookURL, msg); err != nil {
		log.Printf("❌ Failed to send error alert: %v", err)
	}
}
