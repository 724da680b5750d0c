package testutils

import (
	"time"

	"github.com/lib/pq"

	"mcbackend/core"
	"mcbackend/models"
)

// TestAgent builds an online agent with sensible defaults. Mutate the
// returned struct in the test for variations.
func TestAgent(boardID string, skillTags ...string) *models.Agent {
	now := time.Now().UTC()
	lastSeen := now.Add(-1 * time.Minute)
	sessionKey := "sess-" + core.NewID("ag")
	return &models.Agent{
		ID:         core.NewID("ag"),
		Name:       "test-agent",
		GatewayID:  core.NewID("gw"),
		BoardID:    &boardID,
		Status:     models.AgentStatusOnline,
		SessionKey: &sessionKey,
		SkillTags:  pq.StringArray(skillTags),
		LastSeenAt: &lastSeen,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// TestTask builds an unassigned inbox task on the given board.
func TestTask(boardID string, priority models.TaskPriority) *models.Task {
	now := time.Now().UTC()
	return &models.Task{
		ID:        core.NewID("tk"),
		BoardID:   boardID,
		Title:     "test task",
		Priority:  priority,
		Status:    models.TaskStatusInbox,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TestGateway builds a pollable gateway.
func TestGateway(url string) *models.Gateway {
	now := time.Now().UTC()
	token := "test-token"
	return &models.Gateway{
		ID:        core.NewID("gw"),
		Name:      "test-gateway",
		URL:       &url,
		Token:     &token,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TestBoard builds a board with auto-promotion disabled.
func TestBoard() *models.Board {
	now := time.Now().UTC()
	return &models.Board{
		ID:        core.NewID("bd"),
		Name:      "test-board",
		MaxAgents: 10,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
