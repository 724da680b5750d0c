package agents

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/samber/mo"

	"mcbackend/core"
	"mcbackend/models"
)

type AgentsRepository interface {
	CreateAgent(ctx context.Context, agent *models.Agent) error
	GetAgentByID(ctx context.Context, id string) (mo.Option[*models.Agent], error)
	GetAgentBySessionKey(ctx context.Context, sessionKey string) (mo.Option[*models.Agent], error)
	GetAllAgents(ctx context.Context) ([]*models.Agent, error)
	GetAgentsByGatewayID(ctx context.Context, gatewayID string) ([]*models.Agent, error)
	GetAvailableAgents(ctx context.Context, boardID string) ([]*models.Agent, error)
	UpdateAgentStatus(ctx context.Context, id string, fromStatus, toStatus models.AgentStatus, lastSeenAt *time.Time) (bool, error)
	TouchAgentLastSeen(ctx context.Context, id string, seenAt time.Time) (bool, error)
	UpdateAgentLastHeartbeatAt(ctx context.Context, id string, heartbeatAt time.Time) (bool, error)
	DeleteAgent(ctx context.Context, id string) (bool, error)
}

type AgentsService struct {
	agentsRepo AgentsRepository
}

func NewAgentsService(repo AgentsRepository) *AgentsService {
	return &AgentsService{agentsRepo: repo}
}

func (s *AgentsService) GetAgentByID(ctx context.Context, id string) (mo.Option[*models.Agent], error) {
	log.Printf("📋 Starting to get agent by ID: %s", id)
	if !core.IsValidULID(id) {
		return mo.None[*models.Agent](), fmt.Errorf("agent ID must be a valid ULID")
	}

	maybeAgent, err := s.agentsRepo.GetAgentByID(ctx, id)
	if err != nil {
		return mo.None[*models.Agent](), fmt.Errorf("failed to get agent: %w", err)
	}

	log.Printf("📋 Completed successfully - retrieved agent by ID: %s", id)
	return maybeAgent, nil
}

func (s *AgentsService) GetAgentBySessionKey(
	ctx context.Context,
	sessionKey string,
) (mo.Option[*models.Agent], error) {
	log.Printf("📋 Starting to get agent by session key")
	if sessionKey == "" {
		return mo.None[*models.Agent](), fmt.Errorf("session key cannot be empty")
	}

	maybeAgent, err := s.agentsRepo.GetAgentBySessionKey(ctx, sessionKey)
	if err != nil {
		return mo.None[*models.Agent](), fmt.Errorf("failed to get agent by session key: %w", err)
	}

	log.Printf("📋 Completed successfully - looked up agent by session key (found: %t)", maybeAgent.IsPresent())
	return maybeAgent, nil
}

func (s *AgentsService) GetAllAgents(ctx context.Context) ([]*models.Agent, error) {
	log.Printf("📋 Starting to get all agents")
	agents, err := s.agentsRepo.GetAllAgents(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get all agents: %w", err)
	}

	log.Printf("📋 Completed successfully - retrieved %d agents", len(agents))
	return agents, nil
}

func (s *AgentsService) GetAgentsByGatewayID(ctx context.Context, gatewayID string) ([]*models.Agent, error) {
	log.Printf("📋 Starting to get agents for gateway: %s", gatewayID)
	if !core.IsValidULID(gatewayID) {
		return nil, fmt.Errorf("gateway ID must be a valid ULID")
	}

	agents, err := s.agentsRepo.GetAgentsByGatewayID(ctx, gatewayID)
	if err != nil {
		return nil, fmt.Errorf("failed to get agents by gateway: %w", err)
	}

	log.Printf("📋 Completed successfully - retrieved %d agents for gateway %s", len(agents), gatewayID)
	return agents, nil
}

func (s *AgentsService) GetAvailableAgents(ctx context.Context, boardID string) ([]*models.Agent, error) {
	log.Printf("📋 Starting to get available agents for board: %s", boardID)
	if !core.IsValidULID(boardID) {
		return nil, fmt.Errorf("board ID must be a valid ULID")
	}

	agents, err := s.agentsRepo.GetAvailableAgents(ctx, boardID)
	if err != nil {
		return nil, fmt.Errorf("failed to get available agents: %w", err)
	}

	log.Printf("📋 Completed successfully - retrieved %d available agents for board %s", len(agents), boardID)
	return agents, nil
}

// TransitionAgentStatus applies a guarded status change. A false return
// means the agent was no longer in fromStatus when the write ran, which
// callers treat as a benign lost race.
func (s *AgentsService) TransitionAgentStatus(
	ctx context.Context,
	id string,
	fromStatus, toStatus models.AgentStatus,
	lastSeenAt *time.Time,
) (bool, error) {
	log.Printf("📋 Starting to transition agent %s status: %s -> %s", id, fromStatus, toStatus)
	if !core.IsValidULID(id) {
		return false, fmt.Errorf("agent ID must be a valid ULID")
	}
	if fromStatus == "" || toStatus == "" {
		return false, fmt.Errorf("fromStatus and toStatus cannot be empty")
	}

	updated, err := s.agentsRepo.UpdateAgentStatus(ctx, id, fromStatus, toStatus, lastSeenAt)
	if err != nil {
		return false, fmt.Errorf("failed to transition agent status: %w", err)
	}

	log.Printf("📋 Completed successfully - agent %s transition %s -> %s (applied: %t)", id, fromStatus, toStatus, updated)
	return updated, nil
}

func (s *AgentsService) TouchAgentLastSeen(ctx context.Context, id string, seenAt time.Time) error {
	log.Printf("📋 Starting to touch last_seen_at for agent: %s", id)
	if !core.IsValidULID(id) {
		return fmt.Errorf("agent ID must be a valid ULID")
	}
	if seenAt.IsZero() {
		return fmt.Errorf("seenAt cannot be zero")
	}

	touched, err := s.agentsRepo.TouchAgentLastSeen(ctx, id, seenAt)
	if err != nil {
		return fmt.Errorf("failed to touch agent last_seen_at: %w", err)
	}
	if !touched {
		return fmt.Errorf("agent not found: %s", id)
	}

	log.Printf("📋 Completed successfully - touched last_seen_at for agent %s", id)
	return nil
}

func (s *AgentsService) UpdateAgentLastHeartbeatAt(ctx context.Context, id string, heartbeatAt time.Time) error {
	log.Printf("📋 Starting to update last_heartbeat_at for agent: %s", id)
	if !core.IsValidULID(id) {
		return fmt.Errorf("agent ID must be a valid ULID")
	}
	if heartbeatAt.IsZero() {
		return fmt.Errorf("heartbeatAt cannot be zero")
	}

	updated, err := s.agentsRepo.UpdateAgentLastHeartbeatAt(ctx, id, heartbeatAt)
	if err != nil {
		return fmt.Errorf("failed to update agent last_heartbeat_at: %w", err)
	}
	if !updated {
		return fmt.Errorf("agent not found: %s", id)
	}

	log.Printf("📋 Completed successfully - updated last_heartbeat_at for agent %s", id)
	return nil
}
