package liveness

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"mcbackend/core"
	"mcbackend/models"
	"mcbackend/services"
	"mcbackend/utils"
)

// LivenessService merges lifecycle events, poll snapshots, and timeout
// sweeps into one authoritative status per agent. All status writes go
// through guarded conditional updates, so a slower signal arriving after
// a newer one cannot roll state backwards.
type LivenessService struct {
	agentsService   services.AgentsService
	activityService services.ActivityService

	// session-key -> agent-id cache. Entries are dropped whenever a
	// lookup through them misses, so a reassigned session key heals on
	// the next event.
	mu              sync.Mutex
	sessionKeyCache map[string]string
}

func NewLivenessService(
	agentsService services.AgentsService,
	activityService services.ActivityService,
) *LivenessService {
	return &LivenessService{
		agentsService:   agentsService,
		activityService: activityService,
		sessionKeyCache: make(map[string]string),
	}
}

// ApplyLifecycleEvent folds one stream or webhook event into agent state.
// Events for unknown session keys are dropped with a warning, never an
// error, so one stale event cannot wedge the stream consumer. Returns
// true when the event was folded into a known agent's state, false when
// it was dropped or skipped.
func (s *LivenessService) ApplyLifecycleEvent(
	ctx context.Context,
	sessionKey string,
	kind models.LifecycleKind,
	observedAt time.Time,
) (bool, error) {
	if sessionKey == "" {
		return false, fmt.Errorf("session key cannot be empty")
	}
	if observedAt.IsZero() {
		return false, fmt.Errorf("observedAt cannot be zero")
	}

	agent, err := s.resolveAgentBySessionKey(ctx, sessionKey)
	if err != nil {
		return false, err
	}
	if agent == nil {
		log.Printf("⚠️ Ignoring %s event for unknown session key", kind)
		return false, nil
	}

	if agent.Status.IsTransitional() {
		log.Printf("📋 Agent %s is %s, skipping %s event", agent.ID, agent.Status, kind)
		return false, nil
	}

	switch kind {
	case models.LifecycleStarted:
		applied, err := s.agentsService.TransitionAgentStatus(
			ctx, agent.ID, agent.Status, models.AgentStatusOnline, &observedAt)
		if err != nil {
			return false, fmt.Errorf("failed to apply session start: %w", err)
		}
		if applied && agent.Status != models.AgentStatusOnline {
			s.activityService.Record(ctx, "agent.online",
				fmt.Sprintf("Agent %s came online", agent.Name), &agent.ID, nil)
		}

	case models.LifecycleEnded:
		// last_seen_at stays where the last positive observation left
		// it, only the status changes
		applied, err := s.agentsService.TransitionAgentStatus(
			ctx, agent.ID, agent.Status, models.AgentStatusOffline, nil)
		if err != nil {
			return false, fmt.Errorf("failed to apply session end: %w", err)
		}
		if applied && agent.Status != models.AgentStatusOffline {
			s.activityService.Record(ctx, "agent.offline",
				fmt.Sprintf("Agent %s went offline", agent.Name), &agent.ID, nil)
		}

	case models.LifecycleHeartbeat:
		if err := s.agentsService.TouchAgentLastSeen(ctx, agent.ID, observedAt); err != nil {
			return false, fmt.Errorf("failed to apply heartbeat: %w", err)
		}
		if err := s.agentsService.UpdateAgentLastHeartbeatAt(ctx, agent.ID, observedAt); err != nil {
			return false, fmt.Errorf("failed to record heartbeat time: %w", err)
		}
		// A heartbeat only promotes out of provisioning. It never
		// flips offline back to online by itself.
		if agent.Status == models.AgentStatusProvisioning {
			applied, err := s.agentsService.TransitionAgentStatus(
				ctx, agent.ID, models.AgentStatusProvisioning, models.AgentStatusOnline, &observedAt)
			if err != nil {
				return false, fmt.Errorf("failed to promote provisioning agent: %w", err)
			}
			if applied {
				s.activityService.Record(ctx, "agent.online",
					fmt.Sprintf("Agent %s came online", agent.Name), &agent.ID, nil)
			}
		}

	default:
		utils.AssertInvariant(false, fmt.Sprintf("unknown lifecycle kind: %s", kind))
	}

	return true, nil
}

// ApplyPollSnapshot folds one gateway poll result into one agent's
// state. Returns true when a write was applied.
func (s *LivenessService) ApplyPollSnapshot(
	ctx context.Context,
	agent *models.Agent,
	activeSessionKeys map[string]models.RemoteSession,
	now time.Time,
	offlineAfter time.Duration,
) (bool, error) {
	if agent == nil {
		return false, fmt.Errorf("agent cannot be nil")
	}

	if agent.Status.IsTransitional() {
		return false, nil
	}

	if agent.SessionKey != nil {
		if session, ok := activeSessionKeys[*agent.SessionKey]; ok {
			seenAt := now
			if session.LastActivity != nil && session.LastActivity.After(seenAt) {
				seenAt = *session.LastActivity
			}
			if err := s.agentsService.TouchAgentLastSeen(ctx, agent.ID, seenAt); err != nil {
				return false, fmt.Errorf("failed to touch agent from poll: %w", err)
			}
			if agent.Status == models.AgentStatusOffline || agent.Status == models.AgentStatusProvisioning {
				applied, err := s.agentsService.TransitionAgentStatus(
					ctx, agent.ID, agent.Status, models.AgentStatusOnline, &seenAt)
				if err != nil {
					return false, fmt.Errorf("failed to revive agent from poll: %w", err)
				}
				if applied {
					s.activityService.Record(ctx, "agent.online",
						fmt.Sprintf("Agent %s came online", agent.Name), &agent.ID, nil)
				}
			}
			return true, nil
		}
	}

	// Session not present upstream. Agents with no observation yet keep
	// their provisioning grace; everyone else is judged by staleness.
	derived := core.ClassifyStatus(agent.LastSeenAt, now, offlineAfter)
	if derived != models.AgentStatusOffline {
		return false, nil
	}
	if agent.Status == models.AgentStatusOffline {
		return false, nil
	}

	applied, err := s.agentsService.TransitionAgentStatus(
		ctx, agent.ID, agent.Status, models.AgentStatusOffline, nil)
	if err != nil {
		return false, fmt.Errorf("failed to demote agent from poll: %w", err)
	}
	if applied {
		s.activityService.Record(ctx, "agent.offline",
			fmt.Sprintf("Agent %s went offline", agent.Name), &agent.ID, nil)
	}

	return applied, nil
}

// ReconcileAllByTimeout demotes every agent whose last observation is
// older than offlineAfter. Returns a count of agents per resulting
// status for the sweep log line.
func (s *LivenessService) ReconcileAllByTimeout(
	ctx context.Context,
	now time.Time,
	offlineAfter time.Duration,
) (map[models.AgentStatus]int, error) {
	log.Printf("📋 Starting liveness timeout sweep")

	agents, err := s.agentsService.GetAllAgents(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents for sweep: %w", err)
	}

	counts := make(map[models.AgentStatus]int)
	for _, agent := range agents {
		if agent.Status.IsTransitional() {
			counts[agent.Status]++
			continue
		}

		derived := core.ClassifyStatus(agent.LastSeenAt, now, offlineAfter)
		if derived != models.AgentStatusOffline || agent.Status == models.AgentStatusOffline {
			counts[agent.Status]++
			continue
		}
		if agent.Status == models.AgentStatusProvisioning {
			// No observation yet does not time out, only a previously
			// seen agent can go stale
			counts[agent.Status]++
			continue
		}

		applied, err := s.agentsService.TransitionAgentStatus(
			ctx, agent.ID, agent.Status, models.AgentStatusOffline, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to demote stale agent %s: %w", agent.ID, err)
		}
		if applied {
			counts[models.AgentStatusOffline]++
			s.activityService.Record(ctx, "agent.offline",
				fmt.Sprintf("Agent %s went offline (no signal for %s)", agent.Name, offlineAfter), &agent.ID, nil)
		} else {
			counts[agent.Status]++
		}
	}

	log.Printf("📋 Completed successfully - liveness sweep over %d agents", len(agents))
	return counts, nil
}

// resolveAgentBySessionKey consults the cache first and falls back to a
// database lookup. A cache entry that no longer matches is evicted and
// resolved fresh.
func (s *LivenessService) resolveAgentBySessionKey(
	ctx context.Context,
	sessionKey string,
) (*models.Agent, error) {
	s.mu.Lock()
	agentID, cached := s.sessionKeyCache[sessionKey]
	s.mu.Unlock()

	if cached {
		maybeAgent, err := s.agentsService.GetAgentByID(ctx, agentID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve cached agent: %w", err)
		}
		if agent, ok := maybeAgent.Get(); ok && agent.SessionKey != nil && *agent.SessionKey == sessionKey {
			return agent, nil
		}

		s.mu.Lock()
		delete(s.sessionKeyCache, sessionKey)
		s.mu.Unlock()
	}

	maybeAgent, err := s.agentsService.GetAgentBySessionKey(ctx, sessionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve agent by session key: %w", err)
	}
	agent, ok := maybeAgent.Get()
	if !ok {
		return nil, nil
	}

	s.mu.Lock()
	s.sessionKeyCache[sessionKey] = agent.ID
	s.mu.Unlock()

	return agent, nil
}
