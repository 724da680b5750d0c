package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"mcbackend/core"
	"mcbackend/models"
	"mcbackend/services"
)

// GatewaySyncer triggers on-demand reconciliation passes.
type GatewaySyncer interface {
	SyncGateway(ctx context.Context, gatewayID string) error
	SyncAll(ctx context.Context) error
}

// GatewayCallbacksHandler is the inbound boundary for gateway-pushed
// liveness signals: webhook lifecycle events and bulk session snapshots.
type GatewayCallbacksHandler struct {
	livenessService services.LivenessService
	agentsService   services.AgentsService
	gatewaysService services.GatewaysService
	syncer          GatewaySyncer
	offlineAfter    time.Duration
}

func NewGatewayCallbacksHandler(
	livenessService services.LivenessService,
	agentsService services.AgentsService,
	gatewaysService services.GatewaysService,
	syncer GatewaySyncer,
	offlineAfter time.Duration,
) *GatewayCallbacksHandler {
	return &GatewayCallbacksHandler{
		livenessService: livenessService,
		agentsService:   agentsService,
		gatewaysService: gatewaysService,
		syncer:          syncer,
		offlineAfter:    offlineAfter,
	}
}

type SessionEventRequest struct {
	EventType  string         `json:"event_type"`
	SessionKey string         `json:"session_key"`
	AgentName  *string        `json:"agent_name,omitempty"`
	Timestamp  *string        `json:"timestamp,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

type BatchHeartbeatRequest struct {
	GatewayID string                  `json:"gateway_id"`
	Sessions  []BatchHeartbeatSession `json:"sessions"`
}

type BatchHeartbeatSession struct {
	Key          string  `json:"key"`
	Label        *string `json:"label,omitempty"`
	Active       *bool   `json:"active,omitempty"`
	LastActivity *string `json:"last_activity,omitempty"`
}

type AgentStatusResponse struct {
	AgentID        string     `json:"agent_id"`
	Name           string     `json:"name"`
	StoredStatus   string     `json:"stored_status"`
	ComputedStatus string     `json:"computed_status"`
	LastSeenAt     *time.Time `json:"last_seen_at"`
}

// HandleSessionEvent accepts one lifecycle event from a gateway webhook.
// Events for unknown session keys are acknowledged with updated_count 0
// so the gateway does not retry them forever. Presence pings are
// acknowledged the same way without touching agent state.
func (h *GatewayCallbacksHandler) HandleSessionEvent(w http.ResponseWriter, r *http.Request) {
	log.Printf("📨 Session event received from %s", r.RemoteAddr)

	var req SessionEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.SessionKey == "" {
		http.Error(w, "session_key is required", http.StatusBadRequest)
		return
	}

	eventType := models.SessionEventType(req.EventType)
	if eventType == models.SessionEventPresence {
		writeJSONResponse(w, http.StatusOK, map[string]any{"updated_count": 0})
		return
	}

	kind, ok := lifecycleKindFor(eventType)
	if !ok {
		http.Error(w, "unknown event_type", http.StatusBadRequest)
		return
	}

	observedAt := parseTimestamp(req.Timestamp)
	applied, err := h.livenessService.ApplyLifecycleEvent(r.Context(), req.SessionKey, kind, observedAt)
	if err != nil {
		log.Printf("❌ Failed to apply session event: %v", err)
		http.Error(w, "failed to apply event", http.StatusInternalServerError)
		return
	}

	updated := 0
	if applied {
		updated = 1
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"updated_count": updated})
}

// HandleBatchHeartbeat folds a bulk session snapshot from one gateway
// into agent state, same semantics as a poll cycle for that gateway.
func (h *GatewayCallbacksHandler) HandleBatchHeartbeat(w http.ResponseWriter, r *http.Request) {
	log.Printf("📨 Batch heartbeat received from %s", r.RemoteAddr)

	var req BatchHeartbeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if !core.IsValidULID(req.GatewayID) {
		http.Error(w, "gateway_id must be a valid ULID", http.StatusBadRequest)
		return
	}

	maybeGateway, err := h.gatewaysService.GetGatewayByID(r.Context(), req.GatewayID)
	if err != nil {
		log.Printf("❌ Failed to look up gateway: %v", err)
		http.Error(w, "failed to look up gateway", http.StatusInternalServerError)
		return
	}
	if maybeGateway.IsAbsent() {
		http.Error(w, "gateway not found", http.StatusNotFound)
		return
	}

	activeByKey := make(map[string]models.RemoteSession, len(req.Sessions))
	for _, s := range req.Sessions {
		if s.Key == "" {
			continue
		}
		session := models.RemoteSession{Key: s.Key, Label: s.Label, Active: true}
		if s.Active != nil {
			session.Active = *s.Active
		}
		if !session.Active {
			continue
		}
		if s.LastActivity != nil {
			if t, err := time.Parse(time.RFC3339, *s.LastActivity); err == nil {
				session.LastActivity = &t
			}
		}
		activeByKey[session.Key] = session
	}

	agents, err := h.agentsService.GetAgentsByGatewayID(r.Context(), req.GatewayID)
	if err != nil {
		log.Printf("❌ Failed to list gateway agents: %v", err)
		http.Error(w, "failed to list agents", http.StatusInternalServerError)
		return
	}

	now := time.Now().UTC()
	updated := 0
	for _, agent := range agents {
		changed, err := h.livenessService.ApplyPollSnapshot(r.Context(), agent, activeByKey, now, h.offlineAfter)
		if err != nil {
			log.Printf("⚠️ Snapshot apply failed for agent %s: %v", agent.ID, err)
			continue
		}
		if changed {
			updated++
		}
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{"updated_count": updated})
}

// HandleSyncGateway triggers one on-demand poll of a single gateway.
func (h *GatewayCallbacksHandler) HandleSyncGateway(w http.ResponseWriter, r *http.Request) {
	gatewayID := mux.Vars(r)["gateway_id"]
	log.Printf("📨 Manual sync requested for gateway %s", gatewayID)

	if !core.IsValidULID(gatewayID) {
		http.Error(w, "gateway_id must be a valid ULID", http.StatusBadRequest)
		return
	}

	if err := h.syncer.SyncGateway(r.Context(), gatewayID); err != nil {
		if core.IsNotFoundError(err) {
			http.Error(w, "gateway not found", http.StatusNotFound)
			return
		}
		log.Printf("❌ Manual gateway sync failed: %v", err)
		http.Error(w, "sync failed", http.StatusBadGateway)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{"ok": true})
}

// HandleSyncAll triggers one on-demand reconciliation pass over every
// gateway.
func (h *GatewayCallbacksHandler) HandleSyncAll(w http.ResponseWriter, r *http.Request) {
	log.Printf("📨 Manual sync-all requested")

	if err := h.syncer.SyncAll(r.Context()); err != nil {
		log.Printf("❌ Manual sync-all failed: %v", err)
		http.Error(w, "sync failed", http.StatusInternalServerError)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{"ok": true})
}

// HandleAgentStatus returns the stored status alongside the status the
// staleness rule would derive right now.
func (h *GatewayCallbacksHandler) HandleAgentStatus(w http.ResponseWriter, r *http.Request) {
	agentID := mux.Vars(r)["agent_id"]

	if !core.IsValidULID(agentID) {
		http.Error(w, "agent_id must be a valid ULID", http.StatusBadRequest)
		return
	}

	maybeAgent, err := h.agentsService.GetAgentByID(r.Context(), agentID)
	if err != nil {
		log.Printf("❌ Failed to get agent: %v", err)
		http.Error(w, "failed to get agent", http.StatusInternalServerError)
		return
	}
	agent, ok := maybeAgent.Get()
	if !ok {
		http.Error(w, "agent not found", http.StatusNotFound)
		return
	}

	computed := agent.Status
	if !agent.Status.IsTransitional() {
		computed = core.ClassifyStatus(agent.LastSeenAt, time.Now().UTC(), h.offlineAfter)
	}

	writeJSONResponse(w, http.StatusOK, AgentStatusResponse{
		AgentID:        agent.ID,
		Name:           agent.Name,
		StoredStatus:   string(agent.Status),
		ComputedStatus: string(computed),
		LastSeenAt:     agent.LastSeenAt,
	})
}

// lifecycleKindFor maps a webhook event type to a lifecycle kind.
// Presence pings are not lifecycle events and map to nothing.
func lifecycleKindFor(eventType models.SessionEventType) (models.LifecycleKind, bool) {
	switch eventType {
	case models.SessionEventStarted:
		return models.LifecycleStarted, true
	case models.SessionEventEnded:
		return models.LifecycleEnded, true
	case models.SessionEventHeartbeat:
		return models.LifecycleHeartbeat, true
	default:
		return "", false
	}
}

func parseTimestamp(raw *string) time.Time {
	if raw != nil {
		if t, err := time.Parse(time.RFC3339, *raw); err == nil {
			return t
		}
	}
	return time.Now().UTC()
}

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("❌ Failed to encode response: %v", err)
	}
}
