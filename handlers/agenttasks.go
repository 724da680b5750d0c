package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/samber/mo"

	"mcbackend/core"
	"mcbackend/models"
	"mcbackend/services"
)

// PickupService is the agent-initiated work surface used by the HTTP
// boundary.
type PickupService interface {
	PickupNextTask(ctx context.Context, agentID string) (mo.Option[*models.Task], error)
	ReleaseTask(ctx context.Context, taskID, agentID string) (bool, error)
	CompleteTask(ctx context.Context, taskID, agentID, resultSummary string) (bool, error)
	GetAssignedTasks(ctx context.Context, agentID string) ([]*models.Task, error)
	GetWorkStatus(ctx context.Context, agentID string) (*models.AgentWorkStatus, error)
}

// AgentTasksHandler serves the agent-facing pickup path: claim work,
// release it, complete it, and report heartbeats.
type AgentTasksHandler struct {
	pickupService PickupService
	agentsService services.AgentsService
}

func NewAgentTasksHandler(pickupService PickupService, agentsService services.AgentsService) *AgentTasksHandler {
	return &AgentTasksHandler{pickupService: pickupService, agentsService: agentsService}
}

type TaskActionRequest struct {
	TaskID        string `json:"task_id"`
	ResultSummary string `json:"result_summary,omitempty"`
}

// HandlePickup claims the next available task for the agent. 204 when
// nothing is claimable.
func (h *AgentTasksHandler) HandlePickup(w http.ResponseWriter, r *http.Request) {
	agentID := mux.Vars(r)["agent_id"]
	log.Printf("📋 Pickup requested by agent %s", agentID)

	if !core.IsValidULID(agentID) {
		http.Error(w, "agent_id must be a valid ULID", http.StatusBadRequest)
		return
	}

	maybeTask, err := h.pickupService.PickupNextTask(r.Context(), agentID)
	if err != nil {
		log.Printf("❌ Pickup failed for agent %s: %v", agentID, err)
		http.Error(w, "pickup failed", http.StatusInternalServerError)
		return
	}
	task, ok := maybeTask.Get()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSONResponse(w, http.StatusOK, task)
}

// HandleRelease returns a claimed task to the queue. 409 when the agent
// no longer holds the task.
func (h *AgentTasksHandler) HandleRelease(w http.ResponseWriter, r *http.Request) {
	agentID := mux.Vars(r)["agent_id"]
	log.Printf("📋 Release requested by agent %s", agentID)

	if !core.IsValidULID(agentID) {
		http.Error(w, "agent_id must be a valid ULID", http.StatusBadRequest)
		return
	}

	var req TaskActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if !core.IsValidULID(req.TaskID) {
		http.Error(w, "task_id must be a valid ULID", http.StatusBadRequest)
		return
	}

	released, err := h.pickupService.ReleaseTask(r.Context(), req.TaskID, agentID)
	if err != nil {
		log.Printf("❌ Release failed for task %s: %v", req.TaskID, err)
		http.Error(w, "release failed", http.StatusInternalServerError)
		return
	}
	if !released {
		http.Error(w, "task not held by agent", http.StatusConflict)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{"ok": true})
}

// HandleComplete moves a held task into review. 409 when the agent no
// longer holds the task.
func (h *AgentTasksHandler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	agentID := mux.Vars(r)["agent_id"]
	log.Printf("📋 Completion requested by agent %s", agentID)

	if !core.IsValidULID(agentID) {
		http.Error(w, "agent_id must be a valid ULID", http.StatusBadRequest)
		return
	}

	var req TaskActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if !core.IsValidULID(req.TaskID) {
		http.Error(w, "task_id must be a valid ULID", http.StatusBadRequest)
		return
	}

	completed, err := h.pickupService.CompleteTask(r.Context(), req.TaskID, agentID, req.ResultSummary)
	if err != nil {
		log.Printf("❌ Completion failed for task %s: %v", req.TaskID, err)
		http.Error(w, "completion failed", http.StatusInternalServerError)
		return
	}
	if !completed {
		http.Error(w, "task not held by agent", http.StatusConflict)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{"ok": true})
}

// HandleHeartbeat records a direct agent heartbeat: advances last seen,
// stamps the heartbeat time, and promotes a provisioning agent online.
// The response carries the agent's working set and claim availability so
// the agent can decide whether to ask for more work.
func (h *AgentTasksHandler) HandleHeartbeat(w http.ResponseWriter, r *http.Request) {
	agentID := mux.Vars(r)["agent_id"]

	if !core.IsValidULID(agentID) {
		http.Error(w, "agent_id must be a valid ULID", http.StatusBadRequest)
		return
	}

	maybeAgent, err := h.agentsService.GetAgentByID(r.Context(), agentID)
	if err != nil {
		log.Printf("❌ Heartbeat lookup failed for agent %s: %v", agentID, err)
		http.Error(w, "failed to get agent", http.StatusInternalServerError)
		return
	}
	agent, ok := maybeAgent.Get()
	if !ok {
		http.Error(w, "agent not found", http.StatusNotFound)
		return
	}

	now := time.Now().UTC()
	if err := h.agentsService.TouchAgentLastSeen(r.Context(), agentID, now); err != nil {
		log.Printf("❌ Heartbeat touch failed for agent %s: %v", agentID, err)
		http.Error(w, "heartbeat failed", http.StatusInternalServerError)
		return
	}
	if err := h.agentsService.UpdateAgentLastHeartbeatAt(r.Context(), agentID, now); err != nil {
		log.Printf("❌ Heartbeat stamp failed for agent %s: %v", agentID, err)
		http.Error(w, "heartbeat failed", http.StatusInternalServerError)
		return
	}

	if agent.Status == models.AgentStatusProvisioning {
		if _, err := h.agentsService.TransitionAgentStatus(
			r.Context(), agentID, models.AgentStatusProvisioning, models.AgentStatusOnline, &now); err != nil {
			log.Printf("⚠️ Heartbeat promotion failed for agent %s: %v", agentID, err)
		}
	}

	status, err := h.pickupService.GetWorkStatus(r.Context(), agentID)
	if err != nil {
		log.Printf("❌ Work status lookup failed for agent %s: %v", agentID, err)
		http.Error(w, "heartbeat failed", http.StatusInternalServerError)
		return
	}

	writeJSONResponse(w, http.StatusOK, status)
}

// HandleGetAssignedTasks lists the agent's current working set.
func (h *AgentTasksHandler) HandleGetAssignedTasks(w http.ResponseWriter, r *http.Request) {
	agentID := mux.Vars(r)["agent_id"]

	if !core.IsValidULID(agentID) {
		http.Error(w, "agent_id must be a valid ULID", http.StatusBadRequest)
		return
	}

	tasks, err := h.pickupService.GetAssignedTasks(r.Context(), agentID)
	if err != nil {
		log.Printf("❌ Failed to list tasks for agent %s: %v", agentID, err)
		http.Error(w, "failed to list tasks", http.StatusInternalServerError)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{"tasks": tasks})
}
