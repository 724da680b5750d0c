package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// SetupRouter wires all HTTP endpoints onto one mux router.
func SetupRouter(
	gatewayCallbacks *GatewayCallbacksHandler,
	queue *QueueHandler,
	agentTasks *AgentTasksHandler,
) *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSONResponse(w, http.StatusOK, map[string]any{"status": "ok"})
	}).Methods(http.MethodGet)

	router.HandleFunc("/gateway-callbacks/session-event", gatewayCallbacks.HandleSessionEvent).
		Methods(http.MethodPost)
	router.HandleFunc("/gateway-callbacks/batch-heartbeat", gatewayCallbacks.HandleBatchHeartbeat).
		Methods(http.MethodPost)
	router.HandleFunc("/gateway-callbacks/sync-agents/{gateway_id}", gatewayCallbacks.HandleSyncGateway).
		Methods(http.MethodPost)
	router.HandleFunc("/gateway-callbacks/sync-all", gatewayCallbacks.HandleSyncAll).
		Methods(http.MethodPost)
	router.HandleFunc("/gateway-callbacks/agent/{agent_id}/status", gatewayCallbacks.HandleAgentStatus).
		Methods(http.MethodGet)

	router.HandleFunc("/queue", queue.HandleGetQueue).Methods(http.MethodGet)
	router.HandleFunc("/queue/process", queue.HandleProcessQueue).Methods(http.MethodPost)
	router.HandleFunc("/queue/tasks/{task_id}/assign", queue.HandleAssignTask).Methods(http.MethodPost)
	router.HandleFunc("/queue/tasks/{task_id}/match", queue.HandleMatchTask).Methods(http.MethodGet)

	router.HandleFunc("/agents/{agent_id}/pickup", agentTasks.HandlePickup).Methods(http.MethodPost)
	router.HandleFunc("/agents/{agent_id}/release", agentTasks.HandleRelease).Methods(http.MethodPost)
	router.HandleFunc("/agents/{agent_id}/complete", agentTasks.HandleComplete).Methods(http.MethodPost)
	router.HandleFunc("/agents/{agent_id}/heartbeat", agentTasks.HandleHeartbeat).Methods(http.MethodPost)
	router.HandleFunc("/agents/{agent_id}/tasks", agentTasks.HandleGetAssignedTasks).Methods(http.MethodGet)

	return router
}
