package handlers

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"mcbackend/core"
	"mcbackend/services"
)

const defaultQueueLimit = 50

// QueueHandler exposes the task queue: inspecting pending work, running
// a scheduling pass, and assigning single tasks on demand.
type QueueHandler struct {
	taskQueueService services.TaskQueueService
}

func NewQueueHandler(taskQueueService services.TaskQueueService) *QueueHandler {
	return &QueueHandler{taskQueueService: taskQueueService}
}

// HandleGetQueue lists pending queue entries, optionally filtered by
// board via the board_id query parameter.
func (h *QueueHandler) HandleGetQueue(w http.ResponseWriter, r *http.Request) {
	log.Printf("📋 Queue listing requested from %s", r.RemoteAddr)

	var boardID *string
	if v := r.URL.Query().Get("board_id"); v != "" {
		if !core.IsValidULID(v) {
			http.Error(w, "board_id must be a valid ULID", http.StatusBadRequest)
			return
		}
		boardID = &v
	}

	limit := defaultQueueLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	entries, err := h.taskQueueService.GetPendingEntries(r.Context(), boardID, limit)
	if err != nil {
		log.Printf("❌ Failed to list queue entries: %v", err)
		http.Error(w, "failed to list queue", http.StatusInternalServerError)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{"entries": entries})
}

// HandleProcessQueue runs one scheduling pass and reports the counts.
func (h *QueueHandler) HandleProcessQueue(w http.ResponseWriter, r *http.Request) {
	log.Printf("📋 Queue processing requested from %s", r.RemoteAddr)

	var boardID *string
	if v := r.URL.Query().Get("board_id"); v != "" {
		if !core.IsValidULID(v) {
			http.Error(w, "board_id must be a valid ULID", http.StatusBadRequest)
			return
		}
		boardID = &v
	}

	result, err := h.taskQueueService.ProcessQueue(r.Context(), boardID, defaultQueueLimit)
	if err != nil {
		log.Printf("❌ Queue processing failed: %v", err)
		http.Error(w, "queue processing failed", http.StatusInternalServerError)
		return
	}

	writeJSONResponse(w, http.StatusOK, result)
}

// HandleAssignTask auto-assigns one specific task to the best available
// agent. 409 when no assignment could be made.
func (h *QueueHandler) HandleAssignTask(w http.ResponseWriter, r *http.Request) {
	taskID := mux.Vars(r)["task_id"]
	log.Printf("📋 On-demand assignment requested for task %s", taskID)

	if !core.IsValidULID(taskID) {
		http.Error(w, "task_id must be a valid ULID", http.StatusBadRequest)
		return
	}

	maybeTask, err := h.taskQueueService.AutoAssignSingleTask(r.Context(), taskID)
	if err != nil {
		if core.IsNotFoundError(err) {
			http.Error(w, "task not found", http.StatusNotFound)
			return
		}
		log.Printf("❌ On-demand assignment failed: %v", err)
		http.Error(w, "assignment failed", http.StatusInternalServerError)
		return
	}
	task, ok := maybeTask.Get()
	if !ok {
		http.Error(w, "no eligible agent or task not claimable", http.StatusConflict)
		return
	}

	writeJSONResponse(w, http.StatusOK, task)
}

// HandleMatchTask dry-runs matching for one task without assigning it.
func (h *QueueHandler) HandleMatchTask(w http.ResponseWriter, r *http.Request) {
	taskID := mux.Vars(r)["task_id"]

	if !core.IsValidULID(taskID) {
		http.Error(w, "task_id must be a valid ULID", http.StatusBadRequest)
		return
	}

	entries, err := h.taskQueueService.GetPendingEntries(r.Context(), nil, defaultQueueLimit)
	if err != nil {
		log.Printf("❌ Failed to load queue for match: %v", err)
		http.Error(w, "failed to load queue", http.StatusInternalServerError)
		return
	}

	for _, entry := range entries {
		if entry.TaskID != taskID {
			continue
		}
		maybeMatch, err := h.taskQueueService.FindBestAgentForTask(r.Context(), entry)
		if err != nil {
			log.Printf("❌ Matching failed for task %s: %v", taskID, err)
			http.Error(w, "matching failed", http.StatusInternalServerError)
			return
		}
		match, ok := maybeMatch.Get()
		if !ok {
			writeJSONResponse(w, http.StatusOK, map[string]any{"match": nil})
			return
		}
		writeJSONResponse(w, http.StatusOK, map[string]any{"match": match})
		return
	}

	http.Error(w, "task not in queue", http.StatusNotFound)
}
