package models

import (
	"time"
)

type TaskStatus string

const (
	TaskStatusInbox      TaskStatus = "inbox"
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusReview     TaskStatus = "review"
	TaskStatusDone       TaskStatus = "done"
)

type TaskPriority string

const (
	TaskPriorityUrgent TaskPriority = "urgent"
	TaskPriorityHigh   TaskPriority = "high"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityLow    TaskPriority = "low"
)

// PriorityScore is the base match score contributed by a task's priority.
// Unknown priorities score as medium.
func (p TaskPriority) PriorityScore() float64 {
	switch p {
	case TaskPriorityUrgent:
		return 100.0
	case TaskPriorityHigh:
		return 75.0
	case TaskPriorityMedium:
		return 50.0
	case TaskPriorityLow:
		return 25.0
	default:
		return 50.0
	}
}

type Task struct {
	ID              string       `json:"id"                db:"id"`
	BoardID         string       `json:"board_id"          db:"board_id"`
	Title           string       `json:"title"             db:"title"`
	Description     *string      `json:"description"       db:"description"`
	Priority        TaskPriority `json:"priority"          db:"priority"`
	Status          TaskStatus   `json:"status"            db:"status"`
	AssignedAgentID *string      `json:"assigned_agent_id" db:"assigned_agent_id"`
	ClaimedAt       *time.Time   `json:"claimed_at"        db:"claimed_at"`
	InProgressAt    *time.Time   `json:"in_progress_at"    db:"in_progress_at"`
	CreatedAt       time.Time    `json:"created_at"        db:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"        db:"updated_at"`
}

// TaskQueueEntry is a pending task decorated with its tag set, used only
// to rank candidates within one scheduling pass.
type TaskQueueEntry struct {
	TaskID    string       `json:"task_id"`
	BoardID   string       `json:"board_id"`
	Priority  TaskPriority `json:"priority"`
	Title     string       `json:"title"`
	TagIDs    []string     `json:"tag_ids"`
	CreatedAt time.Time    `json:"created_at"`
}

// AgentMatchResult is the transient result of scoring one agent against
// one task. Never persisted.
type AgentMatchResult struct {
	AgentID           string   `json:"agent_id"`
	AgentName         string   `json:"agent_name"`
	MatchScore        float64  `json:"match_score"`
	MatchedSkills     []string `json:"matched_skills"`
	AvailabilityScore float64  `json:"availability_score"`
}

// AgentWorkStatus is the heartbeat response payload: the agent's current
// working set and whether it may claim more work.
type AgentWorkStatus struct {
	Tasks          []*Task `json:"tasks"`
	AvailableTasks int     `json:"available_tasks"`
	CanClaim       bool    `json:"can_claim"`
}

// QueueProcessResult summarizes one queue-draining pass.
type QueueProcessResult struct {
	Processed int `json:"processed"`
	Assigned  int `json:"assigned"`
	Skipped   int `json:"skipped"`
	Errored   int `json:"errored"`
}
