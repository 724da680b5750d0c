package models

import "time"

type ActivityEvent struct {
	ID        string    `json:"id"         db:"id"`
	EventType string    `json:"event_type" db:"event_type"`
	Message   string    `json:"message"    db:"message"`
	AgentID   *string   `json:"agent_id"   db:"agent_id"`
	TaskID    *string   `json:"task_id"    db:"task_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
