package models

import "time"

type Board struct {
	ID                     string    `json:"id"                        db:"id"`
	Name                   string    `json:"name"                      db:"name"`
	MaxAgents              int       `json:"max_agents"                db:"max_agents"`
	AutoPromoteReviewHours int       `json:"auto_promote_review_hours" db:"auto_promote_review_hours"`
	CreatedAt              time.Time `json:"created_at"                db:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"                db:"updated_at"`
}
