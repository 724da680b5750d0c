package models

import (
	"time"

	"github.com/lib/pq"
)

type AgentStatus string

const (
	AgentStatusProvisioning AgentStatus = "provisioning"
	AgentStatusOnline       AgentStatus = "online"
	AgentStatusIdle         AgentStatus = "idle"
	AgentStatusOffline      AgentStatus = "offline"
	AgentStatusBusy         AgentStatus = "busy"
	AgentStatusDeleting     AgentStatus = "deleting"
	AgentStatusUpdating     AgentStatus = "updating"
)

// IsTransitional reports whether the status is an externally-driven
// lifecycle state that the reconciler must never overwrite.
func (s AgentStatus) IsTransitional() bool {
	return s == AgentStatusDeleting || s == AgentStatusUpdating
}

type Agent struct {
	ID              string         `json:"id"                db:"id"`
	Name            string         `json:"name"              db:"name"`
	GatewayID       string         `json:"gateway_id"        db:"gateway_id"`
	BoardID         *string        `json:"board_id"          db:"board_id"`
	Status          AgentStatus    `json:"status"            db:"status"`
	SessionKey      *string        `json:"session_key"       db:"session_key"`
	SkillTags       pq.StringArray `json:"skill_tags"        db:"skill_tags"`
	IsBoardLead     bool           `json:"is_board_lead"     db:"is_board_lead"`
	LastSeenAt      *time.Time     `json:"last_seen_at"      db:"last_seen_at"`
	LastHeartbeatAt *time.Time     `json:"last_heartbeat_at" db:"last_heartbeat_at"`
	CreatedAt       time.Time      `json:"created_at"        db:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"        db:"updated_at"`
}
