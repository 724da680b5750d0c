package models

import "time"

// RemoteSession is one upstream session snapshot reported by a gateway.
// Transient - consumed once per reconciliation pass, never persisted.
type RemoteSession struct {
	Key          string     `json:"key"`
	Label        *string    `json:"label,omitempty"`
	Active       bool       `json:"active"`
	LastActivity *time.Time `json:"last_activity,omitempty"`
}

type SessionEventType string

const (
	SessionEventStarted   SessionEventType = "session.started"
	SessionEventEnded     SessionEventType = "session.ended"
	SessionEventHeartbeat SessionEventType = "agent.heartbeat"
	SessionEventPresence  SessionEventType = "presence"
)

// SessionEvent is one lifecycle event observed on the gateway stream or
// delivered through the webhook boundary.
type SessionEvent struct {
	EventType  SessionEventType `json:"event_type"`
	SessionKey string           `json:"session_key"`
	AgentName  *string          `json:"agent_name,omitempty"`
	ObservedAt time.Time        `json:"observed_at"`
	Metadata   map[string]any   `json:"metadata,omitempty"`
}

// LifecycleKind is the reconciler-facing classification of a session event.
type LifecycleKind string

const (
	LifecycleStarted   LifecycleKind = "started"
	LifecycleEnded     LifecycleKind = "ended"
	LifecycleHeartbeat LifecycleKind = "heartbeat"
)
