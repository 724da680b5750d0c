package core

import (
	"time"

	"mcbackend/models"
)

// ClassifyStatus derives an agent's liveness status from its last-seen
// timestamp alone. This is the single place where the offline-threshold
// policy lives - every reconciliation path goes through it.
//
// Rules: never seen -> provisioning; seen but stale beyond offlineAfter
// -> offline; otherwise online.
func ClassifyStatus(lastSeen *time.Time, now time.Time, offlineAfter time.Duration) models.AgentStatus {
	if lastSeen == nil {
		return models.AgentStatusProvisioning
	}
	if now.Sub(*lastSeen) > offlineAfter {
		return models.AgentStatusOffline
	}
	return models.AgentStatusOnline
}
