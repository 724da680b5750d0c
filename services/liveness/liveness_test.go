package liveness

import (
	"context"
	"testing"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"mcbackend/core"
	"mcbackend/models"
	"mcbackend/services/activity"
	"mcbackend/services/agents"
	"mcbackend/testutils"
)

type livenessFixture struct {
	agentsMock   *agents.MockAgentsService
	activityMock *activity.MockActivityService
	service      *LivenessService
}

func newLivenessFixture() *livenessFixture {
	f := &livenessFixture{
		agentsMock:   new(agents.MockAgentsService),
		activityMock: new(activity.MockActivityService),
	}
	f.activityMock.On("Record",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return().Maybe()
	f.service = NewLivenessService(f.agentsMock, f.activityMock)
	return f
}

func TestApplyLifecycleEvent(t *testing.T) {
	boardID := core.NewID("bd")
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	t.Run("session start brings an offline agent online", func(t *testing.T) {
		f := newLivenessFixture()
		agent := testutils.TestAgent(boardID)
		agent.Status = models.AgentStatusOffline

		f.agentsMock.On("GetAgentBySessionKey", mock.Anything, *agent.SessionKey).
			Return(mo.Some(agent), nil)
		f.agentsMock.On("TransitionAgentStatus", mock.Anything, agent.ID,
			models.AgentStatusOffline, models.AgentStatusOnline, &now).Return(true, nil)

		applied, err := f.service.ApplyLifecycleEvent(context.Background(), *agent.SessionKey, models.LifecycleStarted, now)
		require.NoError(t, err)
		assert.True(t, applied)
		f.agentsMock.AssertExpectations(t)
	})

	t.Run("session end marks offline without touching last seen", func(t *testing.T) {
		f := newLivenessFixture()
		agent := testutils.TestAgent(boardID)

		f.agentsMock.On("GetAgentBySessionKey", mock.Anything, *agent.SessionKey).
			Return(mo.Some(agent), nil)
		f.agentsMock.On("TransitionAgentStatus", mock.Anything, agent.ID,
			models.AgentStatusOnline, models.AgentStatusOffline, (*time.Time)(nil)).Return(true, nil)

		_, err := f.service.ApplyLifecycleEvent(context.Background(), *agent.SessionKey, models.LifecycleEnded, now)
		require.NoError(t, err)
		f.agentsMock.AssertNotCalled(t, "TouchAgentLastSeen", mock.Anything, mock.Anything, mock.Anything)
		f.activityMock.AssertCalled(t, "Record", mock.Anything, "agent.offline",
			mock.Anything, &agent.ID, (*string)(nil))
	})

	t.Run("session end that loses the guard records nothing", func(t *testing.T) {
		f := newLivenessFixture()
		agent := testutils.TestAgent(boardID)

		f.agentsMock.On("GetAgentBySessionKey", mock.Anything, *agent.SessionKey).
			Return(mo.Some(agent), nil)
		f.agentsMock.On("TransitionAgentStatus", mock.Anything, agent.ID,
			models.AgentStatusOnline, models.AgentStatusOffline, (*time.Time)(nil)).Return(false, nil)

		_, err := f.service.ApplyLifecycleEvent(context.Background(), *agent.SessionKey, models.LifecycleEnded, now)
		require.NoError(t, err)
		f.activityMock.AssertNotCalled(t, "Record", mock.Anything, "agent.offline",
			mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("heartbeat advances last seen but does not revive offline agents", func(t *testing.T) {
		f := newLivenessFixture()
		agent := testutils.TestAgent(boardID)
		agent.Status = models.AgentStatusOffline

		f.agentsMock.On("GetAgentBySessionKey", mock.Anything, *agent.SessionKey).
			Return(mo.Some(agent), nil)
		f.agentsMock.On("TouchAgentLastSeen", mock.Anything, agent.ID, now).Return(nil)
		f.agentsMock.On("UpdateAgentLastHeartbeatAt", mock.Anything, agent.ID, now).Return(nil)

		_, err := f.service.ApplyLifecycleEvent(context.Background(), *agent.SessionKey, models.LifecycleHeartbeat, now)
		require.NoError(t, err)
		f.agentsMock.AssertNotCalled(t, "TransitionAgentStatus",
			mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("heartbeat promotes a provisioning agent online and records it", func(t *testing.T) {
		f := newLivenessFixture()
		agent := testutils.TestAgent(boardID)
		agent.Status = models.AgentStatusProvisioning

		f.agentsMock.On("GetAgentBySessionKey", mock.Anything, *agent.SessionKey).
			Return(mo.Some(agent), nil)
		f.agentsMock.On("TouchAgentLastSeen", mock.Anything, agent.ID, now).Return(nil)
		f.agentsMock.On("UpdateAgentLastHeartbeatAt", mock.Anything, agent.ID, now).Return(nil)
		f.agentsMock.On("TransitionAgentStatus", mock.Anything, agent.ID,
			models.AgentStatusProvisioning, models.AgentStatusOnline, &now).Return(true, nil)

		_, err := f.service.ApplyLifecycleEvent(context.Background(), *agent.SessionKey, models.LifecycleHeartbeat, now)
		require.NoError(t, err)
		f.agentsMock.AssertExpectations(t)
		f.activityMock.AssertCalled(t, "Record", mock.Anything, "agent.online",
			mock.Anything, &agent.ID, (*string)(nil))
	})

	t.Run("promotion that loses the guard records nothing", func(t *testing.T) {
		f := newLivenessFixture()
		agent := testutils.TestAgent(boardID)
		agent.Status = models.AgentStatusProvisioning

		f.agentsMock.On("GetAgentBySessionKey", mock.Anything, *agent.SessionKey).
			Return(mo.Some(agent), nil)
		f.agentsMock.On("TouchAgentLastSeen", mock.Anything, agent.ID, now).Return(nil)
		f.agentsMock.On("UpdateAgentLastHeartbeatAt", mock.Anything, agent.ID, now).Return(nil)
		f.agentsMock.On("TransitionAgentStatus", mock.Anything, agent.ID,
			models.AgentStatusProvisioning, models.AgentStatusOnline, &now).Return(false, nil)

		_, err := f.service.ApplyLifecycleEvent(context.Background(), *agent.SessionKey, models.LifecycleHeartbeat, now)
		require.NoError(t, err)
		f.activityMock.AssertNotCalled(t, "Record", mock.Anything, "agent.online",
			mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("transitional agents are never overwritten", func(t *testing.T) {
		for _, status := range []models.AgentStatus{models.AgentStatusDeleting, models.AgentStatusUpdating} {
			f := newLivenessFixture()
			agent := testutils.TestAgent(boardID)
			agent.Status = status

			f.agentsMock.On("GetAgentBySessionKey", mock.Anything, *agent.SessionKey).
				Return(mo.Some(agent), nil)

			applied, err := f.service.ApplyLifecycleEvent(context.Background(), *agent.SessionKey, models.LifecycleStarted, now)
			require.NoError(t, err)
			assert.False(t, applied)
			f.agentsMock.AssertNotCalled(t, "TransitionAgentStatus",
				mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		}
	})

	t.Run("unknown session key is dropped silently", func(t *testing.T) {
		f := newLivenessFixture()
		f.agentsMock.On("GetAgentBySessionKey", mock.Anything, "sess-unknown").
			Return(mo.None[*models.Agent](), nil)

		applied, err := f.service.ApplyLifecycleEvent(context.Background(), "sess-unknown", models.LifecycleStarted, now)
		require.NoError(t, err)
		assert.False(t, applied)
	})

	t.Run("unknown lifecycle kind is a contract violation", func(t *testing.T) {
		f := newLivenessFixture()
		agent := testutils.TestAgent(boardID)

		f.agentsMock.On("GetAgentBySessionKey", mock.Anything, *agent.SessionKey).
			Return(mo.Some(agent), nil)

		assert.Panics(t, func() {
			_, _ = f.service.ApplyLifecycleEvent(
				context.Background(), *agent.SessionKey, models.LifecycleKind("bogus"), now)
		})
	})

	t.Run("repeated events are idempotent", func(t *testing.T) {
		f := newLivenessFixture()
		agent := testutils.TestAgent(boardID)
		agent.Status = models.AgentStatusOffline

		f.agentsMock.On("GetAgentBySessionKey", mock.Anything, *agent.SessionKey).
			Return(mo.Some(agent), nil)
		f.agentsMock.On("GetAgentByID", mock.Anything, agent.ID).Return(mo.Some(agent), nil)
		// First event applies, the second loses the guard - both succeed
		f.agentsMock.On("TransitionAgentStatus", mock.Anything, agent.ID,
			models.AgentStatusOffline, models.AgentStatusOnline, &now).Return(true, nil).Once()
		f.agentsMock.On("TransitionAgentStatus", mock.Anything, agent.ID,
			models.AgentStatusOffline, models.AgentStatusOnline, &now).Return(false, nil).Once()

		applied, err := f.service.ApplyLifecycleEvent(
			context.Background(), *agent.SessionKey, models.LifecycleStarted, now)
		require.NoError(t, err)
		assert.True(t, applied)
		applied, err = f.service.ApplyLifecycleEvent(
			context.Background(), *agent.SessionKey, models.LifecycleStarted, now)
		require.NoError(t, err)
		assert.True(t, applied)
	})
}

func TestApplyLifecycleEvent_SessionKeyCache(t *testing.T) {
	boardID := core.NewID("bd")
	now := time.Now().UTC()

	t.Run("second event resolves through the cache", func(t *testing.T) {
		f := newLivenessFixture()
		agent := testutils.TestAgent(boardID)

		f.agentsMock.On("GetAgentBySessionKey", mock.Anything, *agent.SessionKey).
			Return(mo.Some(agent), nil).Once()
		f.agentsMock.On("GetAgentByID", mock.Anything, agent.ID).Return(mo.Some(agent), nil).Once()
		f.agentsMock.On("TouchAgentLastSeen", mock.Anything, agent.ID, now).Return(nil)
		f.agentsMock.On("UpdateAgentLastHeartbeatAt", mock.Anything, agent.ID, now).Return(nil)

		_, err := f.service.ApplyLifecycleEvent(
			context.Background(), *agent.SessionKey, models.LifecycleHeartbeat, now)
		require.NoError(t, err)
		_, err = f.service.ApplyLifecycleEvent(
			context.Background(), *agent.SessionKey, models.LifecycleHeartbeat, now)
		require.NoError(t, err)
		f.agentsMock.AssertExpectations(t)
	})

	t.Run("stale cache entry is evicted and re-resolved", func(t *testing.T) {
		f := newLivenessFixture()
		oldAgent := testutils.TestAgent(boardID)
		newAgent := testutils.TestAgent(boardID)
		sessionKey := *oldAgent.SessionKey
		newAgent.SessionKey = &sessionKey

		// Prime the cache with the old agent, then hand the session key
		// to a different agent
		f.agentsMock.On("GetAgentBySessionKey", mock.Anything, sessionKey).
			Return(mo.Some(oldAgent), nil).Once()
		f.agentsMock.On("TouchAgentLastSeen", mock.Anything, oldAgent.ID, now).Return(nil)
		f.agentsMock.On("UpdateAgentLastHeartbeatAt", mock.Anything, oldAgent.ID, now).Return(nil)
		_, err := f.service.ApplyLifecycleEvent(
			context.Background(), sessionKey, models.LifecycleHeartbeat, now)
		require.NoError(t, err)

		f.agentsMock.On("GetAgentByID", mock.Anything, oldAgent.ID).
			Return(mo.None[*models.Agent](), nil).Once()
		f.agentsMock.On("GetAgentBySessionKey", mock.Anything, sessionKey).
			Return(mo.Some(newAgent), nil).Once()
		f.agentsMock.On("TouchAgentLastSeen", mock.Anything, newAgent.ID, now).Return(nil)
		f.agentsMock.On("UpdateAgentLastHeartbeatAt", mock.Anything, newAgent.ID, now).Return(nil)

		_, err = f.service.ApplyLifecycleEvent(
			context.Background(), sessionKey, models.LifecycleHeartbeat, now)
		require.NoError(t, err)
		f.agentsMock.AssertExpectations(t)
	})
}

func TestApplyPollSnapshot(t *testing.T) {
	boardID := core.NewID("bd")
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	offlineAfter := 10 * time.Minute

	t.Run("active session touches last seen", func(t *testing.T) {
		f := newLivenessFixture()
		agent := testutils.TestAgent(boardID)
		snapshot := map[string]models.RemoteSession{
			*agent.SessionKey: {Key: *agent.SessionKey, Active: true},
		}

		f.agentsMock.On("TouchAgentLastSeen", mock.Anything, agent.ID, now).Return(nil)

		changed, err := f.service.ApplyPollSnapshot(context.Background(), agent, snapshot, now, offlineAfter)
		require.NoError(t, err)
		assert.True(t, changed)
	})

	t.Run("active session revives an offline agent", func(t *testing.T) {
		f := newLivenessFixture()
		agent := testutils.TestAgent(boardID)
		agent.Status = models.AgentStatusOffline
		snapshot := map[string]models.RemoteSession{
			*agent.SessionKey: {Key: *agent.SessionKey, Active: true},
		}

		f.agentsMock.On("TouchAgentLastSeen", mock.Anything, agent.ID, now).Return(nil)
		f.agentsMock.On("TransitionAgentStatus", mock.Anything, agent.ID,
			models.AgentStatusOffline, models.AgentStatusOnline, &now).Return(true, nil)

		changed, err := f.service.ApplyPollSnapshot(context.Background(), agent, snapshot, now, offlineAfter)
		require.NoError(t, err)
		assert.True(t, changed)
		f.agentsMock.AssertExpectations(t)
	})

	t.Run("missing session with stale last seen demotes to offline", func(t *testing.T) {
		f := newLivenessFixture()
		agent := testutils.TestAgent(boardID)
		stale := now.Add(-time.Hour)
		agent.LastSeenAt = &stale

		f.agentsMock.On("TransitionAgentStatus", mock.Anything, agent.ID,
			models.AgentStatusOnline, models.AgentStatusOffline, (*time.Time)(nil)).Return(true, nil)

		changed, err := f.service.ApplyPollSnapshot(
			context.Background(), agent, map[string]models.RemoteSession{}, now, offlineAfter)
		require.NoError(t, err)
		assert.True(t, changed)
	})

	t.Run("missing session with fresh last seen is left alone", func(t *testing.T) {
		f := newLivenessFixture()
		agent := testutils.TestAgent(boardID)

		changed, err := f.service.ApplyPollSnapshot(
			context.Background(), agent, map[string]models.RemoteSession{}, now, offlineAfter)
		require.NoError(t, err)
		assert.False(t, changed)
		f.agentsMock.AssertNotCalled(t, "TransitionAgentStatus",
			mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("never-seen agent keeps its provisioning grace", func(t *testing.T) {
		f := newLivenessFixture()
		agent := testutils.TestAgent(boardID)
		agent.Status = models.AgentStatusProvisioning
		agent.LastSeenAt = nil

		changed, err := f.service.ApplyPollSnapshot(
			context.Background(), agent, map[string]models.RemoteSession{}, now, offlineAfter)
		require.NoError(t, err)
		assert.False(t, changed)
	})

	t.Run("transitional agent is untouched", func(t *testing.T) {
		f := newLivenessFixture()
		agent := testutils.TestAgent(boardID)
		agent.Status = models.AgentStatusDeleting
		snapshot := map[string]models.RemoteSession{
			*agent.SessionKey: {Key: *agent.SessionKey, Active: true},
		}

		changed, err := f.service.ApplyPollSnapshot(context.Background(), agent, snapshot, now, offlineAfter)
		require.NoError(t, err)
		assert.False(t, changed)
		f.agentsMock.AssertNotCalled(t, "TouchAgentLastSeen", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestReconcileAllByTimeout(t *testing.T) {
	boardID := core.NewID("bd")
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	offlineAfter := 10 * time.Minute

	t.Run("demotes only stale working agents", func(t *testing.T) {
		f := newLivenessFixture()

		fresh := testutils.TestAgent(boardID)
		staleOnline := testutils.TestAgent(boardID)
		staleAt := now.Add(-time.Hour)
		staleOnline.LastSeenAt = &staleAt
		staleBusy := testutils.TestAgent(boardID)
		staleBusy.Status = models.AgentStatusBusy
		staleBusy.LastSeenAt = &staleAt
		provisioning := testutils.TestAgent(boardID)
		provisioning.Status = models.AgentStatusProvisioning
		provisioning.LastSeenAt = nil
		deleting := testutils.TestAgent(boardID)
		deleting.Status = models.AgentStatusDeleting
		deleting.LastSeenAt = &staleAt

		f.agentsMock.On("GetAllAgents", mock.Anything).
			Return([]*models.Agent{fresh, staleOnline, staleBusy, provisioning, deleting}, nil)
		f.agentsMock.On("TransitionAgentStatus", mock.Anything, staleOnline.ID,
			models.AgentStatusOnline, models.AgentStatusOffline, (*time.Time)(nil)).Return(true, nil)
		f.agentsMock.On("TransitionAgentStatus", mock.Anything, staleBusy.ID,
			models.AgentStatusBusy, models.AgentStatusOffline, (*time.Time)(nil)).Return(true, nil)

		counts, err := f.service.ReconcileAllByTimeout(context.Background(), now, offlineAfter)
		require.NoError(t, err)
		assert.Equal(t, 2, counts[models.AgentStatusOffline])
		assert.Equal(t, 1, counts[models.AgentStatusOnline])
		assert.Equal(t, 1, counts[models.AgentStatusProvisioning])
		assert.Equal(t, 1, counts[models.AgentStatusDeleting])
		f.agentsMock.AssertExpectations(t)
	})

	t.Run("second sweep converges with no further writes", func(t *testing.T) {
		f := newLivenessFixture()
		offline := testutils.TestAgent(boardID)
		offline.Status = models.AgentStatusOffline
		staleAt := now.Add(-time.Hour)
		offline.LastSeenAt = &staleAt

		f.agentsMock.On("GetAllAgents", mock.Anything).Return([]*models.Agent{offline}, nil)

		counts, err := f.service.ReconcileAllByTimeout(context.Background(), now, offlineAfter)
		require.NoError(t, err)
		assert.Equal(t, 1, counts[models.AgentStatusOffline])
		f.agentsMock.AssertNotCalled(t, "TransitionAgentStatus",
			mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}
