package liveness

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"mcbackend/models"
)

// MockLivenessService is a mock implementation of the services.LivenessService interface
type MockLivenessService struct {
	mock.Mock
}

func (m *MockLivenessService) ApplyLifecycleEvent(
	ctx context.Context,
	sessionKey string,
	kind models.LifecycleKind,
	observedAt time.Time,
) (bool, error) {
	args := m.Called(ctx, sessionKey, kind, observedAt)
	return args.Bool(0), args.Error(1)
}

func (m *MockLivenessService) ApplyPollSnapshot(
	ctx context.Context,
	agent *models.Agent,
	activeSessionKeys map[string]models.RemoteSession,
	now time.Time,
	offlineAfter time.Duration,
) (bool, error) {
	args := m.Called(ctx, agent, activeSessionKeys, now, offlineAfter)
	return args.Bool(0), args.Error(1)
}

func (m *MockLivenessService) ReconcileAllByTimeout(
	ctx context.Context,
	now time.Time,
	offlineAfter time.Duration,
) (map[models.AgentStatus]int, error) {
	args := m.Called(ctx, now, offlineAfter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[models.AgentStatus]int), args.Error(1)
}
