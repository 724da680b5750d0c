package agents

import (
	"context"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/mock"

	"mcbackend/models"
)

// MockAgentsService is a mock implementation of the services.AgentsService interface
type MockAgentsService struct {
	mock.Mock
}

func (m *MockAgentsService) GetAgentByID(ctx context.Context, id string) (mo.Option[*models.Agent], error) {
	args := m.Called(ctx, id)
	return args.Get(0).(mo.Option[*models.Agent]), args.Error(1)
}

func (m *MockAgentsService) GetAgentBySessionKey(
	ctx context.Context,
	sessionKey string,
) (mo.Option[*models.Agent], error) {
	args := m.Called(ctx, sessionKey)
	return args.Get(0).(mo.Option[*models.Agent]), args.Error(1)
}

func (m *MockAgentsService) GetAllAgents(ctx context.Context) ([]*models.Agent, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Agent), args.Error(1)
}

func (m *MockAgentsService) GetAgentsByGatewayID(ctx context.Context, gatewayID string) ([]*models.Agent, error) {
	args := m.Called(ctx, gatewayID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Agent), args.Error(1)
}

func (m *MockAgentsService) GetAvailableAgents(ctx context.Context, boardID string) ([]*models.Agent, error) {
	args := m.Called(ctx, boardID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Agent), args.Error(1)
}

func (m *MockAgentsService) TransitionAgentStatus(
	ctx context.Context,
	id string,
	fromStatus, toStatus models.AgentStatus,
	lastSeenAt *time.Time,
) (bool, error) {
	args := m.Called(ctx, id, fromStatus, toStatus, lastSeenAt)
	return args.Bool(0), args.Error(1)
}

func (m *MockAgentsService) TouchAgentLastSeen(ctx context.Context, id string, seenAt time.Time) error {
	args := m.Called(ctx, id, seenAt)
	return args.Error(0)
}

func (m *MockAgentsService) UpdateAgentLastHeartbeatAt(ctx context.Context, id string, heartbeatAt time.Time) error {
	args := m.Called(ctx, id, heartbeatAt)
	return args.Error(0)
}
