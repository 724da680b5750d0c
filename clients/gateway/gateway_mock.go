package gateway

import (
	"context"

	"github.com/samber/mo"
	"github.com/stretchr/testify/mock"

	"mcbackend/clients"
	"mcbackend/models"
)

// MockGatewayClient is a mock implementation of the clients.GatewayClient interface
type MockGatewayClient struct {
	mock.Mock
}

func (m *MockGatewayClient) ListActiveSessions(
	ctx context.Context,
	cfg clients.GatewayConfig,
) ([]models.RemoteSession, error) {
	args := m.Called(ctx, cfg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.RemoteSession), args.Error(1)
}

func (m *MockGatewayClient) PreviewSession(
	ctx context.Context,
	cfg clients.GatewayConfig,
	sessionKey string,
) (mo.Option[models.RemoteSession], error) {
	args := m.Called(ctx, cfg, sessionKey)
	return args.Get(0).(mo.Option[models.RemoteSession]), args.Error(1)
}

// MockGatewayStreamDialer is a mock implementation of the clients.GatewayStreamDialer interface
type MockGatewayStreamDialer struct {
	mock.Mock
}

func (m *MockGatewayStreamDialer) DialStream(
	ctx context.Context,
	cfg clients.GatewayConfig,
) (clients.GatewayStream, error) {
	args := m.Called(ctx, cfg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(clients.GatewayStream), args.Error(1)
}
