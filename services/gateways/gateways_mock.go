package gateways

import (
	"context"

	"github.com/samber/mo"
	"github.com/stretchr/testify/mock"

	"mcbackend/models"
)

// MockGatewaysService is a mock implementation of the services.GatewaysService interface
type MockGatewaysService struct {
	mock.Mock
}

func (m *MockGatewaysService) GetGatewayByID(ctx context.Context, id string) (mo.Option[*models.Gateway], error) {
	args := m.Called(ctx, id)
	return args.Get(0).(mo.Option[*models.Gateway]), args.Error(1)
}

func (m *MockGatewaysService) GetAllGateways(ctx context.Context) ([]*models.Gateway, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Gateway), args.Error(1)
}
