package activity

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockActivityService is a mock implementation of the services.ActivityService interface
type MockActivityService struct {
	mock.Mock
}

func (m *MockActivityService) Record(ctx context.Context, eventType, message string, agentID, taskID *string) {
	m.Called(ctx, eventType, message, agentID, taskID)
}
