package notifications

import (
	"context"

	"github.com/stretchr/testify/mock"

	"mcbackend/models"
)

// MockNotificationsService is a mock implementation of the
// services.NotificationsService interface
type MockNotificationsService struct {
	mock.Mock
}

func (m *MockNotificationsService) NotifyTaskAssigned(
	ctx context.Context,
	task *models.Task,
	agentName string,
	autoClaimed bool,
) {
	m.Called(ctx, task, agentName, autoClaimed)
}

func (m *MockNotificationsService) NotifyTaskCompleted(
	ctx context.Context,
	task *models.Task,
	agentName, resultSummary string,
) {
	m.Called(ctx, task, agentName, resultSummary)
}
