package boards

import (
	"context"

	"github.com/samber/mo"
	"github.com/stretchr/testify/mock"

	"mcbackend/models"
)

// MockBoardsService is a mock implementation of the services.BoardsService interface
type MockBoardsService struct {
	mock.Mock
}

func (m *MockBoardsService) GetBoardByID(ctx context.Context, id string) (mo.Option[*models.Board], error) {
	args := m.Called(ctx, id)
	return args.Get(0).(mo.Option[*models.Board]), args.Error(1)
}
