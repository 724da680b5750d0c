package boards

import (
	"context"
	"fmt"
	"log"

	"github.com/samber/mo"

	"mcbackend/core"
	"mcbackend/models"
)

type BoardsRepository interface {
	CreateBoard(ctx context.Context, board *models.Board) error
	GetBoardByID(ctx context.Context, id string) (mo.Option[*models.Board], error)
}

type BoardsService struct {
	boardsRepo BoardsRepository
}

func NewBoardsService(repo BoardsRepository) *BoardsService {
	return &BoardsService{boardsRepo: repo}
}

func (s *BoardsService) GetBoardByID(ctx context.Context, id string) (mo.Option[*models.Board], error) {
	log.Printf("📋 Starting to get board by ID: %s", id)
	if !core.IsValidULID(id) {
		return mo.None[*models.Board](), fmt.Errorf("board ID must be a valid ULID")
	}

	maybeBoard, err := s.boardsRepo.GetBoardByID(ctx, id)
	if err != nil {
		return mo.None[*models.Board](), fmt.Errorf("failed to get board: %w", err)
	}

	log.Printf("📋 Completed successfully - retrieved board by ID: %s", id)
	return maybeBoard, nil
}
