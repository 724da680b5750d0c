package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/samber/mo"

	// necessary import to wire up the postgres driver
	_ "github.com/lib/pq"

	dbtx "mcbackend/db/tx"
	"mcbackend/models"
)

type PostgresBoardsRepository struct {
	db     *sqlx.DB
	schema string
}

var boardsColumns = []string{
	"id",
	"name",
	"max_agents",
	"auto_promote_review_hours",
	"created_at",
	"updated_at",
}

func NewPostgresBoardsRepository(db *sqlx.DB, schema string) *PostgresBoardsRepository {
	return &PostgresBoardsRepository{db: db, schema: schema}
}

func (r *PostgresBoardsRepository) CreateBoard(ctx context.Context, board *models.Board) error {
	db := dbtx.GetTransactional(ctx, r.db)
	returningStr := strings.Join(boardsColumns, ", ")
	query := fmt.Sprintf(`
		INSERT INTO %s.boards (id, name, max_agents, auto_promote_review_hours, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING %s`, r.schema, returningStr)

	err := db.QueryRowxContext(ctx, query,
		board.ID, board.Name, board.MaxAgents, board.AutoPromoteReviewHours).
		StructScan(board)
	if err != nil {
		return fmt.Errorf("failed to create board: %w", err)
	}

	return nil
}

func (r *PostgresBoardsRepository) GetBoardByID(ctx context.Context, id string) (mo.Option[*models.Board], error) {
	db := dbtx.GetTransactional(ctx, r.db)
	columnsStr := strings.Join(boardsColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.boards
		WHERE id = $1`, columnsStr, r.schema)

	board := &models.Board{}
	err := db.GetContext(ctx, board, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return mo.None[*models.Board](), nil
		}
		return mo.None[*models.Board](), fmt.Errorf("failed to get board: %w", err)
	}

	return mo.Some(board), nil
}
