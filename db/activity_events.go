package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	// necessary import to wire up the postgres driver
	_ "github.com/lib/pq"

	dbtx "mcbackend/db/tx"
	"mcbackend/models"
)

type PostgresActivityEventsRepository struct {
	db     *sqlx.DB
	schema string
}

var activityEventsColumns = []string{
	"id",
	"event_type",
	"message",
	"agent_id",
	"task_id",
	"created_at",
}

func NewPostgresActivityEventsRepository(db *sqlx.DB, schema string) *PostgresActivityEventsRepository {
	return &PostgresActivityEventsRepository{db: db, schema: schema}
}

func (r *PostgresActivityEventsRepository) CreateActivityEvent(
	ctx context.Context,
	event *models.ActivityEvent,
) error {
	db := dbtx.GetTransactional(ctx, r.db)
	returningStr := strings.Join(activityEventsColumns, ", ")
	query := fmt.Sprintf(`
		INSERT INTO %s.activity_events (id, event_type, message, agent_id, task_id, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING %s`, r.schema, returningStr)

	err := db.QueryRowxContext(ctx, query,
		event.ID, event.EventType, event.Message, event.AgentID, event.TaskID).
		StructScan(event)
	if err != nil {
		return fmt.Errorf("failed to create activity event: %w", err)
	}

	return nil
}

func (r *PostgresActivityEventsRepository) GetRecentActivityEvents(
	ctx context.Context,
	limit int,
) ([]*models.ActivityEvent, error) {
	db := dbtx.GetTransactional(ctx, r.db)
	columnsStr := strings.Join(activityEventsColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.activity_events
		ORDER BY created_at DESC
		LIMIT $1`, columnsStr, r.schema)

	var events []*models.ActivityEvent
	err := db.SelectContext(ctx, &events, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent activity events: %w", err)
	}

	return events, nil
}
