package db

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	// necessary import to wire up the postgres driver
	_ "github.com/lib/pq"

	dbtx "mcbackend/db/tx"
	"mcbackend/models"
)

type PostgresTaskDependenciesRepository struct {
	db     *sqlx.DB
	schema string
}

func NewPostgresTaskDependenciesRepository(db *sqlx.DB, schema string) *PostgresTaskDependenciesRepository {
	return &PostgresTaskDependenciesRepository{db: db, schema: schema}
}

// GetDependencyIDs returns the ids of tasks the given task depends on.
func (r *PostgresTaskDependenciesRepository) GetDependencyIDs(
	ctx context.Context,
	taskID string,
) ([]string, error) {
	db := dbtx.GetTransactional(ctx, r.db)
	query := fmt.Sprintf(`
		SELECT depends_on_task_id
		FROM %s.task_dependencies
		WHERE task_id = $1`, r.schema)

	var ids []string
	err := db.SelectContext(ctx, &ids, query, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to get dependency ids: %w", err)
	}

	return ids, nil
}

// GetStatusesByTaskIDs returns the current status of each given task.
// Tasks that do not exist are simply absent from the result.
func (r *PostgresTaskDependenciesRepository) GetStatusesByTaskIDs(
	ctx context.Context,
	taskIDs []string,
) (map[string]models.TaskStatus, error) {
	statuses := make(map[string]models.TaskStatus)
	if len(taskIDs) == 0 {
		return statuses, nil
	}

	db := dbtx.GetTransactional(ctx, r.db)
	query, args, err := sqlx.In(fmt.Sprintf(`
		SELECT id, status
		FROM %s.tasks
		WHERE id IN (?)`, r.schema), taskIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to build dependency status query: %w", err)
	}
	query = sqlx.Rebind(sqlx.DOLLAR, query)

	var rows []struct {
		ID     string            `db:"id"`
		Status models.TaskStatus `db:"status"`
	}
	if err := db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get dependency statuses: %w", err)
	}

	for _, row := range rows {
		statuses[row.ID] = row.Status
	}

	return statuses, nil
}
