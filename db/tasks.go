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

type PostgresTasksRepository struct {
	db     *sqlx.DB
	schema string
}

// Column names for tasks table
var tasksColumns = []string{
	"id",
	"board_id",
	"title",
	"description",
	"priority",
	"status",
	"assigned_agent_id",
	"claimed_at",
	"in_progress_at",
	"created_at",
	"updated_at",
}

func NewPostgresTasksRepository(db *sqlx.DB, schema string) *PostgresTasksRepository {
	return &PostgresTasksRepository{db: db, schema: schema}
}

func (r *PostgresTasksRepository) CreateTask(ctx context.Context, task *models.Task) error {
	db := dbtx.GetTransactional(ctx, r.db)
	returningStr := strings.Join(tasksColumns, ", ")
	query := fmt.Sprintf(`
		INSERT INTO %s.tasks (id, board_id, title, description, priority, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING %s`, r.schema, returningStr)

	err := db.QueryRowxContext(ctx, query,
		task.ID, task.BoardID, task.Title, task.Description, task.Priority, task.Status).
		StructScan(task)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	return nil
}

func (r *PostgresTasksRepository) GetTaskByID(ctx context.Context, id string) (mo.Option[*models.Task], error) {
	db := dbtx.GetTransactional(ctx, r.db)
	columnsStr := strings.Join(tasksColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.tasks
		WHERE id = $1`, columnsStr, r.schema)

	task := &models.Task{}
	err := db.GetContext(ctx, task, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return mo.None[*models.Task](), nil
		}
		return mo.None[*models.Task](), fmt.Errorf("failed to get task: %w", err)
	}

	return mo.Some(task), nil
}

// GetPendingTasks returns unassigned inbox tasks ordered by priority
// (urgent first) then age (oldest first).
func (r *PostgresTasksRepository) GetPendingTasks(
	ctx context.Context,
	boardID *string,
	limit int,
) ([]*models.Task, error) {
	db := dbtx.GetTransactional(ctx, r.db)
	columnsStr := strings.Join(tasksColumns, ", ")

	var args []interface{}
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.tasks
		WHERE status = 'inbox' AND assigned_agent_id IS NULL`, columnsStr, r.schema)

	if boardID != nil {
		query += ` AND board_id = $1`
		args = append(args, *boardID)
	}

	query += fmt.Sprintf(`
		ORDER BY
			CASE priority
				WHEN 'urgent' THEN 0
				WHEN 'high' THEN 1
				WHEN 'medium' THEN 2
				WHEN 'low' THEN 3
				ELSE 4
			END,
			created_at ASC
		LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	var tasks []*models.Task
	err := db.SelectContext(ctx, &tasks, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending tasks: %w", err)
	}

	return tasks, nil
}

// GetNextPickupTask returns the oldest highest-priority task in
// 'pending' status with no assignee, for the agent pickup path.
func (r *PostgresTasksRepository) GetNextPickupTask(ctx context.Context) (mo.Option[*models.Task], error) {
	db := dbtx.GetTransactional(ctx, r.db)
	columnsStr := strings.Join(tasksColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.tasks
		WHERE status = 'pending' AND assigned_agent_id IS NULL AND claimed_at IS NULL
		ORDER BY
			CASE priority
				WHEN 'urgent' THEN 0
				WHEN 'high' THEN 1
				WHEN 'medium' THEN 2
				WHEN 'low' THEN 3
				ELSE 4
			END,
			created_at ASC
		LIMIT 1`, columnsStr, r.schema)

	task := &models.Task{}
	err := db.GetContext(ctx, task, query)
	if err != nil {
		if err == sql.ErrNoRows {
			return mo.None[*models.Task](), nil
		}
		return mo.None[*models.Task](), fmt.Errorf("failed to get next pickup task: %w", err)
	}

	return mo.Some(task), nil
}

// AssignTask is the atomic claim. The write succeeds only if, at write
// time, the task is still unassigned and in the expected status - two
// racing claimers cannot both win. Returns false when the guard fails.
func (r *PostgresTasksRepository) AssignTask(
	ctx context.Context,
	taskID, agentID string,
	fromStatus models.TaskStatus,
	autoClaimed bool,
) (bool, error) {
	db := dbtx.GetTransactional(ctx, r.db)

	var query string
	if autoClaimed {
		query = fmt.Sprintf(`
			UPDATE %s.tasks
			SET assigned_agent_id = $2,
				claimed_at = NOW(),
				in_progress_at = NOW(),
				status = 'in_progress',
				updated_at = NOW()
			WHERE id = $1 AND status = $3 AND assigned_agent_id IS NULL`, r.schema)
	} else {
		query = fmt.Sprintf(`
			UPDATE %s.tasks
			SET assigned_agent_id = $2,
				updated_at = NOW()
			WHERE id = $1 AND status = $3 AND assigned_agent_id IS NULL`, r.schema)
	}

	result, err := db.ExecContext(ctx, query, taskID, agentID, fromStatus)
	if err != nil {
		return false, fmt.Errorf("failed to assign task: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// ReleaseTask resets a task back to pending. Only the currently assigned
// agent may release; the guard makes the check-and-reset one atomic write.
func (r *PostgresTasksRepository) ReleaseTask(ctx context.Context, taskID, agentID string) (bool, error) {
	db := dbtx.GetTransactional(ctx, r.db)
	query := fmt.Sprintf(`
		UPDATE %s.tasks
		SET assigned_agent_id = NULL,
			claimed_at = NULL,
			status = 'pending',
			updated_at = NOW()
		WHERE id = $1 AND assigned_agent_id = $2`, r.schema)

	result, err := db.ExecContext(ctx, query, taskID, agentID)
	if err != nil {
		return false, fmt.Errorf("failed to release task: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// UpdateTaskStatusByAssignee moves a task between statuses on behalf of
// its assigned agent, atomically verifying ownership.
func (r *PostgresTasksRepository) UpdateTaskStatusByAssignee(
	ctx context.Context,
	taskID, agentID string,
	toStatus models.TaskStatus,
) (bool, error) {
	db := dbtx.GetTransactional(ctx, r.db)
	query := fmt.Sprintf(`
		UPDATE %s.tasks
		SET status = $3,
			updated_at = NOW()
		WHERE id = $1 AND assigned_agent_id = $2`, r.schema)

	result, err := db.ExecContext(ctx, query, taskID, agentID, toStatus)
	if err != nil {
		return false, fmt.Errorf("failed to update task status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// PromoteTaskFromReview moves a reviewed task to done, guarded on the
// task still being in review with the same assignee.
func (r *PostgresTasksRepository) PromoteTaskFromReview(ctx context.Context, taskID string) (bool, error) {
	db := dbtx.GetTransactional(ctx, r.db)
	query := fmt.Sprintf(`
		UPDATE %s.tasks
		SET status = 'done',
			updated_at = NOW()
		WHERE id = $1 AND status = 'review' AND assigned_agent_id IS NOT NULL`, r.schema)

	result, err := db.ExecContext(ctx, query, taskID)
	if err != nil {
		return false, fmt.Errorf("failed to promote task: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// GetTasksInReview returns tasks sitting in review with an assignee,
// candidates for auto-promotion.
func (r *PostgresTasksRepository) GetTasksInReview(ctx context.Context) ([]*models.Task, error) {
	db := dbtx.GetTransactional(ctx, r.db)
	columnsStr := strings.Join(tasksColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.tasks
		WHERE status = 'review' AND assigned_agent_id IS NOT NULL
		ORDER BY updated_at ASC`, columnsStr, r.schema)

	var tasks []*models.Task
	err := db.SelectContext(ctx, &tasks, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get tasks in review: %w", err)
	}

	return tasks, nil
}

// CountActiveTasksForAgent counts tasks the agent currently holds in
// working statuses. Used as the matcher's load input and the pickup cap.
func (r *PostgresTasksRepository) CountActiveTasksForAgent(
	ctx context.Context,
	agentID string,
	statuses []models.TaskStatus,
) (int, error) {
	db := dbtx.GetTransactional(ctx, r.db)

	statusArgs := make([]string, 0, len(statuses))
	args := []interface{}{agentID}
	for i, s := range statuses {
		statusArgs = append(statusArgs, fmt.Sprintf("$%d", i+2))
		args = append(args, string(s))
	}

	query := fmt.Sprintf(`
		SELECT COUNT(*)
		FROM %s.tasks
		WHERE assigned_agent_id = $1 AND status IN (%s)`, r.schema, strings.Join(statusArgs, ", "))

	var count int
	err := db.GetContext(ctx, &count, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to count active tasks for agent: %w", err)
	}

	return count, nil
}

func (r *PostgresTasksRepository) GetTasksByAssignee(
	ctx context.Context,
	agentID string,
	statuses []models.TaskStatus,
) ([]*models.Task, error) {
	db := dbtx.GetTransactional(ctx, r.db)
	columnsStr := strings.Join(tasksColumns, ", ")

	statusArgs := make([]string, 0, len(statuses))
	args := []interface{}{agentID}
	for i, s := range statuses {
		statusArgs = append(statusArgs, fmt.Sprintf("$%d", i+2))
		args = append(args, string(s))
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.tasks
		WHERE assigned_agent_id = $1 AND status IN (%s)
		ORDER BY claimed_at ASC NULLS LAST`, columnsStr, r.schema, strings.Join(statusArgs, ", "))

	var tasks []*models.Task
	err := db.SelectContext(ctx, &tasks, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get tasks by assignee: %w", err)
	}

	return tasks, nil
}

func (r *PostgresTasksRepository) CountPickupableTasks(ctx context.Context) (int, error) {
	db := dbtx.GetTransactional(ctx, r.db)
	query := fmt.Sprintf(`
		SELECT COUNT(*)
		FROM %s.tasks
		WHERE status = 'pending' AND assigned_agent_id IS NULL AND claimed_at IS NULL`, r.schema)

	var count int
	err := db.GetContext(ctx, &count, query)
	if err != nil {
		return 0, fmt.Errorf("failed to count pickupable tasks: %w", err)
	}

	return count, nil
}

// GetTagIDsForTasks returns the tag-id set for each of the given tasks.
func (r *PostgresTasksRepository) GetTagIDsForTasks(
	ctx context.Context,
	taskIDs []string,
) (map[string][]string, error) {
	tagMap := make(map[string][]string)
	if len(taskIDs) == 0 {
		return tagMap, nil
	}

	db := dbtx.GetTransactional(ctx, r.db)
	query, args, err := sqlx.In(fmt.Sprintf(`
		SELECT task_id, tag_id
		FROM %s.task_tags
		WHERE task_id IN (?)`, r.schema), taskIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to build task tags query: %w", err)
	}
	query = sqlx.Rebind(sqlx.DOLLAR, query)

	var rows []struct {
		TaskID string `db:"task_id"`
		TagID  string `db:"tag_id"`
	}
	if err := db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get tags for tasks: %w", err)
	}

	for _, row := range rows {
		tagMap[row.TaskID] = append(tagMap[row.TaskID], row.TagID)
	}

	return tagMap, nil
}
