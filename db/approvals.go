package db

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	// necessary import to wire up the postgres driver
	_ "github.com/lib/pq"

	dbtx "mcbackend/db/tx"
)

type PostgresApprovalsRepository struct {
	db     *sqlx.DB
	schema string
}

func NewPostgresApprovalsRepository(db *sqlx.DB, schema string) *PostgresApprovalsRepository {
	return &PostgresApprovalsRepository{db: db, schema: schema}
}

// HasPendingApprovals reports whether any pending approval references
// the task. Pending approvals block auto-promotion out of review.
func (r *PostgresApprovalsRepository) HasPendingApprovals(ctx context.Context, taskID string) (bool, error) {
	db := dbtx.GetTransactional(ctx, r.db)
	query := fmt.Sprintf(`
		SELECT EXISTS (
			SELECT 1
			FROM %s.approvals
			WHERE task_id = $1 AND status = 'pending'
		)`, r.schema)

	var exists bool
	err := db.GetContext(ctx, &exists, query, taskID)
	if err != nil {
		return false, fmt.Errorf("failed to check pending approvals: %w", err)
	}

	return exists, nil
}
