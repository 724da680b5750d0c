package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/samber/mo"

	// necessary import to wire up the postgres driver
	_ "github.com/lib/pq"

	dbtx "mcbackend/db/tx"
	"mcbackend/models"
)

type PostgresAgentsRepository struct {
	db     *sqlx.DB
	schema string
}

// Column names for agents table
var agentsColumns = []string{
	"id",
	"name",
	"gateway_id",
	"board_id",
	"status",
	"session_key",
	"skill_tags",
	"is_board_lead",
	"last_seen_at",
	"last_heartbeat_at",
	"created_at",
	"updated_at",
}

func NewPostgresAgentsRepository(db *sqlx.DB, schema string) *PostgresAgentsRepository {
	return &PostgresAgentsRepository{db: db, schema: schema}
}

func (r *PostgresAgentsRepository) CreateAgent(ctx context.Context, agent *models.Agent) error {
	db := dbtx.GetTransactional(ctx, r.db)
	returningStr := strings.Join(agentsColumns, ", ")
	query := fmt.Sprintf(`
		INSERT INTO %s.agents (id, name, gateway_id, board_id, status, session_key, skill_tags, is_board_lead, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING %s`, r.schema, returningStr)

	err := db.QueryRowxContext(ctx, query,
		agent.ID, agent.Name, agent.GatewayID, agent.BoardID, agent.Status,
		agent.SessionKey, agent.SkillTags, agent.IsBoardLead).
		StructScan(agent)
	if err != nil {
		return fmt.Errorf("failed to create agent: %w", err)
	}

	return nil
}

func (r *PostgresAgentsRepository) GetAgentByID(ctx context.Context, id string) (mo.Option[*models.Agent], error) {
	db := dbtx.GetTransactional(ctx, r.db)
	columnsStr := strings.Join(agentsColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.agents
		WHERE id = $1`, columnsStr, r.schema)

	agent := &models.Agent{}
	err := db.GetContext(ctx, agent, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return mo.None[*models.Agent](), nil
		}
		return mo.None[*models.Agent](), fmt.Errorf("failed to get agent: %w", err)
	}

	return mo.Some(agent), nil
}

func (r *PostgresAgentsRepository) GetAgentBySessionKey(
	ctx context.Context,
	sessionKey string,
) (mo.Option[*models.Agent], error) {
	db := dbtx.GetTransactional(ctx, r.db)
	columnsStr := strings.Join(agentsColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.agents
		WHERE session_key = $1
		LIMIT 1`, columnsStr, r.schema)

	agent := &models.Agent{}
	err := db.GetContext(ctx, agent, query, sessionKey)
	if err != nil {
		if err == sql.ErrNoRows {
			return mo.None[*models.Agent](), nil
		}
		return mo.None[*models.Agent](), fmt.Errorf("failed to get agent by session key: %w", err)
	}

	return mo.Some(agent), nil
}

func (r *PostgresAgentsRepository) GetAllAgents(ctx context.Context) ([]*models.Agent, error) {
	db := dbtx.GetTransactional(ctx, r.db)
	columnsStr := strings.Join(agentsColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.agents
		ORDER BY created_at ASC`, columnsStr, r.schema)

	var agents []*models.Agent
	err := db.SelectContext(ctx, &agents, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get all agents: %w", err)
	}

	return agents, nil
}

func (r *PostgresAgentsRepository) GetAgentsByGatewayID(
	ctx context.Context,
	gatewayID string,
) ([]*models.Agent, error) {
	db := dbtx.GetTransactional(ctx, r.db)
	columnsStr := strings.Join(agentsColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.agents
		WHERE gateway_id = $1
		ORDER BY created_at ASC`, columnsStr, r.schema)

	var agents []*models.Agent
	err := db.SelectContext(ctx, &agents, query, gatewayID)
	if err != nil {
		return nil, fmt.Errorf("failed to get agents by gateway: %w", err)
	}

	return agents, nil
}

// GetAvailableAgents returns agents on a board that can take work:
// online or idle, and not the board lead.
func (r *PostgresAgentsRepository) GetAvailableAgents(
	ctx context.Context,
	boardID string,
) ([]*models.Agent, error) {
	db := dbtx.GetTransactional(ctx, r.db)
	columnsStr := strings.Join(agentsColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.agents
		WHERE board_id = $1 AND status IN ('online', 'idle') AND is_board_lead = FALSE
		ORDER BY created_at ASC`, columnsStr, r.schema)

	var agents []*models.Agent
	err := db.SelectContext(ctx, &agents, query, boardID)
	if err != nil {
		return nil, fmt.Errorf("failed to get available agents: %w", err)
	}

	return agents, nil
}

// UpdateAgentStatus performs the reconciler's conditional write: the
// status (and optionally last_seen_at) is updated only if the row's
// status still equals fromStatus. Returns false when the guard did not
// match, which callers treat as "state moved on", not an error.
func (r *PostgresAgentsRepository) UpdateAgentStatus(
	ctx context.Context,
	id string,
	fromStatus, toStatus models.AgentStatus,
	lastSeenAt *time.Time,
) (bool, error) {
	db := dbtx.GetTransactional(ctx, r.db)
	query := fmt.Sprintf(`
		UPDATE %s.agents
		SET status = $3,
			last_seen_at = COALESCE($4, last_seen_at),
			updated_at = NOW()
		WHERE id = $1 AND status = $2`, r.schema)

	result, err := db.ExecContext(ctx, query, id, fromStatus, toStatus, lastSeenAt)
	if err != nil {
		return false, fmt.Errorf("failed to update agent status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// TouchAgentLastSeen advances last_seen_at without changing status.
// last_seen_at only moves forward - a stale observation never rewinds it.
func (r *PostgresAgentsRepository) TouchAgentLastSeen(
	ctx context.Context,
	id string,
	seenAt time.Time,
) (bool, error) {
	db := dbtx.GetTransactional(ctx, r.db)
	query := fmt.Sprintf(`
		UPDATE %s.agents
		SET last_seen_at = GREATEST(COALESCE(last_seen_at, $2), $2),
			updated_at = NOW()
		WHERE id = $1`, r.schema)

	result, err := db.ExecContext(ctx, query, id, seenAt)
	if err != nil {
		return false, fmt.Errorf("failed to touch agent last_seen_at: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

func (r *PostgresAgentsRepository) UpdateAgentLastHeartbeatAt(
	ctx context.Context,
	id string,
	heartbeatAt time.Time,
) (bool, error) {
	db := dbtx.GetTransactional(ctx, r.db)
	query := fmt.Sprintf(`
		UPDATE %s.agents
		SET last_heartbeat_at = $2,
			updated_at = NOW()
		WHERE id = $1`, r.schema)

	result, err := db.ExecContext(ctx, query, id, heartbeatAt)
	if err != nil {
		return false, fmt.Errorf("failed to update agent last_heartbeat_at: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

func (r *PostgresAgentsRepository) DeleteAgent(ctx context.Context, id string) (bool, error) {
	db := dbtx.GetTransactional(ctx, r.db)
	query := fmt.Sprintf("DELETE FROM %s.agents WHERE id = $1", r.schema)

	result, err := db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete agent: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}
