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

type PostgresGatewaysRepository struct {
	db     *sqlx.DB
	schema string
}

var gatewaysColumns = []string{
	"id",
	"name",
	"url",
	"token",
	"allow_insecure_tls",
	"created_at",
	"updated_at",
}

func NewPostgresGatewaysRepository(db *sqlx.DB, schema string) *PostgresGatewaysRepository {
	return &PostgresGatewaysRepository{db: db, schema: schema}
}

func (r *PostgresGatewaysRepository) CreateGateway(ctx context.Context, gateway *models.Gateway) error {
	db := dbtx.GetTransactional(ctx, r.db)
	returningStr := strings.Join(gatewaysColumns, ", ")
	query := fmt.Sprintf(`
		INSERT INTO %s.gateways (id, name, url, token, allow_insecure_tls, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING %s`, r.schema, returningStr)

	err := db.QueryRowxContext(ctx, query,
		gateway.ID, gateway.Name, gateway.URL, gateway.Token, gateway.AllowInsecureTLS).
		StructScan(gateway)
	if err != nil {
		return fmt.Errorf("failed to create gateway: %w", err)
	}

	return nil
}

func (r *PostgresGatewaysRepository) GetGatewayByID(ctx context.Context, id string) (mo.Option[*models.Gateway], error) {
	db := dbtx.GetTransactional(ctx, r.db)
	columnsStr := strings.Join(gatewaysColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.gateways
		WHERE id = $1`, columnsStr, r.schema)

	gateway := &models.Gateway{}
	err := db.GetContext(ctx, gateway, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return mo.None[*models.Gateway](), nil
		}
		return mo.None[*models.Gateway](), fmt.Errorf("failed to get gateway: %w", err)
	}

	return mo.Some(gateway), nil
}

func (r *PostgresGatewaysRepository) GetAllGateways(ctx context.Context) ([]*models.Gateway, error) {
	db := dbtx.GetTransactional(ctx, r.db)
	columnsStr := strings.Join(gatewaysColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.gateways
		ORDER BY created_at ASC`, columnsStr, r.schema)

	var gateways []*models.Gateway
	err := db.SelectContext(ctx, &gateways, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get all gateways: %w", err)
	}

	return gateways, nil
}
