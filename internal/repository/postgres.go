package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flowgate-systems/flowgate/internal/models"
)

const queryTimeout = 5 * time.Second

// PostgresRepository implements Repository on a pgx connection pool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository connects to PostgreSQL and verifies the connection.
func NewPostgresRepository(ctx context.Context, connString string) (*PostgresRepository, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 5
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

func (r *PostgresRepository) Close() {
	r.pool.Close()
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *PostgresRepository) DataCoreByName(ctx context.Context, tenant, name string) (*models.DataCore, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		SELECT id, tenant, name, delete_protection, access_control, created_at, updated_at, COALESCE(source_event_id, '')
		FROM data_cores
		WHERE tenant = $1 AND name = $2
	`

	var dc models.DataCore
	err := r.pool.QueryRow(ctx, query, tenant, name).Scan(
		&dc.ID,
		&dc.Tenant,
		&dc.Name,
		&dc.DeleteProtection,
		&dc.AccessControl,
		&dc.CreatedAt,
		&dc.UpdatedAt,
		&dc.SourceEventID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get data core: %w", err)
	}

	return &dc, nil
}

func (r *PostgresRepository) FlowTypeByName(ctx context.Context, dataCoreID, name string) (*models.FlowType, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		SELECT id, data_core_id, name, created_at, updated_at, COALESCE(source_event_id, '')
		FROM flow_types
		WHERE data_core_id = $1 AND name = $2
	`

	var ft models.FlowType
	err := r.pool.QueryRow(ctx, query, dataCoreID, name).Scan(
		&ft.ID,
		&ft.DataCoreID,
		&ft.Name,
		&ft.CreatedAt,
		&ft.UpdatedAt,
		&ft.SourceEventID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get flow type: %w", err)
	}

	return &ft, nil
}

func (r *PostgresRepository) EventTypeByName(ctx context.Context, flowTypeID, name string) (*models.EventType, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		SELECT id, flow_type_id, name, created_at, updated_at, COALESCE(source_event_id, '')
		FROM event_types
		WHERE flow_type_id = $1 AND name = $2
	`

	var et models.EventType
	err := r.pool.QueryRow(ctx, query, flowTypeID, name).Scan(
		&et.ID,
		&et.FlowTypeID,
		&et.Name,
		&et.CreatedAt,
		&et.UpdatedAt,
		&et.SourceEventID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get event type: %w", err)
	}

	return &et, nil
}

func (r *PostgresRepository) DataCoreByID(ctx context.Context, id string) (*models.DataCore, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		SELECT id, tenant, name, delete_protection, access_control, created_at, updated_at, COALESCE(source_event_id, '')
		FROM data_cores
		WHERE id = $1
	`

	var dc models.DataCore
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&dc.ID,
		&dc.Tenant,
		&dc.Name,
		&dc.DeleteProtection,
		&dc.AccessControl,
		&dc.CreatedAt,
		&dc.UpdatedAt,
		&dc.SourceEventID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get data core: %w", err)
	}

	return &dc, nil
}

func (r *PostgresRepository) FlowTypeByID(ctx context.Context, id string) (*models.FlowType, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		SELECT id, data_core_id, name, created_at, updated_at, COALESCE(source_event_id, '')
		FROM flow_types
		WHERE id = $1
	`

	var ft models.FlowType
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&ft.ID,
		&ft.DataCoreID,
		&ft.Name,
		&ft.CreatedAt,
		&ft.UpdatedAt,
		&ft.SourceEventID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get flow type: %w", err)
	}

	return &ft, nil
}

func (r *PostgresRepository) EventTypeByID(ctx context.Context, id string) (*models.EventType, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		SELECT id, flow_type_id, name, created_at, updated_at, COALESCE(source_event_id, '')
		FROM event_types
		WHERE id = $1
	`

	var et models.EventType
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&et.ID,
		&et.FlowTypeID,
		&et.Name,
		&et.CreatedAt,
		&et.UpdatedAt,
		&et.SourceEventID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get event type: %w", err)
	}

	return &et, nil
}

// UpsertDataCore inserts a data core row or, on id conflict, refreshes it
// with the incoming lifecycle event's view of the resource.
func (r *PostgresRepository) UpsertDataCore(ctx context.Context, dc *models.DataCore) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		INSERT INTO data_cores (id, tenant, name, delete_protection, access_control, source_event_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			tenant = EXCLUDED.tenant,
			name = EXCLUDED.name,
			delete_protection = EXCLUDED.delete_protection,
			access_control = EXCLUDED.access_control,
			source_event_id = EXCLUDED.source_event_id,
			updated_at = NOW()
	`

	if _, err := r.pool.Exec(ctx, query, dc.ID, dc.Tenant, dc.Name, dc.DeleteProtection, dc.AccessControl, dc.SourceEventID); err != nil {
		return fmt.Errorf("failed to upsert data core: %w", err)
	}
	return nil
}

func (r *PostgresRepository) UpdateDataCore(ctx context.Context, id string, upd DataCoreUpdate, sourceEventID string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		UPDATE data_cores
		SET name = COALESCE($2, name),
			delete_protection = COALESCE($3, delete_protection),
			access_control = COALESCE($4, access_control),
			source_event_id = $5,
			updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, id, upd.Name, upd.DeleteProtection, upd.AccessControl, sourceEventID)
	if err != nil {
		return fmt.Errorf("failed to update data core: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) DeleteDataCore(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if _, err := r.pool.Exec(ctx, `DELETE FROM data_cores WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete data core: %w", err)
	}
	return nil
}

func (r *PostgresRepository) UpsertFlowType(ctx context.Context, ft *models.FlowType) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		INSERT INTO flow_types (id, data_core_id, name, source_event_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			data_core_id = EXCLUDED.data_core_id,
			name = EXCLUDED.name,
			source_event_id = EXCLUDED.source_event_id,
			updated_at = NOW()
	`

	if _, err := r.pool.Exec(ctx, query, ft.ID, ft.DataCoreID, ft.Name, ft.SourceEventID); err != nil {
		return fmt.Errorf("failed to upsert flow type: %w", err)
	}
	return nil
}

func (r *PostgresRepository) UpdateFlowTypeName(ctx context.Context, id, name, sourceEventID string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		UPDATE flow_types
		SET name = $2, source_event_id = $3, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, id, name, sourceEventID)
	if err != nil {
		return fmt.Errorf("failed to update flow type: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) DeleteFlowType(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if _, err := r.pool.Exec(ctx, `DELETE FROM flow_types WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete flow type: %w", err)
	}
	return nil
}

func (r *PostgresRepository) UpsertEventType(ctx context.Context, et *models.EventType) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		INSERT INTO event_types (id, flow_type_id, name, source_event_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			flow_type_id = EXCLUDED.flow_type_id,
			name = EXCLUDED.name,
			source_event_id = EXCLUDED.source_event_id,
			updated_at = NOW()
	`

	if _, err := r.pool.Exec(ctx, query, et.ID, et.FlowTypeID, et.Name, et.SourceEventID); err != nil {
		return fmt.Errorf("failed to upsert event type: %w", err)
	}
	return nil
}

func (r *PostgresRepository) UpdateEventTypeName(ctx context.Context, id, name, sourceEventID string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		UPDATE event_types
		SET name = $2, source_event_id = $3, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, id, name, sourceEventID)
	if err != nil {
		return fmt.Errorf("failed to update event type: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) DeleteEventType(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if _, err := r.pool.Exec(ctx, `DELETE FROM event_types WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete event type: %w", err)
	}
	return nil
}
