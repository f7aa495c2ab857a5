package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/flowgate-systems/flowgate/internal/models"
)

// setupTestDatabase starts a PostgreSQL container and applies migrations.
func setupTestDatabase(t *testing.T) *PostgresRepository {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("flowgate_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}

	if err := runMigrations(connStr); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	repo, err := NewPostgresRepository(ctx, connStr)
	if err != nil {
		t.Fatalf("Failed to create repository: %v", err)
	}
	t.Cleanup(repo.Close)

	return repo
}

func runMigrations(connStr string) error {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	migrationPath := filepath.Join("..", "..", "migrations", "001_init.up.sql")
	migrationSQL, err := os.ReadFile(migrationPath)
	if err != nil {
		return fmt.Errorf("failed to read migration file: %w", err)
	}

	if _, err := db.Exec(string(migrationSQL)); err != nil {
		return fmt.Errorf("failed to execute migration: %w", err)
	}
	return nil
}

func seedPostgresHierarchy(t *testing.T, repo *PostgresRepository) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, repo.UpsertDataCore(ctx, &models.DataCore{
		ID: "11111111-1111-1111-1111-111111111111", Tenant: "t1", Name: "orders",
		AccessControl: models.AccessControlPrivate, SourceEventID: "src-1",
	}))
	require.NoError(t, repo.UpsertFlowType(ctx, &models.FlowType{
		ID: "22222222-2222-2222-2222-222222222222", DataCoreID: "11111111-1111-1111-1111-111111111111",
		Name: "order.flow.0", SourceEventID: "src-2",
	}))
	require.NoError(t, repo.UpsertEventType(ctx, &models.EventType{
		ID: "33333333-3333-3333-3333-333333333333", FlowTypeID: "22222222-2222-2222-2222-222222222222",
		Name: "order.placed.0", SourceEventID: "src-3",
	}))
}

func TestPostgresHierarchyLookups(t *testing.T) {
	repo := setupTestDatabase(t)
	seedPostgresHierarchy(t, repo)
	ctx := context.Background()

	dc, err := repo.DataCoreByName(ctx, "t1", "orders")
	require.NoError(t, err)
	assert.Equal(t, "11111111-1111-1111-1111-111111111111", dc.ID)
	assert.Equal(t, models.AccessControlPrivate, dc.AccessControl)

	ft, err := repo.FlowTypeByName(ctx, dc.ID, "order.flow.0")
	require.NoError(t, err)
	assert.Equal(t, "22222222-2222-2222-2222-222222222222", ft.ID)

	et, err := repo.EventTypeByName(ctx, ft.ID, "order.placed.0")
	require.NoError(t, err)
	assert.Equal(t, "33333333-3333-3333-3333-333333333333", et.ID)

	_, err = repo.DataCoreByName(ctx, "t1", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.FlowTypeByName(ctx, dc.ID, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.EventTypeByName(ctx, ft.ID, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresUpsertOverwrites(t *testing.T) {
	repo := setupTestDatabase(t)
	seedPostgresHierarchy(t, repo)
	ctx := context.Background()

	require.NoError(t, repo.UpsertDataCore(ctx, &models.DataCore{
		ID: "11111111-1111-1111-1111-111111111111", Tenant: "t1", Name: "orders-v2",
		DeleteProtection: true, AccessControl: models.AccessControlPublic, SourceEventID: "src-9",
	}))

	dc, err := repo.DataCoreByID(ctx, "11111111-1111-1111-1111-111111111111")
	require.NoError(t, err)
	assert.Equal(t, "orders-v2", dc.Name)
	assert.True(t, dc.DeleteProtection)
	assert.Equal(t, "src-9", dc.SourceEventID)
}

func TestPostgresPartialUpdate(t *testing.T) {
	repo := setupTestDatabase(t)
	seedPostgresHierarchy(t, repo)
	ctx := context.Background()

	protect := true
	require.NoError(t, repo.UpdateDataCore(ctx, "11111111-1111-1111-1111-111111111111",
		DataCoreUpdate{DeleteProtection: &protect}, "src-10"))

	dc, err := repo.DataCoreByID(ctx, "11111111-1111-1111-1111-111111111111")
	require.NoError(t, err)
	assert.True(t, dc.DeleteProtection)
	assert.Equal(t, "orders", dc.Name, "unset fields stay put")

	err = repo.UpdateDataCore(ctx, "99999999-9999-9999-9999-999999999999",
		DataCoreUpdate{DeleteProtection: &protect}, "src-11")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresDeleteCascades(t *testing.T) {
	repo := setupTestDatabase(t)
	seedPostgresHierarchy(t, repo)
	ctx := context.Background()

	require.NoError(t, repo.DeleteDataCore(ctx, "11111111-1111-1111-1111-111111111111"))

	_, err := repo.DataCoreByID(ctx, "11111111-1111-1111-1111-111111111111")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.FlowTypeByID(ctx, "22222222-2222-2222-2222-222222222222")
	assert.ErrorIs(t, err, ErrNotFound, "flow types hang off the data core")
	_, err = repo.EventTypeByID(ctx, "33333333-3333-3333-3333-333333333333")
	assert.ErrorIs(t, err, ErrNotFound, "event types hang off the flow type")
}

func TestPostgresRenameUpdatesName(t *testing.T) {
	repo := setupTestDatabase(t)
	seedPostgresHierarchy(t, repo)
	ctx := context.Background()

	require.NoError(t, repo.UpdateFlowTypeName(ctx, "22222222-2222-2222-2222-222222222222", "order.flow.1", "src-12"))
	ft, err := repo.FlowTypeByID(ctx, "22222222-2222-2222-2222-222222222222")
	require.NoError(t, err)
	assert.Equal(t, "order.flow.1", ft.Name)
	assert.Equal(t, "src-12", ft.SourceEventID)

	require.NoError(t, repo.UpdateEventTypeName(ctx, "33333333-3333-3333-3333-333333333333", "order.placed.1", "src-13"))
	et, err := repo.EventTypeByID(ctx, "33333333-3333-3333-3333-333333333333")
	require.NoError(t, err)
	assert.Equal(t, "order.placed.1", et.Name)
}

func TestPostgresPing(t *testing.T) {
	repo := setupTestDatabase(t)
	assert.NoError(t, repo.Ping(context.Background()))
}
