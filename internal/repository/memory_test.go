package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgate-systems/flowgate/internal/models"
)

func TestInMemoryHierarchyRoundTrip(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	require.NoError(t, repo.UpsertDataCore(ctx, &models.DataCore{ID: "dc-1", Tenant: "t1", Name: "orders"}))
	require.NoError(t, repo.UpsertFlowType(ctx, &models.FlowType{ID: "ft-1", DataCoreID: "dc-1", Name: "order.flow.0"}))
	require.NoError(t, repo.UpsertEventType(ctx, &models.EventType{ID: "et-1", FlowTypeID: "ft-1", Name: "order.placed.0"}))

	dc, err := repo.DataCoreByName(ctx, "t1", "orders")
	require.NoError(t, err)
	assert.Equal(t, "dc-1", dc.ID)

	ft, err := repo.FlowTypeByName(ctx, "dc-1", "order.flow.0")
	require.NoError(t, err)
	assert.Equal(t, "ft-1", ft.ID)

	et, err := repo.EventTypeByName(ctx, "ft-1", "order.placed.0")
	require.NoError(t, err)
	assert.Equal(t, "et-1", et.ID)

	_, err = repo.DataCoreByName(ctx, "t1", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.FlowTypeByName(ctx, "other-core", "order.flow.0")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInMemoryUpsertPreservesCreatedAt(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	require.NoError(t, repo.UpsertDataCore(ctx, &models.DataCore{ID: "dc-1", Tenant: "t1", Name: "orders"}))
	first, err := repo.DataCoreByID(ctx, "dc-1")
	require.NoError(t, err)

	require.NoError(t, repo.UpsertDataCore(ctx, &models.DataCore{ID: "dc-1", Tenant: "t1", Name: "orders-v2"}))
	second, err := repo.DataCoreByID(ctx, "dc-1")
	require.NoError(t, err)

	assert.Equal(t, "orders-v2", second.Name)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
}

func TestInMemoryPartialUpdate(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	require.NoError(t, repo.UpsertDataCore(ctx, &models.DataCore{
		ID: "dc-1", Tenant: "t1", Name: "orders",
		AccessControl: models.AccessControlPrivate,
	}))

	protect := true
	require.NoError(t, repo.UpdateDataCore(ctx, "dc-1", DataCoreUpdate{DeleteProtection: &protect}, "src-1"))

	dc, err := repo.DataCoreByID(ctx, "dc-1")
	require.NoError(t, err)
	assert.True(t, dc.DeleteProtection)
	assert.Equal(t, "orders", dc.Name, "fields not in the update survive")
	assert.Equal(t, "src-1", dc.SourceEventID)

	err = repo.UpdateDataCore(ctx, "missing", DataCoreUpdate{DeleteProtection: &protect}, "src-2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInMemoryDelete(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	require.NoError(t, repo.UpsertEventType(ctx, &models.EventType{ID: "et-1", FlowTypeID: "ft-1", Name: "order.placed.0"}))
	require.NoError(t, repo.DeleteEventType(ctx, "et-1"))

	_, err := repo.EventTypeByID(ctx, "et-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInMemorySimulatedOutage(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	require.NoError(t, repo.UpsertDataCore(ctx, &models.DataCore{ID: "dc-1", Tenant: "t1", Name: "orders"}))

	outage := errors.New("store down")
	repo.Err = outage

	_, err := repo.DataCoreByName(ctx, "t1", "orders")
	assert.ErrorIs(t, err, outage)
	assert.ErrorIs(t, repo.Ping(ctx), outage)

	repo.Err = nil
	_, err = repo.DataCoreByName(ctx, "t1", "orders")
	assert.NoError(t, err)
}
