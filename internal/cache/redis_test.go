package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDistributedCache(t *testing.T) (*DistributedCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewDistributedCacheWithClient(client, 5*time.Minute), mr
}

func TestValidationRoundTrip(t *testing.T) {
	d, mr := newTestDistributedCache(t)
	ctx := context.Background()

	_, ok, err := d.GetValidation(ctx, "t1", "dc", "ft", "et")
	require.NoError(t, err)
	assert.False(t, ok, "empty cache must miss")

	want := testIDs()
	require.NoError(t, d.SetValidation(ctx, "t1", "dc", "ft", "et", want))

	got, ok, err := d.GetValidation(ctx, "t1", "dc", "ft", "et")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)

	// Entries carry the configured TTL.
	ttl := mr.TTL("validation:t1:dc:ft:et")
	assert.Equal(t, 5*time.Minute, ttl)
}

func TestGetValidationReportsInfrastructureError(t *testing.T) {
	d, mr := newTestDistributedCache(t)
	mr.Close()

	_, ok, err := d.GetValidation(context.Background(), "t1", "dc", "ft", "et")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestInvalidateDataCore(t *testing.T) {
	d, mr := newTestDistributedCache(t)
	ctx := context.Background()

	require.NoError(t, d.SetValidation(ctx, "t1", "dc", "ft", "et", testIDs()))
	require.NoError(t, d.SetValidation(ctx, "t1", "dc", "ft2", "et2", testIDs()))
	require.NoError(t, d.SetValidation(ctx, "t1", "other", "ft", "et", testIDs()))
	require.NoError(t, mr.Set("data_core:t1:dc", "dc-1"))

	require.NoError(t, d.InvalidateDataCore(ctx, "t1", "dc"))

	assert.False(t, mr.Exists("data_core:t1:dc"))
	assert.False(t, mr.Exists("validation:t1:dc:ft:et"))
	assert.False(t, mr.Exists("validation:t1:dc:ft2:et2"))
	assert.True(t, mr.Exists("validation:t1:other:ft:et"), "other data cores must survive")
}

func TestInvalidateFlowType(t *testing.T) {
	d, mr := newTestDistributedCache(t)
	ctx := context.Background()

	require.NoError(t, d.SetValidation(ctx, "t1", "dc", "ft", "et", testIDs()))
	require.NoError(t, d.SetValidation(ctx, "t1", "dc", "keep", "et", testIDs()))
	require.NoError(t, mr.Set("flow_type:dc-1:ft", "ft-1"))
	require.NoError(t, mr.Set("event_type:dc-1:ft.sub", "et-1"))

	require.NoError(t, d.InvalidateFlowType(ctx, "dc-1", "ft"))

	assert.False(t, mr.Exists("flow_type:dc-1:ft"))
	assert.False(t, mr.Exists("validation:t1:dc:ft:et"))
	assert.False(t, mr.Exists("event_type:dc-1:ft.sub"))
	assert.True(t, mr.Exists("validation:t1:dc:keep:et"))
}

func TestInvalidateEventType(t *testing.T) {
	d, mr := newTestDistributedCache(t)
	ctx := context.Background()

	require.NoError(t, d.SetValidation(ctx, "t1", "dc", "ft", "et", testIDs()))
	require.NoError(t, d.SetValidation(ctx, "t1", "dc", "ft", "keep", testIDs()))
	require.NoError(t, mr.Set("event_type:ft-1:et", "et-1"))

	require.NoError(t, d.InvalidateEventType(ctx, "ft-1", "et"))

	assert.False(t, mr.Exists("event_type:ft-1:et"))
	assert.False(t, mr.Exists("validation:t1:dc:ft:et"))
	assert.True(t, mr.Exists("validation:t1:dc:ft:keep"))
}
