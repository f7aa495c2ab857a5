package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/flowgate-systems/flowgate/internal/models"
)

// DistributedCache memoizes resolved resource identifiers in Redis so all
// gateway instances share one warm cache, and provides the invalidation
// surface used by lifecycle-event handlers. A cache miss is reported
// distinctly from a cache error; callers treat errors as fall-through.
type DistributedCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewDistributedCache connects to Redis and verifies liveness with a ping.
func NewDistributedCache(redisURL string, ttl time.Duration) (*DistributedCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &DistributedCache{client: client, ttl: ttl}, nil
}

// NewDistributedCacheWithClient wraps an existing client (used by tests).
func NewDistributedCacheWithClient(client *redis.Client, ttl time.Duration) *DistributedCache {
	return &DistributedCache{client: client, ttl: ttl}
}

func (d *DistributedCache) Close() error {
	return d.client.Close()
}

// Cache key layout. Validation results are keyed by the full natural-name
// tuple; the per-level keys exist for targeted invalidation.
func validationKey(tenant, dataCoreName, flowTypeName, eventTypeName string) string {
	return fmt.Sprintf("validation:%s:%s:%s:%s", tenant, dataCoreName, flowTypeName, eventTypeName)
}

func dataCoreKey(tenant, dataCoreName string) string {
	return fmt.Sprintf("data_core:%s:%s", tenant, dataCoreName)
}

func flowTypeKey(dataCoreID, flowTypeName string) string {
	return fmt.Sprintf("flow_type:%s:%s", dataCoreID, flowTypeName)
}

func eventTypeKey(flowTypeID, eventTypeName string) string {
	return fmt.Sprintf("event_type:%s:%s", flowTypeID, eventTypeName)
}

// GetValidation returns the cached resolution for the tuple. ok is false on
// a miss; err is non-nil only for infrastructure failures.
func (d *DistributedCache) GetValidation(ctx context.Context, tenant, dataCoreName, flowTypeName, eventTypeName string) (*models.ResourceIDs, bool, error) {
	data, err := d.client.Get(ctx, validationKey(tenant, dataCoreName, flowTypeName, eventTypeName)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read validation cache: %w", err)
	}

	var ids models.ResourceIDs
	if err := json.Unmarshal([]byte(data), &ids); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal validation cache entry: %w", err)
	}
	return &ids, true, nil
}

// SetValidation stores a resolution with the cache TTL.
func (d *DistributedCache) SetValidation(ctx context.Context, tenant, dataCoreName, flowTypeName, eventTypeName string, ids *models.ResourceIDs) error {
	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("failed to marshal validation cache entry: %w", err)
	}
	if err := d.client.Set(ctx, validationKey(tenant, dataCoreName, flowTypeName, eventTypeName), data, d.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write validation cache: %w", err)
	}
	return nil
}

// InvalidateDataCore removes the data core's direct key, every validation
// entry under the tenant/data-core prefix, and the dependent per-level keys.
func (d *DistributedCache) InvalidateDataCore(ctx context.Context, tenant, dataCoreName string) error {
	if err := d.del(ctx, dataCoreKey(tenant, dataCoreName)); err != nil {
		return err
	}
	if err := d.delPattern(ctx, fmt.Sprintf("validation:%s:%s:*", tenant, dataCoreName)); err != nil {
		return err
	}
	if err := d.delPattern(ctx, fmt.Sprintf("flow_type:*:%s*", dataCoreName)); err != nil {
		return err
	}
	return d.delPattern(ctx, fmt.Sprintf("event_type:*:%s*", dataCoreName))
}

// InvalidateFlowType removes the flow type's direct key and dependent
// event-type and validation entries.
func (d *DistributedCache) InvalidateFlowType(ctx context.Context, dataCoreID, flowTypeName string) error {
	if err := d.del(ctx, flowTypeKey(dataCoreID, flowTypeName)); err != nil {
		return err
	}
	if err := d.delPattern(ctx, fmt.Sprintf("validation:*:%s:*", flowTypeName)); err != nil {
		return err
	}
	return d.delPattern(ctx, fmt.Sprintf("event_type:%s:%s*", dataCoreID, flowTypeName))
}

// InvalidateEventType removes the event type's direct key and the validation
// entries naming it. The event type is the leaf; nothing hangs below it.
func (d *DistributedCache) InvalidateEventType(ctx context.Context, flowTypeID, eventTypeName string) error {
	if err := d.del(ctx, eventTypeKey(flowTypeID, eventTypeName)); err != nil {
		return err
	}
	return d.delPattern(ctx, fmt.Sprintf("validation:*:%s", eventTypeName))
}

func (d *DistributedCache) del(ctx context.Context, key string) error {
	if err := d.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete cache key %s: %w", key, err)
	}
	return nil
}

func (d *DistributedCache) delPattern(ctx context.Context, pattern string) error {
	keys, err := d.client.Keys(ctx, pattern).Result()
	if err != nil {
		return fmt.Errorf("failed to list cache keys for %s: %w", pattern, err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := d.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete cache keys for %s: %w", pattern, err)
	}
	return nil
}
