// Package cache holds the two caching tiers in front of the resource store:
// an in-process resolution cache that coalesces concurrent lookups, and a
// Redis-backed distributed cache shared by all gateway instances.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/flowgate-systems/flowgate/internal/models"
)

// Loader performs the next-tier lookup on a local cache miss. It returns
// (nil, nil) when the resource tuple definitively does not exist.
type Loader func(ctx context.Context) (*models.ResourceIDs, error)

// entry is the tri-state cache slot. While a lookup is in flight, done is
// open and waiters block on it; once closed, result and err are immutable.
type entry struct {
	done       chan struct{}
	result     *models.ResourceIDs
	err        error
	resolvedAt time.Time
}

// ResolutionCache deduplicates concurrent identical resolution requests
// within one process. Results are kept for a short TTL; failed or
// not-found lookups are never kept, so a newly created resource becomes
// resolvable on the very next request. There is no cross-instance
// invalidation for this tier; it self-heals via expiry alone.
type ResolutionCache struct {
	mu      sync.Mutex
	entries map[string]*entry
	ttl     time.Duration

	stopReaper chan struct{}
	reaperDone chan struct{}
}

const reapInterval = 10 * time.Second

// NewResolutionCache creates the cache and starts its background reaper.
func NewResolutionCache(ttl time.Duration) *ResolutionCache {
	c := &ResolutionCache{
		entries:    make(map[string]*entry),
		ttl:        ttl,
		stopReaper: make(chan struct{}),
		reaperDone: make(chan struct{}),
	}
	go c.reap()
	return c
}

// Key builds the local cache key for a resource tuple.
func Key(tenant, dataCoreName, flowTypeName, eventTypeName string) string {
	return fmt.Sprintf("%s:%s:%s:%s", tenant, dataCoreName, flowTypeName, eventTypeName)
}

// GetOrLoad returns the cached resolution for key, or runs loader to produce
// one. Concurrent callers with the same key attach to the single in-flight
// loader rather than starting their own; it is impossible for two callers to
// both invoke loader for the same key. A nil result (not found) or an error
// evicts the entry so the next call retries.
func (c *ResolutionCache) GetOrLoad(ctx context.Context, key string, loader Loader) (*models.ResourceIDs, error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		if !c.expiredLocked(e) {
			c.mu.Unlock()
			return c.wait(ctx, e)
		}
		delete(c.entries, key)
	}

	e := &entry{done: make(chan struct{})}
	c.entries[key] = e
	c.mu.Unlock()

	result, err := loader(ctx)
	e.result = result
	e.err = err
	e.resolvedAt = time.Now()
	close(e.done)

	c.mu.Lock()
	// Keep only successful resolutions; the entry may already have been
	// replaced if Invalidate ran while the loader was in flight.
	if err != nil || result == nil {
		if c.entries[key] == e {
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()

	return result, err
}

// wait attaches the caller to an in-flight or resolved entry.
func (c *ResolutionCache) wait(ctx context.Context, e *entry) (*models.ResourceIDs, error) {
	select {
	case <-e.done:
		return e.result, e.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Invalidate drops the entry for key, if any. In-flight loaders complete for
// their waiters but their result is not retained.
func (c *ResolutionCache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Len reports the number of live entries, for tests and introspection.
func (c *ResolutionCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// expiredLocked reports whether e is past its TTL. Pending entries never
// expire; their age is measured from resolution.
func (c *ResolutionCache) expiredLocked(e *entry) bool {
	select {
	case <-e.done:
		return time.Since(e.resolvedAt) > c.ttl
	default:
		return false
	}
}

// reap removes expired entries on a fixed interval to bound memory.
func (c *ResolutionCache) reap() {
	defer close(c.reaperDone)

	ticker := time.NewTicker(reapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			for key, e := range c.entries {
				if c.expiredLocked(e) {
					delete(c.entries, key)
				}
			}
			c.mu.Unlock()
		case <-c.stopReaper:
			return
		}
	}
}

// Close stops the background reaper and waits for it to exit.
func (c *ResolutionCache) Close() {
	close(c.stopReaper)
	<-c.reaperDone
}
