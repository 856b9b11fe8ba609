// Package cache provides a bounded, expiring get-or-compute cache for
// upstream read results.
package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

type entry struct {
	value     any
	expiresAt time.Time
}

// Cache memoizes results by key. Concurrent misses on the same key share a
// single computation; failed computations are not stored.
type Cache struct {
	lru    *expirable.LRU[string, entry]
	group  singleflight.Group
	maxTTL time.Duration
	now    func() time.Time
}

// New creates a cache holding at most size entries. maxTTL bounds every
// entry's lifetime regardless of the ttl passed to GetOrCompute.
func New(size int, maxTTL time.Duration) *Cache {
	return &Cache{
		lru:    expirable.NewLRU[string, entry](size, nil, maxTTL),
		maxTTL: maxTTL,
		now:    time.Now,
	}
}

// GetOrCompute returns the cached value for key or calls fn and stores its
// result for ttl. The shared computation runs detached from any single
// caller's cancellation; each caller stops waiting when its own ctx ends.
func GetOrCompute[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if e, ok := c.lru.Get(key); ok && c.now().Before(e.expiresAt) {
		if v, ok := e.value.(T); ok {
			return v, nil
		}
	}

	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		// Another caller may have filled the entry while we waited.
		if e, ok := c.lru.Get(key); ok && c.now().Before(e.expiresAt) {
			return e.value, nil
		}
		res, err := fn(detached)
		if err != nil {
			return nil, err
		}
		if ttl <= 0 || ttl > c.maxTTL {
			ttl = c.maxTTL
		}
		c.lru.Add(key, entry{value: res, expiresAt: c.now().Add(ttl)})
		return res, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return zero, r.Err
		}
		res, _ := r.Val.(T)
		return res, nil
	}
}

// Invalidate drops a single key
func (c *Cache) Invalidate(key string) {
	c.lru.Remove(key)
}

// Len reports the number of live entries
func (c *Cache) Len() int {
	return c.lru.Len()
}
