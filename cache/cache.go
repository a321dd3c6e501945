// Package cache provides the bounded, TTL'd LRU caches kgs uses for entity
// lookups and search results.
package cache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// TTLCache is a concurrency-safe, size- and time-bounded cache.
type TTLCache[K comparable, V any] struct {
	mu sync.Mutex
	inner *lru.LRU[K, V]
}

// New creates a cache capped at size entries, each expiring after ttl.
func New[K comparable, V any](size int, ttl time.Duration) *TTLCache[K, V] {
	return &TTLCache[K, V]{inner: lru.NewLRU[K, V](size, nil, ttl)}
}

// Get returns the cached value for key, if present and unexpired.
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inner.Get(key)
}

// Set stores value under key.
func (c *TTLCache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inner.Add(key, value)
}

// Delete evicts key, if present.
func (c *TTLCache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inner.Remove(key)
}

// Clear evicts every entry, used for the coarse "invalidate everything on
// any write" search-cache policy.
func (c *TTLCache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inner.Purge()
}

// NewEntityCache builds the 1000-entry, 10-minute entity cache spec §4.2 names.
func NewEntityCache[V any]() *TTLCache[string, V] {
	return New[string, V](1000, 10*time.Minute)
}

// NewSearchCache builds the 500-entry, 5-minute search-result cache spec §4.2 names.
func NewSearchCache[V any]() *TTLCache[string, V] {
	return New[string, V](500, 5*time.Minute)
}
