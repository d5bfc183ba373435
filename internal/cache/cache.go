package cache

import (
	"sync"
	"time"

	"github.com/Soumil-07/bkmgr/internal/logger"
)

// Cache stores values under comparable keys with an optional expiry
type Cache[K comparable, V any] interface {
	// Set stores a value. A ttl of zero or less never expires.
	Set(key K, value V, ttl time.Duration)
	// Get returns the value and whether it was present and unexpired
	Get(key K) (V, bool)
	// Delete removes a value
	Delete(key K)
	// Len returns the number of stored values, expired ones included
	Len() int
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

type memoryCache[K comparable, V any] struct {
	mu    sync.RWMutex
	items map[K]entry[V]
	log   *logger.Logger
	now   func() time.Time
}

// NewMemoryCache creates an in-memory cache
func NewMemoryCache[K comparable, V any](log *logger.Logger) Cache[K, V] {
	return &memoryCache[K, V]{
		items: make(map[K]entry[V]),
		log:   log,
		now:   time.Now,
	}
}

func (c *memoryCache[K, V]) Set(key K, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = c.now().Add(ttl)
	}
	c.items[key] = entry[V]{value: value, expiresAt: expiresAt}
}

func (c *memoryCache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	item, found := c.items[key]
	c.mu.RUnlock()

	if !found {
		var zero V
		return zero, false
	}
	if !item.expiresAt.IsZero() && c.now().After(item.expiresAt) {
		c.log.Debug("Cache item expired", map[string]interface{}{"key": key})
		var zero V
		return zero, false
	}
	return item.value, true
}

func (c *memoryCache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

func (c *memoryCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// WithTTL returns a wrapper that applies ttl to every Set
func WithTTL[K comparable, V any](cache Cache[K, V], ttl time.Duration) Cache[K, V] {
	return &ttlWrapper[K, V]{cache: cache, ttl: ttl}
}

type ttlWrapper[K comparable, V any] struct {
	cache Cache[K, V]
	ttl   time.Duration
}

func (w *ttlWrapper[K, V]) Set(key K, value V, _ time.Duration) { w.cache.Set(key, value, w.ttl) }
func (w *ttlWrapper[K, V]) Get(key K) (V, bool)                 { return w.cache.Get(key) }
func (w *ttlWrapper[K, V]) Delete(key K)                        { w.cache.Delete(key) }
func (w *ttlWrapper[K, V]) Len() int                            { return w.cache.Len() }
