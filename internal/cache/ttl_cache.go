package cache

import (
	"log/slog"
	"sync"
	"time"
)

// entry represents a cached item with expiration time
type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// EvictFunc is called, outside the cache lock, for every entry removed by
// expiry or Delete.
type EvictFunc[V any] func(key string, value V)

// TTLCache is a thread-safe cache whose entries expire after a period of
// inactivity. Get extends an entry's lifetime.
type TTLCache[V any] struct {
	items         map[string]*entry[V]
	mutex         sync.RWMutex
	ttl           time.Duration
	onEvict       EvictFunc[V]
	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	stopOnce      sync.Once
	now           func() time.Time
}

// NewTTLCache creates a new TTL cache and starts its cleanup goroutine
func NewTTLCache[V any](ttl, cleanupInterval time.Duration, onEvict EvictFunc[V]) *TTLCache[V] {
	c := &TTLCache[V]{
		items:       make(map[string]*entry[V]),
		ttl:         ttl,
		onEvict:     onEvict,
		stopCleanup: make(chan struct{}),
		now:         time.Now,
	}

	c.cleanupTicker = time.NewTicker(cleanupInterval)
	go c.cleanupExpiredEntries()

	slog.Info("TTL cache initialized",
		"ttl", ttl.String(),
		"cleanup_interval", cleanupInterval.String())

	return c
}

// Set stores a value
func (c *TTLCache[V]) Set(key string, value V) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.items[key] = &entry[V]{value: value, expiresAt: c.now().Add(c.ttl)}
}

// Get returns a live value and extends its lifetime
func (c *TTLCache[V]) Get(key string) (V, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	var zero V
	e, ok := c.items[key]
	if !ok {
		return zero, false
	}
	now := c.now()
	if now.After(e.expiresAt) {
		return zero, false
	}
	e.expiresAt = now.Add(c.ttl)
	return e.value, true
}

// Delete removes a key and reports whether it was present
func (c *TTLCache[V]) Delete(key string) bool {
	c.mutex.Lock()
	e, ok := c.items[key]
	if ok {
		delete(c.items, key)
	}
	c.mutex.Unlock()

	if ok && c.onEvict != nil {
		c.onEvict(key, e.value)
	}
	return ok
}

// Range calls fn for every live entry. fn runs on a snapshot, so it may
// call back into the cache.
func (c *TTLCache[V]) Range(fn func(key string, value V) bool) {
	c.mutex.RLock()
	now := c.now()
	keys := make([]string, 0, len(c.items))
	values := make([]V, 0, len(c.items))
	for k, e := range c.items {
		if now.Before(e.expiresAt) {
			keys = append(keys, k)
			values = append(values, e.value)
		}
	}
	c.mutex.RUnlock()

	for i := range keys {
		if !fn(keys[i], values[i]) {
			return
		}
	}
}

// Size returns the number of stored entries, including expired ones not yet cleaned up
func (c *TTLCache[V]) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.items)
}

// ActiveSize returns the number of non-expired entries
func (c *TTLCache[V]) ActiveSize() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	now := c.now()
	active := 0
	for _, e := range c.items {
		if now.Before(e.expiresAt) {
			active++
		}
	}
	return active
}

// Stop stops the cleanup goroutine
func (c *TTLCache[V]) Stop() {
	c.stopOnce.Do(func() {
		c.cleanupTicker.Stop()
		close(c.stopCleanup)
		slog.Info("TTL cache stopped")
	})
}

func (c *TTLCache[V]) cleanupExpiredEntries() {
	for {
		select {
		case <-c.cleanupTicker.C:
			c.performCleanup()
		case <-c.stopCleanup:
			return
		}
	}
}

// performCleanup removes expired entries and runs the eviction callback
func (c *TTLCache[V]) performCleanup() {
	c.mutex.Lock()
	now := c.now()
	expired := make(map[string]V)
	for key, e := range c.items {
		if now.After(e.expiresAt) {
			expired[key] = e.value
			delete(c.items, key)
		}
	}
	remaining := len(c.items)
	c.mutex.Unlock()

	if len(expired) == 0 {
		return
	}
	if c.onEvict != nil {
		for key, value := range expired {
			c.onEvict(key, value)
		}
	}
	slog.Debug("Cache cleanup completed",
		"expired_entries", len(expired),
		"remaining_entries", remaining)
}

// GetStats returns cache statistics
func (c *TTLCache[V]) GetStats() map[string]interface{} {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	now := c.now()
	active, expired := 0, 0
	for _, e := range c.items {
		if now.Before(e.expiresAt) {
			active++
		} else {
			expired++
		}
	}

	return map[string]interface{}{
		"total_entries":   len(c.items),
		"active_entries":  active,
		"expired_entries": expired,
		"ttl_duration":    c.ttl.String(),
	}
}
