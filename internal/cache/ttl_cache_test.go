package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock lets tests move time forward without sleeping
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newTestCache(t *testing.T, ttl time.Duration, onEvict EvictFunc[string]) (*TTLCache[string], *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewTTLCache[string](ttl, time.Hour, onEvict)
	c.now = clock.Now
	t.Cleanup(c.Stop)
	return c, clock
}

func TestTTLCache_BasicOperations(t *testing.T) {
	// Arrange
	c, _ := newTestCache(t, time.Minute, nil)

	// Act
	c.Set("key", "value")
	value, exists := c.Get("key")

	// Assert
	assert.True(t, exists)
	assert.Equal(t, "value", value)
	assert.Equal(t, 1, c.Size())
}

func TestTTLCache_NonExistentKey(t *testing.T) {
	c, _ := newTestCache(t, time.Minute, nil)

	value, exists := c.Get("missing")

	assert.False(t, exists)
	assert.Empty(t, value)
}

func TestTTLCache_Expiration(t *testing.T) {
	// Arrange
	c, clock := newTestCache(t, time.Minute, nil)
	c.Set("key", "value")

	// Act
	clock.Advance(2 * time.Minute)
	_, exists := c.Get("key")

	// Assert
	assert.False(t, exists, "entry should be expired")
	assert.Equal(t, 1, c.Size(), "expired entry stays until cleanup")
	assert.Equal(t, 0, c.ActiveSize())
}

func TestTTLCache_GetExtendsLifetime(t *testing.T) {
	c, clock := newTestCache(t, time.Minute, nil)
	c.Set("key", "value")

	for i := 0; i < 5; i++ {
		clock.Advance(40 * time.Second)
		_, ok := c.Get("key")
		require.True(t, ok, "read %d should keep the entry alive", i)
	}

	clock.Advance(61 * time.Second)
	_, ok := c.Get("key")
	assert.False(t, ok)
}

func TestTTLCache_CleanupCallsEvict(t *testing.T) {
	// Arrange
	evicted := map[string]string{}
	c, clock := newTestCache(t, time.Minute, func(key, value string) {
		evicted[key] = value
	})
	c.Set("old", "a")
	clock.Advance(30 * time.Second)
	c.Set("fresh", "b")
	clock.Advance(45 * time.Second)

	// Act
	c.performCleanup()

	// Assert
	assert.Equal(t, map[string]string{"old": "a"}, evicted)
	assert.Equal(t, 1, c.Size())
}

func TestTTLCache_DeleteCallsEvict(t *testing.T) {
	var evictedKey string
	c, _ := newTestCache(t, time.Minute, func(key, _ string) { evictedKey = key })
	c.Set("key", "value")

	assert.True(t, c.Delete("key"))
	assert.False(t, c.Delete("key"))
	assert.Equal(t, "key", evictedKey)
}

func TestTTLCache_RangeSkipsExpired(t *testing.T) {
	c, clock := newTestCache(t, time.Minute, nil)
	c.Set("old", "a")
	clock.Advance(45 * time.Second)
	c.Set("fresh", "b")
	clock.Advance(30 * time.Second)

	seen := map[string]string{}
	c.Range(func(key, value string) bool {
		seen[key] = value
		return true
	})

	assert.Equal(t, map[string]string{"fresh": "b"}, seen)
}

func TestTTLCache_GetStats(t *testing.T) {
	c, clock := newTestCache(t, time.Minute, nil)
	c.Set("a", "1")
	clock.Advance(2 * time.Minute)
	c.Set("b", "2")

	stats := c.GetStats()

	assert.Equal(t, 2, stats["total_entries"])
	assert.Equal(t, 1, stats["active_entries"])
	assert.Equal(t, 1, stats["expired_entries"])
	assert.Equal(t, "1m0s", stats["ttl_duration"])
}

func TestTTLCache_StopIsIdempotent(t *testing.T) {
	c := NewTTLCache[int](time.Minute, time.Second, nil)

	assert.NotPanics(t, func() {
		c.Stop()
		c.Stop()
	})
}
