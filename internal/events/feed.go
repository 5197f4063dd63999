package events

import (
	"log/slog"
	"sync"
	"time"

	"storefront-api/internal/models"
)

// DefaultMaxEvents is used when FeedConfig.MaxEvents is not positive.
const DefaultMaxEvents = 500

// Feed is an offset addressed queue of change events for one session.
// Clients read it with GetEvents and long poll with WaitForEvents.
type Feed struct {
	mu         sync.RWMutex
	events     []models.FeedEvent
	nextOffset int64
	maxEvents  int
	closed     bool
	logger     *slog.Logger

	waitersMu sync.Mutex
	waiters   map[*waiter]struct{}
}

type waiter struct {
	from int64
	ch   chan struct{}
	once sync.Once
}

func (w *waiter) wake() {
	w.once.Do(func() { close(w.ch) })
}

// FeedConfig holds configuration for a feed
type FeedConfig struct {
	MaxEvents int
	Logger    *slog.Logger
}

// NewFeed creates an empty feed
func NewFeed(config FeedConfig) *Feed {
	if config.MaxEvents <= 0 {
		config.MaxEvents = DefaultMaxEvents
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Feed{
		events:    make([]models.FeedEvent, 0),
		maxEvents: config.MaxEvents,
		logger:    config.Logger,
		waiters:   make(map[*waiter]struct{}),
	}
}

// Append stores an event and wakes waiting readers. It returns the
// event's offset, or -1 once the feed is closed.
func (f *Feed) Append(topic string, payload any) int64 {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return -1
	}

	event := models.FeedEvent{
		Offset:    f.nextOffset,
		Timestamp: time.Now().Format(time.RFC3339Nano),
		Topic:     topic,
		Payload:   payload,
	}
	f.nextOffset++
	f.events = append(f.events, event)

	if len(f.events) > f.maxEvents {
		keep := f.maxEvents * 3 / 4
		removed := len(f.events) - keep
		f.events = append([]models.FeedEvent(nil), f.events[removed:]...)
		f.logger.Debug("Event feed rotated", "removed_events", removed, "remaining_events", keep)
	}
	f.mu.Unlock()

	f.notifyWaiters(event.Offset)
	return event.Offset
}

// GetEvents returns up to limit events starting at fromOffset, the offset
// to read next, and whether more events are already available. A reader
// whose offset has been rotated away starts at the oldest retained event.
func (f *Feed) GetEvents(fromOffset int64, limit int) ([]models.FeedEvent, int64, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	startIdx := -1
	for i, event := range f.events {
		if event.Offset >= fromOffset {
			startIdx = i
			break
		}
	}
	if startIdx == -1 {
		next := fromOffset
		if next > f.nextOffset || next < 0 {
			next = f.nextOffset
		}
		return []models.FeedEvent{}, next, false
	}

	endIdx := startIdx + limit
	hasMore := true
	if endIdx >= len(f.events) {
		endIdx = len(f.events)
		hasMore = false
	}

	result := make([]models.FeedEvent, endIdx-startIdx)
	copy(result, f.events[startIdx:endIdx])

	return result, result[len(result)-1].Offset + 1, hasMore
}

// WaitForEvents returns a channel closed when an event at or after
// fromOffset exists, the timeout elapses, or the feed is closed.
func (f *Feed) WaitForEvents(fromOffset int64, timeout time.Duration) <-chan struct{} {
	w := &waiter{from: fromOffset, ch: make(chan struct{})}

	f.waitersMu.Lock()
	f.mu.RLock()
	ready := f.closed || fromOffset < f.nextOffset
	f.mu.RUnlock()
	if ready {
		f.waitersMu.Unlock()
		w.wake()
		return w.ch
	}
	f.waiters[w] = struct{}{}
	f.waitersMu.Unlock()

	time.AfterFunc(timeout, func() {
		f.waitersMu.Lock()
		delete(f.waiters, w)
		f.waitersMu.Unlock()
		w.wake()
	})

	return w.ch
}

// CurrentOffset returns the offset the next event will get
func (f *Feed) CurrentOffset() int64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.nextOffset
}

// Len returns the number of retained events
func (f *Feed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.events)
}

// Close releases all waiting readers. Appends after Close are dropped.
func (f *Feed) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()

	f.waitersMu.Lock()
	defer f.waitersMu.Unlock()
	for w := range f.waiters {
		w.wake()
		delete(f.waiters, w)
	}
}

func (f *Feed) notifyWaiters(offset int64) {
	f.waitersMu.Lock()
	defer f.waitersMu.Unlock()

	for w := range f.waiters {
		if w.from <= offset {
			w.wake()
			delete(f.waiters, w)
		}
	}
}
