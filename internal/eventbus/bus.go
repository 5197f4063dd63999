// Package eventbus implements a synchronous, re-entrant publish/subscribe bus.
//
// Handlers run on the publishing goroutine in subscription order. A handler
// may publish further events; those are delivered depth-first before the
// outer Publish returns. The registry lock is never held while a handler
// runs, so handlers are free to subscribe and unsubscribe.
package eventbus

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// DefaultMaxDepth bounds nested publishing.
const DefaultMaxDepth = 16

// Event is what a handler receives.
type Event struct {
	Topic   Topic
	Payload any
}

// Handler processes one event. A returned error does not stop delivery
// to the remaining subscribers.
type Handler func(Event) error

// MatchFunc selects topics for predicate subscriptions.
type MatchFunc func(Topic) bool

// Subscription is a registered handler.
type Subscription struct {
	id        string
	pattern   Topic
	match     MatchFunc
	handler   Handler
	bus       *Bus
	cancelled atomic.Bool
}

// ID returns the subscription identifier.
func (s *Subscription) ID() string {
	return s.id
}

// Pattern returns the subscribed pattern. Predicate subscriptions return "".
func (s *Subscription) Pattern() Topic {
	return s.pattern
}

// Active reports whether the subscription still receives events.
func (s *Subscription) Active() bool {
	return !s.cancelled.Load()
}

// Cancel removes the subscription from its bus.
func (s *Subscription) Cancel() error {
	return s.bus.Unsubscribe(s)
}

func (s *Subscription) matches(t Topic) bool {
	if s.match != nil {
		return s.match(t)
	}
	return t.Matches(s.pattern)
}

// Stats holds bus counters.
type Stats struct {
	Published     uint64 `json:"published"`
	Delivered     uint64 `json:"delivered"`
	HandlerErrors uint64 `json:"handlerErrors"`
	Subscriptions int    `json:"subscriptions"`
}

// Option configures a Bus.
type Option func(*Bus)

// WithMaxDepth overrides DefaultMaxDepth.
func WithMaxDepth(depth int) Option {
	return func(b *Bus) {
		if depth > 0 {
			b.maxDepth = depth
		}
	}
}

// WithLogger sets the logger used for dispatch traces.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// Bus is a synchronous event bus. It is safe to call from multiple
// goroutines, but delivery order is only defined for a single publisher.
type Bus struct {
	mu       sync.Mutex
	subs     []*Subscription
	depth    int
	maxDepth int
	logger   *slog.Logger

	published     atomic.Uint64
	delivered     atomic.Uint64
	handlerErrors atomic.Uint64
}

// New creates an empty bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		maxDepth: DefaultMaxDepth,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers handler for an exact topic or a wildcard pattern.
func (b *Bus) Subscribe(pattern Topic, handler Handler) (*Subscription, error) {
	if !pattern.IsValidPattern() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTopic, pattern)
	}
	if handler == nil {
		return nil, ErrNilHandler
	}
	return b.add(&Subscription{pattern: pattern, handler: handler}), nil
}

// SubscribeFunc registers handler for every topic accepted by match.
func (b *Bus) SubscribeFunc(match MatchFunc, handler Handler) (*Subscription, error) {
	if match == nil || handler == nil {
		return nil, ErrNilHandler
	}
	return b.add(&Subscription{match: match, handler: handler}), nil
}

func (b *Bus) add(sub *Subscription) *Subscription {
	sub.id = uuid.NewString()
	sub.bus = b

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	b.logger.Debug("Subscription added", "subscription_id", sub.id, "pattern", sub.pattern)
	return sub
}

// Unsubscribe removes a subscription. Events already being dispatched
// are not delivered to it once it is removed.
func (b *Bus) Unsubscribe(sub *Subscription) error {
	if sub == nil {
		return ErrSubscriptionNotFound
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subs {
		if s == sub {
			s.cancelled.Store(true)
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return nil
		}
	}
	return ErrSubscriptionNotFound
}

// Publish delivers payload to every subscriber matching topic and returns
// the joined handler errors, if any.
func (b *Bus) Publish(topic Topic, payload any) error {
	if !topic.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}

	b.mu.Lock()
	if b.depth >= b.maxDepth {
		b.mu.Unlock()
		return fmt.Errorf("%w: publishing %s at depth %d", ErrMaxDepthExceeded, topic, b.maxDepth)
	}
	b.depth++
	targets := make([]*Subscription, 0, len(b.subs))
	for _, s := range b.subs {
		if s.matches(topic) {
			targets = append(targets, s)
		}
	}
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		b.depth--
		b.mu.Unlock()
	}()

	b.published.Add(1)
	b.logger.Debug("Publishing event", "topic", topic, "subscribers", len(targets))

	ev := Event{Topic: topic, Payload: payload}
	var errs []error
	for _, s := range targets {
		if !s.Active() {
			continue
		}
		if err := b.invoke(s, ev); err != nil {
			b.handlerErrors.Add(1)
			errs = append(errs, err)
		}
		b.delivered.Add(1)
	}
	return errors.Join(errs...)
}

func (b *Bus) invoke(s *Subscription, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Event handler panicked", "subscription_id", s.id, "topic", ev.Topic, "panic", r)
			err = &PanicError{
				SubscriptionID: s.id,
				Topic:          ev.Topic,
				Value:          r,
				Stack:          string(debug.Stack()),
			}
		}
	}()

	if herr := s.handler(ev); herr != nil {
		return &HandlerError{SubscriptionID: s.id, Topic: ev.Topic, Err: herr}
	}
	return nil
}

// Len returns the number of active subscriptions.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Stats returns a snapshot of the bus counters.
func (b *Bus) Stats() Stats {
	return Stats{
		Published:     b.published.Load(),
		Delivered:     b.delivered.Load(),
		HandlerErrors: b.handlerErrors.Load(),
		Subscriptions: b.Len(),
	}
}
