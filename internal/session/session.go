// Package session owns the per-client storefront sessions. Each session
// has its own event bus, state, checkout presenter and change feed.
package session

import (
	"fmt"
	"log/slog"
	"time"

	"storefront-api/internal/appstate"
	"storefront-api/internal/checkout"
	"storefront-api/internal/eventbus"
	"storefront-api/internal/events"
	"storefront-api/internal/models"
)

// Session is one browser session. Its fields are only safe to use through
// Manager.WithSession.
type Session struct {
	ID        string
	CreatedAt time.Time
	Bus       *eventbus.Bus
	State     *appstate.State
	Presenter *checkout.Presenter
	Feed      *events.Feed

	forward *eventbus.Subscription
}

func newSession(id string, maxEvents int, logger *slog.Logger) (*Session, error) {
	logger = logger.With("session_id", id)
	bus := eventbus.New(eventbus.WithLogger(logger))
	state := appstate.New(bus)

	presenter, err := checkout.NewPresenter(state, bus, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create presenter: %w", err)
	}

	feed := events.NewFeed(events.FeedConfig{MaxEvents: maxEvents, Logger: logger})
	forward, err := checkout.ForwardChanges(bus, func(ev eventbus.Event) {
		feed.Append(ev.Topic.String(), ev.Payload)
	})
	if err != nil {
		presenter.Detach()
		return nil, fmt.Errorf("failed to forward changes: %w", err)
	}

	return &Session{
		ID:        id,
		CreatedAt: time.Now().UTC(),
		Bus:       bus,
		State:     state,
		Presenter: presenter,
		Feed:      feed,
		forward:   forward,
	}, nil
}

// Dispatch publishes a user intent on the session bus.
func (s *Session) Dispatch(intent eventbus.Topic, payload checkout.Intent) error {
	return s.Bus.Publish(intent, payload)
}

// Snapshot returns a read-only view of the session.
func (s *Session) Snapshot() models.SessionState {
	state := models.SessionState{
		SessionID:   s.ID,
		Step:        string(s.Presenter.Step()),
		CatalogSize: len(s.State.Catalog()),
		Preview:     s.State.Preview(),
		Basket:      s.State.BasketItems(),
		Total:       s.State.Total(),
		Order:       s.State.Order(),
		Errors:      s.State.Errors(),
		EventOffset: s.Feed.CurrentOffset(),
		LastError:   s.Presenter.LastError(),
	}
	if result, ok := s.Presenter.LastResult(); ok {
		state.LastOrder = &result
	}
	return state
}

// Summary returns the admin view of the session.
func (s *Session) Summary() models.SessionSummary {
	return models.SessionSummary{
		SessionID:   s.ID,
		Step:        string(s.Presenter.Step()),
		BasketSize:  len(s.State.BasketItems()),
		EventOffset: s.Feed.CurrentOffset(),
		CreatedAt:   s.CreatedAt,
	}
}

func (s *Session) close() {
	s.Presenter.Detach()
	if s.forward != nil {
		_ = s.forward.Cancel()
	}
	s.Feed.Close()
}
