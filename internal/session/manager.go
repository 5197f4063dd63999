package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"storefront-api/internal/appstate"
	"storefront-api/internal/cache"
	"storefront-api/internal/models"
)

var (
	// ErrSessionNotFound is returned for unknown or expired sessions.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSubmissionFailed wraps errors from the upstream order call.
	ErrSubmissionFailed = errors.New("order submission failed")
)

// OrderSubmitter sends a finished order upstream.
type OrderSubmitter interface {
	OrderProducts(ctx context.Context, order appstate.Order) (appstate.OrderResult, error)
}

// CatalogProvider supplies the catalog new sessions start with.
type CatalogProvider interface {
	Products() []appstate.Product
}

// Config holds session manager settings
type Config struct {
	TTL             time.Duration
	CleanupInterval time.Duration
	MaxEvents       int
	Logger          *slog.Logger
}

// Manager creates, finds and expires sessions.
type Manager struct {
	sessions  *cache.TTLCache[*Session]
	locks     *LockManager
	catalog   CatalogProvider
	maxEvents int
	logger    *slog.Logger

	// latest is the last broadcast catalog. New sessions prefer it over
	// catalog.
	latestMu  sync.RWMutex
	latest    []appstate.Product
	hasLatest bool
}

// NewManager creates a manager. catalog may be nil, in which case new
// sessions start with an empty catalog.
func NewManager(cfg Config, catalog CatalogProvider) *Manager {
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Minute
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	m := &Manager{
		locks:     NewLockManager(),
		catalog:   catalog,
		maxEvents: cfg.MaxEvents,
		logger:    cfg.Logger,
	}
	m.sessions = cache.NewTTLCache[*Session](cfg.TTL, cfg.CleanupInterval, m.evict)
	return m
}

func (m *Manager) evict(id string, s *Session) {
	_ = m.locks.WithSessionLock(id, func() error {
		s.close()
		return nil
	})
	m.locks.Release(id)
	m.logger.Info("Session closed", "session_id", id)
}

// Create starts a new session seeded with the current catalog. The session
// is stored before it is seeded, so a concurrent BroadcastCatalog either
// reaches it or has already recorded the catalog the seed picks up.
func (m *Manager) Create() (*Session, error) {
	id := uuid.NewString()
	s, err := newSession(id, m.maxEvents, m.logger)
	if err != nil {
		return nil, err
	}
	m.sessions.Set(id, s)

	var products []appstate.Product
	if m.catalog != nil {
		products = m.catalog.Products()
	}
	err = m.locks.WithSessionLock(id, func() error {
		if latest, ok := m.latestCatalog(); ok {
			products = latest
		}
		return s.State.SetCatalog(products)
	})
	if err != nil {
		m.logger.Warn("Catalog subscriber failed on new session", "session_id", id, "error", err)
	}

	m.logger.Info("Session created", "session_id", id, "catalog_size", len(products))
	return s, nil
}

func (m *Manager) latestCatalog() ([]appstate.Product, bool) {
	m.latestMu.RLock()
	defer m.latestMu.RUnlock()
	return m.latest, m.hasLatest
}

// Get returns a live session and extends its lifetime.
func (m *Manager) Get(id string) (*Session, error) {
	s, ok := m.sessions.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// Delete closes a session.
func (m *Manager) Delete(id string) error {
	if !m.sessions.Delete(id) {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	return m.sessions.ActiveSize()
}

// WithSession runs fn with exclusive access to a session.
func (m *Manager) WithSession(id string, fn func(*Session) error) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	return m.locks.WithSessionLock(id, func() error {
		return fn(s)
	})
}

// ForEach runs fn with exclusive access to every live session. Errors are
// logged and do not stop the iteration.
func (m *Manager) ForEach(fn func(*Session) error) {
	m.sessions.Range(func(id string, s *Session) bool {
		if err := m.locks.WithSessionLock(id, func() error { return fn(s) }); err != nil {
			m.logger.Warn("Session operation failed", "session_id", id, "error", err)
		}
		return true
	})
}

// BroadcastCatalog replaces the catalog of every live session.
func (m *Manager) BroadcastCatalog(products []appstate.Product) {
	m.latestMu.Lock()
	m.latest = append([]appstate.Product(nil), products...)
	m.hasLatest = true
	m.latestMu.Unlock()

	m.ForEach(func(s *Session) error {
		return s.State.SetCatalog(products)
	})
}

// StoreStats reports the session store's entry counts and TTL.
func (m *Manager) StoreStats() map[string]interface{} {
	return m.sessions.GetStats()
}

// Summaries lists every live session.
func (m *Manager) Summaries() []models.SessionSummary {
	out := make([]models.SessionSummary, 0)
	m.ForEach(func(s *Session) error {
		out = append(out, s.Summary())
		return nil
	})
	return out
}

// Checkout submits the session's order. The upstream call runs without the
// session lock; its outcome is applied under the lock afterwards. On
// failure the basket and draft are kept for a retry.
func (m *Manager) Checkout(ctx context.Context, id string, submitter OrderSubmitter) (appstate.OrderResult, appstate.Order, error) {
	var order appstate.Order
	err := m.WithSession(id, func(s *Session) error {
		var err error
		order, err = s.Presenter.BeginSubmission()
		return err
	})
	if err != nil {
		return appstate.OrderResult{}, appstate.Order{}, err
	}

	result, submitErr := submitter.OrderProducts(ctx, order)
	if submitErr != nil {
		m.logger.Error("Order submission failed", "session_id", id, "error", submitErr)
		if err := m.WithSession(id, func(s *Session) error {
			return s.Presenter.FailSubmission(submitErr)
		}); err != nil {
			m.logger.Warn("Could not record failed submission", "session_id", id, "error", err)
		}
		return appstate.OrderResult{}, order, fmt.Errorf("%w: %w", ErrSubmissionFailed, submitErr)
	}

	if err := m.WithSession(id, func(s *Session) error {
		return s.Presenter.CompleteSubmission(result)
	}); err != nil {
		m.logger.Warn("Could not record completed submission", "session_id", id, "error", err)
	}

	m.logger.Info("Order submitted", "session_id", id, "order_id", result.ID, "total", result.Total.String())
	return result, order, nil
}

// Stop closes every session and stops the expiry loop.
func (m *Manager) Stop() {
	m.sessions.Stop()
	ids := make([]string, 0)
	m.sessions.Range(func(id string, _ *Session) bool {
		ids = append(ids, id)
		return true
	})
	for _, id := range ids {
		m.sessions.Delete(id)
	}
}
