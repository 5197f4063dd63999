// Package catalog keeps a server side copy of the upstream product list and
// pushes refreshed catalogs to live sessions.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"storefront-api/internal/appstate"
	"storefront-api/internal/models"
)

// ProductSource fetches the full product list.
type ProductSource interface {
	GetProductList(ctx context.Context) ([]appstate.Product, error)
}

// Broadcaster receives every successfully refreshed catalog.
type Broadcaster interface {
	BroadcastCatalog(products []appstate.Product)
}

// Config holds configuration for the catalog service
type Config struct {
	RefreshInterval time.Duration
	// OnRefresh, when set, is called after every refresh attempt.
	OnRefresh func(success bool, products int, duration time.Duration)
}

// Service periodically refreshes the catalog. A failed refresh keeps the
// previous catalog.
type Service struct {
	source      ProductSource
	broadcaster Broadcaster
	interval    time.Duration
	onRefresh   func(bool, int, time.Duration)

	refreshMutex sync.Mutex
	mutex        sync.RWMutex
	products     []appstate.Product
	status       models.CatalogStatus

	stopChan chan struct{}
	stopOnce sync.Once
}

// NewService creates a catalog service. broadcaster may be nil.
func NewService(source ProductSource, broadcaster Broadcaster, config Config) *Service {
	if config.RefreshInterval <= 0 {
		config.RefreshInterval = 5 * time.Minute
	}
	return &Service{
		source:      source,
		broadcaster: broadcaster,
		interval:    config.RefreshInterval,
		onRefresh:   config.OnRefresh,
		products:    []appstate.Product{},
		stopChan:    make(chan struct{}),
	}
}

// SetBroadcaster sets the receiver of refreshed catalogs.
func (s *Service) SetBroadcaster(b Broadcaster) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.broadcaster = b
}

// Start performs an initial refresh and then refreshes in the background
// until ctx is cancelled or Stop is called. A failed initial refresh is
// logged, not returned; the service starts with an empty catalog.
func (s *Service) Start(ctx context.Context) {
	slog.Info("Starting catalog service", "refresh_interval", s.interval.String())
	if err := s.Refresh(ctx); err != nil {
		slog.Warn("Initial catalog refresh failed", "error", err)
	}
	go s.refreshLoop(ctx)
}

// Stop stops the background refresh loop
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		slog.Info("Stopping catalog service")
		close(s.stopChan)
	})
}

func (s *Service) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Catalog refresh loop stopped due to context cancellation")
			return
		case <-s.stopChan:
			slog.Info("Catalog refresh loop stopped")
			return
		case <-ticker.C:
			func() {
				defer func() {
					if r := recover(); r != nil {
						slog.Error("Panic in catalog refresh", "panic", r)
					}
				}()
				if err := s.Refresh(ctx); err != nil {
					slog.Error("Catalog refresh failed", "error", err)
				}
			}()
		}
	}
}

// Refresh fetches the catalog now. Concurrent calls are serialized.
func (s *Service) Refresh(ctx context.Context) error {
	s.refreshMutex.Lock()
	defer s.refreshMutex.Unlock()

	start := time.Now()
	s.mutex.Lock()
	s.status.InProgress = true
	s.mutex.Unlock()

	products, err := s.source.GetProductList(ctx)
	duration := time.Since(start)

	s.mutex.Lock()
	s.status.InProgress = false
	s.status.LastRefreshTime = time.Now().UTC()
	s.status.RefreshDuration = duration.String()
	if err != nil {
		s.status.LastRefreshSuccess = false
		s.status.ConsecutiveFailures++
		s.status.ErrorMessage = err.Error()
		count := len(s.products)
		failures := s.status.ConsecutiveFailures
		s.mutex.Unlock()

		slog.Warn("Catalog refresh failed, keeping previous catalog",
			"error", err,
			"consecutive_failures", failures,
			"product_count", count)
		s.report(false, count, duration)
		return fmt.Errorf("failed to refresh catalog: %w", err)
	}

	if products == nil {
		products = []appstate.Product{}
	}
	s.products = products
	s.status.LastRefreshSuccess = true
	s.status.ConsecutiveFailures = 0
	s.status.ErrorMessage = ""
	s.status.ProductCount = len(products)
	broadcaster := s.broadcaster
	s.mutex.Unlock()

	if broadcaster != nil {
		broadcaster.BroadcastCatalog(products)
	}

	slog.Info("Catalog refreshed", "product_count", len(products), "duration", duration.String())
	s.report(true, len(products), duration)
	return nil
}

func (s *Service) report(success bool, products int, duration time.Duration) {
	if s.onRefresh != nil {
		s.onRefresh(success, products, duration)
	}
}

// Products returns the current catalog
func (s *Service) Products() []appstate.Product {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return append([]appstate.Product(nil), s.products...)
}

// Status returns the refresh status
func (s *Service) Status() models.CatalogStatus {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	status := s.status
	status.ProductCount = len(s.products)
	return status
}
