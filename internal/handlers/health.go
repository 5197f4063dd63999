package handlers

import (
	"context"
	"net/http"
	"time"

	"storefront-api/internal/models"
	"storefront-api/internal/session"
)

// UpstreamChecker probes the upstream API
type UpstreamChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler handles health check requests
type HealthHandler struct {
	manager  *session.Manager
	catalog  CatalogRefresher
	upstream UpstreamChecker
}

// NewHealthHandler creates a new health handler. upstream may be nil.
func NewHealthHandler(manager *session.Manager, catalog CatalogRefresher, upstream UpstreamChecker) *HealthHandler {
	return &HealthHandler{manager: manager, catalog: catalog, upstream: upstream}
}

// Health handles GET /health. With ?upstream=true the upstream API is
// probed as well; an unreachable upstream reports "degraded".
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := models.HealthResponse{
		Status:      "healthy",
		Sessions:    h.manager.Count(),
		CatalogSize: h.catalog.Status().ProductCount,
	}

	if h.upstream != nil && r.URL.Query().Get("upstream") == "true" {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := h.upstream.HealthCheck(ctx); err != nil {
			resp.Status = "degraded"
			resp.UpstreamStatus = "unavailable"
		} else {
			resp.UpstreamStatus = "ok"
		}
	}
	writeJSONResponse(w, http.StatusOK, resp)
}
