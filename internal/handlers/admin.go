package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"storefront-api/internal/models"
	"storefront-api/internal/repository"
	"storefront-api/internal/session"
)

// CatalogRefresher is the catalog service as seen by admin endpoints
type CatalogRefresher interface {
	Refresh(ctx context.Context) error
	Status() models.CatalogStatus
}

// AdminHandler handles admin-only endpoints
type AdminHandler struct {
	catalog CatalogRefresher
	orders  repository.OrderRepository
	manager *session.Manager
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(catalog CatalogRefresher, orders repository.OrderRepository, manager *session.Manager) *AdminHandler {
	return &AdminHandler{catalog: catalog, orders: orders, manager: manager}
}

// RefreshCatalog handles POST /v1/admin/catalog/refresh
func (h *AdminHandler) RefreshCatalog(w http.ResponseWriter, r *http.Request) {
	slog.Info("Admin catalog refresh requested", "remote_addr", r.RemoteAddr)

	if err := h.catalog.Refresh(r.Context()); err != nil {
		writeErrorResponse(w, http.StatusBadGateway, "upstream_error", err.Error(), nil)
		return
	}
	writeJSONResponse(w, http.StatusOK, h.catalog.Status())
}

// CatalogStatus handles GET /v1/admin/catalog/status
func (h *AdminHandler) CatalogStatus(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, h.catalog.Status())
}

// ListOrders handles GET /v1/admin/orders?limit=
func (h *AdminHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	limit := defaultEventLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 || parsed > maxEventLimit {
			writeErrorResponse(w, http.StatusBadRequest, "invalid_request", "invalid limit parameter",
				[]models.ErrorDetail{{Field: "limit", Issue: "must be between 1 and 1000"}})
			return
		}
		limit = parsed
	}

	orders, err := h.orders.List(r.Context(), limit)
	if err != nil {
		slog.Error("Failed to list orders", "error", err)
		writeErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to list orders", nil)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.OrdersResponse{Orders: orders, Count: len(orders)})
}

// ListSessions handles GET /v1/admin/sessions
func (h *AdminHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := h.manager.Summaries()
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"sessions": sessions,
		"count":    len(sessions),
		"store":    h.manager.StoreStats(),
	})
}
