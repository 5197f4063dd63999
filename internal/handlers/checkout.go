package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"storefront-api/internal/models"
	"storefront-api/internal/repository"
	"storefront-api/internal/session"
	"storefront-api/internal/telemetry"
)

// CheckoutHandler submits session orders upstream and archives them
type CheckoutHandler struct {
	manager   *session.Manager
	submitter session.OrderSubmitter
	orders    repository.OrderRepository
	telemetry *telemetry.StorefrontTelemetry
}

// NewCheckoutHandler creates a new checkout handler. tel may be nil.
func NewCheckoutHandler(manager *session.Manager, submitter session.OrderSubmitter, orders repository.OrderRepository, tel *telemetry.StorefrontTelemetry) *CheckoutHandler {
	if tel == nil {
		tel = telemetry.NewStorefrontTelemetry()
	}
	return &CheckoutHandler{
		manager:   manager,
		submitter: submitter,
		orders:    orders,
		telemetry: tel,
	}
}

// Checkout handles POST /v1/sessions/{sessionId}/checkout
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["sessionId"]

	result, order, err := h.manager.Checkout(r.Context(), id, h.submitter)
	if err != nil {
		if status, _ := errorStatus(err); status == http.StatusBadGateway {
			h.telemetry.RecordOrderFailure(r.Context(), err.Error())
		}
		writeDomainError(w, r, err)
		return
	}

	record := models.OrderRecord{
		SessionID:  id,
		ExternalID: result.ID,
		Payment:    order.Payment,
		Email:      order.Email,
		Phone:      order.Phone,
		Address:    order.Address,
		Items:      order.Items,
		Total:      order.Total,
	}
	if _, err := h.orders.Save(r.Context(), record); err != nil {
		// The upstream already accepted the order; only the archive is missing it.
		slog.Error("Failed to archive order", "session_id", id, "order_id", result.ID, "error", err)
	}
	h.telemetry.RecordOrderSubmitted(r.Context(), string(order.Payment), len(order.Items))

	writeJSONResponse(w, http.StatusOK, models.CheckoutResponse{
		OrderID: result.ID,
		Total:   result.Total,
	})
}
