package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"storefront-api/internal/checkout"
	"storefront-api/internal/models"
	"storefront-api/internal/session"
	"storefront-api/internal/telemetry"
)

// IntentHandler turns browser actions into bus intents
type IntentHandler struct {
	manager   *session.Manager
	telemetry *telemetry.StorefrontTelemetry
}

// NewIntentHandler creates a new intent handler. tel may be nil.
func NewIntentHandler(manager *session.Manager, tel *telemetry.StorefrontTelemetry) *IntentHandler {
	if tel == nil {
		tel = telemetry.NewStorefrontTelemetry()
	}
	return &IntentHandler{manager: manager, telemetry: tel}
}

// PostIntent handles POST /v1/sessions/{sessionId}/intents. On success it
// returns the session state after the intent was processed.
func (h *IntentHandler) PostIntent(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["sessionId"]

	var req models.IntentRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		slog.Warn("Invalid JSON in intent request", "error", err, "session_id", id)
		writeErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid JSON in request body", nil)
		return
	}
	if err := validate.Struct(req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "validation_error", "Invalid intent", validationDetails(err))
		return
	}
	telemetry.FromContext(r.Context()).SetIntent(req.Intent)

	topic := intentTopic(req)
	payload := checkout.Intent{ProductID: req.ProductID, Value: req.Value}

	var state models.SessionState
	err := h.manager.WithSession(id, func(s *session.Session) error {
		if err := s.Dispatch(topic, payload); err != nil {
			return err
		}
		state = s.Snapshot()
		return nil
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	if strings.HasPrefix(req.Intent, "basket.") && req.Intent != models.IntentBasketOpen {
		h.telemetry.RecordBasketChange(r.Context(), req.Intent)
	}
	slog.Debug("Intent processed", "session_id", id, "intent", req.Intent, "step", state.Step)
	writeJSONResponse(w, http.StatusOK, state)
}
