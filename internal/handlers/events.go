package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"storefront-api/internal/models"
	"storefront-api/internal/session"
	"storefront-api/internal/telemetry"
)

const (
	defaultEventLimit = 100
	maxEventLimit     = 1000
	maxWaitSeconds    = 60
)

// EventsHandler serves a session's change feed
type EventsHandler struct {
	manager *session.Manager
	logger  *slog.Logger
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(manager *session.Manager, logger *slog.Logger) *EventsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventsHandler{manager: manager, logger: logger}
}

// GetEvents handles GET /v1/sessions/{sessionId}/events?offset=&limit=&wait=
func (h *EventsHandler) GetEvents(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["sessionId"]
	query := r.URL.Query()

	var offset int64
	if v := query.Get("offset"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil || parsed < 0 {
			writeErrorResponse(w, http.StatusBadRequest, "invalid_request", "invalid offset parameter",
				[]models.ErrorDetail{{Field: "offset", Issue: "must be a non-negative integer"}})
			return
		}
		offset = parsed
	}

	limit := defaultEventLimit
	if v := query.Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= maxEventLimit {
			limit = parsed
		}
	}

	waitSeconds := 0
	if v := query.Get("wait"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 && parsed <= maxWaitSeconds {
			waitSeconds = parsed
		}
	}

	s, err := h.manager.Get(id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	events, nextOffset, hasMore := s.Feed.GetEvents(offset, limit)
	if len(events) == 0 && waitSeconds > 0 {
		h.logger.Debug("No events available, starting long polling",
			"session_id", id, "offset", offset, "wait_seconds", waitSeconds)

		select {
		case <-s.Feed.WaitForEvents(offset, time.Duration(waitSeconds)*time.Second):
			events, nextOffset, hasMore = s.Feed.GetEvents(offset, limit)
		case <-r.Context().Done():
			h.logger.Debug("Client disconnected during long polling", "session_id", id)
			return
		}
	}

	telemetry.FromContext(r.Context()).SetEventCount(len(events))
	writeJSONResponse(w, http.StatusOK, models.EventsResponse{
		Events:     events,
		NextOffset: nextOffset,
		HasMore:    hasMore,
		Count:      len(events),
	})
}
