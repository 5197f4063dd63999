package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"storefront-api/internal/models"
	"storefront-api/internal/session"
	"storefront-api/internal/telemetry"
)

// SessionHandler handles session lifecycle and read-only views
type SessionHandler struct {
	manager *session.Manager
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(manager *session.Manager) *SessionHandler {
	return &SessionHandler{manager: manager}
}

// CreateSession handles POST /v1/sessions
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.manager.Create()
	if err != nil {
		slog.Error("Failed to create session", "error", err)
		writeErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to create session", nil)
		return
	}

	var resp models.SessionResponse
	err = h.manager.WithSession(s.ID, func(s *session.Session) error {
		resp = models.SessionResponse{
			SessionID: s.ID,
			CreatedAt: s.CreatedAt,
			Catalog:   s.State.Catalog(),
		}
		return nil
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	slog.Info("Session started", "session_id", s.ID, "remote_addr", telemetry.GetClientIP(r))
	writeJSONResponse(w, http.StatusCreated, resp)
}

// DeleteSession handles DELETE /v1/sessions/{sessionId}
func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["sessionId"]
	if err := h.manager.Delete(id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetState handles GET /v1/sessions/{sessionId}/state
func (h *SessionHandler) GetState(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["sessionId"]

	var state models.SessionState
	if err := h.manager.WithSession(id, func(s *session.Session) error {
		state = s.Snapshot()
		return nil
	}); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, state)
}

// GetCatalog handles GET /v1/sessions/{sessionId}/catalog
func (h *SessionHandler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["sessionId"]

	var resp models.CatalogResponse
	if err := h.manager.WithSession(id, func(s *session.Session) error {
		items := s.State.Catalog()
		resp = models.CatalogResponse{Items: items, Total: len(items)}
		return nil
	}); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, resp)
}
