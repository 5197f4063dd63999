package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"

	"storefront-api/internal/models"
)

// APIKeyHeader carries admin credentials
const APIKeyHeader = "X-API-Key"

// AdminAuthMiddleware only lets requests with one of keys through. With no
// configured keys every admin request is rejected.
func AdminAuthMiddleware(keys []string) func(http.Handler) http.Handler {
	valid := make([][]byte, 0, len(keys))
	for _, k := range keys {
		if k != "" {
			valid = append(valid, []byte(k))
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey := r.Header.Get(APIKeyHeader)
			if apiKey == "" {
				slog.Warn("Admin authentication failed: missing API key", "remote_addr", r.RemoteAddr)
				writeErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Admin API key required", nil)
				return
			}

			if !matchesAny(valid, []byte(apiKey)) {
				slog.Warn("Admin authentication failed: invalid admin API key", "remote_addr", r.RemoteAddr)
				writeErrorResponse(w, http.StatusForbidden, "forbidden", "Admin access required", nil)
				return
			}

			slog.Debug("Admin authentication successful", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
			next.ServeHTTP(w, r)
		})
	}
}

func matchesAny(valid [][]byte, key []byte) bool {
	found := 0
	for _, v := range valid {
		found |= subtle.ConstantTimeCompare(v, key)
	}
	return found == 1
}

// writeErrorResponse is a helper function to write error responses
func writeErrorResponse(w http.ResponseWriter, statusCode int, code, message string, details []models.ErrorDetail) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(models.ErrorResponse{
		Code:    code,
		Message: message,
		Details: details,
	}); err != nil {
		slog.Error("Failed to encode error response", "error", err)
	}
}
