package telemetry

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
)

// TelemetryMiddleware records request metrics for every route
type TelemetryMiddleware struct {
	telemetry *StorefrontTelemetry
}

// NewTelemetryMiddleware creates a new telemetry middleware
func NewTelemetryMiddleware(telemetry *StorefrontTelemetry) *TelemetryMiddleware {
	return &TelemetryMiddleware{telemetry: telemetry}
}

// Middleware returns the HTTP middleware function. Handlers report extra
// attributes through the *Recorder stored in the request context.
func (tm *TelemetryMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		rec := &Recorder{}
		ctx := context.WithValue(r.Context(), recorderKey{}, rec)
		r = r.WithContext(ctx)

		clientIP := GetClientIP(r)
		metrics := RequestMetrics{
			Method:       r.Method,
			Endpoint:     endpointOf(r),
			ClientIP:     clientIP,
			ClientIPType: NormalizeClientIP(clientIP),
		}

		next.ServeHTTP(wrapper, r)

		metrics.StatusCode = wrapper.statusCode
		metrics.Duration = time.Since(start)
		metrics.Intent = rec.intent
		metrics.EventCount = rec.eventCount

		if wrapper.statusCode >= 400 {
			metrics.ErrorMessage = statusMessage(wrapper.statusCode)
			tm.telemetry.RegisterRequestError(ctx, metrics)
		} else {
			tm.telemetry.RegisterRequestReceived(ctx, metrics)
		}
		tm.telemetry.RegisterRequestDuration(ctx, metrics)
	})
}

// endpointOf returns the route template, e.g. /v1/sessions/{sessionId}/state
func endpointOf(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// GetClientIP extracts the client IP address from the request
func GetClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ip := strings.TrimSpace(strings.Split(xff, ",")[0])
		if net.ParseIP(ip) != nil {
			return ip
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if net.ParseIP(xri) != nil {
			return xri
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
	wrote      bool
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	if !w.wrote {
		w.statusCode = statusCode
		w.wrote = true
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *responseWriterWrapper) Write(data []byte) (int, error) {
	w.wrote = true
	return w.ResponseWriter.Write(data)
}

func (w *responseWriterWrapper) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func statusMessage(statusCode int) string {
	if text := http.StatusText(statusCode); text != "" {
		return text
	}
	return "HTTP Error " + strconv.Itoa(statusCode)
}

type recorderKey struct{}

// Recorder carries per-request attributes from handlers to the middleware
type Recorder struct {
	intent     string
	eventCount int
}

// FromContext returns the request's recorder. Outside the middleware it
// returns a detached recorder so callers never need a nil check.
func FromContext(ctx context.Context) *Recorder {
	if rec, ok := ctx.Value(recorderKey{}).(*Recorder); ok {
		return rec
	}
	return &Recorder{}
}

// SetIntent records the intent name of an intents request
func (r *Recorder) SetIntent(intent string) { r.intent = intent }

// SetEventCount records how many feed events a request returned
func (r *Recorder) SetEventCount(n int) { r.eventCount = n }
