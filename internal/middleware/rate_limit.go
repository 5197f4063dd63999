package middleware

import (
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"storefront-api/internal/models"
	"storefront-api/internal/telemetry"
)

// RateLimitType selects what a limit is counted against
type RateLimitType string

const (
	RateLimitTypeIP     RateLimitType = "ip"
	RateLimitTypeGlobal RateLimitType = "global"
	RateLimitTypeBoth   RateLimitType = "both"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled                bool
	Type                   RateLimitType
	RequestsPerMinute      int
	WindowMinutes          int
	AdminRequestsPerMinute int
}

// window is a fixed counting window
type window struct {
	count   int
	resetAt time.Time
}

// roll starts a new window once the current one has ended
func (w *window) roll(length time.Duration, now time.Time) {
	if !now.Before(w.resetAt) {
		w.count = 0
		w.resetAt = now.Add(length)
	}
}

func (w *window) info(limit int) RateLimitInfo {
	remaining := limit - w.count
	if remaining < 0 {
		remaining = 0
	}
	return RateLimitInfo{Limit: limit, Remaining: remaining, ResetTime: w.resetAt}
}

// RateLimitInfo contains rate limit information for response headers
type RateLimitInfo struct {
	Limit     int
	Remaining int
	ResetTime time.Time
}

// RateLimiter counts requests per client IP, globally, or both. Admin
// routes are counted in separate windows with their own limit.
type RateLimiter struct {
	config  RateLimitConfig
	mutex   sync.Mutex
	clients map[string]*window
	global  map[bool]*window
	now     func() time.Time

	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	stopOnce      sync.Once
}

// NewRateLimiter creates a new rate limiter and starts its cleanup loop
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	rl := &RateLimiter{
		config:      config,
		clients:     make(map[string]*window),
		global:      map[bool]*window{false: {}, true: {}},
		now:         time.Now,
		stopCleanup: make(chan struct{}),
	}

	rl.cleanupTicker = time.NewTicker(time.Minute)
	go rl.cleanupLoop()

	slog.Info("Rate limiter initialized",
		"enabled", config.Enabled,
		"type", config.Type,
		"requests_per_minute", config.RequestsPerMinute,
		"window_minutes", config.WindowMinutes,
		"admin_requests_per_minute", config.AdminRequestsPerMinute)
	return rl
}

// Stop stops the cleanup loop
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		rl.cleanupTicker.Stop()
		close(rl.stopCleanup)
	})
}

func (rl *RateLimiter) cleanupLoop() {
	for {
		select {
		case <-rl.cleanupTicker.C:
			rl.removeExpired()
		case <-rl.stopCleanup:
			return
		}
	}
}

func (rl *RateLimiter) removeExpired() {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()
	now := rl.now()
	for key, w := range rl.clients {
		if !now.Before(w.resetAt) {
			delete(rl.clients, key)
		}
	}
}

func (rl *RateLimiter) windowLength() time.Duration {
	return time.Duration(rl.config.WindowMinutes) * time.Minute
}

// IsAllowed counts one request and reports whether it may proceed. With
// type "both" the request must fit both windows and the most restrictive
// one is reported.
func (rl *RateLimiter) IsAllowed(clientIP string, isAdmin bool) (bool, RateLimitInfo) {
	if !rl.config.Enabled {
		return true, RateLimitInfo{Limit: -1, Remaining: -1}
	}

	limit := rl.config.RequestsPerMinute * rl.config.WindowMinutes
	if isAdmin && rl.config.AdminRequestsPerMinute > 0 {
		limit = rl.config.AdminRequestsPerMinute * rl.config.WindowMinutes
	}

	rl.mutex.Lock()
	defer rl.mutex.Unlock()
	now := rl.now()

	windows := make([]*window, 0, 2)
	if rl.config.Type == RateLimitTypeIP || rl.config.Type == RateLimitTypeBoth {
		key := clientIP
		if isAdmin {
			key = "admin|" + clientIP
		}
		w, ok := rl.clients[key]
		if !ok {
			w = &window{}
			rl.clients[key] = w
		}
		windows = append(windows, w)
	}
	if rl.config.Type == RateLimitTypeGlobal || rl.config.Type == RateLimitTypeBoth {
		windows = append(windows, rl.global[isAdmin])
	}

	// A rejected request is not counted in any window.
	allowed := true
	for _, w := range windows {
		w.roll(rl.windowLength(), now)
		if w.count >= limit {
			allowed = false
		}
	}

	info := RateLimitInfo{Limit: limit, Remaining: math.MaxInt}
	for _, w := range windows {
		if allowed {
			w.count++
		}
		info = restrictive(info, w.info(limit))
	}
	return allowed, info
}

func restrictive(a, b RateLimitInfo) RateLimitInfo {
	if b.Remaining < a.Remaining {
		return b
	}
	return a
}

// GetRateLimitStats returns current rate limiting statistics
func (rl *RateLimiter) GetRateLimitStats() map[string]interface{} {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	stats := map[string]interface{}{
		"enabled":                   rl.config.Enabled,
		"type":                      string(rl.config.Type),
		"requests_per_minute":       rl.config.RequestsPerMinute,
		"window_minutes":            rl.config.WindowMinutes,
		"admin_requests_per_minute": rl.config.AdminRequestsPerMinute,
		"active_client_windows":     len(rl.clients),
	}
	if rl.config.Type == RateLimitTypeGlobal || rl.config.Type == RateLimitTypeBoth {
		stats["global_count"] = rl.global[false].count
		stats["global_admin_count"] = rl.global[true].count
		if !rl.global[false].resetAt.IsZero() {
			stats["global_reset_time"] = rl.global[false].resetAt.Format(time.RFC3339)
		}
	}
	return stats
}

// ResetRateLimits clears every counter
func (rl *RateLimiter) ResetRateLimits() {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()
	rl.clients = make(map[string]*window)
	rl.global = map[bool]*window{false: {}, true: {}}
	slog.Info("Rate limits reset")
}

// RateLimitMiddleware applies rl to every route except /health
func RateLimitMiddleware(rl *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}

			clientIP := telemetry.GetClientIP(r)
			isAdmin := strings.HasPrefix(r.URL.Path, "/v1/admin")
			allowed, info := rl.IsAllowed(clientIP, isAdmin)
			setRateLimitHeaders(w, info)

			if !allowed {
				slog.Warn("Rate limit exceeded",
					"client_ip", clientIP,
					"path", r.URL.Path,
					"method", r.Method,
					"is_admin", isAdmin,
					"limit", info.Limit,
					"reset_time", info.ResetTime.Format(time.RFC3339))
				writeRateLimitErrorResponse(w, info, rl.now())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func setRateLimitHeaders(w http.ResponseWriter, info RateLimitInfo) {
	if info.Limit < 0 {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
	if !info.ResetTime.IsZero() {
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime.Unix(), 10))
	}
}

func writeRateLimitErrorResponse(w http.ResponseWriter, info RateLimitInfo, now time.Time) {
	retryAfter := int(math.Ceil(info.ResetTime.Sub(now).Seconds()))
	if retryAfter < 1 {
		retryAfter = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

	writeErrorResponse(w, http.StatusTooManyRequests, "rate_limit_exceeded",
		"Rate limit exceeded. Please try again later.",
		[]models.ErrorDetail{
			{Field: "rate_limit", Issue: fmt.Sprintf("Exceeded %d requests per window", info.Limit)},
			{Field: "retry_after", Issue: fmt.Sprintf("Retry after %d seconds", retryAfter)},
		})
}
