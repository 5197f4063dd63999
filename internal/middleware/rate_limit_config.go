package middleware

import (
	"log/slog"
	"strconv"
	"strings"

	"storefront-api/internal/config"
)

// ParseRateLimitConfig turns the string settings of cfg into a
// RateLimitConfig. Invalid values fall back to defaults with a warning.
func ParseRateLimitConfig(cfg *config.Config) RateLimitConfig {
	rlc := RateLimitConfig{
		Enabled:                parseBool(cfg.RateLimitEnabled, true),
		Type:                   parseRateLimitType(cfg.RateLimitType),
		RequestsPerMinute:      parsePositiveInt("RATE_LIMIT_REQUESTS_PER_MINUTE", cfg.RateLimitRequestsPerMinute, 300),
		WindowMinutes:          parsePositiveInt("RATE_LIMIT_WINDOW_MINUTES", cfg.RateLimitWindowMinutes, 1),
		AdminRequestsPerMinute: parsePositiveInt("RATE_LIMIT_ADMIN_REQUESTS_PER_MINUTE", cfg.RateLimitAdminRequestsPerMinute, 50),
	}

	slog.Info("Rate limiting configuration parsed",
		"enabled", rlc.Enabled,
		"type", rlc.Type,
		"requests_per_minute", rlc.RequestsPerMinute,
		"window_minutes", rlc.WindowMinutes,
		"admin_requests_per_minute", rlc.AdminRequestsPerMinute)
	return rlc
}

func parseBool(value string, defaultValue bool) bool {
	if value == "" {
		return defaultValue
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes", "on", "enabled":
		return true
	case "false", "0", "no", "off", "disabled":
		return false
	default:
		slog.Warn("Invalid boolean value, using default", "value", value, "default", defaultValue)
		return defaultValue
	}
}

func parsePositiveInt(name, value string, defaultValue int) int {
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n <= 0 {
		slog.Warn("Invalid rate limit setting, using default",
			"setting", name, "value", value, "default", defaultValue)
		return defaultValue
	}
	return n
}

func parseRateLimitType(value string) RateLimitType {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "ip":
		return RateLimitTypeIP
	case "global":
		return RateLimitTypeGlobal
	case "both":
		return RateLimitTypeBoth
	default:
		slog.Warn("Invalid rate limit type, using default", "value", value, "default", "ip")
		return RateLimitTypeIP
	}
}
