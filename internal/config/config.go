package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"storefront-api/internal/utils"
)

// Config holds all configuration for the application
type Config struct {
	Port                   string
	LogLevel               string
	Environment            string
	APIOrigin              string
	APITimeout             string
	SessionTTL             string
	SessionCleanupInterval string
	MaxEventsPerSession    string
	CatalogRefreshInterval string
	DatabaseURL            string
	AdminAPIKeys           string
	MetricsExporter        string

	// Rate limiting configuration
	RateLimitEnabled                string
	RateLimitType                   string
	RateLimitRequestsPerMinute      string
	RateLimitWindowMinutes          string
	RateLimitAdminRequestsPerMinute string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() *Config {
	// Existing environment variables win over .env
	err := godotenv.Load()
	if err != nil {
		slog.Warn("Could not load .env file, continuing with system environment variables only", "error", err)
	} else {
		slog.Info("Successfully loaded .env file")
	}

	config := FromEnv()
	utils.SetupLogging(config.LogLevel)

	slog.Info("Configuration loaded",
		"port", config.Port,
		"environment", config.Environment,
		"logLevel", config.LogLevel,
		"apiOrigin", config.APIOrigin,
		"apiTimeout", config.APITimeout,
		"sessionTTL", config.SessionTTL,
		"sessionCleanupInterval", config.SessionCleanupInterval,
		"maxEventsPerSession", config.MaxEventsPerSession,
		"catalogRefreshInterval", config.CatalogRefreshInterval,
		"orderArchive", config.OrderArchiveBackend(),
		"adminKeys", len(config.AdminKeys()),
		"metricsExporter", config.MetricsExporter)

	return config
}

// FromEnv reads the configuration from the process environment only
func FromEnv() *Config {
	return &Config{
		Port:                            getEnvWithDefault("PORT", "8080"),
		LogLevel:                        getEnvWithDefault("LOG_LEVEL", "info"),
		Environment:                     getEnvWithDefault("ENVIRONMENT", "development"),
		APIOrigin:                       getEnvWithDefault("API_ORIGIN", "https://larek-api.nomoreparties.co"),
		APITimeout:                      getEnvWithDefault("API_TIMEOUT", "30s"),
		SessionTTL:                      getEnvWithDefault("SESSION_TTL", "30m"),
		SessionCleanupInterval:          getEnvWithDefault("SESSION_CLEANUP_INTERVAL", "1m"),
		MaxEventsPerSession:             getEnvWithDefault("MAX_EVENTS_PER_SESSION", "500"),
		CatalogRefreshInterval:          getEnvWithDefault("CATALOG_REFRESH_INTERVAL", "5m"),
		DatabaseURL:                     os.Getenv("DATABASE_URL"),
		AdminAPIKeys:                    getEnvWithDefault("ADMIN_API_KEYS", "admin-key-1"),
		MetricsExporter:                 getEnvWithDefault("METRICS_EXPORTER", "prometheus"),
		RateLimitEnabled:                getEnvWithDefault("RATE_LIMIT_ENABLED", "true"),
		RateLimitType:                   getEnvWithDefault("RATE_LIMIT_TYPE", "ip"),
		RateLimitRequestsPerMinute:      getEnvWithDefault("RATE_LIMIT_REQUESTS_PER_MINUTE", "300"),
		RateLimitWindowMinutes:          getEnvWithDefault("RATE_LIMIT_WINDOW_MINUTES", "1"),
		RateLimitAdminRequestsPerMinute: getEnvWithDefault("RATE_LIMIT_ADMIN_REQUESTS_PER_MINUTE", "50"),
	}
}

// getEnvWithDefault gets an environment variable with a default fallback
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// APIURL is the base of the upstream catalog and order endpoints
func (c *Config) APIURL() string {
	return strings.TrimRight(c.APIOrigin, "/") + "/api/weblarek"
}

// CDNURL is the base for product image paths
func (c *Config) CDNURL() string {
	return strings.TrimRight(c.APIOrigin, "/") + "/content/weblarek"
}

// AdminKeys returns the configured admin API keys
func (c *Config) AdminKeys() []string {
	keys := make([]string, 0)
	for _, k := range strings.Split(c.AdminAPIKeys, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// OrderArchiveBackend names the storage used for accepted orders
func (c *Config) OrderArchiveBackend() string {
	if c.DatabaseURL != "" {
		return "postgres"
	}
	return "memory"
}

func (c *Config) APITimeoutDuration() time.Duration {
	return ParseDuration("API_TIMEOUT", c.APITimeout, 30*time.Second)
}

func (c *Config) SessionTTLDuration() time.Duration {
	return ParseDuration("SESSION_TTL", c.SessionTTL, 30*time.Minute)
}

func (c *Config) SessionCleanupDuration() time.Duration {
	return ParseDuration("SESSION_CLEANUP_INTERVAL", c.SessionCleanupInterval, time.Minute)
}

func (c *Config) CatalogRefreshDuration() time.Duration {
	return ParseDuration("CATALOG_REFRESH_INTERVAL", c.CatalogRefreshInterval, 5*time.Minute)
}

func (c *Config) MaxEvents() int {
	return ParseInt("MAX_EVENTS_PER_SESSION", c.MaxEventsPerSession, 500)
}

// ParseDuration parses a positive duration, falling back to defaultValue
// with a warning
func ParseDuration(name, value string, defaultValue time.Duration) time.Duration {
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		slog.Warn("Invalid duration, using default",
			"setting", name, "value", value, "default", defaultValue.String())
		return defaultValue
	}
	return d
}

// ParseInt parses a positive integer, falling back to defaultValue with a
// warning
func ParseInt(name, value string, defaultValue int) int {
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		slog.Warn("Invalid integer, using default",
			"setting", name, "value", value, "default", defaultValue)
		return defaultValue
	}
	return n
}
