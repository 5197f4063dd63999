package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "API_ORIGIN", "SESSION_TTL", "DATABASE_URL", "ADMIN_API_KEYS", "ENVIRONMENT"} {
		t.Setenv(key, "")
	}

	cfg := FromEnv()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "https://larek-api.nomoreparties.co/api/weblarek", cfg.APIURL())
	assert.Equal(t, "https://larek-api.nomoreparties.co/content/weblarek", cfg.CDNURL())
	assert.Equal(t, 30*time.Minute, cfg.SessionTTLDuration())
	assert.Equal(t, "memory", cfg.OrderArchiveBackend())
	assert.Equal(t, []string{"admin-key-1"}, cfg.AdminKeys())
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("API_ORIGIN", "http://localhost:3000/")
	t.Setenv("SESSION_TTL", "5m")
	t.Setenv("MAX_EVENTS_PER_SESSION", "42")
	t.Setenv("DATABASE_URL", "postgres://localhost/storefront")
	t.Setenv("ADMIN_API_KEYS", " a , b,,c ")
	t.Setenv("ENVIRONMENT", "production")

	cfg := FromEnv()

	assert.Equal(t, "http://localhost:3000/api/weblarek", cfg.APIURL())
	assert.Equal(t, 5*time.Minute, cfg.SessionTTLDuration())
	assert.Equal(t, 42, cfg.MaxEvents())
	assert.Equal(t, "postgres", cfg.OrderArchiveBackend())
	assert.Equal(t, []string{"a", "b", "c"}, cfg.AdminKeys())
	assert.True(t, cfg.IsProduction())
}

func TestParseHelpers_FallBackOnInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"empty", "", time.Second},
		{"garbage", "soon", time.Second},
		{"negative", "-5s", time.Second},
		{"valid", "250ms", 250 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseDuration("X", tt.value, time.Second))
		})
	}

	assert.Equal(t, 7, ParseInt("X", "abc", 7))
	assert.Equal(t, 7, ParseInt("X", "0", 7))
	assert.Equal(t, 12, ParseInt("X", "12", 7))
}
