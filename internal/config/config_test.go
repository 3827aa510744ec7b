package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_ENV", "APP_NAME", "PORT", "DATABASE_URL", "CORS_ALLOWED_ORIGINS", "FRONTEND_URL",
		"JWT_ACCESS_EXPIRES_IN", "JWT_REFRESH_EXPIRES_IN", "AUTH_STRICT_RESET_EMAIL",
		"AUTH_RATE_LIMIT_PER_MINUTE", "AUTH_RATE_LIMIT_BURST",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("JWT_ACCESS_SECRET", "access")
	t.Setenv("JWT_REFRESH_SECRET", "refresh")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "tripdesk", cfg.AppName)
	assert.Equal(t, ":8080", cfg.HTTPAddress())
	assert.Equal(t, "15m", cfg.JWTAccessTTL)
	assert.Equal(t, "7d", cfg.JWTRefreshTTL)
	assert.True(t, cfg.StrictResetEmail)
	assert.Equal(t, 20, cfg.RateLimitPerMinute)
	assert.Equal(t, 5, cfg.RateLimitBurst)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Empty(t, cfg.DatabaseURL)
	assert.False(t, cfg.Production())
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("PORT", "9000")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example.com , ,https://b.example.com")
	t.Setenv("AUTH_STRICT_RESET_EMAIL", "false")
	t.Setenv("AUTH_RATE_LIMIT_PER_MINUTE", "0")
	t.Setenv("FRONTEND_URL", "https://app.example.com/")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.Production())
	assert.Equal(t, ":9000", cfg.HTTPAddress())
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSOrigins)
	assert.False(t, cfg.StrictResetEmail)
	assert.Equal(t, 0, cfg.RateLimitPerMinute)
	assert.Equal(t, "https://app.example.com", cfg.FrontendURL)
}

func TestLoadValidation(t *testing.T) {
	tests := map[string]map[string]string{
		"missing redis":     {"REDIS_URL": ""},
		"missing secret":    {"JWT_REFRESH_SECRET": ""},
		"shared secret":     {"JWT_REFRESH_SECRET": "access"},
		"bad strict flag":   {"AUTH_STRICT_RESET_EMAIL": "sometimes"},
		"negative limit":    {"AUTH_RATE_LIMIT_PER_MINUTE": "-1"},
		"non-numeric burst": {"AUTH_RATE_LIMIT_BURST": "lots"},
	}
	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			setRequired(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
