package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds runtime configuration sourced from env vars.
type Config struct {
	Env         string
	AppName     string
	Port        string
	DatabaseURL string
	RedisURL    string
	FrontendURL string
	CORSOrigins []string

	JWTAccessSecret  string
	JWTRefreshSecret string
	JWTAccessTTL     string
	JWTRefreshTTL    string

	StrictResetEmail   bool
	RateLimitPerMinute int
	RateLimitBurst     int

	SuperAdminEmail    string
	SuperAdminPassword string
}

// Load reads configuration from the environment and performs minimal validation.
func Load() (Config, error) {
	cfg := Config{
		Env:         fallback(os.Getenv("APP_ENV"), "development"),
		AppName:     fallback(os.Getenv("APP_NAME"), "tripdesk"),
		Port:        fallback(os.Getenv("PORT"), "8080"),
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		RedisURL:    strings.TrimSpace(os.Getenv("REDIS_URL")),
		FrontendURL: strings.TrimRight(fallback(os.Getenv("FRONTEND_URL"), "http://localhost:3000"), "/"),
		CORSOrigins: parseCSV(fallback(os.Getenv("CORS_ALLOWED_ORIGINS"), "*")),

		JWTAccessSecret:  strings.TrimSpace(os.Getenv("JWT_ACCESS_SECRET")),
		JWTRefreshSecret: strings.TrimSpace(os.Getenv("JWT_REFRESH_SECRET")),
		JWTAccessTTL:     fallback(os.Getenv("JWT_ACCESS_EXPIRES_IN"), "15m"),
		JWTRefreshTTL:    fallback(os.Getenv("JWT_REFRESH_EXPIRES_IN"), "7d"),

		SuperAdminEmail:    strings.TrimSpace(os.Getenv("SUPER_ADMIN_EMAIL")),
		SuperAdminPassword: os.Getenv("SUPER_ADMIN_PASSWORD"),
	}

	var err error
	if cfg.StrictResetEmail, err = parseBool("AUTH_STRICT_RESET_EMAIL", true); err != nil {
		return Config{}, err
	}
	if cfg.RateLimitPerMinute, err = parseInt("AUTH_RATE_LIMIT_PER_MINUTE", 20); err != nil {
		return Config{}, err
	}
	if cfg.RateLimitBurst, err = parseInt("AUTH_RATE_LIMIT_BURST", 5); err != nil {
		return Config{}, err
	}

	if cfg.RedisURL == "" {
		return Config{}, errors.New("REDIS_URL is required")
	}
	if cfg.JWTAccessSecret == "" || cfg.JWTRefreshSecret == "" {
		return Config{}, errors.New("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET are required")
	}
	if cfg.JWTAccessSecret == cfg.JWTRefreshSecret {
		return Config{}, errors.New("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}

	return cfg, nil
}

// HTTPAddress returns the host:port pair for the HTTP server to bind to.
func (c Config) HTTPAddress() string {
	return fmt.Sprintf(":%s", c.Port)
}

// Production reports whether the service runs with production settings.
func (c Config) Production() bool {
	return c.Env == "production"
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return strings.TrimSpace(value)
}

func parseBool(key string, def bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func parseInt(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return v, nil
}

func parseCSV(input string) []string {
	parts := strings.Split(input, ",")
	var out []string
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
