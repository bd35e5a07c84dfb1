package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// applyEnvOverrides applies environment variable overrides to the config.
// Environment variables take precedence over YAML configuration. All env vars
// use the SURGECART_ prefix for namespace isolation.
func (c *Config) applyEnvOverrides() {
	// Server config
	setIfEnv(&c.Server.Address, "SURGECART_SERVER_ADDRESS")
	if v := os.Getenv("SURGECART_CORS_ALLOWED_ORIGINS"); v != "" {
		c.Server.CORSAllowedOrigins = splitAndTrim(v)
	}

	// Database config
	setIfEnv(&c.Database.Driver, "SURGECART_DB_DRIVER")
	setIfEnv(&c.Database.DSN, "SURGECART_DB_DSN")
	setIntIfEnv(&c.Database.Pool.MaxOpenConns, "SURGECART_DB_MAX_OPEN_CONNS")
	setIntIfEnv(&c.Database.Pool.MaxIdleConns, "SURGECART_DB_MAX_IDLE_CONNS")
	setDurationIfEnv(&c.Database.Pool.ConnMaxLifetime, "SURGECART_DB_CONN_MAX_LIFETIME")

	// Cache config
	setIfEnv(&c.Cache.Backend, "SURGECART_CACHE_BACKEND")
	setIfEnv(&c.Cache.MongoDBURL, "SURGECART_CACHE_MONGODB_URL")
	setIfEnv(&c.Cache.MongoDBDatabase, "SURGECART_CACHE_MONGODB_DATABASE")
	setDurationIfEnv(&c.Cache.AvailableStockTTL, "SURGECART_CACHE_AVAILABLE_STOCK_TTL")

	// Inventory config
	setDurationIfEnv(&c.Inventory.HoldTTL, "SURGECART_HOLD_TTL")

	// Retry config
	setIntIfEnv(&c.Retry.MaxAttempts, "SURGECART_RETRY_MAX_ATTEMPTS")
	setDurationIfEnv(&c.Retry.BaseDelay, "SURGECART_RETRY_BASE_DELAY")

	// Sweeper config
	setBoolIfEnv(&c.Sweeper.Enabled, "SURGECART_SWEEPER_ENABLED")
	setDurationIfEnv(&c.Sweeper.Interval, "SURGECART_SWEEPER_INTERVAL")

	// Rate limit config
	setBoolIfEnv(&c.RateLimit.Enabled, "SURGECART_RATE_LIMIT_ENABLED")
	setIntIfEnv(&c.RateLimit.Limit, "SURGECART_RATE_LIMIT")
	setDurationIfEnv(&c.RateLimit.Window, "SURGECART_RATE_LIMIT_WINDOW")

	// Log config
	setIfEnv(&c.Log.Level, "SURGECART_LOG_LEVEL")
	setIfEnv(&c.Log.Format, "SURGECART_LOG_FORMAT")
	setIfEnv(&c.Log.Environment, "SURGECART_ENVIRONMENT")
}

// setIfEnv assigns the env value when the variable is present and non-empty.
func setIfEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// setBoolIfEnv parses a boolean env var ("true", "1", "false", "0").
func setBoolIfEnv(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			*dst = parsed
		}
	}
}

// setIntIfEnv parses an integer env var.
func setIntIfEnv(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			*dst = parsed
		}
	}
}

// setDurationIfEnv parses a Go-style duration env var.
func setDurationIfEnv(dst *Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			dst.Duration = parsed
		}
	}
}

// splitAndTrim splits a comma-separated value and trims whitespace per entry.
func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
