// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers a YAML file and the environment on top of New().
// - External errors are wrapped with this package's sentinel errors.
package config

import (
	"strings"
	"time"
)

// Session store backends.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// Store selects the session and dataset backend: memory, redis or postgres.
	// Datasets live in memory unless the backend is postgres.
	Store string `koanf:"store"`

	// Redis connection for the redis backend.
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`

	// SessionTTLHours expires idle redis sessions; 0 keeps them forever.
	SessionTTLHours int `koanf:"session_ttl_hours"`

	// DatabaseURL is the lib/pq connection string for the postgres backend.
	DatabaseURL string `koanf:"database_url"`

	// DedupeSize bounds the choice idempotency cache.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxItems caps how many items one session may rank.
	MaxItems int `koanf:"max_items"`

	// MetricsRefreshSeconds is how often polled gauges are updated.
	MetricsRefreshSeconds int `koanf:"metrics_refresh_seconds"`

	// AllowedOrigins is a comma separated CORS allow list.
	AllowedOrigins string `koanf:"allowed_origins"`

	// Catalog endpoints and app credentials.
	CatalogAPIURL       string `koanf:"catalog_api_url"`
	CatalogTokenURL     string `koanf:"catalog_token_url"`
	CatalogClientID     string `koanf:"catalog_client_id"`
	CatalogClientSecret string `koanf:"catalog_client_secret"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:        "info",
		LogFormat:       "text",
		Addr:            ":9080",
		Store:           StoreMemory,
		RedisAddr:       "localhost:6379",
		SessionTTLHours: 24 * 30,
		DedupeSize:      100_000,
		MaxItems:        2_000,
		CatalogAPIURL:   "https://api.spotify.com/v1",
		CatalogTokenURL: "https://accounts.spotify.com/api/token",

		MetricsRefreshSeconds: 10,
	}
}

// Origins splits AllowedOrigins into trimmed, non-empty entries.
func (c *Config) Origins() []string {
	out := []string{}
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// SessionTTL converts SessionTTLHours to a duration.
func (c *Config) SessionTTL() time.Duration {
	if c.SessionTTLHours <= 0 {
		return 0
	}
	return time.Duration(c.SessionTTLHours) * time.Hour
}

// MetricsRefresh converts MetricsRefreshSeconds to a duration.
func (c *Config) MetricsRefresh() time.Duration {
	return time.Duration(c.MetricsRefreshSeconds) * time.Second
}

// CatalogEnabled reports whether app credentials were supplied.
func (c *Config) CatalogEnabled() bool {
	return c.CatalogClientID != "" && c.CatalogClientSecret != ""
}
