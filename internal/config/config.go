// Package config holds service defaults and the optional TOML config file.
// CLI flags and environment variables override file values.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	// DefaultPort is the default HTTP server port.
	DefaultPort = "8080"

	// DefaultRateLimit is the default requests per minute per IP address.
	DefaultRateLimit = 100

	// DefaultDraftTTL is how long an abandoned draft survives in the store.
	DefaultDraftTTL = 14 * 24 * time.Hour

	// DefaultBackendURL points the submit client at this service's own
	// submissions endpoint.
	DefaultBackendURL = "http://localhost:8080"
)

// Config is the full service configuration.
type Config struct {
	Port           string `toml:"port"`
	DatabaseURL    string `toml:"database_url"`
	RedisURL       string `toml:"redis_url"`
	BackendURL     string `toml:"backend_url"`
	RecognitionURL string `toml:"recognition_url"`
	RateLimit      int    `toml:"rate_limit"`
	LogLevel       string `toml:"log_level"`

	DraftTTLHours int `toml:"draft_ttl_hours"`
}

// Default returns a config populated with defaults.
func Default() Config {
	return Config{
		Port:       DefaultPort,
		BackendURL: DefaultBackendURL,
		RateLimit:  DefaultRateLimit,
		LogLevel:   "info",
	}
}

// Load reads a TOML config file over the defaults. An empty path returns
// the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

// DraftTTL returns the configured draft lifetime.
func (c Config) DraftTTL() time.Duration {
	if c.DraftTTLHours <= 0 {
		return DefaultDraftTTL
	}
	return time.Duration(c.DraftTTLHours) * time.Hour
}
