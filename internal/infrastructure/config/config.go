package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	HostLink  HostLinkConfig
	Surfaces  SurfaceConfig
	Recents   RecentsConfig
	Webhook   WebhookConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8100"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// HostLinkConfig holds the out-of-process execution host link. When
// the address is empty the in-process loopback host is used.
type HostLinkConfig struct {
	Address     string        `envconfig:"HOST_ADDR" default:""`
	DialTimeout time.Duration `envconfig:"HOST_DIAL_TIMEOUT" default:"10s"`
}

// SurfaceConfig holds output surface and component profile loading.
type SurfaceConfig struct {
	ProfileDir string `envconfig:"PROFILE_DIR" default:""`
	Home       string `envconfig:"HOME_COMPONENT" default:"system.shell/Home"`
}

// RecentsConfig holds the recency store.
type RecentsConfig struct {
	Limit        int    `envconfig:"RECENTS_LIMIT" default:"128"`
	SnapshotPath string `envconfig:"RECENTS_SNAPSHOT" default:""`
}

// WebhookConfig holds the outbound event notifier. Disabled when the
// URL is empty.
type WebhookConfig struct {
	URL        string        `envconfig:"WEBHOOK_URL" default:""`
	Timeout    time.Duration `envconfig:"WEBHOOK_TIMEOUT" default:"5s"`
	MaxRetries int           `envconfig:"WEBHOOK_RETRIES" default:"3"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("shellhost", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8100",
			Host: "0.0.0.0",
		},
		HostLink: HostLinkConfig{
			DialTimeout: 10 * time.Second,
		},
		Surfaces: SurfaceConfig{
			Home: "system.shell/Home",
		},
		Recents: RecentsConfig{
			Limit: 128,
		},
		Webhook: WebhookConfig{
			Timeout:    5 * time.Second,
			MaxRetries: 3,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
