package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "8100", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)

	assert.Empty(t, cfg.HostLink.Address)
	assert.Equal(t, 10*time.Second, cfg.HostLink.DialTimeout)

	assert.Equal(t, "system.shell/Home", cfg.Surfaces.Home)
	assert.Equal(t, 128, cfg.Recents.Limit)

	assert.Empty(t, cfg.Webhook.URL)
	assert.Equal(t, 3, cfg.Webhook.MaxRetries)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	assert.Equal(t, 100, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 200, cfg.RateLimit.Burst)
	assert.True(t, cfg.RateLimit.Enabled)
}

func TestLoadOrDefault(t *testing.T) {
	cfg := LoadOrDefault()

	assert.NotNil(t, cfg)
	assert.Equal(t, "8100", cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"SHELLHOST_PORT":            "9100",
		"SHELLHOST_HOST":            "127.0.0.1",
		"SHELLHOST_HOST_ADDR":       "exec-host:50061",
		"SHELLHOST_HOME_COMPONENT":  "system.shell/Launcher",
		"SHELLHOST_RECENTS_LIMIT":   "32",
		"SHELLHOST_WEBHOOK_URL":     "http://hooks.local/shell",
		"SHELLHOST_WEBHOOK_RETRIES": "5",
		"SHELLHOST_LOG_LEVEL":       "debug",
		"SHELLHOST_LOG_DEV":         "true",
		"SHELLHOST_RATE_LIMIT_RPS":  "50",
	}
	for k, v := range envVars {
		t.Setenv(k, v)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9100", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "exec-host:50061", cfg.HostLink.Address)
	assert.Equal(t, "system.shell/Launcher", cfg.Surfaces.Home)
	assert.Equal(t, 32, cfg.Recents.Limit)
	assert.Equal(t, "http://hooks.local/shell", cfg.Webhook.URL)
	assert.Equal(t, 5, cfg.Webhook.MaxRetries)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, 50, cfg.RateLimit.RequestsPerSecond)
}

func TestLoadInvalidValue(t *testing.T) {
	t.Setenv("SHELLHOST_RECENTS_LIMIT", "not-a-number")

	_, err := Load()
	require.Error(t, err)
}
