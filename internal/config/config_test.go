package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearGatewayEnv(t *testing.T) {
	t.Helper()
	t.Setenv(EnvGatewayURL, "")
	t.Setenv(EnvGatewayToken, "")
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "ws://localhost:18789", cfg.GatewayURL)
	assert.Empty(t, cfg.Token)
	assert.Equal(t, 30*time.Second, cfg.Timeout.Duration)
	assert.Equal(t, 1*time.Second, cfg.Reconnect.BaseDelay.Duration)
	assert.Equal(t, 30*time.Second, cfg.Reconnect.CapDelay.Duration)
	assert.Equal(t, 5, cfg.Reconnect.MaxAttempts)
	require.NoError(t, cfg.Validate())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearGatewayEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_File(t *testing.T) {
	clearGatewayEnv(t)
	t.Setenv("CLAWLINK_TEST_SECRET", "s3cret")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `gateway_url: wss://gateway.example.com/ws
token: ${CLAWLINK_TEST_SECRET}
timeout: 10s
ping_interval: 0
reconnect:
  base_delay: 500
  max_attempts: 3
log_level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "wss://gateway.example.com/ws", cfg.GatewayURL)
	assert.Equal(t, "s3cret", cfg.Token)
	assert.Equal(t, 10*time.Second, cfg.Timeout.Duration)
	assert.Equal(t, time.Duration(0), cfg.PingInterval.Duration)
	assert.Equal(t, 500*time.Millisecond, cfg.Reconnect.BaseDelay.Duration)
	// untouched keys keep their defaults
	assert.Equal(t, 30*time.Second, cfg.Reconnect.CapDelay.Duration)
	assert.Equal(t, 3, cfg.Reconnect.MaxAttempts)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv(EnvGatewayURL, "ws://from-env:1234")
	t.Setenv(EnvGatewayToken, "env-token")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("gateway_url: ws://from-file:1\ntoken: file-token\n"), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ws://from-env:1234", cfg.GatewayURL)
	assert.Equal(t, "env-token", cfg.Token)
}

func TestLoad_InvalidYAML(t *testing.T) {
	clearGatewayEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("timeout: [1, 2]\n"), 0600))

	_, err := Load(path)
	assert.ErrorContains(t, err, "failed to parse config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"http scheme", func(c *Config) { c.GatewayURL = "http://localhost:18789" }, "must use ws:// or wss://"},
		{"no host", func(c *Config) { c.GatewayURL = "ws://" }, "has no host"},
		{"zero timeout", func(c *Config) { c.Timeout.Duration = 0 }, "timeout must be greater than 0"},
		{"negative ping", func(c *Config) { c.PingInterval.Duration = -time.Second }, "ping_interval"},
		{"zero base", func(c *Config) { c.Reconnect.BaseDelay.Duration = 0 }, "base_delay"},
		{"cap below base", func(c *Config) { c.Reconnect.CapDelay.Duration = 10 * time.Millisecond }, "cap_delay"},
		{"negative attempts", func(c *Config) { c.Reconnect.MaxAttempts = -1 }, "max_attempts"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.wantErr)
		})
	}
}

func TestValidate_EmptyURLFallsBack(t *testing.T) {
	cfg := Default()
	cfg.GatewayURL = ""
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultGatewayURL, cfg.GatewayURL)
}

func TestSaveAndLoad(t *testing.T) {
	clearGatewayEnv(t)

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	original := Default()
	original.GatewayURL = "wss://saved.example:443"
	original.Token = "tok"
	original.Reconnect.MaxAttempts = 8

	require.NoError(t, original.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, original, loaded)
}
