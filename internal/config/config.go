package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultGatewayURL is used when no endpoint is configured
	DefaultGatewayURL = "ws://localhost:18789"

	// EnvGatewayURL overrides the configured gateway endpoint
	EnvGatewayURL = "CLAWDBOT_GATEWAY_URL"

	// EnvGatewayToken overrides the configured gateway token
	EnvGatewayToken = "CLAWDBOT_GATEWAY_TOKEN"
)

// Config represents the client configuration
type Config struct {
	GatewayURL   string          `yaml:"gateway_url"`
	Token        string          `yaml:"token,omitempty"` // Supports ${ENV_VAR} expansion
	Timeout      Duration        `yaml:"timeout"`         // Handshake timeout per dial
	PingInterval Duration        `yaml:"ping_interval"`   // 0 disables heartbeats
	Reconnect    ReconnectConfig `yaml:"reconnect"`
	LogLevel     string          `yaml:"log_level,omitempty"`    // debug, info, warn, error
	MetricsAddr  string          `yaml:"metrics_addr,omitempty"` // e.g. ":9464"; empty disables
	DataDir      string          `yaml:"data_dir,omitempty"`
}

// ReconnectConfig tunes the exponential reconnect backoff.
// Delay for attempt n is min(BaseDelay * 2^n, CapDelay).
type ReconnectConfig struct {
	BaseDelay   Duration `yaml:"base_delay"`
	CapDelay    Duration `yaml:"cap_delay"`
	MaxAttempts int      `yaml:"max_attempts"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		GatewayURL:   DefaultGatewayURL,
		Timeout:      Duration{30 * time.Second},
		PingInterval: Duration{30 * time.Second},
		Reconnect: ReconnectConfig{
			BaseDelay:   Duration{1 * time.Second},
			CapDelay:    Duration{30 * time.Second},
			MaxAttempts: 5,
		},
		LogLevel: "info",
	}
}

// Load reads configuration from path on top of the defaults, then applies
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// defaults + environment only
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	cfg.expandTilde()
	cfg.expandEnvVars()
	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration as YAML with owner-only permissions,
// since it may hold a token
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv overrides the endpoint and token from CLAWDBOT_GATEWAY_URL and
// CLAWDBOT_GATEWAY_TOKEN when they are set and non-empty
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvGatewayURL); v != "" {
		c.GatewayURL = v
	}
	if v := os.Getenv(EnvGatewayToken); v != "" {
		c.Token = v
	}
}

// expandEnvVars expands ${VAR} references in string values
func (c *Config) expandEnvVars() {
	c.GatewayURL = os.ExpandEnv(c.GatewayURL)
	c.Token = os.ExpandEnv(c.Token)
	c.DataDir = os.ExpandEnv(c.DataDir)
}

// expandTilde replaces a leading "~/" in path fields with the home directory
func (c *Config) expandTilde() {
	if c.DataDir == "~" || strings.HasPrefix(c.DataDir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return
		}
		c.DataDir = filepath.Join(home, strings.TrimPrefix(c.DataDir[1:], "/"))
	}
}

// Validate validates the entire configuration
func (c *Config) Validate() error {
	if c.GatewayURL == "" {
		c.GatewayURL = DefaultGatewayURL
	}
	u, err := url.Parse(c.GatewayURL)
	if err != nil {
		return fmt.Errorf("invalid gateway_url %q: %w", c.GatewayURL, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("gateway_url must use ws:// or wss://, got %q", c.GatewayURL)
	}
	if u.Host == "" {
		return fmt.Errorf("gateway_url %q has no host", c.GatewayURL)
	}

	if c.Timeout.Duration <= 0 {
		return fmt.Errorf("timeout must be greater than 0")
	}
	if c.PingInterval.Duration < 0 {
		return fmt.Errorf("ping_interval must not be negative")
	}
	if c.Reconnect.BaseDelay.Duration <= 0 {
		return fmt.Errorf("reconnect.base_delay must be greater than 0")
	}
	if c.Reconnect.CapDelay.Duration < c.Reconnect.BaseDelay.Duration {
		return fmt.Errorf("reconnect.cap_delay (%s) must not be below base_delay (%s)",
			c.Reconnect.CapDelay, c.Reconnect.BaseDelay)
	}
	if c.Reconnect.MaxAttempts < 0 {
		return fmt.Errorf("reconnect.max_attempts must not be negative")
	}

	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}

	return nil
}

// Duration is a time.Duration that reads "1.5s" style strings or plain
// integers (milliseconds) from YAML
type Duration struct {
	time.Duration
}

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", value.Line)
	}

	var ms int64
	if err := value.Decode(&ms); err == nil {
		d.Duration = time.Duration(ms) * time.Millisecond
		return nil
	}

	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q: %w", value.Line, value.Value, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}
