package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a YAML file. Environment variable
// references in the file are expanded before parsing.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	absPath, err := filepath.Abs(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	data, err := os.ReadFile(absPath) // #nosec G304 -- Path sanitized with filepath.Clean and filepath.Abs
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

// applyDefaults sets default values for optional fields.
func applyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.HTTP.Addr == "" {
		cfg.Server.HTTP.Addr = ":8080"
	}
	if cfg.Server.CacheTTL.ToDuration() == 0 {
		cfg.Server.CacheTTL = Duration(300 * time.Second)
	}
	if cfg.Server.FailureTTL.ToDuration() == 0 {
		cfg.Server.FailureTTL = Duration(600 * time.Second)
	}
	if cfg.Server.FetchTimeout.ToDuration() == 0 {
		cfg.Server.FetchTimeout = Duration(5 * time.Second)
	}
	if cfg.Server.DefaultQuote == "" {
		cfg.Server.DefaultQuote = "USDT"
	}
	cfg.Server.DefaultQuote = strings.ToUpper(cfg.Server.DefaultQuote)
	if len(cfg.Server.Intermediates) == 0 {
		cfg.Server.Intermediates = []string{"USDT", "BTC"}
	}
	for i, asset := range cfg.Server.Intermediates {
		cfg.Server.Intermediates[i] = strings.ToUpper(asset)
	}
	if cfg.Server.WebSocket.Enabled && cfg.Server.WebSocket.PushInterval.ToDuration() == 0 {
		cfg.Server.WebSocket.PushInterval = Duration(15 * time.Second)
	}

	// Metrics defaults
	if cfg.Metrics.Enabled && cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":9091"
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
}

// EnabledSources returns the enabled source configurations in declaration
// order. Declaration order is significant: it is the fan-out order and the
// tie-break order during price selection.
func (c *Config) EnabledSources() []SourceConfig {
	enabled := make([]SourceConfig, 0, len(c.Sources))
	for _, src := range c.Sources {
		if src.Enabled {
			enabled = append(enabled, src)
		}
	}
	return enabled
}
