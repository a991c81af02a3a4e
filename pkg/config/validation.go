package config

import (
	"fmt"
	"strings"
)

// Validate checks configuration for errors.
func Validate(cfg *Config) error {
	if err := validateServerConfig(&cfg.Server); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if len(cfg.Sources) == 0 {
		return ErrNoSourcesConfigured
	}

	seen := make(map[string]bool, len(cfg.Sources))
	for i, source := range cfg.Sources {
		if err := validateSourceConfig(&source); err != nil {
			return fmt.Errorf("source %d (%s.%s): %w", i, source.Type, source.Name, err)
		}
		name := strings.ToLower(source.Name)
		if seen[name] {
			return fmt.Errorf("%w: %s", ErrDuplicateSource, source.Name)
		}
		seen[name] = true
	}

	if err := validateLoggingConfig(&cfg.Logging); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

func validateServerConfig(cfg *ServerConfig) error {
	if cfg.CacheTTL.ToDuration() <= 0 {
		return ErrInvalidTTL
	}
	if cfg.FetchTimeout.ToDuration() <= 0 {
		return ErrInvalidTimeout
	}
	return nil
}

func validateSourceConfig(cfg *SourceConfig) error {
	if cfg.Name == "" {
		return ErrSourceNameRequired
	}
	if cfg.Type == "" {
		return ErrSourceTypeRequired
	}
	return nil
}

func validateLoggingConfig(cfg *LoggingConfig) error {
	format := strings.ToLower(cfg.Format)
	if format != "json" && format != "text" {
		return fmt.Errorf("%w: %s", ErrInvalidLogFormat, cfg.Format)
	}
	return nil
}
