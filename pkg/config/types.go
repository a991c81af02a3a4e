package config

import "time"

// Config is the root configuration structure.
type Config struct {
	Server  ServerConfig   `yaml:"server"`
	Sources []SourceConfig `yaml:"sources"`
	Metrics MetricsConfig  `yaml:"metrics"`
	Logging LoggingConfig  `yaml:"logging"`
}

// ServerConfig configures the price server component.
type ServerConfig struct {
	HTTP          HTTPConfig `yaml:"http"`
	WebSocket     WSConfig   `yaml:"websocket"`
	CacheTTL      Duration   `yaml:"cache_ttl"`
	FailureTTL    Duration   `yaml:"failure_ttl"`
	FetchTimeout  Duration   `yaml:"fetch_timeout"`
	DefaultQuote  string     `yaml:"default_quote"`
	Intermediates []string   `yaml:"intermediates"`
}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// WSConfig configures the WebSocket streaming endpoint.
type WSConfig struct {
	Enabled      bool     `yaml:"enabled"`
	PushInterval Duration `yaml:"push_interval"`
}

// SourceConfig configures a price source adapter.
type SourceConfig struct {
	Type    string                 `yaml:"type"`
	Name    string                 `yaml:"name"`
	Enabled bool                   `yaml:"enabled"`
	Config  map[string]interface{} `yaml:"config"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Duration is a wrapper around time.Duration for YAML parsing.
type Duration time.Duration

// UnmarshalYAML parses a duration string like "300s" or "5m".
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	td, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(td)
	return nil
}

// ToDuration converts Duration to time.Duration.
func (d Duration) ToDuration() time.Duration {
	return time.Duration(d)
}
