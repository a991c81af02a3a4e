// Package config provides configuration loading and validation for the price fetcher.
package config

import "errors"

var (
	// ErrNoSourcesConfigured indicates that no price sources are configured.
	ErrNoSourcesConfigured = errors.New("at least one price source must be configured")
	// ErrSourceNameRequired indicates that a source is missing its name.
	ErrSourceNameRequired = errors.New("source name must be specified")
	// ErrSourceTypeRequired indicates that a source is missing its type.
	ErrSourceTypeRequired = errors.New("source type must be specified")
	// ErrDuplicateSource indicates that two sources share a name.
	ErrDuplicateSource = errors.New("duplicate source name")
	// ErrInvalidLogFormat indicates an unsupported logging format.
	ErrInvalidLogFormat = errors.New("logging format must be 'json' or 'text'")
	// ErrInvalidTTL indicates a non-positive cache TTL.
	ErrInvalidTTL = errors.New("cache_ttl must be positive")
	// ErrInvalidTimeout indicates a non-positive fetch timeout.
	ErrInvalidTimeout = errors.New("fetch_timeout must be positive")
)
