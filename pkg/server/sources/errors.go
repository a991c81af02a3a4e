// Package sources provides price source interfaces and implementations.
package sources

import "errors"

var (
	// ErrNoData indicates that the upstream has no listing for the requested pair.
	ErrNoData = errors.New("no data for pair")
	// ErrUpstream indicates a network, status or parse failure from an upstream API.
	ErrUpstream = errors.New("upstream failure")
	// ErrInvalidPrice indicates a zero or negative price in an upstream response.
	ErrInvalidPrice = errors.New("invalid price")
	// ErrUnknownSource indicates that no source is registered under the requested name.
	ErrUnknownSource = errors.New("unknown source")
	// ErrInvalidConfig indicates that the source configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")
)
