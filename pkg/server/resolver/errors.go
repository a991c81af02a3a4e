// Package resolver orchestrates price resolution across source adapters.
package resolver

import "errors"

var (
	// ErrMissingParameter indicates that a required request parameter is absent.
	ErrMissingParameter = errors.New("missing required parameter")
	// ErrInvalidSource indicates that the requested source is not a known
	// adapter name, or is the reserved derived marker.
	ErrInvalidSource = errors.New("invalid source")
)
