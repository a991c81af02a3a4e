// Package version provides version information for the price-fetcher application.
package version

// Version is the current version of the price-fetcher application.
const Version = "1.1.0"

// AgentString returns the full agent string with versioning.
// Format: price-fetcher-api@v{version}
func AgentString() string {
	return "price-fetcher-api@v" + Version
}
