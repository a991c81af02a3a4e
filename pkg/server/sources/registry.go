package sources

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	registry = make(map[string]SourceFactory)
	mu       sync.RWMutex
)

// Register adds a source factory to the registry under a case-insensitive name.
func Register(name string, factory SourceFactory) {
	mu.Lock()
	defer mu.Unlock()
	registry[strings.ToLower(name)] = factory
}

// Create creates a new source instance by name.
func Create(name string, config map[string]interface{}) (Source, error) {
	mu.RLock()
	factory, ok := registry[strings.ToLower(name)]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s (registered: %s)",
			ErrUnknownSource, name, strings.Join(List(), ", "))
	}

	return factory(config)
}

// IsRegistered reports whether a source factory exists under the name.
func IsRegistered(name string) bool {
	mu.RLock()
	defer mu.RUnlock()
	_, ok := registry[strings.ToLower(name)]
	return ok
}

// List returns all registered source names in sorted order.
func List() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
