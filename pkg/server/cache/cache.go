// Package cache provides the shared TTL price cache with request coalescing.
package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/maxkrukov/Price-Fetcher-API/pkg/logging"
	"github.com/maxkrukov/Price-Fetcher-API/pkg/metrics"
	"github.com/maxkrukov/Price-Fetcher-API/pkg/server/sources"
)

// FetchFunc fetches a fresh quote on a cache miss.
type FetchFunc func(ctx context.Context) (sources.Quote, error)

// Cache maps a (source, symbol, quote) fingerprint to a quote with an
// expiry. Entries for different sources of the same pair are independent.
// A parallel negative cache remembers recent fetch failures per fingerprint
// so failing upstreams are not hammered on every request.
type Cache struct {
	failureTTL time.Duration
	logger     *logging.Logger

	mu       sync.RWMutex
	entries  map[string]sources.Quote
	failures map[string]time.Time

	sf singleflight.Group
}

// New creates an empty cache. failureTTL bounds how long a failure mark
// suppresses retries; zero disables failure marking.
func New(failureTTL time.Duration, logger *logging.Logger) *Cache {
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	return &Cache{
		failureTTL: failureTTL,
		logger:     logger,
		entries:    make(map[string]sources.Quote),
		failures:   make(map[string]time.Time),
	}
}

// Key builds the case-normalized fingerprint for one cache slot.
func Key(source, symbol, quote string) string {
	return strings.ToLower(source) + ":" + strings.ToUpper(symbol) + "-" + strings.ToUpper(quote)
}

// GetOrFetch returns the cached quote for the fingerprint while it is still
// valid, preserving its original FetchedAt so expiry keeps counting down
// across requests. On a miss it invokes fetch, stores the result stamped
// with FetchedAt=now and ExpiresAt=now+ttl, and returns it. Fetch failures
// propagate without being cached as entries. Concurrent callers for the
// same fingerprint share a single in-flight fetch.
func (c *Cache) GetOrFetch(ctx context.Context, source, symbol, quote string, ttl time.Duration, fetch FetchFunc) (sources.Quote, error) {
	key := Key(source, symbol, quote)

	if entry, ok := c.lookup(key); ok {
		metrics.RecordCacheHit(source)
		return entry, nil
	}
	metrics.RecordCacheMiss(source)

	v, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// A coalesced waiter may arrive just after the winner stored the
		// entry and left the flight; serve the stored entry in that case.
		if entry, ok := c.lookup(key); ok {
			return entry, nil
		}

		entry, err := fetch(ctx)
		if err != nil {
			return nil, err
		}

		now := time.Now()
		entry.FetchedAt = now
		entry.ExpiresAt = now.Add(ttl)

		c.mu.Lock()
		c.entries[key] = entry
		delete(c.failures, key)
		c.mu.Unlock()

		c.logger.Debug("Cached price", "key", key, "price", entry.Price.String(), "ttl", ttl.String())
		return entry, nil
	})
	if err != nil {
		return sources.Quote{}, err
	}

	return v.(sources.Quote), nil
}

// lookup returns a valid entry for the key. Expired entries are evicted.
func (c *Cache) lookup(key string) (sources.Quote, bool) {
	now := time.Now()

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return sources.Quote{}, false
	}
	if !now.Before(entry.ExpiresAt) {
		c.mu.Lock()
		// Recheck under the write lock, a fresh entry may have landed.
		if current, ok := c.entries[key]; ok && !now.Before(current.ExpiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return sources.Quote{}, false
	}

	return entry, true
}

// MarkFailure records a fetch failure for the fingerprint.
func (c *Cache) MarkFailure(source, symbol, quote string) {
	if c.failureTTL <= 0 {
		return
	}
	key := Key(source, symbol, quote)

	c.mu.Lock()
	c.failures[key] = time.Now()
	c.mu.Unlock()

	c.logger.Debug("Marked failure", "key", key, "retry_after", c.failureTTL.String())
}

// IsFailed reports whether the fingerprint failed within the failure TTL.
// Lapsed marks are evicted.
func (c *Cache) IsFailed(source, symbol, quote string) bool {
	if c.failureTTL <= 0 {
		return false
	}
	key := Key(source, symbol, quote)

	c.mu.RLock()
	failedAt, ok := c.failures[key]
	c.mu.RUnlock()

	if !ok {
		return false
	}
	if time.Since(failedAt) >= c.failureTTL {
		c.mu.Lock()
		if current, ok := c.failures[key]; ok && time.Since(current) >= c.failureTTL {
			delete(c.failures, key)
		}
		c.mu.Unlock()
		return false
	}

	return true
}

// Len returns the number of stored entries, valid or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
