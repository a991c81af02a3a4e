package resolver

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/maxkrukov/Price-Fetcher-API/pkg/logging"
	"github.com/maxkrukov/Price-Fetcher-API/pkg/metrics"
	"github.com/maxkrukov/Price-Fetcher-API/pkg/server/cache"
	"github.com/maxkrukov/Price-Fetcher-API/pkg/server/sources"
)

// Request is a single price resolution request.
type Request struct {
	Token        string // base asset ticker
	Quote        string // quote asset ticker
	Source       string // optional: restrict to one adapter by name
	Intermediate string // optional: derived pricing through this asset only
}

// Result is the outcome of a resolution: the winning quote plus every
// per-source quote consulted for this request.
type Result struct {
	Quote   sources.Quote
	Sources []sources.Quote
}

// Resolver decides which sources to query, invokes adapters through the
// cache, falls back to the aggregator and to derived pricing, and selects
// the final answer. The cache is the only shared mutable state.
type Resolver struct {
	exchanges     []sources.Source // fan-out order = declaration order
	aggregator    sources.Source   // fallback source, may be nil
	byName        map[string]sources.Source
	cache         *cache.Cache
	ttl           time.Duration
	fetchTimeout  time.Duration
	intermediates []string
	logger        *logging.Logger
}

// New creates a resolver over the given adapters. Slice order is the
// fan-out order and the tie-break order for selection. An adapter of type
// SourceTypeAggregator becomes the fallback; the rest are fanned out.
func New(srcs []sources.Source, c *cache.Cache, ttl, fetchTimeout time.Duration, intermediates []string, logger *logging.Logger) *Resolver {
	if logger == nil {
		logger = logging.NewNoopLogger()
	}

	r := &Resolver{
		cache:         c,
		ttl:           ttl,
		fetchTimeout:  fetchTimeout,
		intermediates: intermediates,
		logger:        logger,
		byName:        make(map[string]sources.Source, len(srcs)),
	}

	for _, src := range srcs {
		r.byName[strings.ToLower(src.Name())] = src
		if src.Type() == sources.SourceTypeAggregator {
			r.aggregator = src
			continue
		}
		r.exchanges = append(r.exchanges, src)
	}

	return r
}

// Resolve runs the resolution state machine for one request: explicit
// source, else exchange fan-out, else aggregator, else derived pricing. An
// explicit intermediate narrows derived pricing to that one asset but does
// not bypass the direct or aggregator paths; derived stays the last resort.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	token, quote, src, err := r.validate(req)
	if err != nil {
		return nil, err
	}

	// Explicit source: query only that adapter.
	if src != nil {
		result, err := r.resolveExplicit(ctx, src, token, quote)
		if err != nil {
			metrics.RecordResolution("nodata", time.Since(start))
			return nil, err
		}
		metrics.RecordResolution("explicit", time.Since(start))
		return result, nil
	}

	// Direct fan-out across all exchanges.
	best, consulted, ok := r.fanOut(ctx, token, quote)
	if ok {
		metrics.RecordResolution("direct", time.Since(start))
		return &Result{Quote: best, Sources: consulted}, nil
	}

	// Aggregator fallback, inversion permitted.
	if r.aggregator != nil {
		quote2, err := r.fetchThroughCache(ctx, r.aggregator, token, quote)
		if err == nil {
			metrics.RecordResolution("aggregator", time.Since(start))
			return &Result{Quote: quote2, Sources: []sources.Quote{quote2}}, nil
		}
		r.logger.Debug("Aggregator fallback failed", "pair", token+"/"+quote, "error", err.Error())
	}

	// Derived fallback through an intermediate asset.
	derived, err := r.resolveDerived(ctx, token, quote, req.Intermediate)
	if err == nil {
		metrics.RecordResolution("derived", time.Since(start))
		return &Result{Quote: derived, Sources: []sources.Quote{derived}}, nil
	}

	metrics.RecordResolution("nodata", time.Since(start))
	return nil, fmt.Errorf("%w: %s/%s", sources.ErrNoData, token, quote)
}

// validate normalizes the request and resolves an explicit source name.
func (r *Resolver) validate(req Request) (token, quote string, src sources.Source, err error) {
	token = strings.ToUpper(strings.TrimSpace(req.Token))
	quote = strings.ToUpper(strings.TrimSpace(req.Quote))

	if token == "" {
		return "", "", nil, fmt.Errorf("%w: token", ErrMissingParameter)
	}
	if quote == "" {
		return "", "", nil, fmt.Errorf("%w: quote", ErrMissingParameter)
	}

	if req.Source == "" {
		return token, quote, nil, nil
	}

	name := strings.ToLower(strings.TrimSpace(req.Source))
	if name == sources.DerivedName {
		return "", "", nil, fmt.Errorf("%w: %s is a reserved label", ErrInvalidSource, name)
	}
	src, ok := r.byName[name]
	if !ok {
		return "", "", nil, fmt.Errorf("%w: %s (valid sources: %s)",
			ErrInvalidSource, req.Source, strings.Join(r.SourceNames(), ", "))
	}

	return token, quote, src, nil
}

// resolveExplicit queries a single requested adapter. Any failure becomes a
// no-data answer scoped to that source; upstream errors are never surfaced.
func (r *Resolver) resolveExplicit(ctx context.Context, src sources.Source, token, quote string) (*Result, error) {
	if src.Type() != sources.SourceTypeAggregator && r.cache.IsFailed(src.Name(), token, quote) {
		return nil, fmt.Errorf("%w: %s/%s on %s", sources.ErrNoData, token, quote, src.Name())
	}

	quote2, err := r.fetchThroughCache(ctx, src, token, quote)
	if err != nil {
		r.markFailure(src, token, quote, err)
		return nil, fmt.Errorf("%w: %s/%s on %s", sources.ErrNoData, token, quote, src.Name())
	}

	return &Result{Quote: quote2, Sources: []sources.Quote{quote2}}, nil
}

// fanOut queries every exchange adapter concurrently through the cache,
// each with its own timeout. Failing sources are omitted, never fatal. The
// winner is the maximum price; earlier declaration wins ties.
func (r *Resolver) fanOut(ctx context.Context, token, quote string) (sources.Quote, []sources.Quote, bool) {
	results := make([]*sources.Quote, len(r.exchanges))

	var wg sync.WaitGroup
	for i, src := range r.exchanges {
		if r.cache.IsFailed(src.Name(), token, quote) {
			r.logger.Debug("Skipping recently failed source",
				"source", src.Name(), "pair", token+"/"+quote)
			continue
		}

		wg.Add(1)
		go func(i int, src sources.Source) {
			defer wg.Done()
			q, err := r.fetchThroughCache(ctx, src, token, quote)
			if err != nil {
				r.markFailure(src, token, quote, err)
				r.logger.Debug("Source omitted from results",
					"source", src.Name(), "pair", token+"/"+quote, "error", err.Error())
				return
			}
			results[i] = &q
		}(i, src)
	}
	wg.Wait()

	consulted := make([]sources.Quote, 0, len(results))
	var best *sources.Quote
	for _, q := range results {
		if q == nil {
			continue
		}
		consulted = append(consulted, *q)
		if best == nil || q.Price.GreaterThan(best.Price) {
			best = q
		}
	}

	if best == nil {
		return sources.Quote{}, nil, false
	}
	return *best, consulted, true
}

// fetchThroughCache serves one (source, pair) lookup from the cache,
// fetching from the adapter under an independent timeout on a miss.
func (r *Resolver) fetchThroughCache(ctx context.Context, src sources.Source, token, quote string) (sources.Quote, error) {
	return r.cache.GetOrFetch(ctx, src.Name(), token, quote, r.ttl, func(ctx context.Context) (sources.Quote, error) {
		fetchCtx, cancel := context.WithTimeout(ctx, r.fetchTimeout)
		defer cancel()

		start := time.Now()
		q, err := src.Fetch(fetchCtx, token, quote)
		if err != nil {
			metrics.RecordUpstreamFetch(src.Name(), "error", time.Since(start))
			return sources.Quote{}, err
		}
		metrics.RecordUpstreamFetch(src.Name(), "ok", time.Since(start))
		return q, nil
	})
}

// markFailure records a failure for exchange adapters only. The aggregator
// is exempt so the fallback path is always retried.
func (r *Resolver) markFailure(src sources.Source, token, quote string, err error) {
	if src.Type() == sources.SourceTypeAggregator {
		return
	}
	if errors.Is(err, sources.ErrNoData) || errors.Is(err, sources.ErrUpstream) ||
		errors.Is(err, sources.ErrInvalidPrice) || errors.Is(err, context.DeadlineExceeded) {
		r.cache.MarkFailure(src.Name(), token, quote)
	}
}

// SourceNames returns the names of all configured adapters in sorted order.
func (r *Resolver) SourceNames() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
