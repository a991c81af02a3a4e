package resolver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/maxkrukov/Price-Fetcher-API/pkg/server/sources"
)

// resolveDerived computes an indirect price for token/quote by chaining two
// direct lookups through an intermediate asset I:
//
//	price(token, quote) = price(token, I) * price(I, quote)
//
// Each leg resolves through the normal cache/adapter path, so the two legs
// may come from different sources. When the caller supplied an explicit
// intermediate only that asset is tried; otherwise the configured default
// intermediates are tried in order and the first fully resolvable chain
// wins.
func (r *Resolver) resolveDerived(ctx context.Context, token, quote, intermediate string) (sources.Quote, error) {
	intermediates := r.intermediates
	if intermediate = strings.ToUpper(strings.TrimSpace(intermediate)); intermediate != "" {
		intermediates = []string{intermediate}
	}

	for _, mid := range intermediates {
		if mid == token || mid == quote {
			continue
		}

		legA, ok := r.resolveLeg(ctx, token, mid)
		if !ok {
			continue
		}
		legB, ok := r.resolveLeg(ctx, mid, quote)
		if !ok {
			continue
		}

		derived := sources.Quote{
			Symbol:    token,
			Quote:     quote,
			Price:     legA.Price.Mul(legB.Price),
			Source:    sources.DerivedName,
			Inverted:  legA.Inverted || legB.Inverted,
			FetchedAt: time.Now(),
			ExpiresAt: earlierOf(legA.ExpiresAt, legB.ExpiresAt),
		}

		r.logger.Debug("Derived price through intermediate",
			"pair", token+"/"+quote,
			"intermediate", mid,
			"leg_a", legA.Price.String(),
			"leg_b", legB.Price.String(),
			"price", derived.Price.String())

		return derived, nil
	}

	return sources.Quote{}, fmt.Errorf("%w: no derivable chain for %s/%s", sources.ErrNoData, token, quote)
}

// resolveLeg resolves one leg of a derived chain: exchange fan-out first,
// then the aggregator fallback. Derived pricing never recurses.
func (r *Resolver) resolveLeg(ctx context.Context, token, quote string) (sources.Quote, bool) {
	best, _, ok := r.fanOut(ctx, token, quote)
	if ok {
		return best, true
	}

	if r.aggregator != nil {
		q, err := r.fetchThroughCache(ctx, r.aggregator, token, quote)
		if err == nil {
			return q, true
		}
	}

	return sources.Quote{}, false
}

// earlierOf returns the earlier of two timestamps. A derived quote is only
// valid while both its legs are.
func earlierOf(a, b time.Time) time.Time {
	if b.Before(a) {
		return b
	}
	return a
}
