package sources

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// SourceType represents the type of price source.
type SourceType string

const (
	// SourceTypeCEX is a centralized exchange queried for the literal pair only.
	SourceTypeCEX SourceType = "cex"
	// SourceTypeAggregator is a price aggregator that may invert a reverse pair.
	SourceTypeAggregator SourceType = "aggregator"
)

// DerivedName is the reserved source label for prices computed by chaining
// two lookups through an intermediate asset. It is never a real adapter name
// and is rejected when supplied as a source request parameter.
const DerivedName = "derived"

// Quote is a single resolved price for a trading pair.
type Quote struct {
	Symbol    string          `json:"symbol"`
	Quote     string          `json:"quote"`
	Price     decimal.Decimal `json:"price"`
	Source    string          `json:"source"`
	Inverted  bool            `json:"inverted"`
	FetchedAt time.Time       `json:"fetched_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// ExpiresIn returns the remaining validity of the quote at the given time,
// never negative.
func (q Quote) ExpiresIn(now time.Time) time.Duration {
	d := q.ExpiresAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Source defines the interface that all price source adapters implement.
// Adapters are stateless: every call fetches the literal pair from the
// upstream API. Only aggregator adapters may return Inverted quotes.
type Source interface {
	// Name returns the unique name of this source
	Name() string

	// Type returns the type of this source
	Type() SourceType

	// Fetch returns the current price for symbol denominated in quote.
	// It fails with ErrNoData when the upstream has no listing for the
	// pair and ErrUpstream on network, status or parse failures.
	Fetch(ctx context.Context, symbol, quote string) (Quote, error)
}

// SourceFactory is a function that creates a new Source instance.
type SourceFactory func(config map[string]interface{}) (Source, error)
