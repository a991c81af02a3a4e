// Package aggregator provides the price aggregator fallback source.
package aggregator

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/maxkrukov/Price-Fetcher-API/pkg/logging"
	"github.com/maxkrukov/Price-Fetcher-API/pkg/server/sources"
)

const (
	coingeckoBaseURL = "https://api.coingecko.com/api/v3"
	coingeckoTimeout = 10 * time.Second
	coingeckoListTTL = 24 * time.Hour
)

// CoinGeckoSource fetches prices from the CoinGecko REST API. It is the
// fallback aggregator: when the direct pair is unlisted it retries the
// reverse pair and returns the reciprocal with Inverted set. It is the only
// source allowed to invert.
type CoinGeckoSource struct {
	apiURL  string
	client  *http.Client
	logger  *logging.Logger
	listTTL time.Duration

	// Symbol to CoinGecko id resolution. The full coin list is large and
	// rarely changes, so it is cached with its own long TTL.
	mu          sync.Mutex
	coinList    []coinListEntry
	listFetched time.Time
	idBySymbol  map[string]string
}

type coinListEntry struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// NewCoinGeckoSource creates a new CoinGecko aggregator source.
func NewCoinGeckoSource(config map[string]interface{}) (sources.Source, error) {
	apiURL := coingeckoBaseURL
	if url, ok := config["api_url"].(string); ok && url != "" {
		apiURL = url
	}

	listTTL := coingeckoListTTL
	if t, ok := config["list_ttl"].(int); ok && t > 0 {
		listTTL = time.Duration(t) * time.Second
	}

	return &CoinGeckoSource{
		apiURL:     apiURL,
		client:     sources.HTTPClientFromConfig(config, coingeckoTimeout),
		logger:     sources.GetLoggerFromConfig(config),
		listTTL:    listTTL,
		idBySymbol: make(map[string]string),
	}, nil
}

// Name returns the source name.
func (s *CoinGeckoSource) Name() string {
	return "coingecko"
}

// Type returns the source type.
func (s *CoinGeckoSource) Type() sources.SourceType {
	return sources.SourceTypeAggregator
}

// Fetch resolves the pair directly, then through the reverse pair. A reverse
// hit at price p yields 1/p with Inverted=true.
func (s *CoinGeckoSource) Fetch(ctx context.Context, symbol, quote string) (sources.Quote, error) {
	symbol = strings.ToUpper(symbol)
	quote = strings.ToUpper(quote)

	price, err := s.fetchDirect(ctx, symbol, quote)
	if err == nil {
		return sources.NewQuote(symbol, quote, price, s.Name(), false), nil
	}
	s.logger.Debug("CoinGecko direct pair unavailable, trying reverse",
		"pair", symbol+"/"+quote, "error", err.Error())

	reverse, err := s.fetchDirect(ctx, quote, symbol)
	if err == nil {
		inverted := decimal.NewFromInt(1).Div(reverse)
		s.logger.Debug("Used inverted price", "pair", symbol+"/"+quote, "reverse_price", reverse.String())
		return sources.NewQuote(symbol, quote, inverted, s.Name(), true), nil
	}

	return sources.Quote{}, fmt.Errorf("%w: coingecko has no listing for %s/%s or %s/%s",
		sources.ErrNoData, symbol, quote, quote, symbol)
}

// fetchDirect fetches the price of one asset denominated in a vs currency.
func (s *CoinGeckoSource) fetchDirect(ctx context.Context, symbol, quote string) (decimal.Decimal, error) {
	coinID, err := s.resolveID(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}

	vsCurrency := normalizeVsCurrency(quote)
	url := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=%s", s.apiURL, coinID, vsCurrency)

	var response map[string]map[string]float64
	if err := sources.GetJSON(ctx, s.client, url, &response); err != nil {
		return decimal.Zero, fmt.Errorf("coingecko %s/%s: %w", symbol, quote, err)
	}

	prices, ok := response[coinID]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: coingecko has no price for id %s", sources.ErrNoData, coinID)
	}
	value, ok := prices[vsCurrency]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: coingecko has no %s price for id %s",
			sources.ErrNoData, vsCurrency, coinID)
	}

	price := decimal.NewFromFloat(value)
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s", sources.ErrInvalidPrice, price.String())
	}

	return price, nil
}

// resolveID maps an asset ticker to a CoinGecko coin id through the cached
// coin list. The first list entry matching the ticker wins.
func (s *CoinGeckoSource) resolveID(ctx context.Context, symbol string) (string, error) {
	lower := strings.ToLower(symbol)

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.idBySymbol[lower]; ok {
		return id, nil
	}

	if len(s.coinList) == 0 || time.Since(s.listFetched) > s.listTTL {
		s.logger.Info("Fetching CoinGecko coin list")
		var list []coinListEntry
		if err := sources.GetJSON(ctx, s.client, s.apiURL+"/coins/list", &list); err != nil {
			return "", fmt.Errorf("coingecko coin list: %w", err)
		}
		s.coinList = list
		s.listFetched = time.Now()
	}

	for _, coin := range s.coinList {
		if strings.ToLower(coin.Symbol) == lower {
			s.idBySymbol[lower] = coin.ID
			s.logger.Debug("Resolved CoinGecko id", "symbol", symbol, "id", coin.ID)
			return coin.ID, nil
		}
	}

	return "", fmt.Errorf("%w: no CoinGecko id for symbol %s", sources.ErrNoData, symbol)
}

// normalizeVsCurrency maps major stablecoin quotes onto CoinGecko's usd
// vs_currency, everything else to its lowercase ticker.
func normalizeVsCurrency(quote string) string {
	switch strings.ToUpper(quote) {
	case "USDT", "USDC":
		return "usd"
	default:
		return strings.ToLower(quote)
	}
}

func init() {
	sources.Register("coingecko", NewCoinGeckoSource)
}
