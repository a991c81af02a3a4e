package cex

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/maxkrukov/Price-Fetcher-API/pkg/logging"
	"github.com/maxkrukov/Price-Fetcher-API/pkg/server/sources"
)

const (
	krakenBaseURL = "https://api.kraken.com"
	krakenTimeout = 10 * time.Second
)

// KrakenSource fetches single-pair spot prices from the Kraken REST API.
type KrakenSource struct {
	apiURL string
	client *http.Client
	logger *logging.Logger
}

// KrakenTickerData represents ticker data for a single pair.
type KrakenTickerData struct {
	A []string `json:"a"` // Ask [price, whole lot volume, lot volume]
	B []string `json:"b"` // Bid [price, whole lot volume, lot volume]
	C []string `json:"c"` // Last trade [price, lot volume]
	O string   `json:"o"` // Today's opening price
}

// KrakenResponse represents the API response.
type KrakenResponse struct {
	Error  []string                    `json:"error"`
	Result map[string]KrakenTickerData `json:"result"`
}

// NewKrakenSource creates a new Kraken source.
func NewKrakenSource(config map[string]interface{}) (sources.Source, error) {
	apiURL := krakenBaseURL
	if url, ok := config["api_url"].(string); ok && url != "" {
		apiURL = url
	}

	return &KrakenSource{
		apiURL: apiURL,
		client: sources.HTTPClientFromConfig(config, krakenTimeout),
		logger: sources.GetLoggerFromConfig(config),
	}, nil
}

// Name returns the source name.
func (s *KrakenSource) Name() string {
	return "kraken"
}

// Type returns the source type.
func (s *KrakenSource) Type() sources.SourceType {
	return sources.SourceTypeCEX
}

// Fetch retrieves the current price for the literal pair from Kraken.
// Kraken answers under its own pair naming (e.g. XXBTZUSD for BTCUSD), so
// the price is taken from the first result entry rather than by exact key.
func (s *KrakenSource) Fetch(ctx context.Context, symbol, quote string) (sources.Quote, error) {
	pair := strings.ToUpper(symbol) + strings.ToUpper(quote)
	url := fmt.Sprintf("%s/0/public/Ticker?pair=%s", s.apiURL, pair)

	var response KrakenResponse
	if err := sources.GetJSON(ctx, s.client, url, &response); err != nil {
		return sources.Quote{}, fmt.Errorf("kraken %s: %w", pair, err)
	}

	// Kraken reports unknown pairs through the error array with HTTP 200
	if len(response.Error) > 0 {
		return sources.Quote{}, fmt.Errorf("%w: kraken has no listing for %s (%s)",
			sources.ErrNoData, pair, strings.Join(response.Error, "; "))
	}

	for _, ticker := range response.Result {
		if len(ticker.C) == 0 {
			continue
		}
		price, err := sources.ParsePositivePrice(ticker.C[0])
		if err != nil {
			return sources.Quote{}, fmt.Errorf("kraken %s: %w", pair, err)
		}
		s.logger.Debug("Fetched price", "source", "kraken", "pair", pair, "price", price.String())
		return sources.NewQuote(symbol, quote, price, s.Name(), false), nil
	}

	return sources.Quote{}, fmt.Errorf("%w: kraken returned no ticker for %s", sources.ErrNoData, pair)
}

func init() {
	sources.Register("kraken", NewKrakenSource)
}
