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
	mexcBaseURL = "https://api.mexc.com"
	mexcTimeout = 10 * time.Second
)

// MEXCSource fetches single-pair spot prices from the MEXC REST API.
// MEXC mirrors the Binance ticker endpoint shape.
type MEXCSource struct {
	apiURL string
	client *http.Client
	logger *logging.Logger
}

// MEXCPriceTicker represents the /api/v3/ticker/price response.
type MEXCPriceTicker struct {
	Symbol string `json:"symbol"` // e.g., "BTCUSDT"
	Price  string `json:"price"`  // Current price (string decimal)
}

// NewMEXCSource creates a new MEXC source.
func NewMEXCSource(config map[string]interface{}) (sources.Source, error) {
	apiURL := mexcBaseURL
	if url, ok := config["api_url"].(string); ok && url != "" {
		apiURL = url
	}

	return &MEXCSource{
		apiURL: apiURL,
		client: sources.HTTPClientFromConfig(config, mexcTimeout),
		logger: sources.GetLoggerFromConfig(config),
	}, nil
}

// Name returns the source name.
func (s *MEXCSource) Name() string {
	return "mexc"
}

// Type returns the source type.
func (s *MEXCSource) Type() sources.SourceType {
	return sources.SourceTypeCEX
}

// Fetch retrieves the current price for the literal pair from MEXC.
func (s *MEXCSource) Fetch(ctx context.Context, symbol, quote string) (sources.Quote, error) {
	pair := strings.ToUpper(symbol) + strings.ToUpper(quote)
	url := fmt.Sprintf("%s/api/v3/ticker/price?symbol=%s", s.apiURL, pair)

	var ticker MEXCPriceTicker
	if err := sources.GetJSON(ctx, s.client, url, &ticker); err != nil {
		return sources.Quote{}, fmt.Errorf("mexc %s: %w", pair, err)
	}

	if ticker.Price == "" {
		return sources.Quote{}, fmt.Errorf("%w: mexc has no listing for %s", sources.ErrNoData, pair)
	}

	price, err := sources.ParsePositivePrice(ticker.Price)
	if err != nil {
		return sources.Quote{}, fmt.Errorf("mexc %s: %w", pair, err)
	}

	s.logger.Debug("Fetched price", "source", "mexc", "pair", pair, "price", price.String())
	return sources.NewQuote(symbol, quote, price, s.Name(), false), nil
}

func init() {
	sources.Register("mexc", NewMEXCSource)
}
