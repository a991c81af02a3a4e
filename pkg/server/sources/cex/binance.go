// Package cex provides centralized exchange source adapters.
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
	binanceBaseURL = "https://api.binance.com"
	binanceTimeout = 10 * time.Second
)

// BinanceSource fetches single-pair spot prices from the Binance REST API.
type BinanceSource struct {
	apiURL string
	client *http.Client
	logger *logging.Logger
}

// BinancePriceTicker represents the /api/v3/ticker/price response.
type BinancePriceTicker struct {
	Symbol string `json:"symbol"` // e.g., "BTCUSDT"
	Price  string `json:"price"`  // Current price (string decimal)
}

// NewBinanceSource creates a new Binance source.
func NewBinanceSource(config map[string]interface{}) (sources.Source, error) {
	apiURL := binanceBaseURL
	if url, ok := config["api_url"].(string); ok && url != "" {
		apiURL = url
	}

	return &BinanceSource{
		apiURL: apiURL,
		client: sources.HTTPClientFromConfig(config, binanceTimeout),
		logger: sources.GetLoggerFromConfig(config),
	}, nil
}

// Name returns the source name.
func (s *BinanceSource) Name() string {
	return "binance"
}

// Type returns the source type.
func (s *BinanceSource) Type() sources.SourceType {
	return sources.SourceTypeCEX
}

// Fetch retrieves the current price for the literal pair from Binance.
func (s *BinanceSource) Fetch(ctx context.Context, symbol, quote string) (sources.Quote, error) {
	pair := strings.ToUpper(symbol) + strings.ToUpper(quote)
	url := fmt.Sprintf("%s/api/v3/ticker/price?symbol=%s", s.apiURL, pair)

	var ticker BinancePriceTicker
	if err := sources.GetJSON(ctx, s.client, url, &ticker); err != nil {
		return sources.Quote{}, fmt.Errorf("binance %s: %w", pair, err)
	}

	if ticker.Price == "" {
		return sources.Quote{}, fmt.Errorf("%w: binance has no listing for %s", sources.ErrNoData, pair)
	}

	price, err := sources.ParsePositivePrice(ticker.Price)
	if err != nil {
		return sources.Quote{}, fmt.Errorf("binance %s: %w", pair, err)
	}

	s.logger.Debug("Fetched price", "source", "binance", "pair", pair, "price", price.String())
	return sources.NewQuote(symbol, quote, price, s.Name(), false), nil
}

func init() {
	sources.Register("binance", NewBinanceSource)
}
