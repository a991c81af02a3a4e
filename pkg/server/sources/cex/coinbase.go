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
	coinbaseBaseURL = "https://api.coinbase.com"
	coinbaseTimeout = 10 * time.Second
)

// CoinbaseSource fetches single-pair spot prices from the Coinbase REST API.
type CoinbaseSource struct {
	apiURL string
	client *http.Client
	logger *logging.Logger
}

// CoinbaseSpotResponse represents the /v2/prices/{pair}/spot response.
type CoinbaseSpotResponse struct {
	Data struct {
		Base     string `json:"base"`     // e.g., "BTC"
		Currency string `json:"currency"` // e.g., "USDT"
		Amount   string `json:"amount"`   // Spot price (string decimal)
	} `json:"data"`
}

// NewCoinbaseSource creates a new Coinbase source.
func NewCoinbaseSource(config map[string]interface{}) (sources.Source, error) {
	apiURL := coinbaseBaseURL
	if url, ok := config["api_url"].(string); ok && url != "" {
		apiURL = url
	}

	return &CoinbaseSource{
		apiURL: apiURL,
		client: sources.HTTPClientFromConfig(config, coinbaseTimeout),
		logger: sources.GetLoggerFromConfig(config),
	}, nil
}

// Name returns the source name.
func (s *CoinbaseSource) Name() string {
	return "coinbase"
}

// Type returns the source type.
func (s *CoinbaseSource) Type() sources.SourceType {
	return sources.SourceTypeCEX
}

// Fetch retrieves the current spot price for the literal pair from Coinbase.
func (s *CoinbaseSource) Fetch(ctx context.Context, symbol, quote string) (sources.Quote, error) {
	pair := strings.ToUpper(symbol) + "-" + strings.ToUpper(quote)
	url := fmt.Sprintf("%s/v2/prices/%s/spot", s.apiURL, pair)

	var response CoinbaseSpotResponse
	if err := sources.GetJSON(ctx, s.client, url, &response); err != nil {
		return sources.Quote{}, fmt.Errorf("coinbase %s: %w", pair, err)
	}

	if response.Data.Amount == "" {
		return sources.Quote{}, fmt.Errorf("%w: coinbase has no listing for %s", sources.ErrNoData, pair)
	}

	price, err := sources.ParsePositivePrice(response.Data.Amount)
	if err != nil {
		return sources.Quote{}, fmt.Errorf("coinbase %s: %w", pair, err)
	}

	s.logger.Debug("Fetched price", "source", "coinbase", "pair", pair, "price", price.String())
	return sources.NewQuote(symbol, quote, price, s.Name(), false), nil
}

func init() {
	sources.Register("coinbase", NewCoinbaseSource)
}
