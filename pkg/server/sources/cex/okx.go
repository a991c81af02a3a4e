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
	okxBaseURL = "https://www.okx.com"
	okxTimeout = 10 * time.Second
)

// OKXSource fetches single-pair spot prices from the OKX REST API.
type OKXSource struct {
	apiURL string
	client *http.Client
	logger *logging.Logger
}

// OKXTicker represents a ticker in the API response.
type OKXTicker struct {
	InstID string `json:"instId"` // Instrument ID (e.g., "BTC-USDT")
	Last   string `json:"last"`   // Last traded price
	Ts     string `json:"ts"`     // Ticker data generation time
}

// OKXResponse represents the API response.
type OKXResponse struct {
	Code string      `json:"code"` // Error code, "0" means success
	Msg  string      `json:"msg"`  // Error message
	Data []OKXTicker `json:"data"` // Ticker data
}

// NewOKXSource creates a new OKX source.
func NewOKXSource(config map[string]interface{}) (sources.Source, error) {
	apiURL := okxBaseURL
	if url, ok := config["api_url"].(string); ok && url != "" {
		apiURL = url
	}

	return &OKXSource{
		apiURL: apiURL,
		client: sources.HTTPClientFromConfig(config, okxTimeout),
		logger: sources.GetLoggerFromConfig(config),
	}, nil
}

// Name returns the source name.
func (s *OKXSource) Name() string {
	return "okx"
}

// Type returns the source type.
func (s *OKXSource) Type() sources.SourceType {
	return sources.SourceTypeCEX
}

// Fetch retrieves the current price for the literal pair from OKX.
func (s *OKXSource) Fetch(ctx context.Context, symbol, quote string) (sources.Quote, error) {
	instID := strings.ToUpper(symbol) + "-" + strings.ToUpper(quote)
	url := fmt.Sprintf("%s/api/v5/market/ticker?instId=%s", s.apiURL, instID)

	var response OKXResponse
	if err := sources.GetJSON(ctx, s.client, url, &response); err != nil {
		return sources.Quote{}, fmt.Errorf("okx %s: %w", instID, err)
	}

	// OKX reports unknown instruments through the body code, not the HTTP status
	if response.Code != "0" || len(response.Data) == 0 {
		return sources.Quote{}, fmt.Errorf("%w: okx has no listing for %s (code %s)",
			sources.ErrNoData, instID, response.Code)
	}

	price, err := sources.ParsePositivePrice(response.Data[0].Last)
	if err != nil {
		return sources.Quote{}, fmt.Errorf("okx %s: %w", instID, err)
	}

	s.logger.Debug("Fetched price", "source", "okx", "pair", instID, "price", price.String())
	return sources.NewQuote(symbol, quote, price, s.Name(), false), nil
}

func init() {
	sources.Register("okx", NewOKXSource)
}
