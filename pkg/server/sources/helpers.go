package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/maxkrukov/Price-Fetcher-API/pkg/logging"
	"github.com/maxkrukov/Price-Fetcher-API/pkg/version"
)

// GetLoggerFromConfig extracts the logger from a config map or returns a
// noop logger so sources never dereference a nil logger.
func GetLoggerFromConfig(config map[string]interface{}) *logging.Logger {
	if loggerInterface, ok := config["logger"]; ok {
		if logger, ok := loggerInterface.(*logging.Logger); ok {
			return logger
		}
	}

	return logging.NewNoopLogger()
}

// GetJSON performs a GET request and decodes the JSON response body into out.
// 4xx answers are reported as ErrNoData: exchanges answer with client errors
// when the requested pair has no listing. Everything else that is not a 2xx,
// plus transport and decode failures, is ErrUpstream.
func GetJSON(ctx context.Context, client *http.Client, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to create request: %v", ErrUpstream, err)
	}
	req.Header.Set("User-Agent", version.AgentString())

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		// fall through to decode
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return fmt.Errorf("%w: status %d", ErrNoData, resp.StatusCode)
	default:
		return fmt.Errorf("%w: unexpected status %d", ErrUpstream, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %v", ErrUpstream, err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: failed to unmarshal response: %v", ErrUpstream, err)
	}

	return nil
}

// ParsePositivePrice parses a decimal price string and rejects zero or
// negative values.
func ParsePositivePrice(s string) (decimal.Decimal, error) {
	price, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q: %v", ErrUpstream, s, err)
	}
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrInvalidPrice, price.String())
	}
	return price, nil
}

// NewQuote builds a Quote for an uppercased pair. FetchedAt and ExpiresAt
// are stamped by the cache when the quote is stored.
func NewQuote(symbol, quote string, price decimal.Decimal, source string, inverted bool) Quote {
	return Quote{
		Symbol:   strings.ToUpper(symbol),
		Quote:    strings.ToUpper(quote),
		Price:    price,
		Source:   source,
		Inverted: inverted,
	}
}

// HTTPClientFromConfig builds an HTTP client with the configured timeout,
// falling back to the given default.
func HTTPClientFromConfig(config map[string]interface{}, defaultTimeout time.Duration) *http.Client {
	timeout := defaultTimeout
	if t, ok := config["timeout"].(int); ok && t > 0 {
		timeout = time.Duration(t) * time.Second
	}
	return &http.Client{Timeout: timeout}
}
