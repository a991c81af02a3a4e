package sources

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestParsePositivePrice(t *testing.T) {
	price, err := ParsePositivePrice(" 84524.0 ")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if !price.Equal(decimal.NewFromFloat(84524.0)) {
		t.Errorf("expected 84524, got %s", price.String())
	}

	if _, err := ParsePositivePrice("0"); !errors.Is(err, ErrInvalidPrice) {
		t.Errorf("expected ErrInvalidPrice for zero, got %v", err)
	}
	if _, err := ParsePositivePrice("-1.5"); !errors.Is(err, ErrInvalidPrice) {
		t.Errorf("expected ErrInvalidPrice for a negative price, got %v", err)
	}
	if _, err := ParsePositivePrice("not a number"); !errors.Is(err, ErrUpstream) {
		t.Errorf("expected ErrUpstream for garbage input, got %v", err)
	}
}

func TestNewQuoteUppercasesPair(t *testing.T) {
	q := NewQuote("btc", "usdt", decimal.NewFromInt(1), "binance", false)
	if q.Symbol != "BTC" || q.Quote != "USDT" {
		t.Errorf("expected BTC/USDT, got %s/%s", q.Symbol, q.Quote)
	}
	if !q.FetchedAt.IsZero() || !q.ExpiresAt.IsZero() {
		t.Error("adapters must not stamp cache timestamps")
	}
}

func TestQuoteExpiresIn(t *testing.T) {
	now := time.Now()
	q := Quote{ExpiresAt: now.Add(30 * time.Second)}

	if got := q.ExpiresIn(now); got != 30*time.Second {
		t.Errorf("expected 30s, got %s", got)
	}
	if got := q.ExpiresIn(now.Add(time.Minute)); got != 0 {
		t.Errorf("expired quote must report 0, got %s", got)
	}
}

func TestGetJSONStatusClassification(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusBadRequest, ErrNoData},
		{http.StatusNotFound, ErrNoData},
		{http.StatusTooManyRequests, ErrNoData},
		{http.StatusInternalServerError, ErrUpstream},
		{http.StatusBadGateway, ErrUpstream},
	}

	for _, tc := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))

		var out map[string]interface{}
		err := GetJSON(context.Background(), server.Client(), server.URL, &out)
		if !errors.Is(err, tc.want) {
			t.Errorf("status %d: expected %v, got %v", tc.status, tc.want, err)
		}
		server.Close()
	}
}

func TestGetJSONDecodeFailureIsUpstream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer server.Close()

	var out map[string]interface{}
	err := GetJSON(context.Background(), server.Client(), server.URL, &out)
	if !errors.Is(err, ErrUpstream) {
		t.Errorf("expected ErrUpstream on a decode failure, got %v", err)
	}
}

func TestRegistry(t *testing.T) {
	Register("TestSource", func(config map[string]interface{}) (Source, error) {
		return nil, ErrInvalidConfig
	})

	if !IsRegistered("testsource") {
		t.Error("registration must be case-insensitive")
	}

	if _, err := Create("TESTSOURCE", nil); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected factory error to propagate, got %v", err)
	}

	if _, err := Create("never-registered", nil); !errors.Is(err, ErrUnknownSource) {
		t.Errorf("expected ErrUnknownSource, got %v", err)
	} else if !strings.Contains(err.Error(), "testsource") {
		t.Errorf("unknown source error must name registered sources, got %v", err)
	}

	found := false
	for _, name := range List() {
		if name == "testsource" {
			found = true
		}
	}
	if !found {
		t.Error("List must include registered sources")
	}
}

func TestHTTPClientFromConfig(t *testing.T) {
	c := HTTPClientFromConfig(map[string]interface{}{"timeout": 3}, 10*time.Second)
	if c.Timeout != 3*time.Second {
		t.Errorf("expected configured 3s timeout, got %s", c.Timeout)
	}

	c = HTTPClientFromConfig(map[string]interface{}{}, 10*time.Second)
	if c.Timeout != 10*time.Second {
		t.Errorf("expected default timeout, got %s", c.Timeout)
	}
}
