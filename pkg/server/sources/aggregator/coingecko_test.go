package aggregator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/maxkrukov/Price-Fetcher-API/pkg/server/sources"
)

// fakeGecko is an httptest upstream serving /coins/list and /simple/price
// from a fixed price book keyed by "id:vs_currency".
type fakeGecko struct {
	coins      []coinListEntry
	prices     map[string]float64
	listCalls  atomic.Int64
	priceCalls atomic.Int64
}

func (f *fakeGecko) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/coins/list", func(w http.ResponseWriter, r *http.Request) {
		f.listCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, "[")
		for i, c := range f.coins {
			if i > 0 {
				fmt.Fprint(w, ",")
			}
			fmt.Fprintf(w, `{"id":%q,"symbol":%q,"name":%q}`, c.ID, c.Symbol, c.Name)
		}
		fmt.Fprint(w, "]")
	})
	mux.HandleFunc("/simple/price", func(w http.ResponseWriter, r *http.Request) {
		f.priceCalls.Add(1)
		id := r.URL.Query().Get("ids")
		vs := r.URL.Query().Get("vs_currencies")
		w.Header().Set("Content-Type", "application/json")
		if price, ok := f.prices[id+":"+vs]; ok {
			fmt.Fprintf(w, `{%q:{%q:%v}}`, id, vs, price)
			return
		}
		fmt.Fprintf(w, `{%q:{}}`, id)
	})
	return mux
}

func newGeckoSource(t *testing.T, upstream *fakeGecko) sources.Source {
	t.Helper()
	server := httptest.NewServer(upstream.handler())
	t.Cleanup(server.Close)

	src, err := NewCoinGeckoSource(map[string]interface{}{"api_url": server.URL})
	if err != nil {
		t.Fatalf("failed to create source: %v", err)
	}
	return src
}

func TestCoinGeckoDirectFetch(t *testing.T) {
	upstream := &fakeGecko{
		coins:  []coinListEntry{{ID: "bitcoin", Symbol: "btc", Name: "Bitcoin"}},
		prices: map[string]float64{"bitcoin:usd": 84510.0},
	}
	src := newGeckoSource(t, upstream)

	// USDT normalizes onto CoinGecko's usd vs_currency.
	quote, err := src.Fetch(context.Background(), "BTC", "USDT")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if !quote.Price.Equal(decimal.NewFromFloat(84510.0)) {
		t.Errorf("expected price 84510, got %s", quote.Price.String())
	}
	if quote.Inverted {
		t.Error("direct hit must not be inverted")
	}
	if quote.Source != "coingecko" {
		t.Errorf("expected source coingecko, got %s", quote.Source)
	}
}

func TestCoinGeckoInversionFallback(t *testing.T) {
	// Only BTC/XMR is listed; a request for XMR/BTC resolves as 1/p.
	upstream := &fakeGecko{
		coins: []coinListEntry{
			{ID: "bitcoin", Symbol: "btc", Name: "Bitcoin"},
			{ID: "monero", Symbol: "xmr", Name: "Monero"},
		},
		prices: map[string]float64{"bitcoin:xmr": 400.0},
	}
	src := newGeckoSource(t, upstream)

	quote, err := src.Fetch(context.Background(), "XMR", "BTC")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if !quote.Inverted {
		t.Fatal("reverse hit must be flagged as inverted")
	}
	expected := decimal.NewFromInt(1).Div(decimal.NewFromFloat(400.0))
	if !quote.Price.Equal(expected) {
		t.Errorf("expected reciprocal price %s, got %s", expected.String(), quote.Price.String())
	}
}

func TestCoinGeckoBothDirectionsMissing(t *testing.T) {
	upstream := &fakeGecko{
		coins: []coinListEntry{
			{ID: "bitcoin", Symbol: "btc", Name: "Bitcoin"},
			{ID: "monero", Symbol: "xmr", Name: "Monero"},
		},
	}
	src := newGeckoSource(t, upstream)

	_, err := src.Fetch(context.Background(), "XMR", "BTC")
	if !errors.Is(err, sources.ErrNoData) {
		t.Fatalf("expected ErrNoData when neither direction is listed, got %v", err)
	}
}

func TestCoinGeckoUnknownSymbol(t *testing.T) {
	upstream := &fakeGecko{
		coins: []coinListEntry{{ID: "bitcoin", Symbol: "btc", Name: "Bitcoin"}},
	}
	src := newGeckoSource(t, upstream)

	_, err := src.Fetch(context.Background(), "NOPE", "NOPE2")
	if !errors.Is(err, sources.ErrNoData) {
		t.Fatalf("expected ErrNoData for an unknown ticker, got %v", err)
	}
}

func TestCoinGeckoCoinListIsCached(t *testing.T) {
	upstream := &fakeGecko{
		coins: []coinListEntry{
			{ID: "bitcoin", Symbol: "btc", Name: "Bitcoin"},
			{ID: "ethereum", Symbol: "eth", Name: "Ethereum"},
		},
		prices: map[string]float64{
			"bitcoin:usd":  84510.0,
			"ethereum:usd": 3100.0,
		},
	}
	src := newGeckoSource(t, upstream)

	for _, symbol := range []string{"BTC", "ETH", "BTC"} {
		if _, err := src.Fetch(context.Background(), symbol, "USDT"); err != nil {
			t.Fatalf("fetch %s failed: %v", symbol, err)
		}
	}

	if calls := upstream.listCalls.Load(); calls != 1 {
		t.Errorf("coin list must be fetched once and cached, got %d fetches", calls)
	}
}

func TestCoinGeckoFirstListMatchWins(t *testing.T) {
	// Duplicate tickers exist on CoinGecko; the first list entry is used.
	upstream := &fakeGecko{
		coins: []coinListEntry{
			{ID: "bitcoin", Symbol: "btc", Name: "Bitcoin"},
			{ID: "bitcoin-clone", Symbol: "btc", Name: "Bitcoin Clone"},
		},
		prices: map[string]float64{
			"bitcoin:usd":       84510.0,
			"bitcoin-clone:usd": 1.0,
		},
	}
	src := newGeckoSource(t, upstream)

	quote, err := src.Fetch(context.Background(), "BTC", "USDT")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if !quote.Price.Equal(decimal.NewFromFloat(84510.0)) {
		t.Errorf("expected the first matching id to win, got price %s", quote.Price.String())
	}
}

func TestNormalizeVsCurrency(t *testing.T) {
	cases := map[string]string{
		"USDT": "usd",
		"USDC": "usd",
		"usdt": "usd",
		"EUR":  "eur",
		"BTC":  "btc",
	}
	for in, want := range cases {
		if got := normalizeVsCurrency(in); got != want {
			t.Errorf("normalizeVsCurrency(%q) = %q, want %q", in, got, want)
		}
	}
}
