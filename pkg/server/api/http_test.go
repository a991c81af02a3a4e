package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/maxkrukov/Price-Fetcher-API/pkg/logging"
	"github.com/maxkrukov/Price-Fetcher-API/pkg/server/cache"
	"github.com/maxkrukov/Price-Fetcher-API/pkg/server/resolver"
	"github.com/maxkrukov/Price-Fetcher-API/pkg/server/sources"
)

type stubSource struct {
	name   string
	typ    sources.SourceType
	prices map[string]float64
}

func (s *stubSource) Name() string             { return s.name }
func (s *stubSource) Type() sources.SourceType { return s.typ }

func (s *stubSource) Fetch(_ context.Context, symbol, quote string) (sources.Quote, error) {
	pair := strings.ToUpper(symbol) + "/" + strings.ToUpper(quote)
	if price, ok := s.prices[pair]; ok {
		return sources.NewQuote(symbol, quote, decimal.NewFromFloat(price), s.name, false), nil
	}
	return sources.Quote{}, fmt.Errorf("%w: %s not listed on %s", sources.ErrNoData, pair, s.name)
}

func newTestServer(t *testing.T, srcs ...sources.Source) *Server {
	t.Helper()
	if len(srcs) == 0 {
		srcs = []sources.Source{
			&stubSource{name: "binance", typ: sources.SourceTypeCEX, prices: map[string]float64{"BTC/USDT": 84518.86}},
			&stubSource{name: "okx", typ: sources.SourceTypeCEX, prices: map[string]float64{"BTC/USDT": 84524.0}},
			&stubSource{name: "kraken", typ: sources.SourceTypeCEX, prices: map[string]float64{"BTC/USDT": 84516.9}},
		}
	}
	res := resolver.New(srcs, cache.New(0, nil), 5*time.Minute, time.Second, []string{"USDT"}, nil)
	return NewServer(":0", res, "USDT", logging.NewNoopLogger())
}

func doPriceRequest(t *testing.T, s *Server, rawQuery string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/price?"+rawQuery, nil)
	rec := httptest.NewRecorder()
	s.handlePrice(rec, req)
	return rec
}

func TestPriceEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec := doPriceRequest(t, s, "token=BTC&quote=USDT")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body PriceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "BTC", body.Symbol)
	require.Equal(t, "USDT", body.Quote)
	require.Equal(t, 84524.0, body.Price)
	require.Equal(t, "okx", body.Source)
	require.False(t, body.Inverted)
	require.Greater(t, body.ExpiresIn, 0.0)
	require.LessOrEqual(t, body.ExpiresIn, 300.0)
	require.Len(t, body.Sources, 3)
}

func TestPriceEndpointDefaultQuote(t *testing.T) {
	s := newTestServer(t)

	rec := doPriceRequest(t, s, "token=BTC")
	require.Equal(t, http.StatusOK, rec.Code)

	var body PriceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "USDT", body.Quote)
}

func TestPriceEndpointMissingToken(t *testing.T) {
	s := newTestServer(t)

	rec := doPriceRequest(t, s, "quote=USDT")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "token")
}

func TestPriceEndpointInvalidSource(t *testing.T) {
	s := newTestServer(t)

	rec := doPriceRequest(t, s, "token=BTC&quote=USDT&source=unknownexchange")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "unknownexchange")
	require.Contains(t, rec.Body.String(), "binance", "the 400 body names the valid sources")
}

func TestPriceEndpointExplicitSource(t *testing.T) {
	s := newTestServer(t)

	rec := doPriceRequest(t, s, "token=BTC&quote=USDT&source=binance")
	require.Equal(t, http.StatusOK, rec.Code)

	var body PriceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "binance", body.Source)
	require.Equal(t, 84518.86, body.Price)
	require.Len(t, body.Sources, 1)
}

func TestPriceEndpointNotFound(t *testing.T) {
	s := newTestServer(t)

	rec := doPriceRequest(t, s, "token=XNOTACOIN&quote=USDT")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "XNOTACOIN/USDT")
}

func TestPriceEndpointFieldProjection(t *testing.T) {
	s := newTestServer(t)

	rec := doPriceRequest(t, s, "token=BTC&quote=USDT&fields=price,source,bogus")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 2, "unknown field names are dropped")
	require.Equal(t, 84524.0, body["price"])
	require.Equal(t, "okx", body["source"])
}

func TestPriceEndpointDerived(t *testing.T) {
	s := newTestServer(t,
		&stubSource{name: "binance", typ: sources.SourceTypeCEX, prices: map[string]float64{
			"FOO/USDT": 2.0,
			"USDT/EUR": 0.9,
		}},
	)

	rec := doPriceRequest(t, s, "token=FOO&quote=EUR")
	require.Equal(t, http.StatusOK, rec.Code)

	var body PriceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, sources.DerivedName, body.Source)
	require.InDelta(t, 1.8, body.Price, 1e-9)
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.handleHealth(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "OK", rec.Body.String())
}
