// Package api provides the HTTP and WebSocket endpoints of the price server.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/maxkrukov/Price-Fetcher-API/pkg/logging"
	"github.com/maxkrukov/Price-Fetcher-API/pkg/metrics"
	"github.com/maxkrukov/Price-Fetcher-API/pkg/server/resolver"
	"github.com/maxkrukov/Price-Fetcher-API/pkg/server/sources"
)

// Server represents the HTTP API server.
type Server struct {
	addr         string
	resolver     *resolver.Resolver
	defaultQuote string
	server       *http.Server
	logger       *logging.Logger
	wsServer     *WebSocketServer // Optional WebSocket server for streaming
}

// PriceResponse is the canonical response body for a resolved price.
type PriceResponse struct {
	Symbol    string        `json:"symbol"`
	Quote     string        `json:"quote"`
	Price     float64       `json:"price"`
	Source    string        `json:"source"`
	Inverted  bool          `json:"inverted"`
	ExpiresIn float64       `json:"expires_in"`
	ExpiresAt time.Time     `json:"expires_at"`
	Sources   []SourcePrice `json:"sources"`
}

// SourcePrice is one per-source quote inside a PriceResponse.
type SourcePrice struct {
	Symbol    string    `json:"symbol"`
	Quote     string    `json:"quote"`
	Price     float64   `json:"price"`
	Source    string    `json:"source"`
	Inverted  bool      `json:"inverted"`
	ExpiresIn float64   `json:"expires_in"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewServer creates a new HTTP API server.
func NewServer(addr string, res *resolver.Resolver, defaultQuote string, logger *logging.Logger) *Server {
	return &Server{
		addr:         addr,
		resolver:     res,
		defaultQuote: defaultQuote,
		logger:       logger,
	}
}

// SetWebSocketServer mounts the WebSocket server for streaming updates.
func (s *Server) SetWebSocketServer(ws *WebSocketServer) {
	s.wsServer = ws
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/price", s.handlePrice)
	mux.HandleFunc("/health", s.handleHealth)
	if s.wsServer != nil {
		mux.HandleFunc("/ws", s.wsServer.HandleConnection)
	}

	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info("Starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		s.logger.Info("Stopping HTTP server")
		return s.server.Shutdown(ctx)
	}
	return nil
}

// handleHealth handles the /health endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	start := time.Now()
	defer func() {
		metrics.RecordHTTPRequest("/health", "200", time.Since(start))
	}()

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handlePrice handles GET /price.
func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := http.StatusOK
	defer func() {
		metrics.RecordHTTPRequest("/price", strconv.Itoa(status), time.Since(start))
	}()

	query := r.URL.Query()
	req := resolver.Request{
		Token:        query.Get("token"),
		Quote:        query.Get("quote"),
		Source:       query.Get("source"),
		Intermediate: query.Get("intermediate"),
	}
	if req.Quote == "" {
		req.Quote = s.defaultQuote
	}

	result, err := s.resolver.Resolve(r.Context(), req)
	if err != nil {
		status = statusForError(err)
		s.logger.Debug("Price request failed",
			"token", req.Token, "quote", req.Quote, "status", status, "error", err.Error())
		http.Error(w, err.Error(), status)
		return
	}

	response := buildResponse(result, time.Now())

	if fields := query.Get("fields"); fields != "" {
		s.sendJSON(w, projectFields(response, fields))
		return
	}
	s.sendJSON(w, response)
}

// statusForError maps resolver errors onto HTTP status codes: user input
// errors are 400, missing coverage is 404.
func statusForError(err error) int {
	switch {
	case errors.Is(err, resolver.ErrMissingParameter), errors.Is(err, resolver.ErrInvalidSource):
		return http.StatusBadRequest
	case errors.Is(err, sources.ErrNoData):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// buildResponse converts a resolution result to the response shape,
// computing expires_in relative to now.
func buildResponse(result *resolver.Result, now time.Time) PriceResponse {
	response := PriceResponse{
		Symbol:    result.Quote.Symbol,
		Quote:     result.Quote.Quote,
		Price:     result.Quote.Price.InexactFloat64(),
		Source:    result.Quote.Source,
		Inverted:  result.Quote.Inverted,
		ExpiresIn: result.Quote.ExpiresIn(now).Seconds(),
		ExpiresAt: result.Quote.ExpiresAt,
		Sources:   make([]SourcePrice, 0, len(result.Sources)),
	}

	for _, q := range result.Sources {
		response.Sources = append(response.Sources, SourcePrice{
			Symbol:    q.Symbol,
			Quote:     q.Quote,
			Price:     q.Price.InexactFloat64(),
			Source:    q.Source,
			Inverted:  q.Inverted,
			ExpiresIn: q.ExpiresIn(now).Seconds(),
			ExpiresAt: q.ExpiresAt,
		})
	}

	return response
}

// projectFields restricts the response to the requested top-level keys.
// Unknown field names are ignored.
func projectFields(response PriceResponse, fields string) map[string]interface{} {
	full, err := json.Marshal(response)
	if err != nil {
		return map[string]interface{}{}
	}

	var asMap map[string]interface{}
	if err := json.Unmarshal(full, &asMap); err != nil {
		return map[string]interface{}{}
	}

	wanted := make(map[string]bool)
	for _, field := range strings.Split(fields, ",") {
		field = strings.TrimSpace(field)
		if field != "" {
			wanted[field] = true
		}
	}

	projected := make(map[string]interface{}, len(wanted))
	for key, value := range asMap {
		if wanted[key] {
			projected[key] = value
		}
	}
	return projected
}

// sendJSON sends a JSON response.
func (s *Server) sendJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode JSON response", "error", err)
	}
}
