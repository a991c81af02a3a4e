package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/maxkrukov/Price-Fetcher-API/pkg/logging"
	"github.com/maxkrukov/Price-Fetcher-API/pkg/metrics"
	"github.com/maxkrukov/Price-Fetcher-API/pkg/server/resolver"
)

const (
	wsWriteWait      = 10 * time.Second
	wsPingInterval   = 30 * time.Second
	wsSendBufferSize = 16
)

// WebSocketServer streams resolved prices to subscribed clients. Clients
// subscribe to pairs; the server resolves every subscribed pair on a fixed
// interval and pushes updates.
type WebSocketServer struct {
	resolver *resolver.Resolver
	interval time.Duration
	logger   *logging.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*WebSocketClient]bool

	ctx    context.Context
	cancel context.CancelFunc
}

// WebSocketClient represents a connected WebSocket client.
type WebSocketClient struct {
	conn   *websocket.Conn
	send   chan []byte
	server *WebSocketServer

	mu    sync.RWMutex
	pairs map[string]PairRequest
}

// ClientMessage represents a message from a client.
type ClientMessage struct {
	Type  string        `json:"type"`  // "subscribe", "unsubscribe", "ping"
	Pairs []PairRequest `json:"pairs"` // Pairs to subscribe or unsubscribe
}

// PairRequest identifies one pair in a subscription.
type PairRequest struct {
	Token string `json:"token"`
	Quote string `json:"quote"`
}

// PriceUpdateMessage is pushed to subscribed clients.
type PriceUpdateMessage struct {
	Type      string        `json:"type"`      // "price_update"
	Timestamp string        `json:"timestamp"` // RFC 3339
	Prices    []SourcePrice `json:"prices"`
}

// NewWebSocketServer creates a new WebSocket streaming server.
func NewWebSocketServer(res *resolver.Resolver, interval time.Duration, logger *logging.Logger) *WebSocketServer {
	ctx, cancel := context.WithCancel(context.Background())

	return &WebSocketServer{
		resolver: res,
		interval: interval,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(_ *http.Request) bool {
				return true
			},
		},
		clients: make(map[*WebSocketClient]bool),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start runs the periodic push loop until Stop is called.
func (ws *WebSocketServer) Start() {
	go ws.pushLoop()
}

// Stop shuts the push loop down and disconnects all clients.
func (ws *WebSocketServer) Stop() {
	ws.cancel()

	ws.mu.Lock()
	defer ws.mu.Unlock()
	for client := range ws.clients {
		close(client.send)
		_ = client.conn.Close()
		delete(ws.clients, client)
	}
}

// HandleConnection upgrades an HTTP request to a WebSocket connection.
func (ws *WebSocketServer) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		ws.logger.Warn("WebSocket upgrade failed", "error", err.Error())
		return
	}

	client := &WebSocketClient{
		conn:   conn,
		send:   make(chan []byte, wsSendBufferSize),
		server: ws,
		pairs:  make(map[string]PairRequest),
	}

	ws.mu.Lock()
	ws.clients[client] = true
	ws.mu.Unlock()
	metrics.WebSocketClients.Inc()

	ws.logger.Info("WebSocket client connected", "remote", conn.RemoteAddr().String())

	go client.writePump()
	go client.readPump()
}

// pushLoop resolves every subscribed pair once per interval and fans the
// updates out to the clients subscribed to them.
func (ws *WebSocketServer) pushLoop() {
	ticker := time.NewTicker(ws.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ws.ctx.Done():
			return
		case <-ticker.C:
			ws.pushUpdates()
		}
	}
}

func (ws *WebSocketServer) pushUpdates() {
	pairs := ws.subscribedPairs()
	if len(pairs) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(ws.ctx, ws.interval)
	defer cancel()

	now := time.Now()
	prices := make(map[string]SourcePrice, len(pairs))
	for key, pair := range pairs {
		result, err := ws.resolver.Resolve(ctx, resolver.Request{Token: pair.Token, Quote: pair.Quote})
		if err != nil {
			ws.logger.Debug("Skipping unresolvable pair in push",
				"pair", key, "error", err.Error())
			continue
		}
		prices[key] = SourcePrice{
			Symbol:    result.Quote.Symbol,
			Quote:     result.Quote.Quote,
			Price:     result.Quote.Price.InexactFloat64(),
			Source:    result.Quote.Source,
			Inverted:  result.Quote.Inverted,
			ExpiresIn: result.Quote.ExpiresIn(now).Seconds(),
			ExpiresAt: result.Quote.ExpiresAt,
		}
	}
	if len(prices) == 0 {
		return
	}

	ws.mu.RLock()
	defer ws.mu.RUnlock()
	for client := range ws.clients {
		update := client.buildUpdate(prices, now)
		if update == nil {
			continue
		}
		payload, err := json.Marshal(update)
		if err != nil {
			continue
		}
		select {
		case client.send <- payload:
		default:
			// Channel full, skip
			ws.logger.Warn("WebSocket client send buffer full, dropping update")
		}
	}
}

// subscribedPairs returns the union of all client subscriptions.
func (ws *WebSocketServer) subscribedPairs() map[string]PairRequest {
	ws.mu.RLock()
	defer ws.mu.RUnlock()

	pairs := make(map[string]PairRequest)
	for client := range ws.clients {
		client.mu.RLock()
		for key, pair := range client.pairs {
			pairs[key] = pair
		}
		client.mu.RUnlock()
	}
	return pairs
}

func (ws *WebSocketServer) unregister(client *WebSocketClient) {
	ws.mu.Lock()
	if ws.clients[client] {
		delete(ws.clients, client)
		close(client.send)
		metrics.WebSocketClients.Dec()
	}
	ws.mu.Unlock()
	_ = client.conn.Close()
}

// buildUpdate filters the resolved prices down to this client's
// subscriptions. Returns nil when nothing matches.
func (c *WebSocketClient) buildUpdate(prices map[string]SourcePrice, now time.Time) *PriceUpdateMessage {
	c.mu.RLock()
	defer c.mu.RUnlock()

	matched := make([]SourcePrice, 0, len(c.pairs))
	for key := range c.pairs {
		if price, ok := prices[key]; ok {
			matched = append(matched, price)
		}
	}
	if len(matched) == 0 {
		return nil
	}

	return &PriceUpdateMessage{
		Type:      "price_update",
		Timestamp: now.Format(time.RFC3339),
		Prices:    matched,
	}
}

// readPump handles incoming client messages until the connection drops.
func (c *WebSocketClient) readPump() {
	defer c.server.unregister(c)

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.server.logger.Debug("Ignoring malformed WebSocket message", "error", err.Error())
			continue
		}

		switch msg.Type {
		case "subscribe":
			c.updateSubscriptions(msg.Pairs, true)
		case "unsubscribe":
			c.updateSubscriptions(msg.Pairs, false)
		case "ping":
			select {
			case c.send <- []byte(`{"type":"pong"}`):
			default:
			}
		}
	}
}

func (c *WebSocketClient) updateSubscriptions(pairs []PairRequest, subscribe bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, pair := range pairs {
		token := strings.ToUpper(strings.TrimSpace(pair.Token))
		quote := strings.ToUpper(strings.TrimSpace(pair.Quote))
		if token == "" || quote == "" {
			continue
		}
		key := token + "/" + quote
		if subscribe {
			c.pairs[key] = PairRequest{Token: token, Quote: quote}
		} else {
			delete(c.pairs, key)
		}
	}
}

// writePump sends queued messages and keepalive pings to the client.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
