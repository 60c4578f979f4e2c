package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/homectl-core/internal/event"
	"github.com/nerrad567/homectl-core/internal/infrastructure/config"
	"github.com/nerrad567/homectl-core/internal/infrastructure/logging"
)

// Message types on the /ws stream.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"
)

// Subscription channels. A channel is an event type such as
// "integration_device_refresh", "integration:<id>" for everything one
// integration emits, or WSChannelAll.
const (
	WSChannelAll               = "*"
	WSChannelIntegrationPrefix = "integration:"
)

const (
	wsSendBufferSize = 256

	defaultWSMaxMessageSize = 8192
	defaultWSPingInterval   = 30
	defaultWSPongTimeout    = 10
)

// WSMessage is the envelope for every frame in both directions.
type WSMessage struct {
	Type          string `json:"type"`
	ID            string `json:"id,omitempty"`
	EventType     string `json:"event_type,omitempty"`
	IntegrationID string `json:"integration_id,omitempty"`
	Timestamp     string `json:"timestamp,omitempty"`
	Payload       any    `json:"payload,omitempty"`
}

// WSSubscribePayload is the body of subscribe and unsubscribe requests.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// wsRequest is how inbound frames are decoded; the payload is parsed per type.
type wsRequest struct {
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

// Hub fans integration events out to WebSocket clients. It is an event.Sink.
type Hub struct {
	cfg    config.WebSocketConfig
	logger *logging.Logger

	mu      sync.RWMutex
	clients map[*WSClient]struct{}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CORS middleware owns origin policy.
	CheckOrigin: func(*http.Request) bool { return true },
}

// NewHub returns a Hub. Zero WebSocket settings take package defaults and a
// nil logger means logging.Default().
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaultWSMaxMessageSize
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaultWSPingInterval
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = defaultWSPongTimeout
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Hub{
		cfg:     cfg,
		logger:  logger.Component("websocket"),
		clients: make(map[*WSClient]struct{}),
	}
}

// Run waits for ctx and then drops every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
		if c.conn != nil {
			c.conn.Close() //nolint:errcheck // Shutting down
		}
	}
}

// Register adds a client.
func (h *Hub) Register(c *WSClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", n)
}

// Unregister removes a client. Whoever deletes it from the map closes send.
func (h *Hub) Unregister(c *WSClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		close(c.send)
		h.logger.Debug("websocket client disconnected", "clients", n)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish sends ev to every client whose subscriptions match its type or
// its integration. Clients with a full buffer miss the frame.
func (h *Hub) Publish(_ context.Context, ev event.Event) error {
	data, err := json.Marshal(WSMessage{
		Type:          WSTypeEvent,
		ID:            ev.ID,
		EventType:     string(ev.Type),
		IntegrationID: ev.IntegrationID,
		Timestamp:     ev.Timestamp.UTC().Format(time.RFC3339Nano),
		Payload:       ev,
	})
	if err != nil {
		h.logger.Error("websocket event encode failed", "event_id", ev.ID, "error", err)
		return nil
	}

	h.mu.RLock()
	targets := make([]*WSClient, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, c := range targets {
		if c.wants(ev) && c.enqueue(data) {
			delivered++
		}
	}
	if delivered > 0 {
		h.logger.Debug("websocket event delivered",
			"event_type", ev.Type,
			"integration_id", ev.IntegrationID,
			"recipients", delivered,
		)
	}
	return nil
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err, "request_id", requestID(r.Context()))
		return
	}

	c := &WSClient{
		hub:      s.hub,
		conn:     conn,
		send:     make(chan []byte, wsSendBufferSize),
		channels: make(map[string]struct{}),
	}
	s.hub.Register(c)

	go c.writeLoop()
	go c.readLoop()
}

// integrationChannel returns the channel for all events of one integration.
func integrationChannel(id string) string {
	return WSChannelIntegrationPrefix + id
}

// validChannel rejects empty names and a bare integration prefix.
func validChannel(ch string) bool {
	if ch == "" {
		return false
	}
	if id, ok := strings.CutPrefix(ch, WSChannelIntegrationPrefix); ok {
		return id != ""
	}
	return true
}
