package api

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/homectl-core/internal/event"
)

// WSClient is one connected WebSocket peer.
type WSClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu       sync.RWMutex
	channels map[string]struct{}
}

func (c *WSClient) readLoop() {
	h := c.hub
	defer func() {
		h.Unregister(c)
		c.conn.Close() //nolint:errcheck // Already done reading
	}()

	idle := time.Duration(h.cfg.PingInterval+h.cfg.PongTimeout) * time.Second
	extend := func() error { return c.conn.SetReadDeadline(time.Now().Add(idle)) }

	c.conn.SetReadLimit(int64(h.cfg.MaxMessageSize))
	extend() //nolint:errcheck // A failed deadline surfaces on the next read
	c.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read failed", "error", err)
			}
			return
		}
		extend() //nolint:errcheck // A failed deadline surfaces on the next read
		c.handle(data)
	}
}

func (c *WSClient) writeLoop() {
	ping := time.NewTicker(time.Duration(c.hub.cfg.PingInterval) * time.Second)
	writeWait := time.Duration(c.hub.cfg.PongTimeout) * time.Second
	defer func() {
		ping.Stop()
		c.conn.Close() //nolint:errcheck // Writer exiting
	}()

	write := func(kind int, data []byte) error {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck // Write reports the failure
		return c.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				write(websocket.CloseMessage, nil) //nolint:errcheck // Peer may already be gone
				return
			}
			if err := write(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ping.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WSClient) handle(data []byte) {
	var req wsRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.reply("", WSTypeError, errorBody("invalid JSON message"))
		return
	}

	switch req.Type {
	case WSTypeSubscribe, WSTypeUnsubscribe:
		c.changeSubscriptions(req)
	case WSTypePing:
		c.reply(req.ID, WSTypePong, nil)
	default:
		c.reply(req.ID, WSTypeError, errorBody("unknown message type: "+req.Type))
	}
}

func (c *WSClient) changeSubscriptions(req wsRequest) {
	var body WSSubscribePayload
	if len(req.Payload) == 0 || json.Unmarshal(req.Payload, &body) != nil {
		c.reply(req.ID, WSTypeError, errorBody(fmt.Sprintf("invalid %s payload", req.Type)))
		return
	}
	for _, ch := range body.Channels {
		if !validChannel(ch) {
			c.reply(req.ID, WSTypeError, errorBody(fmt.Sprintf("invalid channel %q", ch)))
			return
		}
	}

	add := req.Type == WSTypeSubscribe
	c.mu.Lock()
	for _, ch := range body.Channels {
		if add {
			c.channels[ch] = struct{}{}
		} else {
			delete(c.channels, ch)
		}
	}
	c.mu.Unlock()

	key := "unsubscribed"
	if add {
		key = "subscribed"
	}
	c.hub.logger.Debug("websocket subscriptions changed", key, body.Channels)
	c.reply(req.ID, WSTypeResponse, map[string][]string{key: body.Channels})
}

// wants reports whether ev matches any of the client's channels.
func (c *WSClient) wants(ev event.Event) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, ch := range []string{WSChannelAll, string(ev.Type), integrationChannel(ev.IntegrationID)} {
		if _, ok := c.channels[ch]; ok {
			return true
		}
	}
	return false
}

// enqueue hands data to the writer without blocking. It reports false when
// the buffer is full or the client has already been unregistered.
func (c *WSClient) enqueue(data []byte) (queued bool) {
	defer func() {
		if recover() != nil {
			queued = false
		}
	}()

	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *WSClient) reply(id, kind string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      kind,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		return
	}
	c.enqueue(data)
}

func errorBody(msg string) map[string]string {
	return map[string]string{"message": msg}
}
