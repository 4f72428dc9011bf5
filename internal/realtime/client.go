package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// wsConn is the slice of *websocket.Conn the hub relies on, extracted so
// tests can drive the protocol without a network transport.
type wsConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Client is one live realtime connection. Fields are mutated only by the
// client's own read pump and the hub's sweep, both serialized through mu.
type Client struct {
	id   string
	hub  *Hub
	conn wsConn
	send chan []byte

	mu         sync.Mutex
	alive      bool
	subscribed bool
	channels   map[string]struct{}

	closeOnce sync.Once
}

// ID returns the opaque connection id assigned at registration.
func (c *Client) ID() string {
	return c.id
}

// markAlive records a heartbeat reply.
func (c *Client) markAlive() {
	c.mu.Lock()
	c.alive = true
	c.mu.Unlock()
}

// expireAndProbe flips the liveness flag and reports whether the client was
// alive before. Used by the sweep: a client survives only if it pongs back
// before the next tick.
func (c *Client) expireAndProbe() bool {
	c.mu.Lock()
	wasAlive := c.alive
	c.alive = false
	c.mu.Unlock()
	return wasAlive
}

// subscribe replaces the channel set. An empty request defaults to the
// reports channel. Re-subscribing is allowed and replaces the set.
func (c *Client) subscribe(channels []string) []string {
	if len(channels) == 0 {
		channels = []string{ChannelReports}
	}
	set := make(map[string]struct{}, len(channels))
	for _, ch := range channels {
		set[ch] = struct{}{}
	}
	c.mu.Lock()
	c.subscribed = true
	c.channels = set
	c.mu.Unlock()
	return channels
}

// wants reports whether the client is subscribed to the given channel.
func (c *Client) wants(channel string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.subscribed {
		return false
	}
	_, ok := c.channels[channel]
	return ok
}

// enqueue hands a frame to the write pump without blocking. A full buffer
// means the client cannot keep up; the frame is dropped and the failure is
// the client's alone.
func (c *Client) enqueue(payload []byte) bool {
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// sendJSON marshals and enqueues a control reply.
func (c *Client) sendJSON(v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		c.hub.logger.Error("marshal realtime message", zap.Error(err), zap.String("client_id", c.id))
		return
	}
	if !c.enqueue(payload) {
		c.hub.logger.Warn("dropping realtime message, send buffer full", zap.String("client_id", c.id))
	}
}

// handleMessage processes one inbound frame in arrival order. Malformed
// payloads are logged and ignored; the connection stays open.
func (c *Client) handleMessage(raw []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.hub.logger.Warn("unparseable realtime message", zap.Error(err), zap.String("client_id", c.id))
		return
	}

	switch msg.Type {
	case msgSubscribe:
		channels := c.subscribe(msg.Channels)
		c.sendJSON(subscribedMessage{Type: msgSubscribed, Channels: channels})
		c.hub.logger.Info("client subscribed", zap.String("client_id", c.id), zap.Strings("channels", channels))
	default:
		c.hub.logger.Debug("ignoring unknown realtime message", zap.String("type", msg.Type), zap.String("client_id", c.id))
	}
}

// terminate closes the transport exactly once. The send channel is closed
// by the hub while deregistering, under the registry lock, so publishes can
// never race a close.
func (c *Client) terminate() {
	c.closeOnce.Do(func() {
		_ = c.conn.Close()
	})
}

// readPump consumes inbound frames until the transport closes, then
// deregisters the client.
func (c *Client) readPump() {
	defer func() {
		c.hub.remove(c)
		c.terminate()
	}()

	c.conn.SetPongHandler(func(string) error {
		c.markAlive()
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("unexpected websocket close", zap.Error(err), zap.String("client_id", c.id))
			}
			return
		}
		c.handleMessage(raw)
	}
}

// writePump serializes all data frames onto the transport.
func (c *Client) writePump() {
	for payload := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			c.hub.logger.Warn("websocket write failed", zap.Error(err), zap.String("client_id", c.id))
			_ = c.conn.Close()
			return
		}
	}
}
