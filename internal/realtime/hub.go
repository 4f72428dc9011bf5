package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/classboard/conduct-api/pkg/config"
)

// Metrics is the optional instrumentation surface of the hub.
type Metrics interface {
	SetRealtimeConnections(n int)
	ObserveBroadcast(delivered int)
}

// Hub owns the registry of live realtime connections, runs the liveness
// sweep and fans published payloads out to subscribers. It is constructed
// explicitly and injected; there is no process-wide instance.
type Hub struct {
	logger       *zap.Logger
	pingInterval time.Duration
	writeTimeout time.Duration
	sendBuffer   int
	metrics      Metrics

	mu      sync.RWMutex
	clients map[string]*Client
}

// NewHub constructs a hub from configuration. metrics may be nil.
func NewHub(cfg config.RealtimeConfig, logger *zap.Logger, metrics Metrics) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	pingInterval := cfg.PingInterval
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	sendBuffer := cfg.SendBufferSize
	if sendBuffer <= 0 {
		sendBuffer = 256
	}
	return &Hub{
		logger:       logger,
		pingInterval: pingInterval,
		writeTimeout: writeTimeout,
		sendBuffer:   sendBuffer,
		metrics:      metrics,
		clients:      make(map[string]*Client),
	}
}

// Register admits a new transport connection, assigns its id, starts the
// pumps and sends the handshake acknowledgment. The connection is not
// subscribed to anything yet.
func (h *Hub) Register(conn wsConn) *Client {
	client := &Client{
		id:    uuid.NewString(),
		hub:   h,
		conn:  conn,
		send:  make(chan []byte, h.sendBuffer),
		alive: true,
	}

	h.mu.Lock()
	h.clients[client.id] = client
	count := len(h.clients)
	h.mu.Unlock()

	go client.writePump()
	go client.readPump()

	client.sendJSON(connectedMessage{
		Type:     msgConnected,
		ClientID: client.id,
		Message:  "已连接到实时通报系统",
		Time:     time.Now(),
	})

	h.logger.Info("realtime client connected", zap.String("client_id", client.id), zap.Int("clients", count))
	if h.metrics != nil {
		h.metrics.SetRealtimeConnections(count)
	}
	return client
}

// remove deregisters a client. The send channel is closed under the lock,
// which is what makes Publish safe against concurrent disconnects.
func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	_, present := h.clients[c.id]
	if present {
		delete(h.clients, c.id)
		close(c.send)
	}
	count := len(h.clients)
	h.mu.Unlock()

	if present {
		h.logger.Info("realtime client disconnected", zap.String("client_id", c.id), zap.Int("clients", count))
		if h.metrics != nil {
			h.metrics.SetRealtimeConnections(count)
		}
	}
}

// Publish sends the payload to every subscribed client of the channel and
// returns the delivery count. Best effort: a failed or lagging client is
// logged and skipped, never retried, and never blocks the rest.
func (h *Hub) Publish(payload interface{}, channel string) int {
	if channel == "" {
		channel = ChannelReports
	}

	frame, err := json.Marshal(eventMessage{
		Type:    msgNewReport,
		Channel: channel,
		Data:    payload,
		Time:    time.Now(),
	})
	if err != nil {
		h.logger.Error("marshal broadcast payload", zap.Error(err), zap.String("channel", channel))
		return 0
	}

	delivered := 0
	h.mu.RLock()
	for _, client := range h.clients {
		if !client.wants(channel) {
			continue
		}
		if client.enqueue(frame) {
			delivered++
		} else {
			h.logger.Warn("broadcast delivery failed", zap.String("client_id", client.id), zap.String("channel", channel))
		}
	}
	h.mu.RUnlock()

	h.logger.Info("broadcast published", zap.String("channel", channel), zap.Int("delivered", delivered))
	if h.metrics != nil {
		h.metrics.ObserveBroadcast(delivered)
	}
	return delivered
}

// ClientCount returns the number of registered connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Run drives the liveness sweep until the context is cancelled, then
// terminates every remaining connection.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-ticker.C:
			h.sweep()
		}
	}
}

// sweep is the 2-interval liveness detector: a client that has not ponged
// since its last probe is terminated, everyone else is probed again.
func (h *Hub) sweep() {
	h.mu.RLock()
	snapshot := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		snapshot = append(snapshot, c)
	}
	h.mu.RUnlock()

	for _, c := range snapshot {
		if !c.expireAndProbe() {
			h.logger.Info("terminating unresponsive realtime client", zap.String("client_id", c.id))
			h.remove(c)
			c.terminate()
			continue
		}
		deadline := time.Now().Add(h.writeTimeout)
		if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
			h.logger.Warn("ping failed", zap.Error(err), zap.String("client_id", c.id))
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.RLock()
	snapshot := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		snapshot = append(snapshot, c)
	}
	h.mu.RUnlock()

	for _, c := range snapshot {
		h.remove(c)
		c.terminate()
	}
	h.logger.Info("realtime hub stopped")
}
