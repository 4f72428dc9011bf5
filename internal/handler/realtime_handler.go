package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/classboard/conduct-api/internal/realtime"
	"github.com/classboard/conduct-api/pkg/middleware/cors"
)

// RealtimeHandler upgrades HTTP requests to websocket connections and hands
// them to the hub.
type RealtimeHandler struct {
	hub      *realtime.Hub
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewRealtimeHandler constructs the handler. Origins are checked with the
// same rules the CORS middleware applies to HTTP requests.
func NewRealtimeHandler(hub *realtime.Hub, allowedOrigins []string, logger *zap.Logger) *RealtimeHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RealtimeHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return cors.Allowed(allowedOrigins, r.Header.Get("Origin"))
			},
		},
		logger: logger,
	}
}

// Serve upgrades the connection and registers it with the hub. The hub owns
// the connection from then on.
func (h *RealtimeHandler) Serve(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	client := h.hub.Register(conn)
	h.logger.Debug("websocket connection established", zap.String("client_id", client.ID()))
}
