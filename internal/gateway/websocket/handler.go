package websocket

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	gorillaws "github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/kandev/taskboard/internal/common/logger"
	ws "github.com/kandev/taskboard/pkg/websocket"
)

// Subprotocol is selected when the client offers it in
// Sec-WebSocket-Protocol. Clients that offer nothing are still accepted.
const Subprotocol = "taskboard.v1"

// BoardQueryParam may be repeated on the /ws URL to subscribe the new
// connection to those boards before its first request is read.
const BoardQueryParam = "boardId"

// Handler upgrades HTTP requests to websocket clients.
type Handler struct {
	hub      *Hub
	upgrader gorillaws.Upgrader
	logger   *logger.Logger
}

// NewHandler creates a connection handler for hub.
func NewHandler(hub *Hub, log *logger.Logger) *Handler {
	return &Handler{
		hub: hub,
		upgrader: gorillaws.Upgrader{
			ReadBufferSize: 1024,
			// pushes carry whole boards
			WriteBufferSize: 8192,
			Subprotocols:    []string{Subprotocol},
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: log.WithFields(zap.String("component", "ws_handler")),
	}
}

// HandleConnection upgrades the request and serves the connection until it
// closes.
func (h *Handler) HandleConnection(c *gin.Context) {
	var boardIDs []string
	for _, id := range c.QueryArray(BoardQueryParam) {
		if id != "" {
			boardIDs = append(boardIDs, id)
		}
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("Failed to upgrade connection",
			zap.String("remote_addr", c.Request.RemoteAddr),
			zap.Error(err))
		return
	}

	client := NewClient(uuid.New().String(), conn, h.hub, h.logger)
	if !h.hub.Register(client) {
		_ = conn.WriteControl(gorillaws.CloseMessage,
			gorillaws.FormatCloseMessage(gorillaws.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}
	for _, id := range boardIDs {
		h.hub.SubscribeToBoard(client, id)
	}
	h.logger.Debug("WebSocket connection established",
		zap.String("client_id", client.ID),
		zap.String("remote_addr", c.Request.RemoteAddr),
		zap.String("subprotocol", conn.Subprotocol()),
		zap.Strings("boards", boardIDs))

	go client.WritePump()
	client.ReadPump(c.Request.Context())
}

type healthReply struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Clients int    `json:"clients"`
}

// RegisterHealthHandler answers health.check with the number of connected
// clients.
func RegisterHealthHandler(d *ws.Dispatcher, hub *Hub) {
	ws.Route(d, ws.ActionHealthCheck, func(context.Context, *struct{}) (any, error) {
		return healthReply{Status: "ok", Service: "taskboard", Clients: hub.ClientCount()}, nil
	})
}
