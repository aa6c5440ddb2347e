package websocket

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/kandev/taskboard/internal/common/logger"
	"github.com/kandev/taskboard/internal/events"
	"github.com/kandev/taskboard/internal/events/bus"
	ws "github.com/kandev/taskboard/pkg/websocket"
)

// Gateway bundles the hub, its dispatcher and the connection handler.
type Gateway struct {
	Hub        *Hub
	Dispatcher *ws.Dispatcher
	Handler    *Handler
	logger     *logger.Logger
}

// NewGateway creates a gateway with the health handler registered. Board
// actions are registered on Dispatcher by the board handlers.
func NewGateway(log *logger.Logger) *Gateway {
	dispatcher := ws.NewDispatcher()
	hub := NewHub(dispatcher, log)
	RegisterHealthHandler(dispatcher, hub)

	return &Gateway{
		Hub:        hub,
		Dispatcher: dispatcher,
		Handler:    NewHandler(hub, log),
		logger:     log,
	}
}

// Start runs the hub and forwards board events until ctx is cancelled.
func (g *Gateway) Start(ctx context.Context, eventBus bus.EventBus, subjects events.Subjects) *BoardEventBroadcaster {
	go g.Hub.Run(ctx)
	return RegisterBoardNotifications(ctx, eventBus, subjects, g.Hub, g.logger)
}

// SetupRoutes mounts the websocket endpoint.
func (g *Gateway) SetupRoutes(router gin.IRouter) {
	router.GET("/ws", g.Handler.HandleConnection)
}
