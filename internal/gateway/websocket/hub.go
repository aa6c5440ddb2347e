// Package websocket is the websocket gateway: it serves board operations
// over a persistent connection and pushes canonical boards to the clients
// subscribed to them.
package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/kandev/taskboard/internal/common/logger"
	ws "github.com/kandev/taskboard/pkg/websocket"
)

// Hub tracks connected clients and their board subscriptions. Every
// change to either happens under mu, so a client is subscribed only while
// it is registered and its send queue is open.
type Hub struct {
	clients          map[*Client]bool
	boardSubscribers map[string]map[*Client]bool
	// stopped is set once Run has closed every client.
	stopped bool

	dispatcher *ws.Dispatcher

	mu     sync.RWMutex
	logger *logger.Logger
}

// NewHub creates a hub that routes requests through dispatcher.
func NewHub(dispatcher *ws.Dispatcher, log *logger.Logger) *Hub {
	return &Hub{
		clients:          make(map[*Client]bool),
		boardSubscribers: make(map[string]map[*Client]bool),
		dispatcher:       dispatcher,
		logger:           log.WithFields(zap.String("component", "ws_hub")),
	}
}

// Run blocks until ctx is cancelled, then closes every client and refuses
// new ones.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("WebSocket hub started")
	<-ctx.Done()
	h.closeAllClients()
	h.logger.Info("WebSocket hub stopped")
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.stopped = true
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
	h.boardSubscribers = make(map[string]map[*Client]bool)
}

// Register adds a client. It reports false once the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return false
	}
	h.clients[client] = true
	h.logger.Debug("Client registered", zap.String("client_id", client.ID))
	return true
}

// Unregister removes a client, its subscriptions and closes its send
// queue. Unknown or already removed clients are ignored.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.clients[client] {
		return
	}
	delete(h.clients, client)
	close(client.send)

	for boardID := range client.subscriptions {
		if clients, ok := h.boardSubscribers[boardID]; ok {
			delete(clients, client)
			if len(clients) == 0 {
				delete(h.boardSubscribers, boardID)
			}
		}
	}
	h.logger.Debug("Client unregistered", zap.String("client_id", client.ID))
}

// BroadcastToBoard sends msg to every client subscribed to boardID. A
// client whose queue is full misses the message.
func (h *Hub) BroadcastToBoard(boardID string, msg *ws.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to marshal message", zap.Error(err))
		return
	}

	// Sends happen under the read lock so Unregister cannot close a
	// queue mid-send.
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.boardSubscribers[boardID] {
		select {
		case client.send <- data:
		default:
			h.logger.Warn("Client send buffer full, dropping board push",
				zap.String("client_id", client.ID),
				zap.String("board_id", boardID))
		}
	}
}

// SubscribeToBoard routes pushes for boardID to client. A client that is
// not registered, or was already removed, is ignored.
func (h *Hub) SubscribeToBoard(client *Client, boardID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.clients[client] {
		return
	}
	if _, ok := h.boardSubscribers[boardID]; !ok {
		h.boardSubscribers[boardID] = make(map[*Client]bool)
	}
	h.boardSubscribers[boardID][client] = true
	client.subscriptions[boardID] = true

	h.logger.Debug("Client subscribed to board",
		zap.String("client_id", client.ID),
		zap.String("board_id", boardID))
}

// UnsubscribeFromBoard stops pushes for boardID to client.
func (h *Hub) UnsubscribeFromBoard(client *Client, boardID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(client.subscriptions, boardID)
	if clients, ok := h.boardSubscribers[boardID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.boardSubscribers, boardID)
		}
	}
}

// SubscriberCount returns the number of clients watching boardID.
func (h *Hub) SubscriberCount(boardID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.boardSubscribers[boardID])
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dispatcher returns the request dispatcher.
func (h *Hub) Dispatcher() *ws.Dispatcher {
	return h.dispatcher
}
