package websocket

import (
	"context"

	"go.uber.org/zap"

	"github.com/kandev/taskboard/internal/common/logger"
	"github.com/kandev/taskboard/internal/events"
	"github.com/kandev/taskboard/internal/events/bus"
	ws "github.com/kandev/taskboard/pkg/websocket"
)

// BoardEventBroadcaster forwards board events from the bus to the clients
// subscribed to each board. Events for one board arrive in publish order,
// so subscribers see canonical boards in the order they were saved.
type BoardEventBroadcaster struct {
	hub          *Hub
	subscription bus.Subscription
	logger       *logger.Logger
}

// RegisterBoardNotifications subscribes hub to every board event on
// eventBus. The subscription ends when ctx is cancelled.
func RegisterBoardNotifications(ctx context.Context, eventBus bus.EventBus, subjects events.Subjects, hub *Hub, log *logger.Logger) *BoardEventBroadcaster {
	b := &BoardEventBroadcaster{
		hub:    hub,
		logger: log.WithFields(zap.String("component", "ws-board-broadcaster")),
	}
	if eventBus == nil {
		return b
	}

	sub, err := eventBus.Subscribe(subjects.AllBoards(), b.handle)
	if err != nil {
		b.logger.Error("failed to subscribe to board events", zap.Error(err))
		return b
	}
	b.subscription = sub

	go func() {
		<-ctx.Done()
		b.Close()
	}()
	return b
}

func (b *BoardEventBroadcaster) handle(_ context.Context, event *bus.Event) error {
	var action string
	switch event.Type {
	case events.BoardUpdated:
		action = ws.ActionBoardUpdated
	case events.BoardDeleted:
		action = ws.ActionBoardDeleted
	default:
		// Nobody can be subscribed to a board that was just created.
		return nil
	}

	var payload events.BoardChanged
	if err := event.Decode(&payload); err != nil {
		b.logger.Error("failed to decode board event", zap.String("event_id", event.ID), zap.Error(err))
		return nil
	}

	msg, err := ws.NewNotification(action, payload)
	if err != nil {
		b.logger.Error("failed to build websocket notification", zap.String("action", action), zap.Error(err))
		return nil
	}
	b.hub.BroadcastToBoard(payload.BoardID, msg)
	return nil
}

// Close ends the bus subscription.
func (b *BoardEventBroadcaster) Close() {
	if b.subscription != nil && b.subscription.IsValid() {
		_ = b.subscription.Unsubscribe()
	}
}
