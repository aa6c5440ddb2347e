package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	v1 "github.com/kandev/taskboard/pkg/api/v1"
	ws "github.com/kandev/taskboard/pkg/websocket"
)

func (c *Client) wsURL() string {
	switch {
	case strings.HasPrefix(c.baseURL, "https://"):
		return "wss://" + strings.TrimPrefix(c.baseURL, "https://") + "/ws"
	case strings.HasPrefix(c.baseURL, "http://"):
		return "ws://" + strings.TrimPrefix(c.baseURL, "http://") + "/ws"
	}
	return c.baseURL + "/ws"
}

// Watch subscribes to pushes for boardID over the websocket gateway. The
// returned channel yields canonical boards in save order and is closed
// when ctx is cancelled or the connection drops.
func (c *Client) Watch(ctx context.Context, boardID string) (<-chan v1.BoardNotification, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.wsURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to board stream: %w", err)
	}

	sub, err := ws.NewRequest(uuid.New().String(), ws.ActionBoardSubscribe, ws.SubscribeRequest{BoardID: boardID})
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := conn.WriteJSON(sub); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to subscribe to board %s: %w", boardID, err)
	}

	var ack ws.Message
	if err := conn.ReadJSON(&ack); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to read subscription reply: %w", err)
	}
	if ack.Type == ws.MessageTypeError {
		_ = conn.Close()
		var payload ws.ErrorPayload
		_ = ack.ParsePayload(&payload)
		return nil, fmt.Errorf("subscription rejected: %s", payload.Message)
	}

	out := make(chan v1.BoardNotification, 16)
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		_ = conn.Close()
	}()
	go func() {
		defer close(out)
		defer close(done)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					c.logger.Debug("board stream error", zap.String("board_id", boardID), zap.Error(err))
				}
				return
			}

			var msg ws.Message
			if err := json.Unmarshal(data, &msg); err != nil || msg.Type != ws.MessageTypeNotification {
				continue
			}
			var n v1.BoardNotification
			if err := msg.ParsePayload(&n); err != nil {
				c.logger.Debug("failed to decode board push", zap.Error(err))
				continue
			}
			n.Deleted = msg.Action == ws.ActionBoardDeleted
			if n.BoardID != boardID {
				continue
			}

			select {
			case out <- n:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
