package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewResponseRoundTrip(t *testing.T) {
	msg, err := NewResponse("req-1", ActionBoardGet, map[string]string{"id": "b1"})
	require.NoError(t, err)

	data, err := json.Marshal(msg)
	require.NoError(t, err)

	var decoded Message
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "req-1", decoded.ID)
	assert.Equal(t, MessageTypeResponse, decoded.Type)

	var payload map[string]string
	require.NoError(t, decoded.ParsePayload(&payload))
	assert.Equal(t, "b1", payload["id"])
}

func TestNewErrorPayload(t *testing.T) {
	msg, err := NewError("req-2", ActionTaskAdd, "COLUMN_NOT_FOUND", "column not found: x", map[string]string{"columnId": "x"})
	require.NoError(t, err)
	assert.Equal(t, MessageTypeError, msg.Type)

	var payload ErrorPayload
	require.NoError(t, msg.ParsePayload(&payload))
	assert.Equal(t, "COLUMN_NOT_FOUND", payload.Code)
	assert.Equal(t, "x", payload.Details["columnId"])
}

func TestNotificationHasNoID(t *testing.T) {
	msg, err := NewNotification(ActionBoardUpdated, nil)
	require.NoError(t, err)
	assert.Empty(t, msg.ID)
	assert.Empty(t, msg.Payload)

	var v struct{ A int }
	require.NoError(t, msg.ParsePayload(&v))
}

func TestDispatcher_UnknownAction(t *testing.T) {
	d := NewDispatcher()
	req, err := NewRequest("1", "nope", nil)
	require.NoError(t, err)

	resp, err := d.Dispatch(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, MessageTypeError, resp.Type)

	var payload ErrorPayload
	require.NoError(t, resp.ParsePayload(&payload))
	assert.Equal(t, ErrorCodeUnknownAction, payload.Code)
}

func TestRoute_DecodesRequestAndWrapsResult(t *testing.T) {
	d := NewDispatcher()
	Route(d, ActionBoardSubscribe, func(ctx context.Context, req *SubscribeRequest) (any, error) {
		return map[string]string{"echo": req.BoardID}, nil
	})

	req, err := NewRequest("7", ActionBoardSubscribe, SubscribeRequest{BoardID: "b1"})
	require.NoError(t, err)
	resp, err := d.Dispatch(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, MessageTypeResponse, resp.Type)
	assert.Equal(t, "7", resp.ID)

	var out map[string]string
	require.NoError(t, resp.ParsePayload(&out))
	assert.Equal(t, "b1", out["echo"])
}

func TestRoute_Errors(t *testing.T) {
	boom := errors.New("store unavailable")
	d := NewDispatcher()
	Route(d, ActionBoardGet, func(ctx context.Context, req *SubscribeRequest) (any, error) {
		return nil, boom
	})

	bad := &Message{ID: "1", Type: MessageTypeRequest, Action: ActionBoardGet, Payload: json.RawMessage(`[1]`)}
	resp, err := d.Dispatch(context.Background(), bad)
	require.NoError(t, err)
	var payload ErrorPayload
	require.NoError(t, resp.ParsePayload(&payload))
	assert.Equal(t, ErrorCodeBadRequest, payload.Code)

	req, err := NewRequest("2", ActionBoardGet, nil)
	require.NoError(t, err)
	resp, err = d.Dispatch(context.Background(), req)
	require.NoError(t, err)
	require.NoError(t, resp.ParsePayload(&payload))
	assert.Equal(t, ErrorCodeInternalError, payload.Code)

	var seen error
	d.SetErrorMapper(func(_ context.Context, action string, err error) ErrorPayload {
		seen = err
		return ErrorPayload{Code: "BOARD_NOT_FOUND", Message: action}
	})
	resp, err = d.Dispatch(context.Background(), req)
	require.NoError(t, err)
	require.NoError(t, resp.ParsePayload(&payload))
	assert.Equal(t, "BOARD_NOT_FOUND", payload.Code)
	assert.Equal(t, ActionBoardGet, payload.Message)
	assert.ErrorIs(t, seen, boom)
}
