package websocket

import (
	"context"
	"errors"
)

// HandlerFunc answers one request message.
type HandlerFunc func(ctx context.Context, msg *Message) (*Message, error)

// PayloadError is a request payload that does not decode into the request
// type of its action.
type PayloadError struct {
	Action string
	Err    error
}

func (e *PayloadError) Error() string {
	return "invalid " + e.Action + " payload: " + e.Err.Error()
}

func (e *PayloadError) Unwrap() error { return e.Err }

// ErrorMapper turns the failure of a routed action into an error reply.
type ErrorMapper func(ctx context.Context, action string, err error) ErrorPayload

// Dispatcher routes requests by action. Registration happens at startup,
// before any Dispatch call.
type Dispatcher struct {
	handlers map[string]HandlerFunc
	mapError ErrorMapper
}

// NewDispatcher creates a dispatcher that reports failures as BAD_REQUEST
// for undecodable payloads and INTERNAL_ERROR otherwise, until
// SetErrorMapper installs the board error taxonomy.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		mapError: protocolError,
	}
}

func protocolError(_ context.Context, _ string, err error) ErrorPayload {
	var payloadErr *PayloadError
	if errors.As(err, &payloadErr) {
		return ErrorPayload{Code: ErrorCodeBadRequest, Message: err.Error()}
	}
	return ErrorPayload{Code: ErrorCodeInternalError, Message: err.Error()}
}

// SetErrorMapper replaces how failures of routed actions are reported.
func (d *Dispatcher) SetErrorMapper(fn ErrorMapper) {
	d.mapError = fn
}

// RegisterFunc sets the handler for action.
func (d *Dispatcher) RegisterFunc(action string, fn HandlerFunc) {
	d.handlers[action] = fn
}

// Route registers fn for action. The payload is decoded into a new Req (an
// empty payload leaves it zero) and whatever fn returns becomes the
// response payload. Errors go through the dispatcher's ErrorMapper.
func Route[Req any](d *Dispatcher, action string, fn func(ctx context.Context, req *Req) (any, error)) {
	d.handlers[action] = func(ctx context.Context, msg *Message) (*Message, error) {
		req := new(Req)
		if err := msg.ParsePayload(req); err != nil {
			return d.fail(ctx, msg, &PayloadError{Action: msg.Action, Err: err})
		}
		res, err := fn(ctx, req)
		if err != nil {
			return d.fail(ctx, msg, err)
		}
		return NewResponse(msg.ID, msg.Action, res)
	}
}

func (d *Dispatcher) fail(ctx context.Context, msg *Message, err error) (*Message, error) {
	p := d.mapError(ctx, msg.Action, err)
	return NewError(msg.ID, msg.Action, p.Code, p.Message, p.Details)
}

// Dispatch routes msg to its handler. Unknown actions get an error reply.
func (d *Dispatcher) Dispatch(ctx context.Context, msg *Message) (*Message, error) {
	handler, ok := d.handlers[msg.Action]
	if !ok {
		return NewError(msg.ID, msg.Action, ErrorCodeUnknownAction, "Unknown action: "+msg.Action, nil)
	}
	return handler(ctx, msg)
}
