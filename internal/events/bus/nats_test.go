package bus

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/kandev/taskboard/internal/common/logger"
)

func newDetachedNATSBus() *NATSEventBus {
	return &NATSEventBus{
		tracer:     noop.NewTracerProvider().Tracer("test"),
		propagator: propagation.TraceContext{},
		logger:     logger.NewNop(),
	}
}

func TestNATSEventBus_DeliverContinuesTrace(t *testing.T) {
	b := newDetachedNATSBus()

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	parent := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	}))

	event := mustEvent(t, "board.updated", map[string]string{"id": "b1"})
	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	msg := nats.NewMsg("board.updated.b1")
	msg.Data = data
	msg.Header.Set(EventTypeHeader, event.Type)
	b.propagator.Inject(parent, propagation.HeaderCarrier(msg.Header))

	var gotTrace trace.TraceID
	var gotType string
	b.deliver(msg, func(ctx context.Context, e *Event) error {
		gotTrace = trace.SpanContextFromContext(ctx).TraceID()
		gotType = e.Type
		return nil
	})

	if gotTrace != traceID {
		t.Errorf("trace id = %s, want %s", gotTrace, traceID)
	}
	if gotType != "board.updated" {
		t.Errorf("event type = %q", gotType)
	}
}

func TestNATSEventBus_DeliverSkipsUndecodable(t *testing.T) {
	b := newDetachedNATSBus()
	msg := nats.NewMsg("board.updated.b1")
	msg.Data = []byte("{broken")

	called := false
	b.deliver(msg, func(context.Context, *Event) error {
		called = true
		return errors.New("unreachable")
	})
	if called {
		t.Error("handler called for an undecodable message")
	}
}
