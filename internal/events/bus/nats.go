package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/kandev/taskboard/internal/common/config"
	"github.com/kandev/taskboard/internal/common/logger"
	"github.com/kandev/taskboard/internal/common/tracing"
)

// EventTypeHeader lets subscribers filter board events without decoding
// the payload.
const EventTypeHeader = "Taskboard-Event-Type"

const (
	natsReconnectWait = 2 * time.Second
	natsReconnectBuf  = 5 * 1024 * 1024
)

// NATSEventBus is an EventBus over a NATS connection, used when several
// server replicas push the same board changes to their viewers. The trace
// context of the publishing request travels in the message headers, so a
// websocket push on another replica joins the trace of the mutation.
type NATSEventBus struct {
	conn       *nats.Conn
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
	logger     *logger.Logger
}

// NewNATSEventBus connects to cfg.NatsURL.
func NewNATSEventBus(cfg config.EventsConfig, log *logger.Logger) (*NATSEventBus, error) {
	log = log.WithFields(zap.String("component", "nats-bus"), zap.String("client_id", cfg.ClientID))

	conn, err := nats.Connect(cfg.NatsURL,
		nats.Name(cfg.ClientID),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(natsReconnectWait),
		nats.ReconnectBufSize(natsReconnectBuf),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("NATS disconnected, board pushes to other replicas are paused", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			fields := []zap.Field{zap.Error(err)}
			if sub != nil {
				fields = append(fields, zap.String("subject", sub.Subject))
			}
			log.Error("NATS async error", fields...)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NatsURL, err)
	}
	log.Info("Connected to NATS", zap.String("url", conn.ConnectedUrl()))

	return &NATSEventBus{
		conn:       conn,
		tracer:     tracing.Tracer("event-bus"),
		propagator: propagation.TraceContext{},
		logger:     log,
	}, nil
}

// Publish sends event as JSON with the event type and the caller's trace
// context in the headers.
func (b *NATSEventBus) Publish(ctx context.Context, subject string, event *Event) error {
	ctx, span := b.tracer.Start(ctx, "publish "+event.Type,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.system", "nats"),
			attribute.String("messaging.destination.name", subject),
			attribute.String("messaging.message.id", event.ID),
		))
	defer span.End()

	data, err := json.Marshal(event)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "marshal")
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := nats.NewMsg(subject)
	msg.Data = data
	msg.Header.Set(EventTypeHeader, event.Type)
	b.propagator.Inject(ctx, propagation.HeaderCarrier(msg.Header))

	if err := b.conn.PublishMsg(msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "publish")
		return fmt.Errorf("failed to publish %s: %w", subject, err)
	}
	b.logger.Debug("Published event",
		zap.String("subject", subject),
		zap.String("event_id", event.ID),
		zap.String("event_type", event.Type))
	return nil
}

// Subscribe registers handler for subject. Each handler call runs in a
// consumer span continuing the publisher's trace.
func (b *NATSEventBus) Subscribe(subject string, handler EventHandler) (Subscription, error) {
	sub, err := b.conn.Subscribe(subject, func(msg *nats.Msg) {
		b.deliver(msg, handler)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	return &natsSubscription{sub: sub}, nil
}

func (b *NATSEventBus) deliver(msg *nats.Msg, handler EventHandler) {
	ctx := context.Background()
	if msg.Header != nil {
		ctx = b.propagator.Extract(ctx, propagation.HeaderCarrier(msg.Header))
	}
	ctx, span := b.tracer.Start(ctx, "consume "+msg.Header.Get(EventTypeHeader),
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "nats"),
			attribute.String("messaging.destination.name", msg.Subject),
		))
	defer span.End()

	var event Event
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode")
		b.logger.Error("Dropping undecodable event", zap.String("subject", msg.Subject), zap.Error(err))
		return
	}
	if err := handler(ctx, &event); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "handler")
		b.logger.Error("Event handler failed",
			zap.String("subject", msg.Subject),
			zap.String("event_type", event.Type),
			zap.Error(err))
	}
}

// Close drains in-flight deliveries, falling back to a hard close.
func (b *NATSEventBus) Close() {
	if err := b.conn.Drain(); err != nil {
		b.logger.Warn("Error draining NATS connection", zap.Error(err))
		b.conn.Close()
	}
}

// IsConnected reports the NATS connection state.
func (b *NATSEventBus) IsConnected() bool {
	return b.conn.IsConnected()
}

type natsSubscription struct {
	sub *nats.Subscription
}

func (s *natsSubscription) Unsubscribe() error {
	return s.sub.Unsubscribe()
}

func (s *natsSubscription) IsValid() bool {
	return s.sub.IsValid()
}
