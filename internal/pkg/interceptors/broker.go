package interceptors

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/jcmexdev/order-payment-saga/internal/pkg/broker"
	"github.com/jcmexdev/order-payment-saga/internal/pkg/interceptors/constants"
)

const tracerName = "github.com/jcmexdev/order-payment-saga/internal/pkg/interceptors"

// Inject returns msg with the request id, idempotency key and trace context
// from ctx added to its headers.
func Inject(ctx context.Context, msg broker.Message) broker.Message {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	for k, v := range carrier {
		msg = msg.WithHeader(k, v)
	}
	if id := RequestID(ctx); id != "" {
		msg = msg.WithHeader(constants.HeaderRequestID, id)
	}
	if key := IdempotencyKey(ctx); key != "" {
		msg = msg.WithHeader(constants.HeaderIdempotencyKey, key)
	}
	return msg
}

// Extract is the inverse of Inject.
func Extract(ctx context.Context, msg broker.Message) context.Context {
	ctx = otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(msg.Headers))
	if id := msg.Header(constants.HeaderRequestID); id != "" {
		ctx = WithRequestID(ctx, id)
	}
	if key := msg.Header(constants.HeaderIdempotencyKey); key != "" {
		ctx = WithIdempotencyKey(ctx, key)
	}
	return ctx
}

type tracePublisher struct {
	next broker.Publisher
}

// TracePublisher decorates next so that every outgoing message is stamped
// with the caller's metadata inside a producer span.
func TracePublisher(next broker.Publisher) broker.Publisher {
	return &tracePublisher{next: next}
}

func (p *tracePublisher) Publish(ctx context.Context, msgs ...broker.Message) error {
	tracer := otel.Tracer(tracerName)
	out := make([]broker.Message, len(msgs))
	spans := make([]trace.Span, len(msgs))
	for i, m := range msgs {
		spanCtx, span := tracer.Start(ctx, "publish "+m.Topic,
			trace.WithSpanKind(trace.SpanKindProducer),
			trace.WithAttributes(
				attribute.String("messaging.destination.name", m.Topic),
				attribute.String("messaging.message.key", m.Key),
			),
		)
		out[i] = Inject(spanCtx, m)
		spans[i] = span
	}

	err := p.next.Publish(ctx, out...)
	for _, span := range spans {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
	return err
}

// TraceConsumer restores metadata from the message headers, opens a
// consumer span and logs the delivery before calling next.
func TraceConsumer(next broker.Handler) broker.Handler {
	tracer := otel.Tracer(tracerName)
	return func(ctx context.Context, msg broker.Message) error {
		ctx = Extract(ctx, msg)
		ctx, span := tracer.Start(ctx, "consume "+msg.Topic,
			trace.WithSpanKind(trace.SpanKindConsumer),
			trace.WithAttributes(
				attribute.String("messaging.destination.name", msg.Topic),
				attribute.String("messaging.message.key", msg.Key),
			),
		)
		defer span.End()

		slog.InfoContext(ctx, "message received",
			"topic", msg.Topic,
			"key", msg.Key,
			"event_type", msg.Header(broker.HeaderEventType),
			"request_id", RequestID(ctx),
			"idempotency_key", IdempotencyKey(ctx),
		)

		err := next(ctx, msg)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return err
	}
}
