package sagalog

import (
	"context"
	"encoding/json"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// SpanIDs returns the hex trace and span ids of the span active in ctx, or
// two empty strings. Consumers run inside the span TraceConsumer opened from
// the message headers, so both services log the same trace id for a saga.
func SpanIDs(ctx context.Context) (traceID, spanID string) {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return "", ""
	}
	return sc.TraceID().String(), sc.SpanID().String()
}

// NewEntry stamps an entry with the span in ctx and the current time.
func NewEntry(ctx context.Context, sagaID string, status Status, step, payload string, reasons []string) *SagaLog {
	traceID, spanID := SpanIDs(ctx)
	return &SagaLog{
		SagaID:        sagaID,
		Status:        status,
		CurrentStep:   step,
		Payload:       payload,
		ErrorMessages: encodeReasons(reasons),
		TraceID:       traceID,
		SpanID:        spanID,
		UpdatedAt:     time.Now().UTC(),
	}
}

func encodeReasons(reasons []string) string {
	if len(reasons) == 0 {
		return "[]"
	}
	b, err := json.Marshal(reasons)
	if err != nil {
		return "[]"
	}
	return string(b)
}
