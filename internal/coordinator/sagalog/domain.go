// Package sagalog defines the domain types for the Saga Log pattern.
//
// A Saga Log is a durable audit trail of every state transition a payment
// saga goes through, written by both services under the order id. It lets an
// operator see exactly where a saga is (or was) and jump to the distributed
// trace through the trace_id field.
package sagalog

import "time"

// Status represents the lifecycle state of a saga execution.
type Status string

const (
	// StatusStarted is written when the order side publishes the request.
	StatusStarted Status = "STARTED"
	// StatusStepDone is written when the payment side commits a settlement.
	StatusStepDone Status = "STEP_DONE"
	// StatusCompleted is written when the order is paid.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed is written when the order is cancelled, which is the
	// saga's compensating action.
	StatusFailed Status = "FAILED"
)

// SagaLog is a single row in the saga_logs table.
// It captures a point-in-time snapshot of a saga execution.
type SagaLog struct {
	// SagaID is the order id, so the log can be joined with business data.
	SagaID string

	Status Status

	// CurrentStep is the name of the step that was just executed.
	CurrentStep string

	// Payload is the JSON message that drove this step.
	Payload string

	// ErrorMessages is a JSON array of failure reasons, "[]" when none.
	ErrorMessages string

	// TraceID is the W3C trace ID extracted from the OpenTelemetry span that
	// was active when this log entry was written.
	TraceID string

	// SpanID is the specific span within the trace.
	SpanID string

	UpdatedAt time.Time
}
