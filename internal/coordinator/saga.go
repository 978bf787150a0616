// Package coordinator decides how each side of the payment saga reacts to
// an incoming message. The decisions are pure functions of the current
// aggregate state and the event, so both halves can be exercised by feeding
// synthetic events without a broker or a store.
//
// The order service publishes PaymentRequested and applies PaymentSettled;
// the payment service does the reverse. Delivery is at-least-once, so every
// decision has a DUPLICATE outcome that the caller treats as a no-op.
package coordinator

// Outcome is the kind of result a saga handler produced.
type Outcome string

const (
	// OutcomeApplied means the event caused a state transition.
	OutcomeApplied Outcome = "APPLIED"
	// OutcomeDuplicate means the event had already been applied.
	OutcomeDuplicate Outcome = "DUPLICATE"
	// OutcomeNotFound means the aggregate the event refers to does not exist.
	OutcomeNotFound Outcome = "NOT_FOUND"
	// OutcomeRejected means the event cannot be applied in the current state.
	OutcomeRejected Outcome = "REJECTED"
)

// Saga log step names.
const (
	StepPaymentRequested = "Payment_Requested"
	StepPaymentSettled   = "Payment_Settled"
	StepOrderPaid        = "Order_Paid"
	StepOrderCancelled   = "Order_Cancelled"
)

const (
	DefaultFailureMessage = "Payment processing failed"
	processingErrorPrefix = "Payment processing error: "
)

// ProcessingErrorMessage is the failure reason reported when the payment
// side could not finish processing for reasons other than the balance.
func ProcessingErrorMessage(err error) string {
	return processingErrorPrefix + err.Error()
}
