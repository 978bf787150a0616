package coordinator

import (
	"strings"

	"github.com/jcmexdev/order-payment-saga/internal/contracts"
	"github.com/jcmexdev/order-payment-saga/internal/order-service/domain"
)

// OrderAction is the aggregate call a decision asks for.
type OrderAction string

const (
	OrderActionNone   OrderAction = ""
	OrderActionPay    OrderAction = "pay"
	OrderActionCancel OrderAction = "cancel"
)

type OrderDecision struct {
	Outcome Outcome
	Action  OrderAction
	Next    domain.OrderStatus
	Reason  string
}

// DecideOrder maps a settlement onto an order in status current.
func DecideOrder(current domain.OrderStatus, evt contracts.PaymentSettled) OrderDecision {
	if current.Settled() {
		return OrderDecision{Outcome: OutcomeDuplicate, Next: current}
	}
	if current != domain.StatusPending {
		return OrderDecision{
			Outcome: OutcomeRejected,
			Next:    current,
			Reason:  "order is " + string(current) + ", settlement cannot be applied",
		}
	}

	switch evt.Status {
	case contracts.SettlementCompleted:
		return OrderDecision{Outcome: OutcomeApplied, Action: OrderActionPay, Next: domain.StatusPaid}
	case contracts.SettlementFailed:
		reason := strings.TrimSpace(evt.FailureMessage)
		if reason == "" {
			reason = DefaultFailureMessage
		}
		return OrderDecision{Outcome: OutcomeApplied, Action: OrderActionCancel, Next: domain.StatusCancelled, Reason: reason}
	}
	return OrderDecision{
		Outcome: OutcomeRejected,
		Next:    current,
		Reason:  "unknown settlement status " + string(evt.Status),
	}
}

// Apply performs the decided action on o.
func (d OrderDecision) Apply(o *domain.Order) error {
	switch d.Action {
	case OrderActionPay:
		return o.Pay()
	case OrderActionCancel:
		return o.Cancel(d.Reason)
	}
	return nil
}
