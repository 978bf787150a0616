package coordinator

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jcmexdev/order-payment-saga/internal/contracts"
	"github.com/jcmexdev/order-payment-saga/internal/payment-service/domain"
)

type PaymentDecision struct {
	Outcome        Outcome
	Status         domain.PaymentStatus
	FailureMessage string
}

// DecidePayment settles req against the order's existing payment, if any,
// and the customer's available credit. A terminal payment is never charged
// again; its stored result is reported instead. A request whose customer
// differs from the existing payment's is REJECTED and changes nothing.
func DecidePayment(existing *domain.Payment, available decimal.Decimal, req contracts.PaymentRequested) PaymentDecision {
	if existing != nil && existing.CustomerID() != req.CustomerID {
		return PaymentDecision{
			Outcome:        OutcomeRejected,
			Status:         existing.Status(),
			FailureMessage: fmt.Sprintf("payment of order %s belongs to customer %s", req.OrderID, existing.CustomerID()),
		}
	}
	if existing != nil && existing.Status().Terminal() {
		return PaymentDecision{
			Outcome:        OutcomeDuplicate,
			Status:         existing.Status(),
			FailureMessage: existing.FailureMessage(),
		}
	}

	if req.Price.IsNegative() {
		return PaymentDecision{
			Outcome:        OutcomeApplied,
			Status:         domain.PaymentFailed,
			FailureMessage: ProcessingErrorMessage(errors.New("price must not be negative")),
		}
	}

	if available.LessThan(req.Price) {
		return PaymentDecision{
			Outcome:        OutcomeApplied,
			Status:         domain.PaymentFailed,
			FailureMessage: domain.InsufficientCreditMessage(available, req.Price),
		}
	}
	return PaymentDecision{Outcome: OutcomeApplied, Status: domain.PaymentCompleted}
}

// Apply runs the decision on payment and credit. On error the caller must
// discard both.
func (d PaymentDecision) Apply(payment *domain.Payment, credit *domain.CreditEntry) error {
	if d.Status == domain.PaymentFailed {
		return payment.Fail(d.FailureMessage)
	}
	ok, err := credit.HasSufficientCredit(payment.Price())
	if err != nil {
		return err
	}
	if !ok {
		return payment.Fail(domain.InsufficientCreditMessage(credit.TotalCredit(), payment.Price()))
	}
	if err := payment.ProcessPayment(credit.TotalCredit()); err != nil {
		return err
	}
	return credit.SubtractCredit(payment.Price())
}
