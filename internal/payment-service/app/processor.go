package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jcmexdev/order-payment-saga/internal/contracts"
	"github.com/jcmexdev/order-payment-saga/internal/coordinator"
	"github.com/jcmexdev/order-payment-saga/internal/coordinator/sagalog"
	"github.com/jcmexdev/order-payment-saga/internal/payment-service/domain"
	"github.com/jcmexdev/order-payment-saga/internal/pkg/broker"
	"github.com/jcmexdev/order-payment-saga/internal/pkg/errs"
	"github.com/jcmexdev/order-payment-saga/internal/pkg/telemetry"
)

type Deps struct {
	Store     Store
	Publisher broker.Publisher
	// SagaLog is optional.
	SagaLog sagalog.Repository
	Metrics *telemetry.SagaMetrics
	Now     func() time.Time
}

// Processor is the payment side of the saga: it turns every PaymentRequested
// into exactly one committed payment and publishes its PaymentSettled.
type Processor struct {
	store     Store
	publisher broker.Publisher
	sagaLog   sagalog.Repository
	metrics   *telemetry.SagaMetrics
	now       func() time.Time
}

func NewProcessor(d Deps) *Processor {
	p := &Processor{
		store:     d.Store,
		publisher: d.Publisher,
		sagaLog:   d.SagaLog,
		metrics:   d.Metrics,
		now:       d.Now,
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// HandleMessage is the broker.Handler for the payment request topic.
func (p *Processor) HandleMessage(ctx context.Context, msg broker.Message) error {
	req, err := contracts.DecodePaymentRequested(msg)
	if err != nil {
		return broker.Permanent(err)
	}
	_, err = p.Handle(ctx, req)
	return err
}

// Handle settles req and publishes the result. Any failure other than a
// cancelled ctx ends in a FAILED payment, which is published only once it is
// stored. A non-nil error means nothing durable was published and the request
// should be redelivered.
func (p *Processor) Handle(ctx context.Context, req contracts.PaymentRequested) (coordinator.PaymentDecision, error) {
	var (
		decision coordinator.PaymentDecision
		payment  *domain.Payment
	)
	err := p.store.Settle(ctx, req.OrderID, req.CustomerID, func(existing *domain.Payment, credit *domain.CreditEntry) (*domain.Payment, error) {
		decision = coordinator.DecidePayment(existing, credit.TotalCredit(), req)
		switch decision.Outcome {
		case coordinator.OutcomeDuplicate:
			payment = existing
			return nil, nil
		case coordinator.OutcomeRejected:
			return nil, nil
		}

		pay := existing
		if pay == nil {
			var err error
			if pay, err = domain.NewPayment(req.OrderID, req.CustomerID, req.Price, p.now()); err != nil {
				return nil, err
			}
		}
		if err := decision.Apply(pay, credit); err != nil {
			return nil, err
		}
		payment = pay
		return pay, nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return decision, err
		}
		slog.ErrorContext(ctx, "payment processing failed, settling as FAILED",
			"order_id", req.OrderID, "customer_id", req.CustomerID, "error", err)
		if payment, err = p.failPayment(ctx, req, err); err != nil {
			return decision, err
		}
		decision = coordinator.PaymentDecision{
			Outcome:        coordinator.OutcomeApplied,
			Status:         payment.Status(),
			FailureMessage: payment.FailureMessage(),
		}
	}

	if decision.Outcome == coordinator.OutcomeRejected {
		slog.WarnContext(ctx, "payment request rejected",
			"order_id", req.OrderID, "customer_id", req.CustomerID, "reason", decision.FailureMessage)
		return decision, broker.Permanent(errs.InvalidState("%s", decision.FailureMessage))
	}

	switch {
	case decision.Outcome == coordinator.OutcomeDuplicate:
		slog.InfoContext(ctx, "duplicate payment request, republishing stored outcome",
			"order_id", req.OrderID, "payment_id", payment.ID(), "status", payment.Status())
	case payment.Status() == domain.PaymentCompleted:
		p.metrics.Debit(ctx)
		slog.InfoContext(ctx, "payment completed",
			"order_id", req.OrderID, "payment_id", payment.ID(), "price", req.Price.StringFixed(2))
	default:
		slog.InfoContext(ctx, "payment failed",
			"order_id", req.OrderID, "payment_id", payment.ID(), "reason", payment.FailureMessage())
	}

	evt := contracts.PaymentSettled{
		PaymentID:      payment.ID(),
		OrderID:        req.OrderID,
		CustomerID:     req.CustomerID,
		Price:          payment.Price(),
		Status:         contracts.SettlementStatus(payment.Status()),
		FailureMessage: payment.FailureMessage(),
		TransactionID:  payment.ID().String(),
		SettledAt:      p.now().UTC(),
	}
	msg, err := evt.Message()
	if err != nil {
		return decision, broker.Permanent(err)
	}
	if err := p.publisher.Publish(ctx, msg); err != nil {
		return decision, fmt.Errorf("publish settlement for order %s: %w", req.OrderID, err)
	}

	if decision.Outcome == coordinator.OutcomeApplied {
		var reasons []string
		if evt.FailureMessage != "" {
			reasons = append(reasons, evt.FailureMessage)
		}
		sagalog.Record(ctx, p.sagaLog, req.OrderID.String(), sagalog.StatusStepDone, coordinator.StepPaymentSettled, evt, reasons...)
	}
	return decision, nil
}

// failPayment stores a FAILED payment for req. A payment that already reached
// a terminal status is returned unchanged. The error is set when the outcome
// could not be read or stored.
func (p *Processor) failPayment(ctx context.Context, req contracts.PaymentRequested, cause error) (*domain.Payment, error) {
	reason := coordinator.ProcessingErrorMessage(cause)

	existing, err := p.store.FindPaymentByOrderID(ctx, req.OrderID)
	switch {
	case err == nil && existing.CustomerID() != req.CustomerID:
		return nil, broker.Permanent(errs.InvalidState("payment of order %s belongs to customer %s", req.OrderID, existing.CustomerID()))
	case err == nil && existing.Status().Terminal():
		return existing, nil
	case err == nil:
		if err := existing.Fail(reason); err != nil {
			return nil, fmt.Errorf("fail payment for order %s: %w", req.OrderID, err)
		}
	case errors.Is(err, errs.ErrNotFound):
		existing = domain.RestorePayment(domain.PaymentSnapshot{
			ID:             uuid.New(),
			OrderID:        req.OrderID,
			CustomerID:     req.CustomerID,
			Price:          req.Price,
			Status:         domain.PaymentFailed,
			FailureMessage: reason,
			CreatedAt:      p.now().UTC(),
		})
	default:
		return nil, fmt.Errorf("find payment for order %s: %w", req.OrderID, errors.Join(cause, err))
	}

	if err := p.store.SavePayment(ctx, existing); err != nil {
		return nil, fmt.Errorf("save failed payment for order %s: %w", req.OrderID, errors.Join(cause, err))
	}
	return existing, nil
}
