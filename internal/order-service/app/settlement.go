package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jcmexdev/order-payment-saga/internal/contracts"
	"github.com/jcmexdev/order-payment-saga/internal/coordinator"
	"github.com/jcmexdev/order-payment-saga/internal/coordinator/sagalog"
	"github.com/jcmexdev/order-payment-saga/internal/order-service/domain"
	"github.com/jcmexdev/order-payment-saga/internal/pkg/broker"
	"github.com/jcmexdev/order-payment-saga/internal/pkg/errs"
	"github.com/jcmexdev/order-payment-saga/internal/pkg/telemetry"
	"github.com/jcmexdev/order-payment-saga/internal/statushub"
)

const paymentCompletedMessage = "Payment processed successfully"

// errNoChange aborts a store update without writing anything.
var errNoChange = errors.New("no change")

// SettlementHandler applies PaymentSettled events to orders.
type SettlementHandler struct {
	store    OrderStore
	notifier StatusNotifier
	sagaLog  sagalog.Repository
	metrics  *telemetry.SagaMetrics
}

func NewSettlementHandler(store OrderStore, notifier StatusNotifier, sagaLog sagalog.Repository, metrics *telemetry.SagaMetrics) *SettlementHandler {
	return &SettlementHandler{store: store, notifier: notifier, sagaLog: sagaLog, metrics: metrics}
}

// HandleMessage is the broker.Handler for the payment response topic.
func (h *SettlementHandler) HandleMessage(ctx context.Context, msg broker.Message) error {
	evt, err := contracts.DecodePaymentSettled(msg)
	if err != nil {
		return broker.Permanent(err)
	}
	_, err = h.Handle(ctx, evt)
	return err
}

// Handle applies evt to its order. DUPLICATE is not an error. NOT_FOUND and
// REJECTED are returned as permanent errors so the message is dead-lettered
// instead of retried.
func (h *SettlementHandler) Handle(ctx context.Context, evt contracts.PaymentSettled) (coordinator.OrderDecision, error) {
	var decision coordinator.OrderDecision
	o, err := h.store.Update(ctx, evt.OrderID, func(o *domain.Order) error {
		decision = coordinator.DecideOrder(o.Status(), evt)
		switch decision.Outcome {
		case coordinator.OutcomeApplied:
			return decision.Apply(o)
		case coordinator.OutcomeDuplicate:
			return errNoChange
		}
		return errs.InvalidState("order %s: %s", o.ID(), decision.Reason)
	})

	switch {
	case errors.Is(err, errNoChange):
		slog.InfoContext(ctx, "duplicate settlement ignored",
			"order_id", evt.OrderID, "status", evt.Status, "order_status", decision.Next)
		h.metrics.Settlement(ctx, string(evt.Status), string(coordinator.OutcomeDuplicate))
		return decision, nil
	case errors.Is(err, errs.ErrNotFound):
		slog.ErrorContext(ctx, "settlement for unknown order", "order_id", evt.OrderID, "status", evt.Status)
		h.metrics.Settlement(ctx, string(evt.Status), string(coordinator.OutcomeNotFound))
		return coordinator.OrderDecision{Outcome: coordinator.OutcomeNotFound}, broker.Permanent(err)
	case decision.Outcome == coordinator.OutcomeRejected:
		slog.ErrorContext(ctx, "settlement rejected", "order_id", evt.OrderID, "status", evt.Status, "reason", decision.Reason)
		h.metrics.Settlement(ctx, string(evt.Status), string(coordinator.OutcomeRejected))
		return decision, broker.Permanent(err)
	case err != nil:
		return decision, fmt.Errorf("apply settlement to order %s: %w", evt.OrderID, err)
	}

	h.metrics.Settlement(ctx, string(evt.Status), string(coordinator.OutcomeApplied))
	h.notify(ctx, o, evt, decision)

	if decision.Action == coordinator.OrderActionPay {
		sagalog.Record(ctx, h.sagaLog, o.ID().String(), sagalog.StatusCompleted, coordinator.StepOrderPaid, evt)
	} else {
		sagalog.Record(ctx, h.sagaLog, o.ID().String(), sagalog.StatusFailed, coordinator.StepOrderCancelled, evt, decision.Reason)
	}

	slog.InfoContext(ctx, "settlement applied",
		"order_id", o.ID(),
		"status", evt.Status,
		"order_status", o.Status(),
		"transaction_id", evt.TransactionID,
	)
	return decision, nil
}

func (h *SettlementHandler) notify(ctx context.Context, o *domain.Order, evt contracts.PaymentSettled, d coordinator.OrderDecision) {
	if h.notifier == nil {
		return
	}
	amount := evt.Price
	e := statushub.Event{
		CustomerID:    o.CustomerID(),
		Amount:        &amount,
		TransactionID: evt.TransactionID,
	}
	if d.Action == coordinator.OrderActionPay {
		e.Status = statushub.StatusCompleted
		e.Message = paymentCompletedMessage
	} else {
		e.Status = statushub.StatusFailed
		e.Message = d.Reason
	}
	h.notifier.Publish(ctx, o.ID(), e)
}
