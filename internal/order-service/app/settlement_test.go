package app_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/order-payment-saga/internal/contracts"
	"github.com/jcmexdev/order-payment-saga/internal/coordinator"
	"github.com/jcmexdev/order-payment-saga/internal/coordinator/sagalog"
	"github.com/jcmexdev/order-payment-saga/internal/order-service/domain"
	"github.com/jcmexdev/order-payment-saga/internal/pkg/broker"
	"github.com/jcmexdev/order-payment-saga/internal/pkg/errs"
	"github.com/jcmexdev/order-payment-saga/internal/statushub"
)

func settled(o *domain.Order, status contracts.SettlementStatus, reason string) contracts.PaymentSettled {
	return contracts.PaymentSettled{
		PaymentID:      uuid.New(),
		OrderID:        o.ID(),
		CustomerID:     o.CustomerID(),
		Price:          o.Price(),
		Status:         status,
		FailureMessage: reason,
		TransactionID:  uuid.NewString(),
	}
}

func TestSettlementCompletedPaysOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.createOrder(t, "100.00")
	evt := settled(o, contracts.SettlementCompleted, "")

	d, err := f.handler.Handle(ctx, evt)
	require.NoError(t, err)
	assert.Equal(t, coordinator.OutcomeApplied, d.Outcome)

	got, err := f.svc.Get(ctx, o.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, got.Status())

	last := f.notifier.last()
	assert.Equal(t, statushub.StatusCompleted, last.Status)
	assert.Equal(t, "Payment processed successfully", last.Message)
	assert.Equal(t, evt.TransactionID, last.TransactionID)
	require.NotNil(t, last.Amount)
	assert.True(t, last.Amount.Equal(dec("100.00")))

	latest, err := f.sagaLog.GetLatest(ctx, o.ID().String())
	require.NoError(t, err)
	assert.Equal(t, sagalog.StatusCompleted, latest.Status)
	assert.Equal(t, coordinator.StepOrderPaid, latest.CurrentStep)
}

func TestSettlementFailedCancelsOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.createOrder(t, "100.00")
	reason := "Insufficient credit. Available: 50.00, Required: 100.00"

	d, err := f.handler.Handle(ctx, settled(o, contracts.SettlementFailed, reason))
	require.NoError(t, err)
	assert.Equal(t, coordinator.OutcomeApplied, d.Outcome)

	got, err := f.svc.Get(ctx, o.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, got.Status())
	assert.Equal(t, reason, got.FailureMessages())

	last := f.notifier.last()
	assert.Equal(t, statushub.StatusFailed, last.Status)
	assert.Equal(t, reason, last.Message)

	latest, err := f.sagaLog.GetLatest(ctx, o.ID().String())
	require.NoError(t, err)
	assert.Equal(t, sagalog.StatusFailed, latest.Status)
}

func TestSettlementFailedWithoutReasonUsesDefault(t *testing.T) {
	f := newFixture(t)
	o := f.createOrder(t, "1.00")

	_, err := f.handler.Handle(context.Background(), settled(o, contracts.SettlementFailed, ""))
	require.NoError(t, err)
	assert.Equal(t, "Payment processing failed", f.notifier.last().Message)
}

func TestSettlementRedeliveryIsDuplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.createOrder(t, "100.00")
	evt := settled(o, contracts.SettlementCompleted, "")

	_, err := f.handler.Handle(ctx, evt)
	require.NoError(t, err)
	events := len(f.notifier.events)

	d, err := f.handler.Handle(ctx, evt)
	require.NoError(t, err)
	assert.Equal(t, coordinator.OutcomeDuplicate, d.Outcome)

	// A late FAILED for a paid order is a duplicate too; the order stays paid.
	d, err = f.handler.Handle(ctx, settled(o, contracts.SettlementFailed, "late"))
	require.NoError(t, err)
	assert.Equal(t, coordinator.OutcomeDuplicate, d.Outcome)

	got, err := f.svc.Get(ctx, o.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, got.Status())
	assert.Empty(t, got.FailureMessages())
	assert.Len(t, f.notifier.events, events, "duplicates push no status events")
}

func TestSettlementUnknownOrderIsPermanent(t *testing.T) {
	f := newFixture(t)
	evt := contracts.PaymentSettled{OrderID: uuid.New(), Status: contracts.SettlementCompleted}

	d, err := f.handler.Handle(context.Background(), evt)
	require.Error(t, err)
	assert.Equal(t, coordinator.OutcomeNotFound, d.Outcome)
	assert.True(t, broker.IsPermanent(err))
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestSettlementRejectedForCancellingOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.createOrder(t, "5.00")
	snap := o.Snapshot()
	snap.Status = domain.StatusCancelling
	require.NoError(t, f.store.Save(ctx, domain.Restore(snap)))

	d, err := f.handler.Handle(ctx, settled(o, contracts.SettlementCompleted, ""))
	require.Error(t, err)
	assert.Equal(t, coordinator.OutcomeRejected, d.Outcome)
	assert.True(t, broker.IsPermanent(err))

	got, err := f.svc.Get(ctx, o.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelling, got.Status())
}

func TestHandleMessageRejectsMalformedPayload(t *testing.T) {
	f := newFixture(t)
	err := f.handler.HandleMessage(context.Background(), broker.Message{
		Topic: contracts.TopicPaymentResponse,
		Value: []byte("{not json"),
	})
	require.Error(t, err)
	assert.True(t, broker.IsPermanent(err))
}

func TestHandleMessageAppliesEncodedSettlement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.createOrder(t, "42.00")
	msg, err := settled(o, contracts.SettlementCompleted, "").Message()
	require.NoError(t, err)

	require.NoError(t, f.handler.HandleMessage(ctx, msg))
	got, err := f.svc.Get(ctx, o.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, got.Status())
}
