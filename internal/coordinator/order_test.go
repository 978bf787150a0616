package coordinator_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/order-payment-saga/internal/contracts"
	"github.com/jcmexdev/order-payment-saga/internal/coordinator"
	orderdomain "github.com/jcmexdev/order-payment-saga/internal/order-service/domain"
	"github.com/jcmexdev/order-payment-saga/internal/pkg/errs"
)

func settled(status contracts.SettlementStatus, reason string) contracts.PaymentSettled {
	return contracts.PaymentSettled{
		PaymentID:      uuid.New(),
		OrderID:        uuid.New(),
		CustomerID:     uuid.New(),
		Price:          decimal.RequireFromString("40"),
		Status:         status,
		FailureMessage: reason,
	}
}

func pendingOrder(t *testing.T) *orderdomain.Order {
	t.Helper()
	o, err := orderdomain.NewOrder(uuid.New(), uuid.New(), []orderdomain.OrderItem{
		{ProductID: uuid.New(), Price: decimal.RequireFromString("40"), Quantity: 1},
	}, time.Now())
	require.NoError(t, err)
	return o
}

func TestDecideOrder(t *testing.T) {
	tests := []struct {
		name    string
		current orderdomain.OrderStatus
		evt     contracts.PaymentSettled
		want    coordinator.OrderDecision
	}{
		{
			name:    "completed pays pending order",
			current: orderdomain.StatusPending,
			evt:     settled(contracts.SettlementCompleted, ""),
			want:    coordinator.OrderDecision{Outcome: coordinator.OutcomeApplied, Action: coordinator.OrderActionPay, Next: orderdomain.StatusPaid},
		},
		{
			name:    "failed cancels with reason",
			current: orderdomain.StatusPending,
			evt:     settled(contracts.SettlementFailed, "Insufficient credit. Available: 100.00, Required: 150.00"),
			want: coordinator.OrderDecision{
				Outcome: coordinator.OutcomeApplied,
				Action:  coordinator.OrderActionCancel,
				Next:    orderdomain.StatusCancelled,
				Reason:  "Insufficient credit. Available: 100.00, Required: 150.00",
			},
		},
		{
			name:    "failed without reason uses default",
			current: orderdomain.StatusPending,
			evt:     settled(contracts.SettlementFailed, " "),
			want: coordinator.OrderDecision{
				Outcome: coordinator.OutcomeApplied,
				Action:  coordinator.OrderActionCancel,
				Next:    orderdomain.StatusCancelled,
				Reason:  coordinator.DefaultFailureMessage,
			},
		},
		{
			name:    "redelivery on paid order is a duplicate",
			current: orderdomain.StatusPaid,
			evt:     settled(contracts.SettlementCompleted, ""),
			want:    coordinator.OrderDecision{Outcome: coordinator.OutcomeDuplicate, Next: orderdomain.StatusPaid},
		},
		{
			name:    "late failure on paid order is a duplicate",
			current: orderdomain.StatusPaid,
			evt:     settled(contracts.SettlementFailed, "x"),
			want:    coordinator.OrderDecision{Outcome: coordinator.OutcomeDuplicate, Next: orderdomain.StatusPaid},
		},
		{
			name:    "redelivery on cancelled order is a duplicate",
			current: orderdomain.StatusCancelled,
			evt:     settled(contracts.SettlementFailed, "x"),
			want:    coordinator.OrderDecision{Outcome: coordinator.OutcomeDuplicate, Next: orderdomain.StatusCancelled},
		},
		{
			name:    "approved order is a duplicate",
			current: orderdomain.StatusApproved,
			evt:     settled(contracts.SettlementCompleted, ""),
			want:    coordinator.OrderDecision{Outcome: coordinator.OutcomeDuplicate, Next: orderdomain.StatusApproved},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, coordinator.DecideOrder(tt.current, tt.evt))
		})
	}
}

func TestDecideOrderRejects(t *testing.T) {
	d := coordinator.DecideOrder(orderdomain.StatusCancelling, settled(contracts.SettlementCompleted, ""))
	assert.Equal(t, coordinator.OutcomeRejected, d.Outcome)
	assert.Equal(t, coordinator.OrderActionNone, d.Action)

	d = coordinator.DecideOrder(orderdomain.StatusPending, settled("PROCESSING", ""))
	assert.Equal(t, coordinator.OutcomeRejected, d.Outcome)
}

func TestOrderDecisionApply(t *testing.T) {
	o := pendingOrder(t)
	evt := settled(contracts.SettlementCompleted, "")

	first := coordinator.DecideOrder(o.Status(), evt)
	require.NoError(t, first.Apply(o))
	assert.Equal(t, orderdomain.StatusPaid, o.Status())

	second := coordinator.DecideOrder(o.Status(), evt)
	assert.Equal(t, coordinator.OutcomeDuplicate, second.Outcome)
	require.NoError(t, second.Apply(o))
	assert.Equal(t, orderdomain.StatusPaid, o.Status())
}

func TestOrderDecisionApplyCancel(t *testing.T) {
	o := pendingOrder(t)
	d := coordinator.DecideOrder(o.Status(), settled(contracts.SettlementFailed, "no funds"))

	require.NoError(t, d.Apply(o))
	assert.Equal(t, orderdomain.StatusCancelled, o.Status())
	assert.Equal(t, "no funds", o.FailureMessages())

	// Applying a stale decision directly still hits the transition table.
	assert.ErrorIs(t, d.Apply(o), errs.ErrInvalidState)
}
