package domain_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/order-payment-saga/internal/payment-service/domain"
	"github.com/jcmexdev/order-payment-saga/internal/pkg/errs"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newPayment(t *testing.T, price string) *domain.Payment {
	t.Helper()
	p, err := domain.NewPayment(uuid.New(), uuid.New(), dec(price), time.Now())
	require.NoError(t, err)
	return p
}

func TestNewPaymentIsPending(t *testing.T) {
	p := newPayment(t, "40.00")
	assert.Equal(t, domain.PaymentPending, p.Status())
	assert.False(t, p.Status().Terminal())
}

func TestNewPaymentRejectsNegativePrice(t *testing.T) {
	_, err := domain.NewPayment(uuid.New(), uuid.New(), dec("-1"), time.Now())
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestProcessPaymentCompletes(t *testing.T) {
	p := newPayment(t, "40.00")
	require.NoError(t, p.ProcessPayment(dec("100.00")))
	assert.Equal(t, domain.PaymentCompleted, p.Status())
}

func TestProcessPaymentInsufficientFundsStaysPending(t *testing.T) {
	p := newPayment(t, "150.00")

	err := p.ProcessPayment(dec("100.00"))

	assert.ErrorIs(t, err, errs.ErrInsufficientFunds)
	assert.EqualError(t, err, "Insufficient credit. Available: 100.00, Required: 150.00")
	assert.Equal(t, domain.PaymentPending, p.Status())
}

func TestTerminalPaymentsRejectReentry(t *testing.T) {
	completed := newPayment(t, "1")
	require.NoError(t, completed.ProcessPayment(dec("1")))

	failed := newPayment(t, "1")
	require.NoError(t, failed.Fail("no money"))

	for name, p := range map[string]*domain.Payment{"completed": completed, "failed": failed} {
		t.Run(name, func(t *testing.T) {
			before := p.Snapshot()
			assert.ErrorIs(t, p.ProcessPayment(dec("100")), errs.ErrInvalidState)
			assert.ErrorIs(t, p.Fail("again"), errs.ErrInvalidState)
			assert.Equal(t, before, p.Snapshot())
		})
	}
}

func TestPaymentSnapshotRoundTrip(t *testing.T) {
	p := newPayment(t, "3.50")
	require.NoError(t, p.Fail("x"))
	assert.Equal(t, p.Snapshot(), domain.RestorePayment(p.Snapshot()).Snapshot())
}
