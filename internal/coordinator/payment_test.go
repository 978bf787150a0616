package coordinator_test

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/order-payment-saga/internal/contracts"
	"github.com/jcmexdev/order-payment-saga/internal/coordinator"
	paydomain "github.com/jcmexdev/order-payment-saga/internal/payment-service/domain"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func request(price string) contracts.PaymentRequested {
	return contracts.PaymentRequested{OrderID: uuid.New(), CustomerID: uuid.New(), Price: dec(price)}
}

func TestDecidePaymentInsufficientCredit(t *testing.T) {
	d := coordinator.DecidePayment(nil, dec("100.00"), request("150.00"))

	assert.Equal(t, coordinator.OutcomeApplied, d.Outcome)
	assert.Equal(t, paydomain.PaymentFailed, d.Status)
	assert.Equal(t, "Insufficient credit. Available: 100.00, Required: 150.00", d.FailureMessage)
}

func TestDecidePaymentSufficientCredit(t *testing.T) {
	d := coordinator.DecidePayment(nil, dec("100.00"), request("40.00"))

	assert.Equal(t, coordinator.PaymentDecision{Outcome: coordinator.OutcomeApplied, Status: paydomain.PaymentCompleted}, d)
}

func TestDecidePaymentExactBalance(t *testing.T) {
	d := coordinator.DecidePayment(nil, dec("40"), request("40.00"))
	assert.Equal(t, paydomain.PaymentCompleted, d.Status)
}

func TestDecidePaymentNegativePrice(t *testing.T) {
	d := coordinator.DecidePayment(nil, dec("40"), request("-1"))

	assert.Equal(t, paydomain.PaymentFailed, d.Status)
	assert.Equal(t, "Payment processing error: price must not be negative", d.FailureMessage)
}

func TestDecidePaymentDuplicateOfTerminal(t *testing.T) {
	req := request("40")

	done, err := paydomain.NewPayment(req.OrderID, req.CustomerID, req.Price, time.Now())
	require.NoError(t, err)
	require.NoError(t, done.ProcessPayment(dec("100")))

	d := coordinator.DecidePayment(done, dec("0"), req)
	assert.Equal(t, coordinator.OutcomeDuplicate, d.Outcome)
	assert.Equal(t, paydomain.PaymentCompleted, d.Status)

	failed, err := paydomain.NewPayment(req.OrderID, req.CustomerID, req.Price, time.Now())
	require.NoError(t, err)
	require.NoError(t, failed.Fail("Insufficient credit. Available: 0.00, Required: 40.00"))

	d = coordinator.DecidePayment(failed, dec("1000"), req)
	assert.Equal(t, coordinator.OutcomeDuplicate, d.Outcome)
	assert.Equal(t, paydomain.PaymentFailed, d.Status)
	assert.Equal(t, "Insufficient credit. Available: 0.00, Required: 40.00", d.FailureMessage)
}

func TestDecidePaymentReusesPendingPayment(t *testing.T) {
	req := request("40")
	pending, err := paydomain.NewPayment(req.OrderID, req.CustomerID, req.Price, time.Now())
	require.NoError(t, err)

	d := coordinator.DecidePayment(pending, dec("100"), req)
	assert.Equal(t, coordinator.OutcomeApplied, d.Outcome)
	assert.Equal(t, paydomain.PaymentCompleted, d.Status)
}

func TestPaymentDecisionApplyDebits(t *testing.T) {
	req := request("40.00")
	credit, err := paydomain.NewCreditEntry(req.CustomerID, dec("100.00"))
	require.NoError(t, err)
	payment, err := paydomain.NewPayment(req.OrderID, req.CustomerID, req.Price, time.Now())
	require.NoError(t, err)

	d := coordinator.DecidePayment(nil, credit.TotalCredit(), req)
	require.NoError(t, d.Apply(payment, credit))

	assert.Equal(t, paydomain.PaymentCompleted, payment.Status())
	assert.True(t, credit.TotalCredit().Equal(dec("60.00")))
}

func TestPaymentDecisionApplyFailureLeavesCredit(t *testing.T) {
	req := request("150.00")
	credit, err := paydomain.NewCreditEntry(req.CustomerID, dec("100.00"))
	require.NoError(t, err)
	payment, err := paydomain.NewPayment(req.OrderID, req.CustomerID, req.Price, time.Now())
	require.NoError(t, err)

	d := coordinator.DecidePayment(nil, credit.TotalCredit(), req)
	require.NoError(t, d.Apply(payment, credit))

	assert.Equal(t, paydomain.PaymentFailed, payment.Status())
	assert.Equal(t, "Insufficient credit. Available: 100.00, Required: 150.00", payment.FailureMessage())
	assert.True(t, credit.TotalCredit().Equal(dec("100.00")))
}

func TestProcessingErrorMessage(t *testing.T) {
	assert.Equal(t, "Payment processing error: db down", coordinator.ProcessingErrorMessage(errors.New("db down")))
}

func TestDecidePaymentRejectsOtherCustomer(t *testing.T) {
	req := request("40")
	pending, err := paydomain.NewPayment(req.OrderID, uuid.New(), req.Price, time.Now())
	require.NoError(t, err)

	d := coordinator.DecidePayment(pending, dec("100"), req)
	assert.Equal(t, coordinator.OutcomeRejected, d.Outcome)
	assert.Equal(t, paydomain.PaymentPending, d.Status)
}
