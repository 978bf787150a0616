// Package domain holds the payment side aggregates: Payment, one attempt per
// order, and CreditEntry, the customer's balance.
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jcmexdev/order-payment-saga/internal/pkg/errs"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentFailed    PaymentStatus = "FAILED"
)

// Terminal reports whether no further transition is possible.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentCompleted || s == PaymentFailed
}

type paymentAction string

const (
	actionProcess paymentAction = "process"
	actionFail    paymentAction = "fail"
)

var paymentTransitions = map[PaymentStatus]map[paymentAction]PaymentStatus{
	PaymentPending: {
		actionProcess: PaymentCompleted,
		actionFail:    PaymentFailed,
	},
	PaymentCompleted: {},
	PaymentFailed:    {},
}

type Payment struct {
	id             uuid.UUID
	orderID        uuid.UUID
	customerID     uuid.UUID
	price          decimal.Decimal
	status         PaymentStatus
	failureMessage string
	createdAt      time.Time
}

// NewPayment starts a PENDING attempt for an order.
func NewPayment(orderID, customerID uuid.UUID, price decimal.Decimal, now time.Time) (*Payment, error) {
	if orderID == uuid.Nil || customerID == uuid.Nil {
		return nil, errs.Validation("payment requires order and customer ids")
	}
	if price.IsNegative() {
		return nil, errs.Validation("payment price must not be negative, got %s", price.StringFixed(2))
	}
	return &Payment{
		id:         uuid.New(),
		orderID:    orderID,
		customerID: customerID,
		price:      price,
		status:     PaymentPending,
		createdAt:  now.UTC(),
	}, nil
}

func (p *Payment) transition(action paymentAction) (PaymentStatus, error) {
	to, ok := paymentTransitions[p.status][action]
	if !ok {
		return p.status, errs.InvalidState("payment %s is already %s", p.id, p.status)
	}
	return to, nil
}

// ProcessPayment completes the payment when availableCredit covers the price.
// An insufficient balance leaves the payment PENDING.
func (p *Payment) ProcessPayment(availableCredit decimal.Decimal) error {
	to, err := p.transition(actionProcess)
	if err != nil {
		return err
	}
	if availableCredit.LessThan(p.price) {
		return errs.InsufficientFunds("%s", InsufficientCreditMessage(availableCredit, p.price))
	}
	p.status = to
	return nil
}

func (p *Payment) Fail(reason string) error {
	to, err := p.transition(actionFail)
	if err != nil {
		return err
	}
	p.status = to
	p.failureMessage = reason
	return nil
}

func (p *Payment) ID() uuid.UUID { return p.id }
func (p *Payment) OrderID() uuid.UUID { return p.orderID }
func (p *Payment) CustomerID() uuid.UUID { return p.customerID }
func (p *Payment) Price() decimal.Decimal { return p.price }
func (p *Payment) Status() PaymentStatus { return p.status }
func (p *Payment) FailureMessage() string { return p.failureMessage }
func (p *Payment) CreatedAt() time.Time { return p.createdAt }

// PaymentSnapshot is the persisted form of a Payment.
type PaymentSnapshot struct {
	ID             uuid.UUID
	OrderID        uuid.UUID
	CustomerID     uuid.UUID
	Price          decimal.Decimal
	Status         PaymentStatus
	FailureMessage string
	CreatedAt      time.Time
}

func (p *Payment) Snapshot() PaymentSnapshot {
	return PaymentSnapshot{
		ID:             p.id,
		OrderID:        p.orderID,
		CustomerID:     p.customerID,
		Price:          p.price,
		Status:         p.status,
		FailureMessage: p.failureMessage,
		CreatedAt:      p.createdAt,
	}
}

func RestorePayment(s PaymentSnapshot) *Payment {
	return &Payment{
		id:             s.ID,
		orderID:        s.OrderID,
		customerID:     s.CustomerID,
		price:          s.Price,
		status:         s.Status,
		failureMessage: s.FailureMessage,
		createdAt:      s.CreatedAt,
	}
}
