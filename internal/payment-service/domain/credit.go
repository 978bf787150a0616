package domain

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jcmexdev/order-payment-saga/internal/pkg/errs"
)

// CreditEntry is a customer's balance. It never goes below zero.
//
// Callers must hold the store's per-customer lock while mutating an entry;
// the entry itself is not safe for concurrent use.
type CreditEntry struct {
	id          uuid.UUID
	customerID  uuid.UUID
	totalCredit decimal.Decimal
}

func NewCreditEntry(customerID uuid.UUID, initial decimal.Decimal) (*CreditEntry, error) {
	if customerID == uuid.Nil {
		return nil, errs.Validation("credit entry requires a customer id")
	}
	if initial.IsNegative() {
		return nil, errs.Validation("initial credit must not be negative for customer: %s", customerID)
	}
	return &CreditEntry{id: uuid.New(), customerID: customerID, totalCredit: initial}, nil
}

func RestoreCreditEntry(id, customerID uuid.UUID, total decimal.Decimal) *CreditEntry {
	return &CreditEntry{id: id, customerID: customerID, totalCredit: total}
}

func (c *CreditEntry) ID() uuid.UUID { return c.id }
func (c *CreditEntry) CustomerID() uuid.UUID { return c.customerID }
func (c *CreditEntry) TotalCredit() decimal.Decimal { return c.totalCredit }

func (c *CreditEntry) HasSufficientCredit(amount decimal.Decimal) (bool, error) {
	if amount.IsNegative() {
		return false, errs.Validation("amount must not be negative, got %s", amount.StringFixed(2))
	}
	return c.totalCredit.GreaterThanOrEqual(amount), nil
}

// SubtractCredit debits amount, or fails leaving the balance untouched.
func (c *CreditEntry) SubtractCredit(amount decimal.Decimal) error {
	ok, err := c.HasSufficientCredit(amount)
	if err != nil {
		return err
	}
	if !ok {
		return errs.InsufficientFunds("%s", InsufficientCreditMessage(c.totalCredit, amount))
	}
	c.totalCredit = c.totalCredit.Sub(amount)
	return nil
}

func (c *CreditEntry) AddCredit(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return errs.Validation("credit amount must not be negative for customer: %s", c.customerID)
	}
	c.totalCredit = c.totalCredit.Add(amount)
	return nil
}

func (c *CreditEntry) UpdateTotalCredit(total decimal.Decimal) error {
	if total.IsNegative() {
		return errs.Validation("total credit must not be negative for customer: %s", c.customerID)
	}
	c.totalCredit = total
	return nil
}

// InsufficientCreditMessage is the failure reason reported back to the
// order side when a debit is refused.
func InsufficientCreditMessage(available, required decimal.Decimal) string {
	return fmt.Sprintf("Insufficient credit. Available: %s, Required: %s",
		available.StringFixed(2), required.StringFixed(2))
}
