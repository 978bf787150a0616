package app

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jcmexdev/order-payment-saga/internal/payment-service/domain"
	"github.com/jcmexdev/order-payment-saga/internal/pkg/errs"
)

// CreditService manages customer balances outside the saga.
type CreditService struct {
	store Store
}

func NewCreditService(store Store) *CreditService {
	return &CreditService{store: store}
}

func (s *CreditService) Total(ctx context.Context, customerID uuid.UUID) (*domain.CreditEntry, error) {
	if customerID == uuid.Nil {
		return nil, errs.Validation("customer id is required")
	}
	return s.store.FindCredit(ctx, customerID)
}

// SetTotal overwrites the balance, creating the entry if needed.
func (s *CreditService) SetTotal(ctx context.Context, customerID uuid.UUID, total decimal.Decimal) (*domain.CreditEntry, error) {
	if customerID == uuid.Nil {
		return nil, errs.Validation("customer id is required")
	}
	if total.IsNegative() {
		return nil, errs.Validation("total credit must not be negative for customer: %s", customerID)
	}
	c, err := s.store.UpdateCredit(ctx, customerID, true, func(c *domain.CreditEntry) error {
		return c.UpdateTotalCredit(total)
	})
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "credit total set", "customer_id", customerID, "total", c.TotalCredit().StringFixed(2))
	return c, nil
}

func (s *CreditService) Add(ctx context.Context, customerID uuid.UUID, amount decimal.Decimal) (*domain.CreditEntry, error) {
	if customerID == uuid.Nil {
		return nil, errs.Validation("customer id is required")
	}
	if !amount.IsPositive() {
		return nil, errs.Validation("Credit amount must be positive for customer: %s", customerID)
	}
	c, err := s.store.UpdateCredit(ctx, customerID, true, func(c *domain.CreditEntry) error {
		return c.AddCredit(amount)
	})
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "credit added",
		"customer_id", customerID, "amount", amount.StringFixed(2), "total", c.TotalCredit().StringFixed(2))
	return c, nil
}
