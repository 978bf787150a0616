package app

import (
	"context"

	"github.com/google/uuid"

	"github.com/jcmexdev/order-payment-saga/internal/payment-service/domain"
)

// SettleFunc decides a payment request against the order's existing payment
// (nil when none) and the customer's credit entry. The returned payment is
// persisted together with credit; a nil payment means there is nothing to
// write. When SettleFunc fails neither is persisted.
type SettleFunc func(existing *domain.Payment, credit *domain.CreditEntry) (*domain.Payment, error)

// Store persists payments and credit entries. Implementations serialize all
// credit mutations of one customer.
type Store interface {
	// Settle runs fn under the customer's lock. A missing credit entry is
	// created with a zero balance.
	Settle(ctx context.Context, orderID, customerID uuid.UUID, fn SettleFunc) error
	// UpdateCredit runs fn on the customer's entry under the same lock and
	// saves the result. With create a missing entry starts at zero,
	// otherwise a missing entry is NotFound.
	UpdateCredit(ctx context.Context, customerID uuid.UUID, create bool, fn func(*domain.CreditEntry) error) (*domain.CreditEntry, error)
	FindCredit(ctx context.Context, customerID uuid.UUID) (*domain.CreditEntry, error)

	SavePayment(ctx context.Context, p *domain.Payment) error
	FindPaymentByOrderID(ctx context.Context, orderID uuid.UUID) (*domain.Payment, error)
	FindPaymentsByCustomerID(ctx context.Context, customerID uuid.UUID) ([]*domain.Payment, error)
}
