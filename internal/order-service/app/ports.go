// Package app implements the order service use cases: order commands and
// queries, the payment trigger that starts the saga, and the handler that
// applies payment settlements.
package app

import (
	"context"

	"github.com/google/uuid"

	"github.com/jcmexdev/order-payment-saga/internal/order-service/domain"
	"github.com/jcmexdev/order-payment-saga/internal/statushub"
)

// OrderStore persists orders. Lookups of unknown ids fail with errs.ErrNotFound.
type OrderStore interface {
	Save(ctx context.Context, o *domain.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	FindByCustomerID(ctx context.Context, customerID uuid.UUID) ([]*domain.Order, error)
	// Update loads the order, runs fn and saves the result, with no other
	// Update for the same order interleaving. Nothing is saved when fn fails.
	Update(ctx context.Context, id uuid.UUID, fn func(*domain.Order) error) (*domain.Order, error)
	Statistics(ctx context.Context, filter domain.StatisticsFilter) (domain.Statistics, error)
}

// VoucherLookup resolves a voucher code. Unknown codes fail validation.
type VoucherLookup interface {
	Find(ctx context.Context, code string) (domain.Voucher, error)
}

// StatusNotifier is the status push channel towards watching clients.
type StatusNotifier interface {
	Publish(ctx context.Context, orderID uuid.UUID, evt statushub.Event) bool
}
