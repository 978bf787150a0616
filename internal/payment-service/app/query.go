package app

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jcmexdev/order-payment-saga/internal/payment-service/domain"
	"github.com/jcmexdev/order-payment-saga/internal/pkg/errs"
)

var statusOrder = []domain.PaymentStatus{domain.PaymentPending, domain.PaymentCompleted, domain.PaymentFailed}

type PaymentGroup struct {
	Status      domain.PaymentStatus
	Count       int
	TotalAmount decimal.Decimal
	Payments    []*domain.Payment
}

type PaymentsByStatus struct {
	CustomerID  uuid.UUID
	Groups      []PaymentGroup
	TotalCount  int
	TotalAmount decimal.Decimal
}

type PaymentQuery struct {
	store Store
}

func NewPaymentQuery(store Store) *PaymentQuery {
	return &PaymentQuery{store: store}
}

// GroupByStatus lists the customer's payments grouped PENDING, COMPLETED,
// FAILED. Empty groups are left out.
func (q *PaymentQuery) GroupByStatus(ctx context.Context, customerID uuid.UUID) (PaymentsByStatus, error) {
	if customerID == uuid.Nil {
		return PaymentsByStatus{}, errs.Validation("customer id is required")
	}
	payments, err := q.store.FindPaymentsByCustomerID(ctx, customerID)
	if err != nil {
		return PaymentsByStatus{}, err
	}

	byStatus := make(map[domain.PaymentStatus][]*domain.Payment, len(statusOrder))
	for _, p := range payments {
		byStatus[p.Status()] = append(byStatus[p.Status()], p)
	}

	out := PaymentsByStatus{CustomerID: customerID, TotalAmount: decimal.Zero}
	for _, status := range statusOrder {
		group := byStatus[status]
		if len(group) == 0 {
			continue
		}
		total := decimal.Zero
		for _, p := range group {
			total = total.Add(p.Price())
		}
		out.Groups = append(out.Groups, PaymentGroup{
			Status:      status,
			Count:       len(group),
			TotalAmount: total,
			Payments:    group,
		})
		out.TotalCount += len(group)
		out.TotalAmount = out.TotalAmount.Add(total)
	}
	return out, nil
}
