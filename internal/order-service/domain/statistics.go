package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Statistics aggregates orders created within a window.
type Statistics struct {
	TotalOrders  int64
	TotalRevenue decimal.Decimal
}

// AverageOrderValue is rounded half-up to two decimals; zero without orders.
func (s Statistics) AverageOrderValue() decimal.Decimal {
	if s.TotalOrders == 0 {
		return decimal.Zero
	}
	return s.TotalRevenue.Div(decimal.NewFromInt(s.TotalOrders)).Round(2)
}

// StatisticsFilter narrows the statistics query. Nil fields match anything;
// the date bounds are inclusive.
type StatisticsFilter struct {
	CustomerID *uuid.UUID
	From       *time.Time
	To         *time.Time
}

func (f StatisticsFilter) Matches(o *Order) bool {
	if f.CustomerID != nil && o.customerID != *f.CustomerID {
		return false
	}
	if f.From != nil && o.createdAt.Before(*f.From) {
		return false
	}
	if f.To != nil && o.createdAt.After(*f.To) {
		return false
	}
	return true
}
