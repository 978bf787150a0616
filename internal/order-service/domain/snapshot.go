package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Snapshot is the persisted form of an Order. Stores write and read
// snapshots; the aggregate itself never leaves this package mutable.
type Snapshot struct {
	ID              uuid.UUID
	CustomerID      uuid.UUID
	RestaurantID    uuid.UUID
	TrackingID      uuid.UUID
	Items           []OrderItem
	OriginalPrice   decimal.Decimal
	Discount        decimal.Decimal
	VoucherCode     string
	Price           decimal.Decimal
	Status          OrderStatus
	FailureMessages string
	Rating          *Rating
	CreatedAt       time.Time
}

func (o *Order) Snapshot() Snapshot {
	return Snapshot{
		ID:              o.id,
		CustomerID:      o.customerID,
		RestaurantID:    o.restaurantID,
		TrackingID:      o.trackingID,
		Items:           o.Items(),
		OriginalPrice:   o.originalPrice,
		Discount:        o.discount,
		VoucherCode:     o.voucherCode,
		Price:           o.price,
		Status:          o.status,
		FailureMessages: o.FailureMessages(),
		Rating:          o.Rating(),
		CreatedAt:       o.createdAt,
	}
}

// Restore rebuilds an order from a snapshot without re-running validation.
func Restore(s Snapshot) *Order {
	o := &Order{
		id:            s.ID,
		customerID:    s.CustomerID,
		restaurantID:  s.RestaurantID,
		trackingID:    s.TrackingID,
		items:         append([]OrderItem(nil), s.Items...),
		originalPrice: s.OriginalPrice,
		discount:      s.Discount,
		voucherCode:   s.VoucherCode,
		price:         s.Price,
		status:        s.Status,
		createdAt:     s.CreatedAt,
	}
	if s.FailureMessages != "" {
		o.failureMessages = strings.Split(s.FailureMessages, ", ")
	}
	if s.Rating != nil {
		r := *s.Rating
		o.rating = &r
	}
	return o
}
