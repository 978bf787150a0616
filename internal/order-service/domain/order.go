// Package domain holds the Order aggregate. Every mutating method checks the
// transition table in status.go before touching state, so a rejected call
// leaves the order exactly as it was.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jcmexdev/order-payment-saga/internal/pkg/errs"
)

type OrderItem struct {
	ProductID uuid.UUID
	Price     decimal.Decimal
	Quantity  int
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Rating struct {
	Score   int
	Comment string
}

type Order struct {
	id           uuid.UUID
	customerID   uuid.UUID
	restaurantID uuid.UUID
	trackingID   uuid.UUID

	items         []OrderItem
	originalPrice decimal.Decimal
	discount      decimal.Decimal
	voucherCode   string
	price         decimal.Decimal

	status          OrderStatus
	failureMessages []string
	rating          *Rating
	createdAt       time.Time
}

// NewOrder creates a PENDING order priced from its items.
func NewOrder(customerID, restaurantID uuid.UUID, items []OrderItem, now time.Time) (*Order, error) {
	if customerID == uuid.Nil {
		return nil, errs.Validation("customer id is required")
	}
	if restaurantID == uuid.Nil {
		return nil, errs.Validation("restaurant id is required")
	}
	if err := validateItems(items); err != nil {
		return nil, err
	}

	o := &Order{
		id:           uuid.New(),
		customerID:   customerID,
		restaurantID: restaurantID,
		trackingID:   uuid.New(),
		status:       StatusPending,
		createdAt:    now.UTC(),
	}
	o.setItems(items)
	return o, nil
}

func validateItems(items []OrderItem) error {
	if len(items) == 0 {
		return errs.Validation("order must contain at least one item")
	}
	for i, it := range items {
		if it.ProductID == uuid.Nil {
			return errs.Validation("item %d: product id is required", i)
		}
		if it.Quantity <= 0 {
			return errs.Validation("item %d: quantity must be positive", i)
		}
		if it.Price.IsNegative() {
			return errs.Validation("item %d: price must not be negative", i)
		}
	}
	return nil
}

// setItems replaces the items and drops any voucher.
func (o *Order) setItems(items []OrderItem) {
	o.items = append([]OrderItem(nil), items...)
	total := decimal.Zero
	for _, it := range o.items {
		total = total.Add(it.Subtotal())
	}
	o.originalPrice = total
	o.discount = decimal.Zero
	o.voucherCode = ""
	o.price = total
}

// ApplyVoucher discounts the order by at most its original price.
func (o *Order) ApplyVoucher(v Voucher) error {
	if _, err := nextStatus(o.status, ActionApplyVoucher); err != nil {
		return err
	}
	o.discount = v.CalculateDiscount(o.originalPrice)
	o.price = o.originalPrice.Sub(o.discount)
	o.voucherCode = v.Code
	return nil
}

// UpdateItems replaces the items. A previously applied voucher is removed
// and has to be applied again.
func (o *Order) UpdateItems(items []OrderItem) error {
	if _, err := nextStatus(o.status, ActionEdit); err != nil {
		return err
	}
	if err := validateItems(items); err != nil {
		return err
	}
	o.setItems(items)
	return nil
}

func (o *Order) Pay() error {
	to, err := nextStatus(o.status, ActionPay)
	if err != nil {
		return err
	}
	o.status = to
	return nil
}

func (o *Order) Cancel(reason string) error {
	to, err := nextStatus(o.status, ActionCancel)
	if err != nil {
		return err
	}
	o.status = to
	if reason = strings.TrimSpace(reason); reason != "" {
		o.failureMessages = append(o.failureMessages, reason)
	}
	return nil
}

func (o *Order) AddRating(score int, comment string) error {
	if _, err := nextStatus(o.status, ActionRate); err != nil {
		return err
	}
	if score < 1 || score > 5 {
		return errs.Validation("rating must be between 1 and 5, got %d", score)
	}
	o.rating = &Rating{Score: score, Comment: comment}
	return nil
}

func (o *Order) ID() uuid.UUID { return o.id }
func (o *Order) CustomerID() uuid.UUID { return o.customerID }
func (o *Order) RestaurantID() uuid.UUID { return o.restaurantID }
func (o *Order) TrackingID() uuid.UUID { return o.trackingID }
func (o *Order) OriginalPrice() decimal.Decimal { return o.originalPrice }
func (o *Order) Discount() decimal.Decimal { return o.discount }
func (o *Order) Price() decimal.Decimal { return o.price }
func (o *Order) VoucherCode() string { return o.voucherCode }
func (o *Order) Status() OrderStatus { return o.status }
func (o *Order) CreatedAt() time.Time { return o.createdAt }

func (o *Order) Items() []OrderItem {
	return append([]OrderItem(nil), o.items...)
}

// FailureMessages returns every recorded failure reason joined by ", ".
func (o *Order) FailureMessages() string {
	return strings.Join(o.failureMessages, ", ")
}

// Rating returns the rating, or nil when the order has not been rated.
func (o *Order) Rating() *Rating {
	if o.rating == nil {
		return nil
	}
	r := *o.rating
	return &r
}
