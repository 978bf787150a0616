package domain

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/jcmexdev/order-payment-saga/internal/pkg/errs"
)

// Voucher is a fixed-amount discount.
type Voucher struct {
	Code          string
	DiscountValue decimal.Decimal
}

func NewVoucher(code string, value decimal.Decimal) (Voucher, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return Voucher{}, errs.Validation("voucher code is required")
	}
	if value.IsNegative() {
		return Voucher{}, errs.Validation("voucher %s: discount must not be negative", code)
	}
	return Voucher{Code: code, DiscountValue: value}, nil
}

// CalculateDiscount never returns more than the order is worth.
func (v Voucher) CalculateDiscount(originalPrice decimal.Decimal) decimal.Decimal {
	return decimal.Min(v.DiscountValue, originalPrice)
}
