// Package voucher is a fixed in-process voucher catalog.
package voucher

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/jcmexdev/order-payment-saga/internal/order-service/domain"
	"github.com/jcmexdev/order-payment-saga/internal/pkg/errs"
)

type Catalog struct {
	vouchers map[string]domain.Voucher
}

// NewCatalog returns the built-in codes plus any extra ones.
func NewCatalog(extra ...domain.Voucher) *Catalog {
	c := &Catalog{vouchers: map[string]domain.Voucher{
		"SALE10K": {Code: "SALE10K", DiscountValue: decimal.RequireFromString("10000.00")},
		"SALE50K": {Code: "SALE50K", DiscountValue: decimal.RequireFromString("50000.00")},
	}}
	for _, v := range extra {
		c.vouchers[v.Code] = v
	}
	return c
}

func (c *Catalog) Find(_ context.Context, code string) (domain.Voucher, error) {
	v, ok := c.vouchers[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return domain.Voucher{}, errs.Validation("invalid voucher code: %s", code)
	}
	return v, nil
}
