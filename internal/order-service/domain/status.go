package domain

import (
	"github.com/jcmexdev/order-payment-saga/internal/pkg/errs"
)

type OrderStatus string

const (
	StatusPending   OrderStatus = "PENDING"
	StatusPaid      OrderStatus = "PAID"
	StatusApproved  OrderStatus = "APPROVED"
	StatusCancelled OrderStatus = "CANCELLED"
	// StatusCancelling is reserved for a cancellation-request flow owned
	// elsewhere. Nothing here moves an order into or out of it.
	StatusCancelling OrderStatus = "CANCELLING"
)

// Action is a mutating operation on an Order.
type Action string

const (
	ActionEdit         Action = "update items of"
	ActionApplyVoucher Action = "apply a voucher to"
	ActionPay          Action = "pay"
	ActionCancel       Action = "cancel"
	ActionRate         Action = "rate"
)

// transitions lists every allowed (status, action) pair and the status it
// leads to. Anything missing is rejected with an invalid state error.
var transitions = map[OrderStatus]map[Action]OrderStatus{
	StatusPending: {
		ActionEdit:         StatusPending,
		ActionApplyVoucher: StatusPending,
		ActionPay:          StatusPaid,
		ActionCancel:       StatusCancelled,
	},
	StatusPaid: {
		ActionRate: StatusPaid,
	},
	StatusApproved: {
		ActionRate: StatusApproved,
	},
	StatusCancelled:  {},
	StatusCancelling: {},
}

func nextStatus(from OrderStatus, action Action) (OrderStatus, error) {
	to, ok := transitions[from][action]
	if !ok {
		return from, errs.InvalidState("cannot %s an order in status %s", action, from)
	}
	return to, nil
}

// Allows reports whether action is permitted in status s.
func (s OrderStatus) Allows(action Action) bool {
	_, ok := transitions[s][action]
	return ok
}

// Settled reports whether the payment outcome has already been applied.
func (s OrderStatus) Settled() bool {
	return s == StatusPaid || s == StatusApproved || s == StatusCancelled
}

func ParseStatus(s string) (OrderStatus, error) {
	st := OrderStatus(s)
	if _, ok := transitions[st]; !ok {
		return "", errs.Validation("unknown order status %q", s)
	}
	return st, nil
}
