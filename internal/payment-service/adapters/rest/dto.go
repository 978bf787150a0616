package rest

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jcmexdev/order-payment-saga/internal/payment-service/app"
	"github.com/jcmexdev/order-payment-saga/internal/payment-service/domain"
)

type CreditRequest struct {
	CustomerID  string          `json:"customerId"`
	TotalCredit decimal.Decimal `json:"totalCredit"`
}

type CreditResponse struct {
	CustomerID  string `json:"customerId"`
	TotalCredit string `json:"totalCredit"`
}

type PaymentResponse struct {
	PaymentID      string    `json:"paymentId"`
	OrderID        string    `json:"orderId"`
	Price          string    `json:"price"`
	Status         string    `json:"status"`
	FailureMessage string    `json:"failureMessage,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

type PaymentGroupResponse struct {
	Status      string            `json:"status"`
	Count       int               `json:"count"`
	TotalAmount string            `json:"totalAmount"`
	Payments    []PaymentResponse `json:"payments"`
}

type PaymentsByStatusResponse struct {
	CustomerID  string                 `json:"customerId"`
	Groups      []PaymentGroupResponse `json:"groups"`
	TotalCount  int                    `json:"totalCount"`
	TotalAmount string                 `json:"totalAmount"`
}

func mapCredit(c *domain.CreditEntry) CreditResponse {
	return CreditResponse{
		CustomerID:  c.CustomerID().String(),
		TotalCredit: c.TotalCredit().StringFixed(2),
	}
}

func mapPayment(p *domain.Payment) PaymentResponse {
	return PaymentResponse{
		PaymentID:      p.ID().String(),
		OrderID:        p.OrderID().String(),
		Price:          p.Price().StringFixed(2),
		Status:         string(p.Status()),
		FailureMessage: p.FailureMessage(),
		CreatedAt:      p.CreatedAt(),
	}
}

func mapGroups(in app.PaymentsByStatus) PaymentsByStatusResponse {
	out := PaymentsByStatusResponse{
		CustomerID:  in.CustomerID.String(),
		Groups:      make([]PaymentGroupResponse, 0, len(in.Groups)),
		TotalCount:  in.TotalCount,
		TotalAmount: in.TotalAmount.StringFixed(2),
	}
	for _, g := range in.Groups {
		payments := make([]PaymentResponse, len(g.Payments))
		for i, p := range g.Payments {
			payments[i] = mapPayment(p)
		}
		out.Groups = append(out.Groups, PaymentGroupResponse{
			Status:      string(g.Status),
			Count:       g.Count,
			TotalAmount: g.TotalAmount.StringFixed(2),
			Payments:    payments,
		})
	}
	return out
}
