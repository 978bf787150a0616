// Package rest is the payment service's HTTP surface.
package rest

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jcmexdev/order-payment-saga/internal/payment-service/app"
	"github.com/jcmexdev/order-payment-saga/internal/pkg/errs"
	"github.com/jcmexdev/order-payment-saga/internal/pkg/httpx"
)

type Handler struct {
	credits  *app.CreditService
	payments *app.PaymentQuery
}

func NewHandler(credits *app.CreditService, payments *app.PaymentQuery) *Handler {
	return &Handler{credits: credits, payments: payments}
}

func (h *Handler) GetTotalCredit(w http.ResponseWriter, r *http.Request) {
	customerID, err := parseCustomerID(r.URL.Query().Get("customerId"))
	if err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}
	c, err := h.credits.Total(r.Context(), customerID)
	if err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, mapCredit(c))
}

func (h *Handler) SetTotalCredit(w http.ResponseWriter, r *http.Request) {
	var req CreditRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}
	customerID, err := parseCustomerID(req.CustomerID)
	if err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}
	c, err := h.credits.SetTotal(r.Context(), customerID, req.TotalCredit)
	if err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, mapCredit(c))
}

func (h *Handler) AddCredit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	customerID, err := parseCustomerID(q.Get("customerId"))
	if err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}
	amount, err := decimal.NewFromString(q.Get("amount"))
	if err != nil {
		httpx.WriteDomainError(w, r, errs.Validation("amount is not a number: %q", q.Get("amount")))
		return
	}
	c, err := h.credits.Add(r.Context(), customerID, amount)
	if err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, mapCredit(c))
}

func (h *Handler) GroupByStatus(w http.ResponseWriter, r *http.Request) {
	customerID, err := parseCustomerID(r.URL.Query().Get("customerId"))
	if err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}
	groups, err := h.payments.GroupByStatus(r.Context(), customerID)
	if err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, mapGroups(groups))
}

func parseCustomerID(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, errs.Validation("customerId is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errs.Validation("customerId is not a valid uuid: %s", raw)
	}
	return id, nil
}
