package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jcmexdev/order-payment-saga/internal/pkg/httpx"
)

func NewRouter(handler *Handler, metrics http.Handler) http.Handler {
	r := httpx.NewRouter(metrics)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/credits/total", handler.GetTotalCredit)
		r.Put("/credits/total", handler.SetTotalCredit)
		r.Post("/credits/add", handler.AddCredit)
		r.Get("/payments/group-by-status", handler.GroupByStatus)
	})
	return r
}
