package rest

import (
	"net/http"

	"github.com/jcmexdev/order-payment-saga/internal/pkg/httpx"
)

func NewRouter(handler *Handler, metrics http.Handler) http.Handler {
	r := httpx.NewRouter(metrics)

	r.Post("/orders", handler.CreateOrder)
	r.Get("/orders", handler.ListOrders)
	r.Get("/orders/statistics", handler.Statistics)
	r.Get("/orders/{orderId}", handler.GetOrder)
	r.Put("/orders/{orderId}", handler.UpdateOrder)
	r.Post("/orders/{orderId}/rating", handler.RateOrder)

	r.Post("/orders/payment", handler.TriggerPayment)
	r.Get("/orders/payment/status/{orderId}", handler.StreamStatus)
	r.Get("/orders/payment/ws/{orderId}", handler.StreamStatusWS)
	return r
}
