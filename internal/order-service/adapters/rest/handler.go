// Package rest is the order service's HTTP surface.
package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/jcmexdev/order-payment-saga/internal/order-service/app"
	"github.com/jcmexdev/order-payment-saga/internal/order-service/domain"
	"github.com/jcmexdev/order-payment-saga/internal/pkg/errs"
	"github.com/jcmexdev/order-payment-saga/internal/pkg/httpx"
	"github.com/jcmexdev/order-payment-saga/internal/statushub"
)

// StatusSubscriber opens status subscriptions for the streaming endpoints.
type StatusSubscriber interface {
	Subscribe(ctx context.Context, orderID uuid.UUID) *statushub.Subscription
}

type Handler struct {
	orders *app.Service
	status StatusSubscriber
}

func NewHandler(orders *app.Service, status StatusSubscriber) *Handler {
	return &Handler{orders: orders, status: status}
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}
	customerID, err := parseID("customerId", req.CustomerID)
	if err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}
	restaurantID, err := parseID("restaurantId", req.RestaurantID)
	if err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}
	items, err := toItems(req.Items)
	if err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}

	o, err := h.orders.Create(r.Context(), app.CreateOrder{
		CustomerID:   customerID,
		RestaurantID: restaurantID,
		Items:        items,
		VoucherCode:  req.VoucherCode,
	})
	if err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, mapOrderToResponse(o))
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := parseID("orderId", chi.URLParam(r, "orderId"))
	if err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}
	o, err := h.orders.Get(r.Context(), id)
	if err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, mapOrderToResponse(o))
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	customerID, err := parseID("customerId", r.URL.Query().Get("customerId"))
	if err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}
	orders, err := h.orders.ListByCustomer(r.Context(), customerID)
	if err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}
	out := make([]OrderResponse, len(orders))
	for i, o := range orders {
		out[i] = mapOrderToResponse(o)
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	id, err := parseID("orderId", chi.URLParam(r, "orderId"))
	if err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}
	var req UpdateOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}
	items, err := toItems(req.Items)
	if err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}

	o, err := h.orders.Update(r.Context(), id, app.UpdateOrder{Items: items, VoucherCode: req.VoucherCode})
	if err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, mapOrderToResponse(o))
}

func (h *Handler) RateOrder(w http.ResponseWriter, r *http.Request) {
	id, err := parseID("orderId", chi.URLParam(r, "orderId"))
	if err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}
	var req RatingRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}
	o, err := h.orders.Rate(r.Context(), id, req.Score, req.Comment)
	if err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, mapOrderToResponse(o))
}

func (h *Handler) Statistics(w http.ResponseWriter, r *http.Request) {
	var filter domain.StatisticsFilter
	q := r.URL.Query()
	if raw := q.Get("customerId"); raw != "" {
		id, err := parseID("customerId", raw)
		if err != nil {
			httpx.WriteDomainError(w, r, err)
			return
		}
		filter.CustomerID = &id
	}
	var err error
	if filter.From, err = parseTime("startDate", q.Get("startDate")); err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}
	if filter.To, err = parseTime("endDate", q.Get("endDate")); err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}

	stats, err := h.orders.Statistics(r.Context(), filter)
	if err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, mapStatistics(stats))
}

// TriggerPayment queues the payment and answers 202; progress is followed on
// the status stream named in the response.
func (h *Handler) TriggerPayment(w http.ResponseWriter, r *http.Request) {
	var req PaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}
	orderID, err := parseID("orderId", req.OrderID)
	if err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}
	customerID, err := parseID("customerId", req.CustomerID)
	if err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}

	ack, err := h.orders.TriggerPayment(r.Context(), app.TriggerPayment{
		OrderID:    orderID,
		CustomerID: customerID,
		Price:      req.Price,
	})
	if err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusAccepted, ack)
}

func toItems(in []OrderItemRequest) ([]domain.OrderItem, error) {
	items := make([]domain.OrderItem, 0, len(in))
	for _, it := range in {
		productID, err := parseID("productId", it.ProductID)
		if err != nil {
			return nil, err
		}
		items = append(items, domain.OrderItem{ProductID: productID, Price: it.Price, Quantity: it.Quantity})
	}
	return items, nil
}

func parseID(field, raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, errs.Validation("%s is required", field)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errs.Validation("%s is not a valid uuid: %s", field, raw)
	}
	return id, nil
}

func parseTime(field, raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, errs.Validation("%s must be an RFC3339 timestamp: %s", field, raw)
	}
	return &t, nil
}
