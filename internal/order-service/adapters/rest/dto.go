package rest

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jcmexdev/order-payment-saga/internal/order-service/domain"
)

type OrderItemRequest struct {
	ProductID string          `json:"productId"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

type CreateOrderRequest struct {
	CustomerID   string             `json:"customerId"`
	RestaurantID string             `json:"restaurantId"`
	Items        []OrderItemRequest `json:"items"`
	VoucherCode  string             `json:"voucherCode,omitempty"`
}

type UpdateOrderRequest struct {
	Items       []OrderItemRequest `json:"items"`
	VoucherCode string             `json:"voucherCode,omitempty"`
}

type RatingRequest struct {
	Score   int    `json:"score"`
	Comment string `json:"comment,omitempty"`
}

type PaymentRequest struct {
	OrderID    string          `json:"orderId"`
	CustomerID string          `json:"customerId"`
	Price      decimal.Decimal `json:"price"`
}

type OrderItemResponse struct {
	ProductID string `json:"productId"`
	Price     string `json:"price"`
	Quantity  int    `json:"quantity"`
	SubTotal  string `json:"subTotal"`
}

type RatingResponse struct {
	Score   int    `json:"score"`
	Comment string `json:"comment,omitempty"`
}

type OrderResponse struct {
	OrderID         string              `json:"orderId"`
	CustomerID      string              `json:"customerId"`
	RestaurantID    string              `json:"restaurantId"`
	TrackingID      string              `json:"trackingId"`
	Items           []OrderItemResponse `json:"items"`
	OriginalPrice   string              `json:"originalPrice"`
	Discount        string              `json:"discount"`
	VoucherCode     string              `json:"voucherCode,omitempty"`
	Price           string              `json:"price"`
	Status          string              `json:"status"`
	FailureMessages string              `json:"failureMessages,omitempty"`
	Rating          *RatingResponse     `json:"rating,omitempty"`
	CreatedAt       time.Time           `json:"createdAt"`
}

type StatisticsResponse struct {
	TotalOrders       int64  `json:"totalOrders"`
	TotalRevenue      string `json:"totalRevenue"`
	AverageOrderValue string `json:"averageOrderValue"`
}

func money(d decimal.Decimal) string { return d.StringFixed(2) }

func mapOrderToResponse(o *domain.Order) OrderResponse {
	resp := OrderResponse{
		OrderID:         o.ID().String(),
		CustomerID:      o.CustomerID().String(),
		RestaurantID:    o.RestaurantID().String(),
		TrackingID:      o.TrackingID().String(),
		Items:           mapItems(o.Items()),
		OriginalPrice:   money(o.OriginalPrice()),
		Discount:        money(o.Discount()),
		VoucherCode:     o.VoucherCode(),
		Price:           money(o.Price()),
		Status:          string(o.Status()),
		FailureMessages: o.FailureMessages(),
		CreatedAt:       o.CreatedAt(),
	}
	if r := o.Rating(); r != nil {
		resp.Rating = &RatingResponse{Score: r.Score, Comment: r.Comment}
	}
	return resp
}

func mapItems(items []domain.OrderItem) []OrderItemResponse {
	out := make([]OrderItemResponse, len(items))
	for i, it := range items {
		out[i] = OrderItemResponse{
			ProductID: it.ProductID.String(),
			Price:     money(it.Price),
			Quantity:  it.Quantity,
			SubTotal:  money(it.Subtotal()),
		}
	}
	return out
}

func mapStatistics(s domain.Statistics) StatisticsResponse {
	return StatisticsResponse{
		TotalOrders:       s.TotalOrders,
		TotalRevenue:      money(s.TotalRevenue),
		AverageOrderValue: money(s.AverageOrderValue()),
	}
}
