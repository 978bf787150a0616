package rest_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/order-payment-saga/internal/order-service/adapters/memory"
	"github.com/jcmexdev/order-payment-saga/internal/order-service/adapters/rest"
	"github.com/jcmexdev/order-payment-saga/internal/order-service/adapters/voucher"
	"github.com/jcmexdev/order-payment-saga/internal/order-service/app"
	"github.com/jcmexdev/order-payment-saga/internal/pkg/broker"
	"github.com/jcmexdev/order-payment-saga/internal/pkg/cache"
	"github.com/jcmexdev/order-payment-saga/internal/pkg/httpx"
	"github.com/jcmexdev/order-payment-saga/internal/statushub"
)

type nopPublisher struct{ count int }

func (p *nopPublisher) Publish(_ context.Context, msgs ...broker.Message) error {
	p.count += len(msgs)
	return nil
}

type testServer struct {
	hub       *statushub.Hub
	publisher *nopPublisher
	handler   http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	hub := statushub.New(statushub.DefaultConfig(), nil)
	publisher := &nopPublisher{}
	svc := app.NewService(app.Deps{
		Store:     memory.NewStore(),
		Vouchers:  voucher.NewCatalog(),
		Publisher: publisher,
		Notifier:  hub,
		Cache:     cache.NewMemory("order-service"),
	})
	return &testServer{
		hub:       hub,
		publisher: publisher,
		handler:   rest.NewRouter(rest.NewHandler(svc, hub), nil),
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) createOrder(t *testing.T, customerID, price string) rest.OrderResponse {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/orders", map[string]any{
		"customerId":   customerID,
		"restaurantId": uuid.NewString(),
		"items": []map[string]any{
			{"productId": uuid.NewString(), "price": price, "quantity": 1},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var out rest.OrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) httpx.ErrorResponse {
	t.Helper()
	var out httpx.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestCreateAndGetOrder(t *testing.T) {
	s := newTestServer(t)
	created := s.createOrder(t, uuid.NewString(), "12.50")

	assert.Equal(t, "PENDING", created.Status)
	assert.Equal(t, "12.50", created.Price)
	assert.NotEmpty(t, created.TrackingID)

	rec := s.do(t, http.MethodGet, "/orders/"+created.OrderID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got rest.OrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, created.OrderID, got.OrderID)
}

func TestErrorStatusMapping(t *testing.T) {
	s := newTestServer(t)
	created := s.createOrder(t, uuid.NewString(), "10.00")

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"malformed id", http.MethodGet, "/orders/not-a-uuid", nil, http.StatusBadRequest, "validation"},
		{"unknown order", http.MethodGet, "/orders/" + uuid.NewString(), nil, http.StatusNotFound, "not_found"},
		{"rating a pending order", http.MethodPost, "/orders/" + created.OrderID + "/rating",
			map[string]any{"score": 5}, http.StatusConflict, "invalid_state"},
		{"unknown voucher", http.MethodPost, "/orders", map[string]any{
			"customerId":   uuid.NewString(),
			"restaurantId": uuid.NewString(),
			"items":        []map[string]any{{"productId": uuid.NewString(), "price": "1", "quantity": 1}},
			"voucherCode":  "BOGUS",
		}, http.StatusBadRequest, "validation"},
		{"unknown json field", http.MethodPost, "/orders", map[string]any{"nope": true}, http.StatusBadRequest, "validation"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decodeError(t, rec).Error)
		})
	}
}

func TestListAndStatistics(t *testing.T) {
	s := newTestServer(t)
	customer := uuid.NewString()
	s.createOrder(t, customer, "10.00")
	s.createOrder(t, customer, "20.00")
	s.createOrder(t, uuid.NewString(), "30.00")

	rec := s.do(t, http.MethodGet, "/orders?customerId="+customer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []rest.OrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 2)

	rec = s.do(t, http.MethodGet, "/orders/statistics?customerId="+customer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats rest.StatisticsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, int64(2), stats.TotalOrders)
	assert.Equal(t, "30.00", stats.TotalRevenue)
	assert.Equal(t, "15.00", stats.AverageOrderValue)

	rec = s.do(t, http.MethodGet, "/orders/statistics?startDate=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTriggerPaymentAccepted(t *testing.T) {
	s := newTestServer(t)
	customer := uuid.NewString()
	created := s.createOrder(t, customer, "99.90")
	body := map[string]any{"orderId": created.OrderID, "customerId": customer, "price": "99.90"}

	rec := s.do(t, http.MethodPost, "/orders/payment", body, "X-Idempotency-Key", "abc")
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var ack app.PaymentAck
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ack))
	assert.Equal(t, "PENDING", ack.Status)
	assert.Equal(t, "/orders/payment/status/"+created.OrderID, ack.StatusUpdateURL)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	rec = s.do(t, http.MethodPost, "/orders/payment", body, "X-Idempotency-Key", "abc")
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, s.publisher.count, "same idempotency key publishes once")
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func readSSEEvent(t *testing.T, r *bufio.Reader) statushub.Event {
	t.Helper()
	var name, data string
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case line == "" && data != "":
			assert.Equal(t, "status", name)
			var evt statushub.Event
			require.NoError(t, json.Unmarshal([]byte(data), &evt))
			return evt
		}
	}
}

func TestStatusStreamSSE(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.handler)
	defer srv.Close()
	orderID := uuid.New()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/orders/payment/status/"+orderID.String(), nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	r := bufio.NewReader(resp.Body)
	first := readSSEEvent(t, r)
	assert.Equal(t, statushub.StatusPending, first.Status)
	assert.Equal(t, "Waiting for payment processing", first.Message)

	require.True(t, s.hub.Publish(ctx, orderID, statushub.Event{Status: statushub.StatusCompleted, Message: "Payment processed successfully"}))
	done := readSSEEvent(t, r)
	assert.Equal(t, statushub.StatusCompleted, done.Status)
	assert.Equal(t, orderID, done.OrderID)

	_, err = r.ReadString('\n')
	assert.Error(t, err, "stream ends after a terminal event")
}

func TestStatusStreamWebSocket(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.handler)
	defer srv.Close()
	orderID := uuid.New()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/orders/payment/ws/" + orderID.String()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var first statushub.Event
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, statushub.StatusPending, first.Status)

	require.True(t, s.hub.Publish(context.Background(), orderID, statushub.Event{Status: statushub.StatusFailed, Message: "Insufficient credit"}))
	var last statushub.Event
	require.NoError(t, conn.ReadJSON(&last))
	assert.Equal(t, statushub.StatusFailed, last.Status)
	assert.Equal(t, "Insufficient credit", last.Message)

	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}
