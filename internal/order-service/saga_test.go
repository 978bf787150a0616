package orderservice_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/order-payment-saga/internal/coordinator/sagalog"
	orderservice "github.com/jcmexdev/order-payment-saga/internal/order-service"
	paymentservice "github.com/jcmexdev/order-payment-saga/internal/payment-service"
	"github.com/jcmexdev/order-payment-saga/internal/pkg/bootstrap"
	"github.com/jcmexdev/order-payment-saga/internal/pkg/broker"
	"github.com/jcmexdev/order-payment-saga/internal/pkg/config"
	"github.com/jcmexdev/order-payment-saga/internal/pkg/interceptors/constants"
)

type saga struct {
	orders   *httptest.Server
	payments *httptest.Server
	log      *sagalog.MemoryRepository
}

func startSaga(t *testing.T) *saga {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	bus := broker.NewMemoryBus(4, broker.RetryPolicy{MaxAttempts: 3, Backoff: time.Millisecond})
	log := sagalog.NewMemoryRepository()
	infra := bootstrap.Infra{Publisher: bus, Subscriber: bus, SagaLog: log}

	paySvc, err := paymentservice.Start(ctx, config.Default("payment-service", ""), infra)
	require.NoError(t, err)
	orderSvc, err := orderservice.Start(ctx, config.Default("order-service", ""), infra)
	require.NoError(t, err)

	s := &saga{
		orders:   httptest.NewServer(orderSvc.Handler),
		payments: httptest.NewServer(paySvc.Handler),
		log:      log,
	}
	t.Cleanup(func() {
		s.orders.Close()
		s.payments.Close()
		cancel()
		bus.Wait()
		orderSvc.Close()
		paySvc.Close()
	})
	return s
}

func call(t *testing.T, method, url string, body any, out any, headers ...string) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (s *saga) setCredit(t *testing.T, customerID uuid.UUID, amount string) {
	t.Helper()
	code := call(t, http.MethodPut, s.payments.URL+"/api/v1/credits/total",
		map[string]any{"customerId": customerID.String(), "totalCredit": json.Number(amount)}, nil)
	require.Equal(t, http.StatusOK, code)
}

func (s *saga) credit(t *testing.T, customerID uuid.UUID) string {
	t.Helper()
	var out struct {
		TotalCredit string `json:"totalCredit"`
	}
	code := call(t, http.MethodGet, s.payments.URL+"/api/v1/credits/total?customerId="+customerID.String(), nil, &out)
	require.Equal(t, http.StatusOK, code)
	return out.TotalCredit
}

type order struct {
	OrderID         string `json:"orderId"`
	Price           string `json:"price"`
	Status          string `json:"status"`
	FailureMessages string `json:"failureMessages"`
}

func (s *saga) createOrder(t *testing.T, customerID uuid.UUID, price string) order {
	t.Helper()
	var out order
	code := call(t, http.MethodPost, s.orders.URL+"/orders", map[string]any{
		"customerId":   customerID.String(),
		"restaurantId": uuid.NewString(),
		"items": []map[string]any{
			{"productId": uuid.NewString(), "price": json.Number(price), "quantity": 1},
		},
	}, &out)
	require.Equal(t, http.StatusCreated, code)
	return out
}

func (s *saga) pay(t *testing.T, customerID uuid.UUID, o order, key string) int {
	t.Helper()
	return call(t, http.MethodPost, s.orders.URL+"/orders/payment", map[string]any{
		"orderId":    o.OrderID,
		"customerId": customerID.String(),
		"price":      json.Number(o.Price),
	}, nil, constants.HeaderIdempotencyKey, key)
}

func (s *saga) waitStatus(t *testing.T, orderID, want string) order {
	t.Helper()
	var got order
	require.Eventually(t, func() bool {
		got = order{}
		call(t, http.MethodGet, s.orders.URL+"/orders/"+orderID, nil, &got)
		return got.Status == want
	}, 2*time.Second, 10*time.Millisecond, "order %s never reached %s", orderID, want)
	return got
}

func TestSagaPaysOrderWithEnoughCredit(t *testing.T) {
	s := startSaga(t)
	customer := uuid.New()
	s.setCredit(t, customer, "100")

	o := s.createOrder(t, customer, "40.00")
	require.Equal(t, http.StatusAccepted, s.pay(t, customer, o, ""))

	s.waitStatus(t, o.OrderID, "PAID")
	assert.Equal(t, "60.00", s.credit(t, customer))

	var history []sagalog.SagaLog
	require.Eventually(t, func() bool {
		history, _ = s.log.History(context.Background(), o.OrderID)
		return len(history) == 3
	}, time.Second, 10*time.Millisecond)
	statuses := make([]sagalog.Status, 0, len(history))
	for _, e := range history {
		statuses = append(statuses, e.Status)
	}
	assert.ElementsMatch(t, []sagalog.Status{sagalog.StatusStarted, sagalog.StatusStepDone, sagalog.StatusCompleted}, statuses)
}

func TestSagaCancelsOrderWithoutCredit(t *testing.T) {
	s := startSaga(t)
	customer := uuid.New()
	s.setCredit(t, customer, "100")

	o := s.createOrder(t, customer, "150.00")
	require.Equal(t, http.StatusAccepted, s.pay(t, customer, o, ""))

	got := s.waitStatus(t, o.OrderID, "CANCELLED")
	assert.Equal(t, "Insufficient credit. Available: 100.00, Required: 150.00", got.FailureMessages)
	assert.Equal(t, "100.00", s.credit(t, customer))
}

func TestSagaRepeatedTriggerDebitsOnce(t *testing.T) {
	s := startSaga(t)
	customer := uuid.New()
	s.setCredit(t, customer, "100")

	o := s.createOrder(t, customer, "25.00")
	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusAccepted, s.pay(t, customer, o, "checkout-1"), fmt.Sprintf("attempt %d", i))
	}

	s.waitStatus(t, o.OrderID, "PAID")
	assert.Equal(t, "75.00", s.credit(t, customer))
}
