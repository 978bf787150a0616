package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/order-payment-saga/internal/coordinator/sagalog"
	"github.com/jcmexdev/order-payment-saga/internal/order-service/adapters/memory"
	"github.com/jcmexdev/order-payment-saga/internal/order-service/adapters/voucher"
	"github.com/jcmexdev/order-payment-saga/internal/order-service/app"
	"github.com/jcmexdev/order-payment-saga/internal/order-service/domain"
	"github.com/jcmexdev/order-payment-saga/internal/pkg/broker"
	"github.com/jcmexdev/order-payment-saga/internal/pkg/cache"
	"github.com/jcmexdev/order-payment-saga/internal/statushub"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type capturePublisher struct {
	mu   sync.Mutex
	msgs []broker.Message
	err  error

	// When hold is set, Publish signals entered and waits for hold to close.
	hold    chan struct{}
	entered chan struct{}
}

func (p *capturePublisher) Publish(_ context.Context, msgs ...broker.Message) error {
	if p.hold != nil {
		p.entered <- struct{}{}
		<-p.hold
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, msgs...)
	return nil
}

func (p *capturePublisher) sent() []broker.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]broker.Message(nil), p.msgs...)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []statushub.Event
}

func (n *recordingNotifier) Publish(_ context.Context, orderID uuid.UUID, evt statushub.Event) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	evt.OrderID = orderID
	n.events = append(n.events, evt)
	return true
}

func (n *recordingNotifier) last() statushub.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.events[len(n.events)-1]
}

type fixture struct {
	store     *memory.Store
	publisher *capturePublisher
	notifier  *recordingNotifier
	sagaLog   *sagalog.MemoryRepository
	svc       *app.Service
	handler   *app.SettlementHandler
	now       time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:     memory.NewStore(),
		publisher: &capturePublisher{},
		notifier:  &recordingNotifier{},
		sagaLog:   sagalog.NewMemoryRepository(),
		now:       time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.svc = app.NewService(app.Deps{
		Store:          f.store,
		Vouchers:       voucher.NewCatalog(),
		Publisher:      f.publisher,
		Notifier:       f.notifier,
		Cache:          cache.NewMemory("order-service"),
		IdempotencyTTL: time.Hour,
		SagaLog:        f.sagaLog,
		Now:            func() time.Time { return f.now },
	})
	f.handler = app.NewSettlementHandler(f.store, f.notifier, f.sagaLog, nil)
	return f
}

func (f *fixture) createOrder(t *testing.T, price string) *domain.Order {
	t.Helper()
	o, err := f.svc.Create(context.Background(), app.CreateOrder{
		CustomerID:   uuid.New(),
		RestaurantID: uuid.New(),
		Items:        []domain.OrderItem{{ProductID: uuid.New(), Price: dec(price), Quantity: 1}},
	})
	require.NoError(t, err)
	return o
}

var errBrokerDown = errors.New("broker down")
