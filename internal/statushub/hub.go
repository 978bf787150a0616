// Package statushub pushes payment status updates to clients watching an
// order. Delivery is best effort: an event for an order nobody watches is
// dropped, and a subscriber that cannot keep up is disconnected.
package statushub

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jcmexdev/order-payment-saga/internal/pkg/telemetry"
)

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// Terminal reports whether no further event follows for the order.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

const waitingMessage = "Waiting for payment processing"

type Event struct {
	OrderID       uuid.UUID        `json:"orderId"`
	CustomerID    uuid.UUID        `json:"customerId"`
	Status        Status           `json:"status"`
	Message       string           `json:"message"`
	Timestamp     time.Time        `json:"timestamp"`
	Amount        *decimal.Decimal `json:"amount,omitempty"`
	TransactionID string           `json:"transactionId,omitempty"`
}

type Config struct {
	// Lifetime bounds how long one subscription stays open.
	Lifetime time.Duration
	// Buffer is the number of undelivered events a subscriber may lag behind.
	Buffer int
	// SweepInterval is how often Run looks for expired subscriptions.
	SweepInterval time.Duration
}

func DefaultConfig() Config {
	return Config{Lifetime: 30 * time.Minute, Buffer: 16, SweepInterval: 5 * time.Minute}
}

// Hub is a registry of at most one subscription per order.
type Hub struct {
	cfg     Config
	metrics *telemetry.SagaMetrics
	now     func() time.Time

	mu   sync.RWMutex
	subs map[uuid.UUID]*Subscription
}

func New(cfg Config, metrics *telemetry.SagaMetrics) *Hub {
	def := DefaultConfig()
	if cfg.Lifetime <= 0 {
		cfg.Lifetime = def.Lifetime
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = def.Buffer
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = def.SweepInterval
	}
	return &Hub{
		cfg:     cfg,
		metrics: metrics,
		now:     time.Now,
		subs:    make(map[uuid.UUID]*Subscription),
	}
}

// Subscribe registers a subscription for orderID, replacing any previous
// one, and queues the initial PENDING event. The subscription ends when
// parent is done, after Config.Lifetime, or on Close.
func (h *Hub) Subscribe(parent context.Context, orderID uuid.UUID) *Subscription {
	ctx, cancel := context.WithTimeout(parent, h.cfg.Lifetime)
	s := &Subscription{
		hub:     h,
		orderID: orderID,
		events:  make(chan Event, h.cfg.Buffer),
		ctx:     ctx,
		cancel:  cancel,
	}
	s.events <- Event{
		OrderID:   orderID,
		Status:    StatusPending,
		Message:   waitingMessage,
		Timestamp: h.now().UTC(),
	}

	h.mu.Lock()
	prev := h.subs[orderID]
	h.subs[orderID] = s
	h.mu.Unlock()

	if prev != nil {
		prev.Close()
	}
	h.metrics.SubscriberAdded(ctx)
	context.AfterFunc(ctx, s.Close)

	slog.DebugContext(parent, "status subscription opened", "order_id", orderID, "lifetime", h.cfg.Lifetime)
	return s
}

// Publish hands evt to the order's subscriber without blocking. It reports
// whether the event was queued.
func (h *Hub) Publish(ctx context.Context, orderID uuid.UUID, evt Event) bool {
	h.mu.RLock()
	s := h.subs[orderID]
	h.mu.RUnlock()

	if s == nil {
		slog.DebugContext(ctx, "no status subscriber, event dropped", "order_id", orderID, "status", evt.Status)
		h.metrics.EventDropped(ctx)
		return false
	}

	evt.OrderID = orderID
	if evt.Timestamp.IsZero() {
		evt.Timestamp = h.now().UTC()
	}

	if s.ctx.Err() != nil {
		s.Close()
		h.metrics.EventDropped(ctx)
		return false
	}

	select {
	case s.events <- evt:
		return true
	default:
		slog.WarnContext(ctx, "status subscriber is not draining, disconnecting", "order_id", orderID)
		s.Close()
		h.metrics.EventDropped(ctx)
		return false
	}
}

// Run removes expired subscriptions every SweepInterval until ctx is done.
// Subscriptions normally remove themselves; this only catches leftovers.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := h.sweep(); n > 0 {
				slog.InfoContext(ctx, "swept expired status subscriptions", "count", n)
			}
		}
	}
}

func (h *Hub) sweep() int {
	h.mu.RLock()
	var expired []*Subscription
	for _, s := range h.subs {
		if s.ctx.Err() != nil {
			expired = append(expired, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range expired {
		s.Close()
	}
	return len(expired)
}

// Shutdown closes every subscription, which ends the streams serving them.
func (h *Hub) Shutdown() {
	h.mu.RLock()
	subs := make([]*Subscription, 0, len(h.subs))
	for _, s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.RUnlock()

	for _, s := range subs {
		s.Close()
	}
}

// Len returns the number of registered subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[s.orderID] == s {
		delete(h.subs, s.orderID)
	}
}
