package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jcmexdev/order-payment-saga/internal/contracts"
	"github.com/jcmexdev/order-payment-saga/internal/coordinator"
	"github.com/jcmexdev/order-payment-saga/internal/coordinator/sagalog"
	"github.com/jcmexdev/order-payment-saga/internal/order-service/domain"
	"github.com/jcmexdev/order-payment-saga/internal/pkg/broker"
	"github.com/jcmexdev/order-payment-saga/internal/pkg/cache"
	"github.com/jcmexdev/order-payment-saga/internal/pkg/errs"
	"github.com/jcmexdev/order-payment-saga/internal/pkg/interceptors"
	"github.com/jcmexdev/order-payment-saga/internal/pkg/telemetry"
	"github.com/jcmexdev/order-payment-saga/internal/statushub"
)

const (
	paymentQueuedMessage     = "Payment request queued for processing"
	paymentProcessingMessage = "Payment is being processed"
	statusURLPrefix          = "/orders/payment/status/"
	triggerCacheOperation    = "payment-trigger"

	// triggerPending marks an idempotency key whose request is still being
	// published. It expires on its own if the process dies mid-request.
	triggerPending    = "pending"
	triggerPendingTTL = 30 * time.Second
)

type CreateOrder struct {
	CustomerID   uuid.UUID
	RestaurantID uuid.UUID
	Items        []domain.OrderItem
	VoucherCode  string
}

type UpdateOrder struct {
	Items       []domain.OrderItem
	VoucherCode string
}

type TriggerPayment struct {
	OrderID    uuid.UUID
	CustomerID uuid.UUID
	Price      decimal.Decimal
}

// PaymentAck acknowledges that a payment request was queued.
type PaymentAck struct {
	OrderID         uuid.UUID `json:"orderId"`
	CustomerID      uuid.UUID `json:"customerId"`
	Status          string    `json:"status"`
	Message         string    `json:"message"`
	Timestamp       time.Time `json:"timestamp"`
	StatusUpdateURL string    `json:"statusUpdateUrl"`
}

type Deps struct {
	Store     OrderStore
	Vouchers  VoucherLookup
	Publisher broker.Publisher
	Notifier  StatusNotifier
	// Cache holds payment trigger results by idempotency key. Optional.
	Cache          cache.Cache
	IdempotencyTTL time.Duration
	// SagaLog is optional.
	SagaLog sagalog.Repository
	Metrics *telemetry.SagaMetrics
	Now     func() time.Time
}

type Service struct {
	store          OrderStore
	vouchers       VoucherLookup
	publisher      broker.Publisher
	notifier       StatusNotifier
	cache          cache.Cache
	idempotencyTTL time.Duration
	sagaLog        sagalog.Repository
	metrics        *telemetry.SagaMetrics
	now            func() time.Time
}

func NewService(d Deps) *Service {
	s := &Service{
		store:          d.Store,
		vouchers:       d.Vouchers,
		publisher:      d.Publisher,
		notifier:       d.Notifier,
		cache:          d.Cache,
		idempotencyTTL: d.IdempotencyTTL,
		sagaLog:        d.SagaLog,
		metrics:        d.Metrics,
		now:            d.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.idempotencyTTL <= 0 {
		s.idempotencyTTL = 24 * time.Hour
	}
	return s
}

func (s *Service) Create(ctx context.Context, cmd CreateOrder) (*domain.Order, error) {
	o, err := domain.NewOrder(cmd.CustomerID, cmd.RestaurantID, cmd.Items, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.applyVoucher(ctx, o, cmd.VoucherCode); err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, o); err != nil {
		return nil, fmt.Errorf("save order: %w", err)
	}

	slog.InfoContext(ctx, "order created",
		"order_id", o.ID(),
		"customer_id", o.CustomerID(),
		"tracking_id", o.TrackingID(),
		"price", o.Price().StringFixed(2),
		"request_id", interceptors.RequestID(ctx),
	)
	return o, nil
}

// Update replaces the items of a PENDING order. The voucher in cmd, if any,
// is applied to the new items; an earlier voucher is not carried over.
func (s *Service) Update(ctx context.Context, orderID uuid.UUID, cmd UpdateOrder) (*domain.Order, error) {
	var voucher *domain.Voucher
	if code := strings.TrimSpace(cmd.VoucherCode); code != "" {
		v, err := s.vouchers.Find(ctx, code)
		if err != nil {
			return nil, err
		}
		voucher = &v
	}

	o, err := s.store.Update(ctx, orderID, func(o *domain.Order) error {
		if err := o.UpdateItems(cmd.Items); err != nil {
			return err
		}
		if voucher != nil {
			return o.ApplyVoucher(*voucher)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "order updated", "order_id", orderID, "price", o.Price().StringFixed(2))
	return o, nil
}

func (s *Service) Rate(ctx context.Context, orderID uuid.UUID, score int, comment string) (*domain.Order, error) {
	o, err := s.store.Update(ctx, orderID, func(o *domain.Order) error {
		return o.AddRating(score, comment)
	})
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "order rated", "order_id", orderID, "score", score)
	return o, nil
}

func (s *Service) Get(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	return s.store.FindByID(ctx, orderID)
}

func (s *Service) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]*domain.Order, error) {
	if customerID == uuid.Nil {
		return nil, errs.Validation("customer id is required")
	}
	return s.store.FindByCustomerID(ctx, customerID)
}

func (s *Service) Statistics(ctx context.Context, filter domain.StatisticsFilter) (domain.Statistics, error) {
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return domain.Statistics{}, errs.Validation("start date must not be after end date")
	}
	return s.store.Statistics(ctx, filter)
}

// TriggerPayment starts the saga for a PENDING order by publishing a
// PaymentRequested keyed by the order id. With an idempotency key in ctx the
// key is reserved before publishing: a repeated call returns the first
// acknowledgement, and a call racing an unfinished one is InvalidState.
func (s *Service) TriggerPayment(ctx context.Context, cmd TriggerPayment) (PaymentAck, error) {
	key := interceptors.IdempotencyKey(ctx)
	ack, replay, err := s.reserveKey(ctx, key)
	if err != nil {
		return PaymentAck{}, err
	}
	if replay {
		slog.InfoContext(ctx, "payment trigger replayed from idempotency key", "order_id", ack.OrderID, "idempotency_key", key)
		return ack, nil
	}

	ack, err = s.requestPayment(ctx, cmd)
	if err != nil {
		s.releaseKey(ctx, key)
		return PaymentAck{}, err
	}
	s.storeAck(ctx, key, ack)

	slog.InfoContext(ctx, "payment requested",
		"order_id", ack.OrderID,
		"customer_id", ack.CustomerID,
		"price", cmd.Price.StringFixed(2),
		"idempotency_key", key,
	)
	return ack, nil
}

func (s *Service) requestPayment(ctx context.Context, cmd TriggerPayment) (PaymentAck, error) {
	o, err := s.store.FindByID(ctx, cmd.OrderID)
	if err != nil {
		return PaymentAck{}, err
	}
	if o.Status() != domain.StatusPending {
		return PaymentAck{}, errs.InvalidState("order %s is %s, only PENDING orders can be paid", o.ID(), o.Status())
	}
	if cmd.CustomerID != o.CustomerID() {
		return PaymentAck{}, errs.Validation("order %s does not belong to customer %s", o.ID(), cmd.CustomerID)
	}
	if !cmd.Price.Equal(o.Price()) {
		return PaymentAck{}, errs.Validation("price %s does not match order price %s",
			cmd.Price.StringFixed(2), o.Price().StringFixed(2))
	}

	now := s.now().UTC()
	req := contracts.PaymentRequested{
		OrderID:     o.ID(),
		CustomerID:  o.CustomerID(),
		Price:       o.Price(),
		RequestedAt: now,
	}
	msg, err := req.Message()
	if err != nil {
		return PaymentAck{}, err
	}
	if err := s.publisher.Publish(ctx, msg); err != nil {
		return PaymentAck{}, fmt.Errorf("publish payment request for order %s: %w", o.ID(), err)
	}

	s.metrics.PaymentRequested(ctx)
	sagalog.Record(ctx, s.sagaLog, o.ID().String(), sagalog.StatusStarted, coordinator.StepPaymentRequested, req)
	if s.notifier != nil {
		amount := o.Price()
		s.notifier.Publish(ctx, o.ID(), statushub.Event{
			CustomerID: o.CustomerID(),
			Status:     statushub.StatusProcessing,
			Message:    paymentProcessingMessage,
			Amount:     &amount,
		})
	}

	return PaymentAck{
		OrderID:         o.ID(),
		CustomerID:      o.CustomerID(),
		Status:          string(statushub.StatusPending),
		Message:         paymentQueuedMessage,
		Timestamp:       now,
		StatusUpdateURL: statusURLPrefix + o.ID().String(),
	}, nil
}

func (s *Service) applyVoucher(ctx context.Context, o *domain.Order, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil
	}
	v, err := s.vouchers.Find(ctx, code)
	if err != nil {
		return err
	}
	return o.ApplyVoucher(v)
}

// reserveKey claims key with a pending marker. When the key already holds an
// acknowledgement it is returned with replay set. Cache errors other than a
// lost race degrade to no idempotency.
func (s *Service) reserveKey(ctx context.Context, key string) (PaymentAck, bool, error) {
	if key == "" || s.cache == nil {
		return PaymentAck{}, false, nil
	}
	ck := s.cache.GenerateKey(triggerCacheOperation, key)

	// The holder may expire between SetNX and Get; one retry covers that.
	for range 2 {
		ok, err := s.cache.SetNX(ctx, ck, triggerPending, min(triggerPendingTTL, s.idempotencyTTL))
		if err != nil {
			slog.WarnContext(ctx, "idempotency reservation failed", "idempotency_key", key, "error", err)
			return PaymentAck{}, false, nil
		}
		if ok {
			return PaymentAck{}, false, nil
		}

		raw, err := s.cache.Get(ctx, ck)
		if err != nil {
			return PaymentAck{}, false, fmt.Errorf("read idempotency key %s: %w", key, err)
		}
		switch raw {
		case "":
			continue
		case triggerPending:
			return PaymentAck{}, false, errs.InvalidState("a payment request with idempotency key %s is in progress", key)
		}
		var ack PaymentAck
		if err := json.Unmarshal([]byte(raw), &ack); err != nil {
			slog.WarnContext(ctx, "idempotency entry unreadable", "idempotency_key", key, "error", err)
			return PaymentAck{}, false, nil
		}
		return ack, true, nil
	}
	return PaymentAck{}, false, nil
}

// releaseKey drops the reservation so a failed request can be retried with
// the same key.
func (s *Service) releaseKey(ctx context.Context, key string) {
	if key == "" || s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, s.cache.GenerateKey(triggerCacheOperation, key)); err != nil {
		slog.WarnContext(ctx, "idempotency release failed", "idempotency_key", key, "error", err)
	}
}

func (s *Service) storeAck(ctx context.Context, key string, ack PaymentAck) {
	if key == "" || s.cache == nil {
		return
	}
	b, err := json.Marshal(ack)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, s.cache.GenerateKey(triggerCacheOperation, key), string(b), s.idempotencyTTL); err != nil {
		slog.WarnContext(ctx, "idempotency write failed", "idempotency_key", key, "error", err)
	}
}
