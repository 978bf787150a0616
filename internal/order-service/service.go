// Package orderservice wires the order side of the saga: the order API, the
// payment request producer, the settlement consumer and the status hub.
package orderservice

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jcmexdev/order-payment-saga/internal/contracts"
	"github.com/jcmexdev/order-payment-saga/internal/order-service/adapters/memory"
	"github.com/jcmexdev/order-payment-saga/internal/order-service/adapters/postgres"
	"github.com/jcmexdev/order-payment-saga/internal/order-service/adapters/rest"
	"github.com/jcmexdev/order-payment-saga/internal/order-service/adapters/voucher"
	"github.com/jcmexdev/order-payment-saga/internal/order-service/app"
	"github.com/jcmexdev/order-payment-saga/internal/pkg/bootstrap"
	"github.com/jcmexdev/order-payment-saga/internal/pkg/cache"
	"github.com/jcmexdev/order-payment-saga/internal/pkg/config"
	"github.com/jcmexdev/order-payment-saga/internal/pkg/interceptors"
	pg "github.com/jcmexdev/order-payment-saga/internal/pkg/postgres"
	"github.com/jcmexdev/order-payment-saga/internal/statushub"
)

const cacheNamespace = "order"

type Service struct {
	Handler http.Handler
	Hub     *statushub.Hub
	closers []func()
}

// Close releases the stores and the cache. Call it after ctx passed to Start
// is done.
func (s *Service) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// Start builds the service and subscribes to settlements. The consumer runs
// until ctx is done.
func Start(ctx context.Context, cfg config.Config, infra bootstrap.Infra) (*Service, error) {
	svc := &Service{}

	store, err := openStore(ctx, cfg, svc)
	if err != nil {
		svc.Close()
		return nil, err
	}
	idempotency, err := openCache(ctx, cfg, svc)
	if err != nil {
		svc.Close()
		return nil, err
	}

	svc.Hub = statushub.New(statushub.Config{
		Lifetime:      cfg.StatusStreamTTL,
		Buffer:        cfg.StatusBuffer,
		SweepInterval: cfg.StatusSweepInterval,
	}, infra.Metrics)
	go svc.Hub.Run(ctx)

	orders := app.NewService(app.Deps{
		Store:          store,
		Vouchers:       voucher.NewCatalog(),
		Publisher:      interceptors.TracePublisher(infra.Publisher),
		Notifier:       svc.Hub,
		Cache:          idempotency,
		IdempotencyTTL: cfg.IdempotencyTTL,
		SagaLog:        infra.SagaLog,
		Metrics:        infra.Metrics,
	})
	settlements := app.NewSettlementHandler(store, svc.Hub, infra.SagaLog, infra.Metrics)

	if err := infra.Subscriber.Subscribe(ctx, contracts.TopicPaymentResponse, interceptors.TraceConsumer(settlements.HandleMessage)); err != nil {
		svc.Close()
		return nil, fmt.Errorf("orderservice: subscribe %s: %w", contracts.TopicPaymentResponse, err)
	}

	svc.Handler = rest.NewRouter(rest.NewHandler(orders, svc.Hub), infra.MetricsHandler)
	return svc, nil
}

func openStore(ctx context.Context, cfg config.Config, svc *Service) (app.OrderStore, error) {
	if cfg.PostgresDSN == "" {
		slog.Info("using in-memory order store")
		return memory.NewStore(), nil
	}
	if err := pg.Migrate(ctx, cfg.PostgresDSN, pg.SchemaOrder); err != nil {
		return nil, err
	}
	pool, err := pg.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	svc.closers = append(svc.closers, pool.Close)
	slog.Info("using postgres order store")
	return postgres.NewStore(pool), nil
}

func openCache(ctx context.Context, cfg config.Config, svc *Service) (cache.Cache, error) {
	if cfg.RedisAddr == "" {
		return cache.NewMemory(cacheNamespace), nil
	}
	c := cache.NewRedisCache(cfg.RedisAddr, cacheNamespace)
	if err := c.Ping(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("orderservice: redis %s: %w", cfg.RedisAddr, err)
	}
	svc.closers = append(svc.closers, func() { _ = c.Close() })
	return c, nil
}
