// Package paymentservice wires the payment side of the saga: the payment
// request consumer, the settlement producer and the credit API.
package paymentservice

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jcmexdev/order-payment-saga/internal/contracts"
	"github.com/jcmexdev/order-payment-saga/internal/payment-service/adapters/memory"
	"github.com/jcmexdev/order-payment-saga/internal/payment-service/adapters/postgres"
	"github.com/jcmexdev/order-payment-saga/internal/payment-service/adapters/rest"
	"github.com/jcmexdev/order-payment-saga/internal/payment-service/app"
	"github.com/jcmexdev/order-payment-saga/internal/pkg/bootstrap"
	"github.com/jcmexdev/order-payment-saga/internal/pkg/config"
	"github.com/jcmexdev/order-payment-saga/internal/pkg/interceptors"
	pg "github.com/jcmexdev/order-payment-saga/internal/pkg/postgres"
)

type Service struct {
	Handler http.Handler
	close   func()
}

func (s *Service) Close() {
	if s.close != nil {
		s.close()
	}
}

// Start builds the service and subscribes to payment requests. The consumer
// runs until ctx is done.
func Start(ctx context.Context, cfg config.Config, infra bootstrap.Infra) (*Service, error) {
	svc := &Service{}

	var store app.Store
	if cfg.PostgresDSN == "" {
		slog.Info("using in-memory payment store")
		store = memory.NewStore()
	} else {
		if err := pg.Migrate(ctx, cfg.PostgresDSN, pg.SchemaPayment); err != nil {
			return nil, err
		}
		pool, err := pg.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		svc.close = pool.Close
		slog.Info("using postgres payment store")
		store = postgres.NewStore(pool)
	}

	processor := app.NewProcessor(app.Deps{
		Store:     store,
		Publisher: interceptors.TracePublisher(infra.Publisher),
		SagaLog:   infra.SagaLog,
		Metrics:   infra.Metrics,
	})
	if err := infra.Subscriber.Subscribe(ctx, contracts.TopicPaymentRequest, interceptors.TraceConsumer(processor.HandleMessage)); err != nil {
		svc.Close()
		return nil, fmt.Errorf("paymentservice: subscribe %s: %w", contracts.TopicPaymentRequest, err)
	}

	handler := rest.NewHandler(app.NewCreditService(store), app.NewPaymentQuery(store))
	svc.Handler = rest.NewRouter(handler, infra.MetricsHandler)
	return svc, nil
}
