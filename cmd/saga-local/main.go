// Command saga-local runs the order and payment services in one process,
// connected by the in-process broker. Stores fall back to memory unless
// POSTGRES_DSN is set; both services share it, each in its own schema.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	orderservice "github.com/jcmexdev/order-payment-saga/internal/order-service"
	paymentservice "github.com/jcmexdev/order-payment-saga/internal/payment-service"
	"github.com/jcmexdev/order-payment-saga/internal/pkg/bootstrap"
	"github.com/jcmexdev/order-payment-saga/internal/pkg/config"
	"github.com/jcmexdev/order-payment-saga/internal/pkg/telemetry"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load("saga-local", ":8080")
	cfg.Broker = config.BrokerMemory
	paymentAddr := os.Getenv("PAYMENT_HTTP_ADDR")
	if paymentAddr == "" {
		paymentAddr = ":8081"
	}

	if err := run(ctx, cfg, paymentAddr); err != nil {
		slog.Error("saga-local failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, paymentAddr string) error {
	metricsHandler, flush, err := bootstrap.Telemetry(ctx, cfg)
	if err != nil {
		return err
	}
	defer flush()

	bus, err := bootstrap.NewBroker(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = bus.Close() }()

	sagaLog, closeLog, err := bootstrap.SagaLog(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	consumeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	infra := bootstrap.Infra{
		Publisher:      bus.Publisher,
		Subscriber:     bus.Subscriber,
		SagaLog:        sagaLog,
		Metrics:        telemetry.NewSagaMetrics(),
		MetricsHandler: metricsHandler,
	}

	payments, err := paymentservice.Start(consumeCtx, cfg, infra)
	if err != nil {
		return err
	}
	defer payments.Close()

	orders, err := orderservice.Start(consumeCtx, cfg, infra)
	if err != nil {
		return err
	}
	defer orders.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return bootstrap.Serve(gctx, cfg.HTTPAddr, orders.Handler, orders.Hub.Shutdown)
	})
	g.Go(func() error {
		return bootstrap.Serve(gctx, paymentAddr, payments.Handler)
	})
	err = g.Wait()
	cancel()
	return err
}
