package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	orderservice "github.com/jcmexdev/order-payment-saga/internal/order-service"
	"github.com/jcmexdev/order-payment-saga/internal/pkg/bootstrap"
	"github.com/jcmexdev/order-payment-saga/internal/pkg/config"
	"github.com/jcmexdev/order-payment-saga/internal/pkg/telemetry"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, config.Load("order-service", ":8080")); err != nil {
		slog.Error("order service failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	metricsHandler, flush, err := bootstrap.Telemetry(ctx, cfg)
	if err != nil {
		return err
	}
	defer flush()

	bus, err := bootstrap.NewBroker(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := bus.Close(); err != nil {
			slog.Error("broker close error", "error", err)
		}
	}()

	sagaLog, closeLog, err := bootstrap.SagaLog(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	// Consumers stop with consumeCtx, before the broker is closed.
	consumeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	svc, err := orderservice.Start(consumeCtx, cfg, bootstrap.Infra{
		Publisher:      bus.Publisher,
		Subscriber:     bus.Subscriber,
		SagaLog:        sagaLog,
		Metrics:        telemetry.NewSagaMetrics(),
		MetricsHandler: metricsHandler,
	})
	if err != nil {
		return err
	}
	defer svc.Close()

	slog.Info("order service starting", "addr", cfg.HTTPAddr, "broker", cfg.Broker)
	err = bootstrap.Serve(ctx, cfg.HTTPAddr, svc.Handler, svc.Hub.Shutdown)
	cancel()
	return err
}
