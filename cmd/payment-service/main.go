package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	paymentservice "github.com/jcmexdev/order-payment-saga/internal/payment-service"
	"github.com/jcmexdev/order-payment-saga/internal/pkg/bootstrap"
	"github.com/jcmexdev/order-payment-saga/internal/pkg/config"
	"github.com/jcmexdev/order-payment-saga/internal/pkg/telemetry"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, config.Load("payment-service", ":8081")); err != nil {
		slog.Error("payment service failed", "error", err)
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

	consumeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	svc, err := paymentservice.Start(consumeCtx, cfg, bootstrap.Infra{
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

	slog.Info("payment service starting", "addr", cfg.HTTPAddr, "broker", cfg.Broker)
	err = bootstrap.Serve(ctx, cfg.HTTPAddr, svc.Handler)
	cancel()
	return err
}
