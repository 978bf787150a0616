// Package bootstrap builds the infrastructure both services share from a
// config.Config: telemetry, the broker, the saga log and the HTTP server.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jcmexdev/order-payment-saga/internal/coordinator/sagalog"
	"github.com/jcmexdev/order-payment-saga/internal/coordinator/sagalog/sqlite"
	"github.com/jcmexdev/order-payment-saga/internal/pkg/broker"
	"github.com/jcmexdev/order-payment-saga/internal/pkg/config"
	"github.com/jcmexdev/order-payment-saga/internal/pkg/telemetry"
)

const (
	memoryPartitions = 8
	shutdownTimeout  = 10 * time.Second
)

// Infra is what a service needs from its process.
type Infra struct {
	Publisher      broker.Publisher
	Subscriber     broker.Subscriber
	SagaLog        sagalog.Repository
	Metrics        *telemetry.SagaMetrics
	MetricsHandler http.Handler
}

// Telemetry installs the logger, the tracer and the meter provider. The
// returned function flushes both providers.
func Telemetry(ctx context.Context, cfg config.Config) (http.Handler, func(), error) {
	telemetry.InitLogger(cfg.ServiceName, cfg.LogLevel)

	shutdownTracer, err := telemetry.SetupTracer(ctx, cfg.ServiceName, cfg.TracingEnabled)
	if err != nil {
		return nil, nil, fmt.Errorf("bootstrap: tracer: %w", err)
	}
	metricsHandler, shutdownMetrics, err := telemetry.SetupMetrics(cfg.ServiceName)
	if err != nil {
		_ = shutdownTracer(ctx)
		return nil, nil, fmt.Errorf("bootstrap: metrics: %w", err)
	}

	return metricsHandler, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			slog.Error("tracer shutdown error", "error", err)
		}
		if err := shutdownMetrics(shutdownCtx); err != nil {
			slog.Error("meter shutdown error", "error", err)
		}
	}, nil
}

// Broker is a publisher and subscriber pair over one transport.
type Broker struct {
	Publisher  broker.Publisher
	Subscriber broker.Subscriber
	close      func() error
}

// Close stops consuming and flushes the publisher. Subscriptions must have
// been cancelled first.
func (b Broker) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

// NewBroker selects Kafka or the in-process bus. Dead letters are written
// through the same publisher.
func NewBroker(cfg config.Config) (Broker, error) {
	policy := broker.RetryPolicy{MaxAttempts: cfg.ConsumerMaxAttempts, Backoff: cfg.ConsumerRetryBackoff}

	switch cfg.Broker {
	case config.BrokerMemory:
		bus := broker.NewMemoryBus(memoryPartitions, policy)
		return Broker{
			Publisher:  bus,
			Subscriber: bus,
			close:      func() error { bus.Wait(); return nil },
		}, nil
	case config.BrokerKafka:
		publisher := broker.NewKafkaPublisher(cfg.KafkaBrokers)
		kcfg := broker.DefaultKafkaConfig()
		kcfg.Brokers = cfg.KafkaBrokers
		kcfg.GroupID = cfg.KafkaGroupID
		kcfg.Retry = policy
		subscriber, err := broker.NewKafkaSubscriber(kcfg, publisher)
		if err != nil {
			_ = publisher.Close()
			return Broker{}, fmt.Errorf("bootstrap: kafka: %w", err)
		}
		return Broker{
			Publisher:  publisher,
			Subscriber: subscriber,
			close: func() error {
				return errors.Join(subscriber.Close(), publisher.Close())
			},
		}, nil
	}
	return Broker{}, fmt.Errorf("bootstrap: unknown broker %q", cfg.Broker)
}

// SagaLog opens the SQLite saga log at cfg.SagaLogPath. Without a path the
// log is disabled and the repository is nil.
func SagaLog(cfg config.Config) (sagalog.Repository, func(), error) {
	if cfg.SagaLogPath == "" {
		return nil, func() {}, nil
	}
	repo, err := sqlite.Open(cfg.SagaLogPath)
	if err != nil {
		return nil, nil, fmt.Errorf("bootstrap: saga log: %w", err)
	}
	slog.Info("saga log enabled", "path", cfg.SagaLogPath)
	return repo, func() {
		if err := repo.Close(); err != nil {
			slog.Error("saga log close error", "error", err)
		}
	}, nil
}

// Serve runs an HTTP server until ctx is done, then shuts it down
// gracefully. onShutdown runs when shutdown starts, before waiting for
// active requests, so long-lived streams can be ended.
func Serve(ctx context.Context, addr string, handler http.Handler, onShutdown ...func()) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	for _, fn := range onShutdown {
		srv.RegisterOnShutdown(fn)
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("bootstrap: serve %s: %w", addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("bootstrap: shutdown %s: %w", addr, err)
	}
	slog.Info("http server stopped", "addr", addr)
	return nil
}
