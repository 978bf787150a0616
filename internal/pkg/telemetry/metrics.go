package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "github.com/jcmexdev/order-payment-saga"

// SetupMetrics installs a global MeterProvider backed by a Prometheus
// exporter on a private registry and returns the handler that serves it.
func SetupMetrics(serviceName string) (http.Handler, ShutdownFunc, error) {
	registry := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, nil, fmt.Errorf("telemetry: failed to create prometheus exporter: %w", err)
	}

	res, err := serviceResource(serviceName)
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(provider)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return handler, provider.Shutdown, nil
}

// SagaMetrics groups the instruments recorded along the saga. A nil
// *SagaMetrics records nothing.
type SagaMetrics struct {
	paymentRequests metric.Int64Counter
	settlements     metric.Int64Counter
	debits          metric.Int64Counter
	subscribers     metric.Int64UpDownCounter
	dropped         metric.Int64Counter
}

// NewSagaMetrics creates the instruments on the global MeterProvider.
// Instruments created before SetupMetrics start exporting once it runs.
func NewSagaMetrics() *SagaMetrics {
	meter := otel.Meter(meterName)
	m := &SagaMetrics{}
	var err error

	if m.paymentRequests, err = meter.Int64Counter("saga_payment_requests_total",
		metric.WithDescription("Payment requests published by the order service")); err != nil {
		slog.Warn("metric registration failed", "metric", "saga_payment_requests_total", "error", err)
	}
	if m.settlements, err = meter.Int64Counter("saga_settlements_total",
		metric.WithDescription("Settlements handled, by status and outcome")); err != nil {
		slog.Warn("metric registration failed", "metric", "saga_settlements_total", "error", err)
	}
	if m.debits, err = meter.Int64Counter("ledger_debits_total",
		metric.WithDescription("Successful credit debits")); err != nil {
		slog.Warn("metric registration failed", "metric", "ledger_debits_total", "error", err)
	}
	if m.subscribers, err = meter.Int64UpDownCounter("statushub_subscribers",
		metric.WithDescription("Open status subscriptions")); err != nil {
		slog.Warn("metric registration failed", "metric", "statushub_subscribers", "error", err)
	}
	if m.dropped, err = meter.Int64Counter("statushub_dropped_total",
		metric.WithDescription("Status events that found no live subscriber")); err != nil {
		slog.Warn("metric registration failed", "metric", "statushub_dropped_total", "error", err)
	}
	return m
}

func (m *SagaMetrics) PaymentRequested(ctx context.Context) {
	if m == nil || m.paymentRequests == nil {
		return
	}
	m.paymentRequests.Add(ctx, 1)
}

func (m *SagaMetrics) Settlement(ctx context.Context, status, outcome string) {
	if m == nil || m.settlements == nil {
		return
	}
	m.settlements.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", status),
		attribute.String("outcome", outcome),
	))
}

func (m *SagaMetrics) Debit(ctx context.Context) {
	if m == nil || m.debits == nil {
		return
	}
	m.debits.Add(ctx, 1)
}

func (m *SagaMetrics) SubscriberAdded(ctx context.Context) {
	if m == nil || m.subscribers == nil {
		return
	}
	m.subscribers.Add(ctx, 1)
}

func (m *SagaMetrics) SubscriberRemoved(ctx context.Context) {
	if m == nil || m.subscribers == nil {
		return
	}
	m.subscribers.Add(ctx, -1)
}

func (m *SagaMetrics) EventDropped(ctx context.Context) {
	if m == nil || m.dropped == nil {
		return
	}
	m.dropped.Add(ctx, 1)
}
