// Package telemetry sets up logging, tracing and metrics for a service.
//
// Tracing exports to an OTLP collector over gRPC. Trace context travels in
// broker message headers, so the consumer span on the payment side and the
// settlement span back on the order side join the trace of the HTTP request
// that triggered the payment.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const defaultCollector = "localhost:4317"

// ShutdownFunc flushes and releases a provider.
type ShutdownFunc func(ctx context.Context) error

// SetupTracer registers the W3C propagators and, when enabled, a global
// TracerProvider exporting to OTEL_EXPORTER_OTLP_ENDPOINT. With enabled=false
// trace context is still propagated but no span leaves the process.
func SetupTracer(ctx context.Context, serviceName string, enabled bool) (ShutdownFunc, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	if !enabled {
		return func(context.Context) error { return nil }, nil
	}

	endpoint := collectorAddr(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	conn, err := grpc.NewClient(endpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("telemetry: dial collector %s: %w", endpoint, err)
	}
	exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("telemetry: trace exporter: %w", err)
	}

	res, err := serviceResource(serviceName)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
	)
	otel.SetTracerProvider(tp)

	return func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), conn.Close())
	}, nil
}

func serviceResource(serviceName string) (*resource.Resource, error) {
	env := os.Getenv("DEPLOYMENT_ENVIRONMENT")
	if env == "" {
		env = "local"
	}
	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes("",
		semconv.ServiceName(serviceName),
		semconv.DeploymentEnvironment(env),
	))
	if err != nil {
		return nil, fmt.Errorf("telemetry: resource: %w", err)
	}
	return res, nil
}

// collectorAddr turns an OTLP endpoint URL into the host:port grpc dials.
func collectorAddr(endpoint string) string {
	if endpoint == "" {
		return defaultCollector
	}
	for _, scheme := range []string{"http://", "https://"} {
		if rest, ok := strings.CutPrefix(endpoint, scheme); ok && rest != "" {
			return strings.TrimSuffix(rest, "/")
		}
	}
	return endpoint
}
