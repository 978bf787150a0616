package middlewares

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/jcmexdev/order-payment-saga/internal/pkg/interceptors"
	"github.com/jcmexdev/order-payment-saga/internal/pkg/interceptors/constants"
)

const tracerName = "github.com/jcmexdev/order-payment-saga/httpx"

// AttachTracingMetadata opens a server span continuing any incoming trace
// and stores the request id and idempotency key in the request context, from
// where the broker interceptors forward them.
func AttachTracingMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := otel.Tracer(tracerName).Start(ctx, r.Method+" "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", r.Method),
				attribute.String("url.path", r.URL.Path),
			),
		)
		defer span.End()

		requestID := middleware.GetReqID(r.Context())
		idempotencyKey := r.Header.Get(constants.HeaderIdempotencyKey)

		ctx = interceptors.WithRequestID(ctx, requestID)
		ctx = interceptors.WithIdempotencyKey(ctx, idempotencyKey)
		if requestID != "" {
			w.Header().Set(constants.HeaderRequestID, requestID)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
