package httpmiddleware

import (
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Trace returns a middleware that starts a server span per request using
// otelhttp with the given providers.
func Trace(operation string, tp trace.TracerProvider, mp metric.MeterProvider) Middleware {
	return otelhttp.NewMiddleware(operation,
		otelhttp.WithTracerProvider(tp),
		otelhttp.WithMeterProvider(mp),
	)
}

// Metrics returns a middleware that records a request counter and a
// duration histogram, labelled by method and status class.
func Metrics(mp metric.MeterProvider) (Middleware, error) {
	meter := mp.Meter("cart-service/httpmiddleware")

	requests, err := meter.Int64Counter("http.server.requests",
		metric.WithDescription("Completed HTTP requests"))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("http.server.duration",
		metric.WithDescription("HTTP request duration"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			attrs := metric.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.Int("http.status_code", rec.status),
			)
			requests.Add(r.Context(), 1, attrs)
			duration.Record(r.Context(), time.Since(start).Seconds(), attrs)
		})
	}, nil
}
