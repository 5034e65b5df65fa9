package otel

import (
	"context"
	"net/url"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/neomorfeo/controlplane/internal/domain"
)

// TracingCaller wraps a domain.ServiceCaller with a client span and a call
// duration histogram.
type TracingCaller struct {
	next     domain.ServiceCaller
	tracer   trace.Tracer
	duration metric.Float64Histogram
}

// Compile-time check: TracingCaller implements domain.ServiceCaller.
var _ domain.ServiceCaller = (*TracingCaller)(nil)

// NewTracingCaller creates a tracing decorator around the given caller.
func NewTracingCaller(next domain.ServiceCaller) (*TracingCaller, error) {
	duration, err := otel.Meter(tracerName).Float64Histogram("service_call.duration",
		metric.WithDescription("Duration of signed service-to-service calls."),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &TracingCaller{
		next:     next,
		tracer:   otel.Tracer(tracerName),
		duration: duration,
	}, nil
}

func (c *TracingCaller) Call(ctx context.Context, method, rawURL string, body any) (domain.Response, error) {
	path := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		path = u.Path
	}

	ctx, span := c.tracer.Start(ctx, "ServiceCaller.Call",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
		),
	)
	defer span.End()

	start := time.Now()
	resp, err := c.next.Call(ctx, method, rawURL, body)

	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
		recordError(span, err)
	case !resp.OK():
		outcome = "rejected"
		span.SetAttributes(attribute.Int("http.response.status_code", resp.Status))
	default:
		span.SetAttributes(attribute.Int("http.response.status_code", resp.Status))
	}

	c.duration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
		attribute.String("http.request.method", method),
		attribute.String("outcome", outcome),
	))
	return resp, err
}
