package otel

import (
	"context"
	"maps"
	"slices"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/neomorfeo/controlplane/internal/domain"
)

// TracingPublisher wraps a domain.EventPublisher with OpenTelemetry tracing.
type TracingPublisher struct {
	next   domain.EventPublisher
	tracer trace.Tracer
}

// Compile-time check: TracingPublisher implements domain.EventPublisher.
var _ domain.EventPublisher = (*TracingPublisher)(nil)

// NewTracingPublisher creates a tracing decorator around the given publisher.
func NewTracingPublisher(next domain.EventPublisher) *TracingPublisher {
	return &TracingPublisher{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (p *TracingPublisher) Publish(ctx context.Context, event domain.Event) error {
	ctx, span := p.tracer.Start(ctx, "EventPublisher.Publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(eventAttributes(event)...),
	)
	defer span.End()

	err := p.next.Publish(ctx, event)
	recordError(span, err)
	return err
}

// TracingHandler wraps a domain.EventHandler with a consumer span.
type TracingHandler struct {
	next   domain.EventHandler
	tracer trace.Tracer
}

// Compile-time check: TracingHandler implements domain.EventHandler.
var _ domain.EventHandler = (*TracingHandler)(nil)

// NewTracingHandler creates a tracing decorator around the given handler.
func NewTracingHandler(next domain.EventHandler) *TracingHandler {
	return &TracingHandler{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (h *TracingHandler) Handle(ctx context.Context, event domain.Event) error {
	ctx, span := h.tracer.Start(ctx, "EventHandler.Handle",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(eventAttributes(event)...),
	)
	defer span.End()

	err := h.next.Handle(ctx, event)
	recordError(span, err)
	return err
}

// TracingRouter wraps a domain.EventRouter with a consumer span that
// records how many subscribers the event reached.
type TracingRouter struct {
	next   domain.EventRouter
	tracer trace.Tracer
}

// Compile-time check: TracingRouter implements domain.EventRouter.
var _ domain.EventRouter = (*TracingRouter)(nil)

// NewTracingRouter creates a tracing decorator around the given router.
func NewTracingRouter(next domain.EventRouter) *TracingRouter {
	return &TracingRouter{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (r *TracingRouter) Route(ctx context.Context, event domain.Event) (int, error) {
	ctx, span := r.tracer.Start(ctx, "EventRouter.Route",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(eventAttributes(event)...),
	)
	defer span.End()

	n, err := r.next.Route(ctx, event)
	span.SetAttributes(attribute.Int("event.routes", n))
	recordError(span, err)
	return n, err
}

func eventAttributes(event domain.Event) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("event.detail_type", string(event.DetailType)),
		attribute.String("event.source", event.Source),
	}
	if id := event.Detail.String(domain.FieldRegistrationID); id != "" {
		attrs = append(attrs, attribute.String("registration.id", id))
	}
	if id := event.Detail.String(domain.FieldTenantID); id != "" {
		attrs = append(attrs, attribute.String("tenant.id", id))
	}
	return attrs
}

func sortedKeys(a domain.Attributes) []string {
	return slices.Sorted(maps.Keys(a))
}
