package otel_test

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	adapter "github.com/neomorfeo/controlplane/internal/adapter/otel"
	"github.com/neomorfeo/controlplane/internal/domain"
)

// --- Mock publisher ---

type mockPublisher struct {
	events []domain.Event
	err    error
}

func (m *mockPublisher) Publish(_ context.Context, e domain.Event) error {
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, e)
	return nil
}

func (m *mockPublisher) Handle(ctx context.Context, e domain.Event) error {
	return m.Publish(ctx, e)
}

func onboardingEvent() domain.Event {
	return domain.Event{
		Source:     "controlPlaneEventSource",
		DetailType: domain.DetailOnboardingRequest,
		Detail: domain.Attributes{
			domain.FieldRegistrationID: "r-1",
			domain.FieldTenantID:       "t-1",
		},
	}
}

// --- Tests ---

func TestTracingPublisher_Publish_RecordsSpan(t *testing.T) {
	exporter := setupTestTracer(t)
	inner := &mockPublisher{}
	pub := adapter.NewTracingPublisher(inner)

	if err := pub.Publish(context.Background(), onboardingEvent()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Name != "EventPublisher.Publish" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "EventPublisher.Publish")
	}
	if spans[0].SpanKind != trace.SpanKindProducer {
		t.Errorf("span kind = %v, want %v", spans[0].SpanKind, trace.SpanKindProducer)
	}

	assertAttribute(t, spans[0], "event.detail_type", "onboardingRequest")
	assertAttribute(t, spans[0], "event.source", "controlPlaneEventSource")
	assertAttribute(t, spans[0], "registration.id", "r-1")
	assertAttribute(t, spans[0], "tenant.id", "t-1")

	if len(inner.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(inner.events))
	}
}

func TestTracingPublisher_Publish_RecordsError(t *testing.T) {
	exporter := setupTestTracer(t)
	pub := adapter.NewTracingPublisher(&mockPublisher{err: errors.New("publish failed")})

	if err := pub.Publish(context.Background(), onboardingEvent()); err == nil {
		t.Fatal("expected error")
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}

	if spans[0].Status.Code != codes.Error {
		t.Errorf("span status = %v, want %v", spans[0].Status.Code, codes.Error)
	}
}

type stubRouter struct {
	routes int
	err    error
}

func (s stubRouter) Route(context.Context, domain.Event) (int, error) {
	return s.routes, s.err
}

func TestTracingRouter_Route_RecordsRouteCount(t *testing.T) {
	exporter := setupTestTracer(t)
	r := adapter.NewTracingRouter(stubRouter{routes: 2})

	n, err := r.Route(context.Background(), domain.Event{
		Source:     "applicationPlaneEventSource",
		DetailType: domain.DetailProvisionSuccess,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("Route() = %d, want 2", n)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Name != "EventRouter.Route" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "EventRouter.Route")
	}
	assertAttribute(t, spans[0], "event.detail_type", "provisionSuccess")
	assertAttribute(t, spans[0], "event.routes", "2")
}

func TestTracingRouter_Route_RecordsError(t *testing.T) {
	exporter := setupTestTracer(t)
	r := adapter.NewTracingRouter(stubRouter{err: domain.ErrMalformedEvent})

	if _, err := r.Route(context.Background(), domain.Event{DetailType: "bogus"}); !errors.Is(err, domain.ErrMalformedEvent) {
		t.Fatalf("expected ErrMalformedEvent, got %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Status.Code != codes.Error {
		t.Errorf("span status = %v, want Error", spans[0].Status.Code)
	}
}

func TestTracingHandler_Handle_RecordsConsumerSpan(t *testing.T) {
	exporter := setupTestTracer(t)
	inner := &mockPublisher{}
	h := adapter.NewTracingHandler(inner)

	event := domain.Event{
		Source:     "applicationPlaneEventSource",
		DetailType: domain.DetailProvisionSuccess,
		Detail:     domain.Attributes{domain.FieldRegistrationID: "r-9"},
	}
	if err := h.Handle(context.Background(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Name != "EventHandler.Handle" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "EventHandler.Handle")
	}
	if spans[0].SpanKind != trace.SpanKindConsumer {
		t.Errorf("span kind = %v, want %v", spans[0].SpanKind, trace.SpanKindConsumer)
	}

	assertAttribute(t, spans[0], "event.detail_type", "provisionSuccess")
	assertAttribute(t, spans[0], "registration.id", "r-9")
	for _, attr := range spans[0].Attributes {
		if attr.Key == "tenant.id" {
			t.Error("tenant.id should be absent when the detail carries none")
		}
	}
}
