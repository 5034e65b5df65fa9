package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/neomorfeo/controlplane/internal/domain"
)

const tracerName = "github.com/neomorfeo/controlplane/internal/adapter/otel"

// recordError marks span as failed when err is non-nil.
func recordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// --- Registrations ---

// TracingRegistrationRepository wraps a domain.RegistrationRepository with
// OpenTelemetry tracing. Each method creates a span with semantic attributes
// and records errors.
type TracingRegistrationRepository struct {
	next   domain.RegistrationRepository
	tracer trace.Tracer
}

// Compile-time check: TracingRegistrationRepository implements domain.RegistrationRepository.
var _ domain.RegistrationRepository = (*TracingRegistrationRepository)(nil)

// NewTracingRegistrationRepository creates a tracing decorator around the given repository.
func NewTracingRegistrationRepository(next domain.RegistrationRepository) *TracingRegistrationRepository {
	return &TracingRegistrationRepository{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (r *TracingRegistrationRepository) Create(ctx context.Context, reg domain.Registration) error {
	ctx, span := r.tracer.Start(ctx, "RegistrationRepository.Create",
		trace.WithAttributes(
			attribute.String("registration.id", reg.ID),
			attribute.String("registration.status", string(reg.LifecycleStatus())),
		),
	)
	defer span.End()

	err := r.next.Create(ctx, reg)
	recordError(span, err)
	return err
}

func (r *TracingRegistrationRepository) Get(ctx context.Context, id string) (domain.Registration, error) {
	ctx, span := r.tracer.Start(ctx, "RegistrationRepository.Get",
		trace.WithAttributes(attribute.String("registration.id", id)),
	)
	defer span.End()

	reg, err := r.next.Get(ctx, id)
	recordError(span, err)
	return reg, err
}

func (r *TracingRegistrationRepository) List(ctx context.Context, page domain.PageRequest) (domain.Page[domain.Registration], error) {
	ctx, span := r.tracer.Start(ctx, "RegistrationRepository.List",
		trace.WithAttributes(
			attribute.Int("page.limit", page.Limit),
			attribute.Bool("page.continued", page.Token != ""),
		),
	)
	defer span.End()

	out, err := r.next.List(ctx, page)
	if err != nil {
		recordError(span, err)
	} else {
		span.SetAttributes(
			attribute.Int("result.count", len(out.Items)),
			attribute.Bool("result.more", out.NextToken != ""),
		)
	}
	return out, err
}

func (r *TracingRegistrationRepository) Update(ctx context.Context, id string, patch domain.Attributes) (domain.Registration, error) {
	ctx, span := r.tracer.Start(ctx, "RegistrationRepository.Update",
		trace.WithAttributes(
			attribute.String("registration.id", id),
			attribute.StringSlice("patch.keys", sortedKeys(patch)),
		),
	)
	defer span.End()

	reg, err := r.next.Update(ctx, id, patch)
	recordError(span, err)
	return reg, err
}

// --- Tenants ---

// TracingTenantRepository wraps a domain.TenantRepository with OpenTelemetry tracing.
type TracingTenantRepository struct {
	next   domain.TenantRepository
	tracer trace.Tracer
}

// Compile-time check: TracingTenantRepository implements domain.TenantRepository.
var _ domain.TenantRepository = (*TracingTenantRepository)(nil)

// NewTracingTenantRepository creates a tracing decorator around the given repository.
func NewTracingTenantRepository(next domain.TenantRepository) *TracingTenantRepository {
	return &TracingTenantRepository{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (r *TracingTenantRepository) Create(ctx context.Context, tenant domain.Tenant) error {
	ctx, span := r.tracer.Start(ctx, "TenantRepository.Create",
		trace.WithAttributes(attribute.String("tenant.id", tenant.ID)),
	)
	defer span.End()

	err := r.next.Create(ctx, tenant)
	recordError(span, err)
	return err
}

func (r *TracingTenantRepository) Get(ctx context.Context, id string) (domain.Tenant, error) {
	ctx, span := r.tracer.Start(ctx, "TenantRepository.Get",
		trace.WithAttributes(attribute.String("tenant.id", id)),
	)
	defer span.End()

	tenant, err := r.next.Get(ctx, id)
	recordError(span, err)
	return tenant, err
}

func (r *TracingTenantRepository) FindByName(ctx context.Context, name string) (domain.Tenant, error) {
	ctx, span := r.tracer.Start(ctx, "TenantRepository.FindByName",
		trace.WithAttributes(attribute.String("tenant.name", name)),
	)
	defer span.End()

	tenant, err := r.next.FindByName(ctx, name)
	if err != nil {
		recordError(span, err)
	} else {
		span.SetAttributes(attribute.String("tenant.id", tenant.ID))
	}
	return tenant, err
}

func (r *TracingTenantRepository) List(ctx context.Context, page domain.PageRequest) (domain.Page[domain.Tenant], error) {
	ctx, span := r.tracer.Start(ctx, "TenantRepository.List",
		trace.WithAttributes(
			attribute.Int("page.limit", page.Limit),
			attribute.Bool("page.continued", page.Token != ""),
		),
	)
	defer span.End()

	out, err := r.next.List(ctx, page)
	if err != nil {
		recordError(span, err)
	} else {
		span.SetAttributes(attribute.Int("result.count", len(out.Items)))
	}
	return out, err
}

func (r *TracingTenantRepository) Update(ctx context.Context, id string, patch domain.Attributes) (domain.Tenant, error) {
	ctx, span := r.tracer.Start(ctx, "TenantRepository.Update",
		trace.WithAttributes(
			attribute.String("tenant.id", id),
			attribute.StringSlice("patch.keys", sortedKeys(patch)),
		),
	)
	defer span.End()

	tenant, err := r.next.Update(ctx, id, patch)
	recordError(span, err)
	return tenant, err
}
