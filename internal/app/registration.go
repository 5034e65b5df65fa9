package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/neomorfeo/controlplane/internal/domain"
)

// DefaultPageLimit bounds list operations when the caller gives no limit.
const DefaultPageLimit = 10

// RegistrationService drives the tenant registration lifecycle across the
// registration store and the Tenant Directory Service.
type RegistrationService struct {
	repo      domain.RegistrationRepository
	tenants   TenantGateway
	publisher domain.EventPublisher
	validator domain.TransitionValidator
	ids       IDGenerator
}

// NewRegistrationService creates a service with the given adapters.
// A nil ids uses NewID.
func NewRegistrationService(
	repo domain.RegistrationRepository,
	tenants TenantGateway,
	publisher domain.EventPublisher,
	validator domain.TransitionValidator,
	ids IDGenerator,
) *RegistrationService {
	return &RegistrationService{
		repo:      repo,
		tenants:   tenants,
		publisher: publisher,
		validator: validator,
		ids:       orDefault(ids),
	}
}

// Created identifies the records written by Create.
type Created struct {
	RegistrationID string
	TenantID       string
}

// --- Create ---

// Create writes a registration, asks the directory for a tenant, links the
// two and announces the onboarding request.
//
// If the tenant call fails the registration stays behind without a tenantId
// and the error is returned; nothing is rolled back.
func (s *RegistrationService) Create(ctx context.Context, regData, tenantData domain.Attributes) (Created, error) {
	if err := domain.ValidateRegistrationData(regData); err != nil {
		return Created{}, err
	}

	reg := domain.NewRegistration(s.ids(), regData)
	if err := s.repo.Create(ctx, reg); err != nil {
		return Created{}, fmt.Errorf("creating registration: %w", err)
	}

	tenantID, err := s.tenants.Create(ctx, tenantData)
	if err != nil {
		slog.ErrorContext(ctx, "tenant creation failed, registration left unlinked",
			"tenantRegistrationId", reg.ID,
			"error", err,
		)
		return Created{}, err
	}

	status, err := s.validator.Apply(ctx, reg.LifecycleStatus(), domain.EventTenantLinked)
	if err != nil {
		return Created{}, err
	}

	if _, err := s.repo.Update(ctx, reg.ID, domain.Attributes{
		domain.FieldTenantID: tenantID,
		domain.FieldStatus:   string(status),
	}); err != nil {
		return Created{}, fmt.Errorf("linking tenant %s: %w", tenantID, err)
	}

	detail := domain.Merge(regData, tenantData, domain.Attributes{
		domain.FieldTenantID:       tenantID,
		domain.FieldRegistrationID: reg.ID,
	})
	s.publish(ctx, domain.DetailOnboardingRequest, detail)

	return Created{RegistrationID: reg.ID, TenantID: tenantID}, nil
}

// --- Reads ---

// Get returns a registration by id.
func (s *RegistrationService) Get(ctx context.Context, id string) (domain.Registration, error) {
	return s.repo.Get(ctx, id)
}

// List returns one page of registrations in store scan order.
func (s *RegistrationService) List(ctx context.Context, page domain.PageRequest) (domain.Page[domain.Registration], error) {
	if page.Limit <= 0 {
		page.Limit = DefaultPageLimit
	}
	return s.repo.List(ctx, page)
}

// --- Update ---

// Patch holds the two optional halves of an update request.
type Patch struct {
	Registration domain.Attributes
	Tenant       domain.Attributes
}

// Updated is the result of Update. Tenant is nil when no tenant patch was sent.
type Updated struct {
	Registration domain.Registration
	Tenant       domain.Attributes
}

// Update applies a registration patch (conditional on the record existing)
// and forwards a tenant patch to the directory. A tenant failure does not
// undo the registration patch.
func (s *RegistrationService) Update(ctx context.Context, id string, patch Patch) (Updated, error) {
	var (
		reg domain.Registration
		err error
	)

	if len(patch.Registration) == 0 {
		reg, err = s.repo.Get(ctx, id)
		if err != nil {
			return Updated{}, err
		}
		if reg.TenantID == "" {
			return Updated{}, domain.ErrTenantNotLinked
		}
	} else {
		if err := domain.ValidateRegistrationPatch(patch.Registration); err != nil {
			return Updated{}, err
		}
		reg, err = s.repo.Update(ctx, id, patch.Registration)
		if err != nil {
			return Updated{}, err
		}
	}

	out := Updated{Registration: reg}
	if len(patch.Tenant) == 0 {
		return out, nil
	}
	if reg.TenantID == "" {
		return Updated{}, domain.ErrTenantNotLinked
	}

	out.Tenant, err = s.tenants.Update(ctx, reg.TenantID, patch.Tenant)
	if err != nil {
		slog.ErrorContext(ctx, "tenant update failed",
			"tenantRegistrationId", id,
			"tenantId", reg.TenantID,
			"error", err,
		)
		return Updated{}, err
	}
	return out, nil
}

// --- Delete ---

// Delete offboards a registration: the tenant is deleted in the directory,
// the registration is marked inactive and an offboarding request is
// announced. The record itself is kept.
func (s *RegistrationService) Delete(ctx context.Context, id string) error {
	reg, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if reg.TenantID == "" {
		return domain.ErrTenantNotLinked
	}

	status, err := s.validator.Apply(ctx, reg.LifecycleStatus(), domain.EventOffboard)
	if err != nil {
		return err
	}

	deleted, err := s.tenants.Delete(ctx, reg.TenantID)
	if err != nil {
		slog.ErrorContext(ctx, "tenant deletion failed",
			"tenantRegistrationId", id,
			"tenantId", reg.TenantID,
			"error", err,
		)
		return err
	}

	if _, err := s.repo.Update(ctx, id, domain.Attributes{
		domain.FieldActive: false,
		domain.FieldStatus: string(status),
	}); err != nil {
		return fmt.Errorf("deactivating registration: %w", err)
	}

	// The prior registration record wins over the tenant response on shared keys.
	s.publish(ctx, domain.DetailOffboardingRequest, domain.Merge(deleted, reg.Item()))
	return nil
}

// publish emits an event without failing the caller; delivery problems are
// logged only.
func (s *RegistrationService) publish(ctx context.Context, detailType domain.DetailType, detail domain.Attributes) {
	err := s.publisher.Publish(ctx, domain.Event{DetailType: detailType, Detail: detail})
	if err != nil {
		slog.ErrorContext(ctx, "publishing event failed",
			"detailType", string(detailType),
			"tenantRegistrationId", detail.String(domain.FieldRegistrationID),
			"error", err,
		)
		return
	}
	slog.InfoContext(ctx, "event published",
		"detailType", string(detailType),
		"tenantRegistrationId", detail.String(domain.FieldRegistrationID),
	)
}
