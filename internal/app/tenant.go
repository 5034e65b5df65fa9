package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/neomorfeo/controlplane/internal/domain"
)

// TenantService is the Tenant Directory Service: CRUD over tenant records
// plus the config lookup used by tenant front ends.
type TenantService struct {
	repo         domain.TenantRepository
	ids          IDGenerator
	configColumn string
}

// NewTenantService creates a directory over repo. configColumn names the
// tenant attribute holding the config blob. A nil ids uses NewID.
func NewTenantService(repo domain.TenantRepository, ids IDGenerator, configColumn string) *TenantService {
	return &TenantService{
		repo:         repo,
		ids:          orDefault(ids),
		configColumn: configColumn,
	}
}

// Create persists a new active tenant with a server-generated id.
func (s *TenantService) Create(ctx context.Context, attrs domain.Attributes) (domain.Tenant, error) {
	tenant := domain.NewTenant(s.ids(), attrs)
	if err := s.repo.Create(ctx, tenant); err != nil {
		return domain.Tenant{}, fmt.Errorf("creating tenant: %w", err)
	}
	return tenant, nil
}

// Get returns a tenant by id.
func (s *TenantService) Get(ctx context.Context, id string) (domain.Tenant, error) {
	return s.repo.Get(ctx, id)
}

// List returns one page of tenants.
func (s *TenantService) List(ctx context.Context, page domain.PageRequest) (domain.Page[domain.Tenant], error) {
	if page.Limit <= 0 {
		page.Limit = DefaultPageLimit
	}
	return s.repo.List(ctx, page)
}

// Update merges patch into an existing tenant.
func (s *TenantService) Update(ctx context.Context, id string, patch domain.Attributes) (domain.Tenant, error) {
	return s.repo.Update(ctx, id, patch)
}

// Delete marks a tenant inactive. The record is kept.
func (s *TenantService) Delete(ctx context.Context, id string) (domain.Tenant, error) {
	return s.repo.Update(ctx, id, domain.Attributes{domain.FieldActive: false})
}

// ConfigByID returns the config blob of the tenant with the given id.
func (s *TenantService) ConfigByID(ctx context.Context, id string) (any, error) {
	tenant, err := s.repo.Get(ctx, id)
	return s.config(tenant, err, id)
}

// ConfigByName returns the config blob of the tenant with the given name.
func (s *TenantService) ConfigByName(ctx context.Context, name string) (any, error) {
	tenant, err := s.repo.FindByName(ctx, name)
	return s.config(tenant, err, name)
}

func (s *TenantService) config(tenant domain.Tenant, err error, key string) (any, error) {
	if errors.Is(err, domain.ErrTenantNotFound) {
		return nil, fmt.Errorf("%w: %s", domain.ErrTenantConfigNotFound, key)
	}
	if err != nil {
		return nil, err
	}
	cfg, ok := tenant.Attributes[s.configColumn]
	if !ok || cfg == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrTenantConfigNotFound, key)
	}
	return cfg, nil
}
