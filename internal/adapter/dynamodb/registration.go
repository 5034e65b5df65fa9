package dynamodb

import (
	"context"
	"fmt"

	"github.com/neomorfeo/controlplane/internal/domain"
)

// Compile-time check: RegistrationRepository implements domain.RegistrationRepository.
var _ domain.RegistrationRepository = (*RegistrationRepository)(nil)

// RegistrationRepository keeps registrations in a table keyed by
// tenantRegistrationId.
type RegistrationRepository struct {
	table table
}

// NewRegistrationRepository creates a repository over tableName.
func NewRegistrationRepository(api API, tableName string) *RegistrationRepository {
	return &RegistrationRepository{table: table{api: api, name: tableName, key: domain.FieldRegistrationID}}
}

func (r *RegistrationRepository) Create(ctx context.Context, reg domain.Registration) error {
	ok, err := r.table.put(ctx, reg.Item())
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrRegistrationExists, reg.ID)
	}
	return nil
}

func (r *RegistrationRepository) Get(ctx context.Context, id string) (domain.Registration, error) {
	item, err := r.table.get(ctx, id)
	if err != nil {
		return domain.Registration{}, err
	}
	if item == nil {
		return domain.Registration{}, domain.ErrRegistrationNotFound
	}
	return domain.RegistrationFromItem(item), nil
}

func (r *RegistrationRepository) List(ctx context.Context, page domain.PageRequest) (domain.Page[domain.Registration], error) {
	items, next, err := r.table.scan(ctx, page)
	if err != nil {
		return domain.Page[domain.Registration]{}, err
	}

	out := domain.Page[domain.Registration]{
		Items:     make([]domain.Registration, 0, len(items)),
		NextToken: next,
	}
	for _, item := range items {
		out.Items = append(out.Items, domain.RegistrationFromItem(item))
	}
	return out, nil
}

// Update applies patch with a conditional write so a missing registration
// is reported instead of created.
func (r *RegistrationRepository) Update(ctx context.Context, id string, patch domain.Attributes) (domain.Registration, error) {
	if _, err := (domain.Registration{ID: id}).Patched(patch); err != nil {
		return domain.Registration{}, err
	}

	item, err := r.table.update(ctx, id, patch)
	if err != nil {
		return domain.Registration{}, err
	}
	if item == nil {
		return domain.Registration{}, domain.ErrRegistrationNotFound
	}
	return domain.RegistrationFromItem(item), nil
}
