package dynamodb

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	awsddb "github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/neomorfeo/controlplane/internal/domain"
)

// Compile-time check: TenantRepository implements domain.TenantRepository.
var _ domain.TenantRepository = (*TenantRepository)(nil)

// TenantRepository keeps tenants in a table keyed by tenantId. Lookups by
// name go through a global secondary index on the name column.
type TenantRepository struct {
	table      table
	nameIndex  string
	nameColumn string
}

// NewTenantRepository creates a repository over tableName.
func NewTenantRepository(api API, tableName, nameIndex, nameColumn string) *TenantRepository {
	return &TenantRepository{
		table:      table{api: api, name: tableName, key: domain.FieldTenantID},
		nameIndex:  nameIndex,
		nameColumn: nameColumn,
	}
}

func (r *TenantRepository) Create(ctx context.Context, t domain.Tenant) error {
	ok, err := r.table.put(ctx, t.Item())
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("tenant %s already exists", t.ID)
	}
	return nil
}

func (r *TenantRepository) Get(ctx context.Context, id string) (domain.Tenant, error) {
	item, err := r.table.get(ctx, id)
	if err != nil {
		return domain.Tenant{}, err
	}
	if item == nil {
		return domain.Tenant{}, domain.ErrTenantNotFound
	}
	return domain.TenantFromItem(item), nil
}

// FindByName returns the first tenant whose name column equals name.
func (r *TenantRepository) FindByName(ctx context.Context, name string) (domain.Tenant, error) {
	expr, err := expression.NewBuilder().
		WithKeyCondition(expression.KeyEqual(expression.Key(r.nameColumn), expression.Value(name))).
		Build()
	if err != nil {
		return domain.Tenant{}, fmt.Errorf("building key condition: %w", err)
	}

	out, err := r.table.api.Query(ctx, &awsddb.QueryInput{
		TableName:                 aws.String(r.table.name),
		IndexName:                 aws.String(r.nameIndex),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return domain.Tenant{}, fmt.Errorf("querying %s by name: %w", r.nameIndex, err)
	}
	if len(out.Items) == 0 {
		return domain.Tenant{}, domain.ErrTenantNotFound
	}

	item, err := decode(out.Items[0])
	if err != nil {
		return domain.Tenant{}, err
	}
	return domain.TenantFromItem(item), nil
}

func (r *TenantRepository) List(ctx context.Context, page domain.PageRequest) (domain.Page[domain.Tenant], error) {
	items, next, err := r.table.scan(ctx, page)
	if err != nil {
		return domain.Page[domain.Tenant]{}, err
	}

	out := domain.Page[domain.Tenant]{
		Items:     make([]domain.Tenant, 0, len(items)),
		NextToken: next,
	}
	for _, item := range items {
		out.Items = append(out.Items, domain.TenantFromItem(item))
	}
	return out, nil
}

// Update merges patch into an existing tenant. The tenantId key is never
// rewritten.
func (r *TenantRepository) Update(ctx context.Context, id string, patch domain.Attributes) (domain.Tenant, error) {
	if _, err := (domain.Tenant{ID: id}).Patched(patch); err != nil {
		return domain.Tenant{}, err
	}

	item, err := r.table.update(ctx, id, patch.Without(domain.FieldTenantID))
	if err != nil {
		return domain.Tenant{}, err
	}
	if item == nil {
		return domain.Tenant{}, domain.ErrTenantNotFound
	}
	return domain.TenantFromItem(item), nil
}
