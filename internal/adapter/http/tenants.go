package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/neomorfeo/controlplane/internal/app"
	"github.com/neomorfeo/controlplane/internal/domain"
)

const tenantsTag = "Tenants"

type CreateTenantInput struct {
	Body domain.Attributes
}

type TenantPathInput struct {
	ID string `path:"tenantId" doc:"Tenant ID"`
}

type UpdateTenantInput struct {
	ID   string `path:"tenantId" doc:"Tenant ID"`
	Body domain.Attributes
}

func registerTenants(api huma.API, svc *app.TenantService, internal huma.Middlewares) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-tenant",
		Method:        http.MethodPost,
		Path:          "/tenants",
		Summary:       "Create a tenant",
		Tags:          []string{tenantsTag},
		DefaultStatus: http.StatusCreated,
		Middlewares:   internal,
	}, func(ctx context.Context, input *CreateTenantInput) (*DataOutput[domain.Attributes], error) {
		tenant, err := svc.Create(ctx, input.Body)
		if err != nil {
			return nil, toHumaError(ctx, err, "Unknown error during processing!")
		}
		return dataOf(tenant.Item()), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tenants",
		Method:      http.MethodGet,
		Path:        "/tenants",
		Summary:     "List tenants",
		Tags:        []string{tenantsTag},
	}, func(ctx context.Context, input *PageInput) (*PageOutput, error) {
		page, err := svc.List(ctx, input.request())
		if err != nil {
			return nil, toHumaError(ctx, err, "Unknown error during processing!")
		}

		out := &PageOutput{}
		out.Body.Data = make([]domain.Attributes, len(page.Items))
		for i, t := range page.Items {
			out.Body.Data[i] = t.Item()
		}
		out.Body.NextToken = page.NextToken
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-tenant",
		Method:      http.MethodGet,
		Path:        "/tenants/{tenantId}",
		Summary:     "Get a tenant",
		Tags:        []string{tenantsTag},
	}, func(ctx context.Context, input *TenantPathInput) (*DataOutput[domain.Attributes], error) {
		tenant, err := svc.Get(ctx, input.ID)
		if errors.Is(err, domain.ErrTenantNotFound) {
			return nil, huma.Error404NotFound("Tenant not found for id " + input.ID)
		}
		if err != nil {
			return nil, toHumaError(ctx, err, "Unknown error during processing!")
		}
		return dataOf(tenant.Item()), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-tenant",
		Method:      http.MethodPut,
		Path:        "/tenants/{tenantId}",
		Summary:     "Update a tenant",
		Description: "Merges the body into an existing tenant. A tenantId in the body is ignored.",
		Tags:        []string{tenantsTag},
		Middlewares: internal,
	}, func(ctx context.Context, input *UpdateTenantInput) (*DataOutput[domain.Attributes], error) {
		tenant, err := svc.Update(ctx, input.ID, input.Body)
		if err != nil {
			return nil, tenantWriteError(ctx, err, input.ID)
		}
		return dataOf(tenant.Item()), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-tenant",
		Method:      http.MethodDelete,
		Path:        "/tenants/{tenantId}",
		Summary:     "Deactivate a tenant",
		Tags:        []string{tenantsTag},
		Middlewares: internal,
	}, func(ctx context.Context, input *TenantPathInput) (*DataOutput[domain.Attributes], error) {
		tenant, err := svc.Delete(ctx, input.ID)
		if err != nil {
			return nil, tenantWriteError(ctx, err, input.ID)
		}
		return dataOf(tenant.Item()), nil
	})
}

func tenantWriteError(ctx context.Context, err error, id string) error {
	if errors.Is(err, domain.ErrTenantNotFound) {
		return huma.Error404NotFound(fmt.Sprintf("Tenant %s not found.", id))
	}
	return toHumaError(ctx, err, "Unknown error during processing!")
}
