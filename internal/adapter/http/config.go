package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/neomorfeo/controlplane/internal/app"
	"github.com/neomorfeo/controlplane/internal/domain"
)

// Tenant config is read by browsers on tenant subdomains.
var corsHeaders = http.Header{
	"Access-Control-Allow-Origin": {"*"},
	"Access-Control-Max-Age":      {"300"},
}

type TenantConfigByNameInput struct {
	TenantName string `path:"tenantName" doc:"Tenant name"`
}

type TenantConfigQueryInput struct {
	TenantID   string `query:"tenantId" doc:"Look up by tenant ID"`
	TenantName string `query:"tenantName" doc:"Look up by tenant name"`
	Origin     string `header:"Origin" doc:"Used to derive the tenant name from the subdomain when no parameter is given"`
}

type TenantConfigOutput struct {
	AllowOrigin string `header:"Access-Control-Allow-Origin"`
	MaxAge      string `header:"Access-Control-Max-Age"`
	Body        any
}

func registerTenantConfig(api huma.API, svc *app.TenantService) {
	huma.Register(api, huma.Operation{
		OperationID: "get-tenant-config-by-name",
		Method:      http.MethodGet,
		Path:        "/tenant-config/{tenantName}",
		Summary:     "Get a tenant's configuration by name",
		Tags:        []string{tenantsTag},
	}, func(ctx context.Context, input *TenantConfigByNameInput) (*TenantConfigOutput, error) {
		cfg, err := svc.ConfigByName(ctx, input.TenantName)
		return configResponse(ctx, input.TenantName, cfg, err)
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-tenant-config",
		Method:      http.MethodGet,
		Path:        "/tenant-config",
		Summary:     "Get a tenant's configuration",
		Description: "Looks up by tenantId, then tenantName, then the first label of the Origin host.",
		Tags:        []string{tenantsTag},
	}, func(ctx context.Context, input *TenantConfigQueryInput) (*TenantConfigOutput, error) {
		if input.TenantID != "" {
			cfg, err := svc.ConfigByID(ctx, input.TenantID)
			return configResponse(ctx, input.TenantID, cfg, err)
		}

		name := input.TenantName
		if name == "" {
			var problem string
			if name, problem = tenantNameFromOrigin(input.Origin); problem != "" {
				return nil, huma.ErrorWithHeaders(huma.Error400BadRequest(problem), corsHeaders)
			}
		}
		cfg, err := svc.ConfigByName(ctx, name)
		return configResponse(ctx, name, cfg, err)
	})
}

func configResponse(ctx context.Context, key string, cfg any, err error) (*TenantConfigOutput, error) {
	if err != nil {
		if errors.Is(err, domain.ErrTenantConfigNotFound) {
			err = huma.Error404NotFound("No tenant details found for " + key)
		} else {
			err = toHumaError(ctx, err, "Unknown error during processing!")
		}
		return nil, huma.ErrorWithHeaders(err, corsHeaders)
	}
	return &TenantConfigOutput{
		AllowOrigin: corsHeaders.Get("Access-Control-Allow-Origin"),
		MaxAge:      corsHeaders.Get("Access-Control-Max-Age"),
		Body:        cfg,
	}, nil
}

// tenantNameFromOrigin returns the first host label of an Origin header
// such as "https://acme.example.com", or a client-facing problem.
func tenantNameFromOrigin(origin string) (name, problem string) {
	if origin == "" {
		return "", "Origin header missing!"
	}
	_, host, ok := strings.Cut(origin, "://")
	if !ok {
		return "", "Unable to parse tenant name!"
	}
	name, _, _ = strings.Cut(host, ".")
	if name == "" {
		return "", "Unable to parse tenant name!"
	}
	return name, ""
}
