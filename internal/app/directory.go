package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/neomorfeo/controlplane/internal/domain"
)

// TenantGateway is the registration orchestrator's view of the Tenant
// Directory Service.
type TenantGateway interface {
	Create(ctx context.Context, data domain.Attributes) (string, error)
	Update(ctx context.Context, tenantID string, patch domain.Attributes) (domain.Attributes, error)
	Delete(ctx context.Context, tenantID string) (domain.Attributes, error)
}

// Compile-time check: DirectoryClient implements TenantGateway.
var _ TenantGateway = (*DirectoryClient)(nil)

// DirectoryClient calls the Tenant Directory Service HTTP API over a
// signed service caller.
type DirectoryClient struct {
	caller  domain.ServiceCaller
	baseURL string
}

// NewDirectoryClient creates a client for the tenant API rooted at baseURL.
func NewDirectoryClient(caller domain.ServiceCaller, baseURL string) *DirectoryClient {
	return &DirectoryClient{caller: caller, baseURL: baseURL}
}

// dataEnvelope is the {data: ...} wrapper every tenant API response uses.
type dataEnvelope struct {
	Data domain.Attributes `json:"data"`
}

// Create asks the directory to create a tenant and returns its id.
func (c *DirectoryClient) Create(ctx context.Context, data domain.Attributes) (string, error) {
	endpoint, err := url.JoinPath(c.baseURL, "tenants")
	if err != nil {
		return "", fmt.Errorf("building tenant url: %w", err)
	}

	if data == nil {
		data = domain.Attributes{}
	}
	resp, err := c.caller.Call(ctx, http.MethodPost, endpoint, data)
	if err != nil {
		return "", fmt.Errorf("calling tenant service: %w", err)
	}
	if resp.Status != http.StatusCreated {
		return "", &domain.UpstreamError{Op: "create tenant", Status: resp.Status}
	}

	var env dataEnvelope
	if err := resp.Decode(&env); err != nil {
		return "", fmt.Errorf("decoding tenant response: %w", err)
	}
	id := env.Data.String(domain.FieldTenantID)
	if id == "" {
		return "", errors.New("tenant service response carried no tenantId")
	}
	return id, nil
}

// Update merges patch into the tenant and returns the updated record.
func (c *DirectoryClient) Update(ctx context.Context, tenantID string, patch domain.Attributes) (domain.Attributes, error) {
	return c.send(ctx, http.MethodPut, tenantID, patch, "update tenant")
}

// Delete logically deletes the tenant and returns the updated record.
func (c *DirectoryClient) Delete(ctx context.Context, tenantID string) (domain.Attributes, error) {
	return c.send(ctx, http.MethodDelete, tenantID, nil, "delete tenant")
}

func (c *DirectoryClient) send(ctx context.Context, method, tenantID string, body any, op string) (domain.Attributes, error) {
	endpoint, err := url.JoinPath(c.baseURL, "tenants", tenantID)
	if err != nil {
		return nil, fmt.Errorf("building tenant url: %w", err)
	}

	resp, err := c.caller.Call(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("calling tenant service: %w", err)
	}
	if resp.Status != http.StatusOK {
		return nil, &domain.UpstreamError{Op: op, Status: resp.Status}
	}

	var env dataEnvelope
	if err := resp.Decode(&env); err != nil {
		return nil, fmt.Errorf("decoding tenant response: %w", err)
	}
	return env.Data, nil
}
