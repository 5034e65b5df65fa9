package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/neomorfeo/controlplane/internal/domain"
)

// supportedPlans lists the plans the provisioner knows how to set up.
var supportedPlans = map[string]bool{
	"basic":      true,
	"essentials": true,
	"plus":       true,
}

// Compile-time check: Provisioner implements domain.EventHandler.
var _ domain.EventHandler = (*Provisioner)(nil)

// Provisioner stands in for the application plane: it answers onboarding
// and offboarding requests with provision and deprovision results.
type Provisioner struct {
	publisher domain.EventPublisher
}

// NewProvisioner creates a provisioner publishing its results to publisher.
func NewProvisioner(publisher domain.EventPublisher) *Provisioner {
	return &Provisioner{publisher: publisher}
}

// DetailTypes returns the requests the provisioner consumes.
func (p *Provisioner) DetailTypes() []domain.DetailType {
	return []domain.DetailType{domain.DetailOnboardingRequest, domain.DetailOffboardingRequest}
}

// Handle runs the provisioning or deprovisioning job for event.
func (p *Provisioner) Handle(ctx context.Context, event domain.Event) error {
	switch event.DetailType {
	case domain.DetailOnboardingRequest:
		return p.provision(ctx, event.Detail)
	case domain.DetailOffboardingRequest:
		return p.deprovision(ctx, event.Detail)
	default:
		return fmt.Errorf("%w: provisioner does not handle %q", domain.ErrMalformedEvent, event.DetailType)
	}
}

func (p *Provisioner) provision(ctx context.Context, detail domain.Attributes) error {
	tenantID := detail.String(domain.FieldTenantID)
	plan := detail.String("plan")

	result := domain.DetailProvisionSuccess
	output := domain.Attributes{
		"status":             "success",
		domain.FieldTenantID: tenantID,
		"plan":               plan,
		"message":            fmt.Sprintf("Provisioned %s plan resources", plan),
	}
	if !supportedPlans[plan] {
		result = domain.DetailProvisionFailure
		output = domain.Attributes{
			"status": "failure",
			"error":  "UnknownPlanError",
			"cause":  "The provided plan is not supported",
		}
	}

	slog.InfoContext(ctx, "provisioning job finished",
		"tenantId", tenantID,
		"plan", plan,
		"result", string(result),
	)
	return p.report(ctx, result, detail, output)
}

func (p *Provisioner) deprovision(ctx context.Context, detail domain.Attributes) error {
	tenantID := detail.String(domain.FieldTenantID)
	output := domain.Attributes{
		"status":             "success",
		domain.FieldTenantID: tenantID,
	}

	slog.InfoContext(ctx, "deprovisioning job finished", "tenantId", tenantID)
	return p.report(ctx, domain.DetailDeprovisionSuccess, detail, output)
}

func (p *Provisioner) report(ctx context.Context, result domain.DetailType, request, output domain.Attributes) error {
	err := p.publisher.Publish(ctx, domain.Event{
		DetailType: result,
		Detail: domain.Attributes{
			domain.FieldRegistrationID: request.String(domain.FieldRegistrationID),
			domain.FieldTenantID:       request.String(domain.FieldTenantID),
			domain.FieldJobOutput:      output,
		},
	})
	if err != nil {
		return fmt.Errorf("publishing %s: %w", result, err)
	}
	return nil
}
