package domain

import "fmt"

// DetailType is the closed enumeration of lifecycle event names carried on
// the shared bus.
type DetailType string

const (
	DetailOnboardingRequest  DetailType = "onboardingRequest"
	DetailOnboardingSuccess  DetailType = "onboardingSuccess"
	DetailOnboardingFailure  DetailType = "onboardingFailure"
	DetailOffboardingRequest DetailType = "offboardingRequest"
	DetailOffboardingSuccess DetailType = "offboardingSuccess"
	DetailOffboardingFailure DetailType = "offboardingFailure"
	DetailProvisionSuccess   DetailType = "provisionSuccess"
	DetailProvisionFailure   DetailType = "provisionFailure"
	DetailDeprovisionSuccess DetailType = "deprovisionSuccess"
	DetailDeprovisionFailure DetailType = "deprovisionFailure"
	DetailBillingSuccess     DetailType = "billingSuccess"
	DetailBillingFailure     DetailType = "billingFailure"
	DetailActivateRequest    DetailType = "activateRequest"
	DetailActivateSuccess    DetailType = "activateSuccess"
	DetailActivateFailure    DetailType = "activateFailure"
	DetailDeactivateRequest  DetailType = "deactivateRequest"
	DetailDeactivateSuccess  DetailType = "deactivateSuccess"
	DetailDeactivateFailure  DetailType = "deactivateFailure"
	DetailTenantUserCreated  DetailType = "tenantUserCreated"
	DetailTenantUserDeleted  DetailType = "tenantUserDeleted"
	DetailIngestUsage        DetailType = "ingestUsage"
)

// Plane identifies which side of the system emits an event.
type Plane int

const (
	ControlPlane Plane = iota
	ApplicationPlane
)

func (p Plane) String() string {
	if p == ApplicationPlane {
		return "application"
	}
	return "control"
}

// detailPlanes assigns every detail type exactly one emitting plane.
var detailPlanes = map[DetailType]Plane{
	DetailOnboardingRequest:  ControlPlane,
	DetailOnboardingSuccess:  ApplicationPlane,
	DetailOnboardingFailure:  ApplicationPlane,
	DetailOffboardingRequest: ControlPlane,
	DetailOffboardingSuccess: ApplicationPlane,
	DetailOffboardingFailure: ApplicationPlane,
	DetailProvisionSuccess:   ApplicationPlane,
	DetailProvisionFailure:   ApplicationPlane,
	DetailDeprovisionSuccess: ApplicationPlane,
	DetailDeprovisionFailure: ApplicationPlane,
	DetailBillingSuccess:     ControlPlane,
	DetailBillingFailure:     ControlPlane,
	DetailActivateRequest:    ControlPlane,
	DetailActivateSuccess:    ApplicationPlane,
	DetailActivateFailure:    ApplicationPlane,
	DetailDeactivateRequest:  ControlPlane,
	DetailDeactivateSuccess:  ApplicationPlane,
	DetailDeactivateFailure:  ApplicationPlane,
	DetailTenantUserCreated:  ControlPlane,
	DetailTenantUserDeleted:  ControlPlane,
	DetailIngestUsage:        ApplicationPlane,
}

// DetailTypes returns every known detail type.
func DetailTypes() []DetailType {
	out := make([]DetailType, 0, len(detailPlanes))
	for d := range detailPlanes {
		out = append(out, d)
	}
	return out
}

// Plane returns the plane that emits d.
func (d DetailType) Plane() (Plane, error) {
	p, ok := detailPlanes[d]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownDetailType, d)
	}
	return p, nil
}

// EventSources names the two logical event origins. Overrides replaces the
// source for individual detail types.
type EventSources struct {
	ControlPlane     string
	ApplicationPlane string
	Overrides        map[DetailType]string
}

// SourceFor returns the source every event of type d must carry.
func (s EventSources) SourceFor(d DetailType) (string, error) {
	plane, err := d.Plane()
	if err != nil {
		return "", err
	}
	if src, ok := s.Overrides[d]; ok && src != "" {
		return src, nil
	}
	if plane == ApplicationPlane {
		return s.ApplicationPlane, nil
	}
	return s.ControlPlane, nil
}

// Event is the envelope published on the shared bus.
type Event struct {
	Source     string
	DetailType DetailType
	Detail     Attributes
}
