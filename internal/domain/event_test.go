package domain_test

import (
	"errors"
	"testing"

	"github.com/neomorfeo/controlplane/internal/domain"
)

var testSources = domain.EventSources{
	ControlPlane:     "controlPlaneEventSource",
	ApplicationPlane: "applicationPlaneEventSource",
}

func TestSourceFor_EveryDetailTypeHasOneSource(t *testing.T) {
	types := domain.DetailTypes()
	if len(types) != 21 {
		t.Fatalf("got %d detail types, want 21", len(types))
	}

	for _, d := range types {
		src, err := testSources.SourceFor(d)
		if err != nil {
			t.Errorf("SourceFor(%q) error: %v", d, err)
			continue
		}
		if src != testSources.ControlPlane && src != testSources.ApplicationPlane {
			t.Errorf("SourceFor(%q) = %q, not one of the two planes", d, src)
		}
	}
}

func TestSourceFor_KnownAssignments(t *testing.T) {
	cases := map[domain.DetailType]string{
		domain.DetailOnboardingRequest:  "controlPlaneEventSource",
		domain.DetailOffboardingRequest: "controlPlaneEventSource",
		domain.DetailProvisionSuccess:   "applicationPlaneEventSource",
		domain.DetailDeprovisionFailure: "applicationPlaneEventSource",
		domain.DetailTenantUserCreated:  "controlPlaneEventSource",
		domain.DetailIngestUsage:        "applicationPlaneEventSource",
	}
	for d, want := range cases {
		got, err := testSources.SourceFor(d)
		if err != nil {
			t.Fatalf("SourceFor(%q) error: %v", d, err)
		}
		if got != want {
			t.Errorf("SourceFor(%q) = %q, want %q", d, got, want)
		}
	}
}

func TestSourceFor_Override(t *testing.T) {
	s := testSources
	s.Overrides = map[domain.DetailType]string{domain.DetailIngestUsage: "meteringSource"}

	got, err := s.SourceFor(domain.DetailIngestUsage)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "meteringSource" {
		t.Errorf("got %q, want %q", got, "meteringSource")
	}
}

func TestSourceFor_UnknownDetailType(t *testing.T) {
	_, err := testSources.SourceFor("bogus")
	if !errors.Is(err, domain.ErrUnknownDetailType) {
		t.Errorf("expected ErrUnknownDetailType, got %v", err)
	}
}
