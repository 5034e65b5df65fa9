package domain_test

import (
	"testing"

	"github.com/neomorfeo/controlplane/internal/domain"
)

func TestNewTenant_DiscardsCallerIdentity(t *testing.T) {
	tenant := domain.NewTenant("t-1", domain.Attributes{
		"tenantId":   "spoofed",
		"active":     false,
		"tenantName": "acme",
	})

	if tenant.ID != "t-1" {
		t.Errorf("ID = %q, want %q", tenant.ID, "t-1")
	}
	if !tenant.Active {
		t.Error("new tenant should be active")
	}
	if _, ok := tenant.Attributes["tenantId"]; ok {
		t.Error("caller tenantId should be discarded")
	}
	if tenant.Attributes["tenantName"] != "acme" {
		t.Errorf("tenantName = %v, want %q", tenant.Attributes["tenantName"], "acme")
	}
}

func TestTenant_PatchedIgnoresTenantID(t *testing.T) {
	tenant := domain.NewTenant("t-1", domain.Attributes{"plan": "basic"})

	got, err := tenant.Patched(domain.Attributes{"tenantId": "other", "plan": "plus", "active": false})
	if err != nil {
		t.Fatalf("Patched failed: %v", err)
	}
	if got.ID != "t-1" {
		t.Errorf("ID = %q, want %q", got.ID, "t-1")
	}
	if got.Attributes["plan"] != "plus" {
		t.Errorf("plan = %v, want %q", got.Attributes["plan"], "plus")
	}
	if got.Active {
		t.Error("Active should be false")
	}
}

func TestTenant_ItemRoundTrip(t *testing.T) {
	tenant := domain.NewTenant("t-1", domain.Attributes{"tenantName": "acme"})
	back := domain.TenantFromItem(tenant.Item())

	if back.ID != tenant.ID || back.Active != tenant.Active || back.Attributes["tenantName"] != "acme" {
		t.Errorf("round trip = %+v, want %+v", back, tenant)
	}
}
