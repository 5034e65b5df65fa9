package app_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/neomorfeo/controlplane/internal/adapter/fsm"
	"github.com/neomorfeo/controlplane/internal/app"
	"github.com/neomorfeo/controlplane/internal/domain"
)

type registrationFixture struct {
	repo    *mockRegistrations
	gateway *mockGateway
	pub     *mockPublisher
	svc     *app.RegistrationService
}

func newRegistrationFixture() *registrationFixture {
	f := &registrationFixture{
		repo:    newMockRegistrations(),
		gateway: &mockGateway{createID: "t-1"},
		pub:     &mockPublisher{},
	}
	f.svc = app.NewRegistrationService(f.repo, f.gateway, f.pub, fsm.New(), sequentialIDs("reg"))
	return f
}

// --- Create ---

func TestCreate_Success(t *testing.T) {
	f := newRegistrationFixture()
	ctx := context.Background()

	got, err := f.svc.Create(ctx, domain.Attributes{}, domain.Attributes{"name": "Acme"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.RegistrationID != "reg-1" || got.TenantID != "t-1" {
		t.Errorf("Create() = %+v, want reg-1/t-1", got)
	}

	stored, err := f.repo.Get(ctx, "reg-1")
	if err != nil {
		t.Fatalf("registration not stored: %v", err)
	}
	if !stored.Active {
		t.Error("stored registration should be active")
	}
	if stored.TenantID != "t-1" {
		t.Errorf("stored TenantID = %q, want %q", stored.TenantID, "t-1")
	}
	if stored.Status != domain.StatusOnboarding {
		t.Errorf("stored Status = %q, want %q", stored.Status, domain.StatusOnboarding)
	}

	if len(f.pub.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(f.pub.events))
	}
	ev := f.pub.events[0]
	if ev.DetailType != domain.DetailOnboardingRequest {
		t.Errorf("DetailType = %q, want %q", ev.DetailType, domain.DetailOnboardingRequest)
	}
	want := domain.Attributes{"name": "Acme", "tenantId": "t-1", "tenantRegistrationId": "reg-1"}
	if diff := cmp.Diff(want, ev.Detail); diff != "" {
		t.Errorf("event detail mismatch (-want +got):\n%s", diff)
	}
}

func TestCreate_MergesRegistrationAndTenantData(t *testing.T) {
	f := newRegistrationFixture()

	_, err := f.svc.Create(context.Background(),
		domain.Attributes{"source": "signup", "plan": "trial"},
		domain.Attributes{"tenantName": "acme", "plan": "basic"},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	detail := f.pub.events[0].Detail
	if detail["plan"] != "basic" {
		t.Errorf("tenant data should win on shared keys, plan = %v", detail["plan"])
	}
	if detail["source"] != "signup" {
		t.Errorf("registration data missing from detail: %v", detail)
	}
}

func TestCreate_TenantFailureLeavesUnlinkedRegistration(t *testing.T) {
	f := newRegistrationFixture()
	f.gateway.createErr = &domain.UpstreamError{Op: "create tenant", Status: 500}
	ctx := context.Background()

	_, err := f.svc.Create(ctx, nil, domain.Attributes{"name": "Acme"})
	var upErr *domain.UpstreamError
	if !errors.As(err, &upErr) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}

	stored, err := f.repo.Get(ctx, "reg-1")
	if err != nil {
		t.Fatalf("registration should exist after a failed tenant call: %v", err)
	}
	if !stored.Active {
		t.Error("orphaned registration should stay active")
	}
	if stored.TenantID != "" {
		t.Errorf("orphaned registration should have no tenantId, got %q", stored.TenantID)
	}
	if len(f.pub.events) != 0 {
		t.Errorf("no event should be published, got %d", len(f.pub.events))
	}
}

func TestCreate_PublishFailureIsNotFatal(t *testing.T) {
	f := newRegistrationFixture()
	f.pub.err = errors.New("bus unavailable")

	got, err := f.svc.Create(context.Background(), nil, domain.Attributes{"name": "Acme"})
	if err != nil {
		t.Fatalf("publish failure should not fail Create: %v", err)
	}
	if got.TenantID != "t-1" {
		t.Errorf("TenantID = %q, want %q", got.TenantID, "t-1")
	}
}

func TestCreate_IDCollision(t *testing.T) {
	f := newRegistrationFixture()
	f.svc = app.NewRegistrationService(f.repo, f.gateway, f.pub, fsm.New(), func() string { return "same" })
	ctx := context.Background()

	if _, err := f.svc.Create(ctx, nil, nil); err != nil {
		t.Fatalf("first Create failed: %v", err)
	}
	_, err := f.svc.Create(ctx, nil, nil)
	if !errors.Is(err, domain.ErrRegistrationExists) {
		t.Fatalf("expected ErrRegistrationExists, got %v", err)
	}
	if len(f.gateway.created) != 1 {
		t.Errorf("tenant service should not be called after a collision, got %d calls", len(f.gateway.created))
	}
}

func TestCreate_RejectsReservedFields(t *testing.T) {
	f := newRegistrationFixture()

	_, err := f.svc.Create(context.Background(), domain.Attributes{"tenantId": "forged"}, nil)
	var vErr *domain.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(f.repo.regs) != 0 {
		t.Error("nothing should be stored on validation failure")
	}
}

// --- Get / List ---

func TestGet_Idempotent(t *testing.T) {
	f := newRegistrationFixture()
	ctx := context.Background()
	if _, err := f.svc.Create(ctx, domain.Attributes{"k": "v"}, nil); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	first, err := f.svc.Get(ctx, "reg-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	second, err := f.svc.Get(ctx, "reg-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("repeated Get differs (-first +second):\n%s", diff)
	}
}

func TestGet_NotFound(t *testing.T) {
	f := newRegistrationFixture()

	_, err := f.svc.Get(context.Background(), "missing-id")
	if !errors.Is(err, domain.ErrRegistrationNotFound) {
		t.Fatalf("expected ErrRegistrationNotFound, got %v", err)
	}
}

func TestList_PaginatesToTheEnd(t *testing.T) {
	f := newRegistrationFixture()
	ctx := context.Background()
	for range 25 {
		if _, err := f.svc.Create(ctx, nil, nil); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	seen := make(map[string]bool)
	token := ""
	for pages := 0; ; pages++ {
		if pages > 10 {
			t.Fatal("pagination did not terminate")
		}
		page, err := f.svc.List(ctx, domain.PageRequest{Token: token})
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(page.Items) > app.DefaultPageLimit {
			t.Errorf("page has %d items, want at most %d", len(page.Items), app.DefaultPageLimit)
		}
		for _, reg := range page.Items {
			if seen[reg.ID] {
				t.Errorf("duplicate id across pages: %s", reg.ID)
			}
			seen[reg.ID] = true
		}
		if page.NextToken == "" {
			break
		}
		token = page.NextToken
	}
	if len(seen) != 25 {
		t.Errorf("saw %d registrations, want 25", len(seen))
	}
}

// --- Update ---

func TestUpdate_NonExistentNeverCreates(t *testing.T) {
	f := newRegistrationFixture()

	_, err := f.svc.Update(context.Background(), "ghost", app.Patch{
		Registration: domain.Attributes{"jobOutput": map[string]any{"status": "ready"}},
	})
	if !errors.Is(err, domain.ErrRegistrationNotFound) {
		t.Fatalf("expected ErrRegistrationNotFound, got %v", err)
	}
	if len(f.repo.regs) != 0 {
		t.Error("update must not create a record")
	}
}

func TestUpdate_RegistrationAndTenant(t *testing.T) {
	f := newRegistrationFixture()
	ctx := context.Background()
	if _, err := f.svc.Create(ctx, nil, nil); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := f.svc.Update(ctx, "reg-1", app.Patch{
		Registration: domain.Attributes{"jobOutput": map[string]any{"status": "ready"}},
		Tenant:       domain.Attributes{"plan": "plus"},
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if diff := cmp.Diff(map[string]any{"status": "ready"}, got.Registration.Attributes["jobOutput"]); diff != "" {
		t.Errorf("jobOutput mismatch (-want +got):\n%s", diff)
	}
	if got.Tenant["plan"] != "plus" {
		t.Errorf("Tenant = %v, want plan=plus", got.Tenant)
	}
	if len(f.gateway.updated) != 1 || f.gateway.updated[0] != "t-1" {
		t.Errorf("tenant updates = %v, want [t-1]", f.gateway.updated)
	}
}

func TestUpdate_TenantOnlyReadsRecord(t *testing.T) {
	f := newRegistrationFixture()
	ctx := context.Background()
	if _, err := f.svc.Create(ctx, nil, nil); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := f.svc.Update(ctx, "reg-1", app.Patch{Tenant: domain.Attributes{"plan": "plus"}})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if got.Registration.TenantID != "t-1" {
		t.Errorf("Registration.TenantID = %q, want %q", got.Registration.TenantID, "t-1")
	}
}

func TestUpdate_EmptyPatchOnUnlinkedRegistration(t *testing.T) {
	f := newRegistrationFixture()
	f.gateway.createErr = errors.New("boom")
	ctx := context.Background()
	_, _ = f.svc.Create(ctx, nil, nil)

	_, err := f.svc.Update(ctx, "reg-1", app.Patch{})
	if !errors.Is(err, domain.ErrTenantNotLinked) {
		t.Fatalf("expected ErrTenantNotLinked, got %v", err)
	}
}

func TestUpdate_RegistrationPatchOnUnlinkedRegistration(t *testing.T) {
	f := newRegistrationFixture()
	f.gateway.createErr = errors.New("boom")
	ctx := context.Background()
	_, _ = f.svc.Create(ctx, nil, nil)

	got, err := f.svc.Update(ctx, "reg-1", app.Patch{Registration: domain.Attributes{"note": "retry later"}})
	if err != nil {
		t.Fatalf("registration-only patch should succeed: %v", err)
	}
	if got.Registration.Attributes["note"] != "retry later" {
		t.Errorf("patch not applied: %v", got.Registration.Attributes)
	}

	_, err = f.svc.Update(ctx, "reg-1", app.Patch{
		Registration: domain.Attributes{"note": "again"},
		Tenant:       domain.Attributes{"plan": "plus"},
	})
	if !errors.Is(err, domain.ErrTenantNotLinked) {
		t.Fatalf("expected ErrTenantNotLinked, got %v", err)
	}
}

func TestUpdate_TenantFailureKeepsRegistrationPatch(t *testing.T) {
	f := newRegistrationFixture()
	ctx := context.Background()
	if _, err := f.svc.Create(ctx, nil, nil); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	f.gateway.updateErr = &domain.UpstreamError{Op: "update tenant", Status: 500}

	_, err := f.svc.Update(ctx, "reg-1", app.Patch{
		Registration: domain.Attributes{"note": "kept"},
		Tenant:       domain.Attributes{"plan": "plus"},
	})
	var upErr *domain.UpstreamError
	if !errors.As(err, &upErr) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}

	stored, _ := f.repo.Get(ctx, "reg-1")
	if stored.Attributes["note"] != "kept" {
		t.Error("registration patch should not be rolled back")
	}
}

func TestUpdate_RejectsStatusPatch(t *testing.T) {
	f := newRegistrationFixture()
	ctx := context.Background()
	if _, err := f.svc.Create(ctx, nil, nil); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	_, err := f.svc.Update(ctx, "reg-1", app.Patch{Registration: domain.Attributes{"status": "offboarded"}})
	var vErr *domain.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

// --- Delete ---

func TestDelete_LogicalDelete(t *testing.T) {
	f := newRegistrationFixture()
	ctx := context.Background()
	if _, err := f.svc.Create(ctx, domain.Attributes{"region": "eu"}, nil); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := f.svc.Delete(ctx, "reg-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	stored, err := f.svc.Get(ctx, "reg-1")
	if err != nil {
		t.Fatalf("registration should survive delete: %v", err)
	}
	if stored.Active {
		t.Error("registration should be inactive after delete")
	}
	if stored.Status != domain.StatusOffboarded {
		t.Errorf("Status = %q, want %q", stored.Status, domain.StatusOffboarded)
	}

	if len(f.pub.events) != 2 {
		t.Fatalf("expected onboarding + offboarding events, got %d", len(f.pub.events))
	}
	ev := f.pub.events[1]
	if ev.DetailType != domain.DetailOffboardingRequest {
		t.Errorf("DetailType = %q, want %q", ev.DetailType, domain.DetailOffboardingRequest)
	}
	// Prior registration record plus the tenant service's response.
	if ev.Detail["active"] != true {
		t.Errorf("detail should carry the prior record (active=true), got %v", ev.Detail["active"])
	}
	if ev.Detail["tenantName"] != "acme" || ev.Detail["region"] != "eu" {
		t.Errorf("detail = %v", ev.Detail)
	}
	if ev.Detail["tenantRegistrationId"] != "reg-1" {
		t.Errorf("detail tenantRegistrationId = %v", ev.Detail["tenantRegistrationId"])
	}
}

func TestDelete_Unlinked(t *testing.T) {
	f := newRegistrationFixture()
	f.gateway.createErr = errors.New("boom")
	ctx := context.Background()
	_, _ = f.svc.Create(ctx, nil, nil)

	err := f.svc.Delete(ctx, "reg-1")
	if !errors.Is(err, domain.ErrTenantNotLinked) {
		t.Fatalf("expected ErrTenantNotLinked, got %v", err)
	}
	if len(f.gateway.deleted) != 0 {
		t.Error("tenant service should not be called")
	}
}

func TestDelete_NotFound(t *testing.T) {
	f := newRegistrationFixture()

	err := f.svc.Delete(context.Background(), "ghost")
	if !errors.Is(err, domain.ErrRegistrationNotFound) {
		t.Fatalf("expected ErrRegistrationNotFound, got %v", err)
	}
}

func TestDelete_TenantFailureMutatesNothing(t *testing.T) {
	f := newRegistrationFixture()
	ctx := context.Background()
	if _, err := f.svc.Create(ctx, nil, nil); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	f.gateway.deleteErr = &domain.UpstreamError{Op: "delete tenant", Status: 500}

	err := f.svc.Delete(ctx, "reg-1")
	var upErr *domain.UpstreamError
	if !errors.As(err, &upErr) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}

	stored, _ := f.repo.Get(ctx, "reg-1")
	if !stored.Active {
		t.Error("registration should stay active when the tenant delete fails")
	}
	if len(f.pub.events) != 1 {
		t.Errorf("no offboarding event expected, got %d events", len(f.pub.events))
	}
}

func TestDelete_Repeated(t *testing.T) {
	f := newRegistrationFixture()
	ctx := context.Background()
	if _, err := f.svc.Create(ctx, nil, nil); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	for i := range 2 {
		if err := f.svc.Delete(ctx, "reg-1"); err != nil {
			t.Fatalf("Delete #%d failed: %v", i+1, err)
		}
	}
	if len(f.gateway.deleted) != 2 {
		t.Errorf("tenant deletes = %d, want 2", len(f.gateway.deleted))
	}
}
