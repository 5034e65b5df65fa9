package fsm_test

import (
	"context"
	"errors"
	"testing"

	adapter "github.com/neomorfeo/controlplane/internal/adapter/fsm"
	"github.com/neomorfeo/controlplane/internal/domain"
)

func TestValidator_AllTransitions(t *testing.T) {
	v := adapter.New()
	ctx := context.Background()

	for _, tr := range domain.Transitions {
		dst, err := v.Apply(ctx, tr.Src, tr.Event)
		if err != nil {
			t.Errorf("Apply(%q, %q) unexpected error: %v", tr.Src, tr.Event, err)
			continue
		}
		if dst != tr.Dst {
			t.Errorf("Apply(%q, %q) = %q, want %q", tr.Src, tr.Event, dst, tr.Dst)
		}
	}
}

func TestValidator_InvalidTransition(t *testing.T) {
	v := adapter.New()
	ctx := context.Background()

	// A registration can only be linked to a tenant once.
	_, err := v.Apply(ctx, domain.StatusOnboarding, domain.EventTenantLinked)
	var trErr *domain.TransitionError
	if !errors.As(err, &trErr) {
		t.Fatalf("expected TransitionError, got %v", err)
	}
	if trErr.Event != domain.EventTenantLinked {
		t.Errorf("event = %q, want %q", trErr.Event, domain.EventTenantLinked)
	}
	if trErr.Current != domain.StatusOnboarding {
		t.Errorf("current = %q, want %q", trErr.Current, domain.StatusOnboarding)
	}
}

func TestValidator_UnknownEvent(t *testing.T) {
	v := adapter.New()

	_, err := v.Apply(context.Background(), domain.StatusRegistering, "reactivate")
	var trErr *domain.TransitionError
	if !errors.As(err, &trErr) {
		t.Fatalf("expected TransitionError, got %v", err)
	}
}

func TestValidator_FullLifecycle(t *testing.T) {
	v := adapter.New()
	ctx := context.Background()

	steps := []struct {
		from  domain.Status
		event domain.LifecycleEvent
		want  domain.Status
	}{
		{domain.StatusRegistering, domain.EventTenantLinked, domain.StatusOnboarding},
		{domain.StatusOnboarding, domain.EventOffboard, domain.StatusOffboarded},
		{domain.StatusOffboarded, domain.EventOffboard, domain.StatusOffboarded},
	}

	for _, step := range steps {
		got, err := v.Apply(ctx, step.from, step.event)
		if err != nil {
			t.Fatalf("Apply(%q, %q) error: %v", step.from, step.event, err)
		}
		if got != step.want {
			t.Errorf("Apply(%q, %q) = %q, want %q", step.from, step.event, got, step.want)
		}
	}
}

func TestValidator_OffboardBeforeLinking(t *testing.T) {
	v := adapter.New()

	got, err := v.Apply(context.Background(), domain.StatusRegistering, domain.EventOffboard)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != domain.StatusOffboarded {
		t.Errorf("got %q, want %q", got, domain.StatusOffboarded)
	}
}
