package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for simple conditions without extra context.
var (
	ErrRegistrationNotFound = errors.New("tenant registration not found")
	ErrRegistrationExists   = errors.New("tenant registration already exists")
	ErrTenantNotFound       = errors.New("tenant not found")
	ErrTenantNotLinked      = errors.New("tenant ID not found for this registration")
	ErrTenantConfigNotFound = errors.New("tenant config not found")
	ErrMalformedEvent       = errors.New("malformed event")
	ErrUnknownDetailType    = errors.New("unknown detail type")
)

// ValidationError is returned when caller input is rejected.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// TransitionError is returned when a state transition is not allowed.
type TransitionError struct {
	Event   LifecycleEvent
	Current Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("event %q is not valid from state %q", e.Event, e.Current)
}

// UpstreamError is returned when a signed call to another internal service
// answers with an unexpected status.
type UpstreamError struct {
	Op     string
	Status int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("failed to %s: upstream returned status %d", e.Op, e.Status)
}
