package domain

import (
	"context"
	"encoding/json"
)

// PageRequest bounds a table scan. Token is the opaque continuation returned
// by the previous page.
type PageRequest struct {
	Limit int
	Token string
}

// Page is one slice of a scan. NextToken is empty on the last page.
type Page[T any] struct {
	Items     []T
	NextToken string
}

// RegistrationRepository defines the persistence contract for registrations.
// Update is conditional on the record existing and never creates one.
type RegistrationRepository interface {
	Create(ctx context.Context, reg Registration) error
	Get(ctx context.Context, id string) (Registration, error)
	List(ctx context.Context, page PageRequest) (Page[Registration], error)
	Update(ctx context.Context, id string, patch Attributes) (Registration, error)
}

// TenantRepository defines the persistence contract for tenants.
type TenantRepository interface {
	Create(ctx context.Context, tenant Tenant) error
	Get(ctx context.Context, id string) (Tenant, error)
	FindByName(ctx context.Context, name string) (Tenant, error)
	List(ctx context.Context, page PageRequest) (Page[Tenant], error)
	Update(ctx context.Context, id string, patch Attributes) (Tenant, error)
}

// EventPublisher defines the contract for emitting events onto the bus.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// EventHandler consumes events delivered by the bus.
type EventHandler interface {
	Handle(ctx context.Context, event Event) error
}

// EventRouter dispatches an event to its subscribers and reports how many
// it reached. Zero means no rule matched.
type EventRouter interface {
	Route(ctx context.Context, event Event) (int, error)
}

// TransitionValidator checks registration lifecycle transitions.
type TransitionValidator interface {
	Apply(ctx context.Context, current Status, event LifecycleEvent) (Status, error)
}

// Response is the result of a service-to-service call.
type Response struct {
	Status int
	Body   []byte
}

// OK reports whether the status is 2xx.
func (r Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Decode unmarshals the JSON body into v.
func (r Response) Decode(v any) error {
	return json.Unmarshal(r.Body, v)
}

// ServiceCaller issues authenticated calls to trusted internal APIs.
// A nil body sends no payload.
type ServiceCaller interface {
	Call(ctx context.Context, method, url string, body any) (Response, error)
}
