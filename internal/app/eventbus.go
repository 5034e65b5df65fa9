package app

import (
	"context"
	"fmt"

	"github.com/neomorfeo/controlplane/internal/domain"
)

// Compile-time check: EventBus implements domain.EventPublisher.
var _ domain.EventPublisher = (*EventBus)(nil)

// EventBus stamps every event with the source its detail type is assigned
// to before handing it to the transport. Caller-supplied sources are
// overwritten.
type EventBus struct {
	transport domain.EventPublisher
	sources   domain.EventSources
}

// NewEventBus wraps transport with the source catalog.
func NewEventBus(transport domain.EventPublisher, sources domain.EventSources) *EventBus {
	return &EventBus{transport: transport, sources: sources}
}

// Publish tags event with its source and forwards it.
func (b *EventBus) Publish(ctx context.Context, event domain.Event) error {
	src, err := b.sources.SourceFor(event.DetailType)
	if err != nil {
		return fmt.Errorf("publishing %q: %w", event.DetailType, err)
	}
	event.Source = src
	if event.Detail == nil {
		event.Detail = domain.Attributes{}
	}
	return b.transport.Publish(ctx, event)
}
