package river

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/riverqueue/river"

	"github.com/neomorfeo/controlplane/internal/domain"
)

// Compile-time check: Publisher implements domain.EventPublisher.
var _ domain.EventPublisher = (*Publisher)(nil)

// maxDeliveryAttempts bounds redelivery of an event whose handlers keep failing.
const maxDeliveryAttempts = 5

// EventJobArgs is the queued form of a bus event. River serializes it as
// JSON into its job table, so the detail survives restarts.
type EventJobArgs struct {
	Source     string            `json:"source"`
	DetailType string            `json:"detail_type"`
	Detail     domain.Attributes `json:"detail"`
}

// Kind returns the unique job type identifier used by River's job routing.
func (EventJobArgs) Kind() string { return "control_plane.event" }

// InsertOpts sets the delivery policy for every event job.
func (EventJobArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{MaxAttempts: maxDeliveryAttempts}
}

func (a EventJobArgs) event() domain.Event {
	return domain.Event{
		Source:     a.Source,
		DetailType: domain.DetailType(a.DetailType),
		Detail:     a.Detail,
	}
}

// Client is the River client type parameterized for SQLite (*sql.Tx).
type Client = river.Client[*sql.Tx]

// Publisher implements domain.EventPublisher by enqueuing River jobs.
type Publisher struct {
	client *Client
}

// NewPublisher creates a publisher backed by the given River client.
func NewPublisher(client *Client) *Publisher {
	return &Publisher{client: client}
}

// Publish enqueues event for asynchronous delivery.
func (p *Publisher) Publish(ctx context.Context, event domain.Event) error {
	_, err := p.client.Insert(ctx, EventJobArgs{
		Source:     event.Source,
		DetailType: string(event.DetailType),
		Detail:     event.Detail,
	}, nil)
	if err != nil {
		return fmt.Errorf("enqueuing %s event: %w", event.DetailType, err)
	}
	return nil
}
