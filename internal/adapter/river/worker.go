package river

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/riverqueue/river"

	"github.com/neomorfeo/controlplane/internal/domain"
)

const deliveryTimeout = 30 * time.Second

// EventWorker delivers queued events to a handler, normally the event router.
// A handler error fails the job and River retries it with backoff. Malformed
// events are cancelled since redelivery cannot fix them.
type EventWorker struct {
	river.WorkerDefaults[EventJobArgs]

	handler domain.EventHandler
}

// NewEventWorker creates a worker that hands every job to handler.
func NewEventWorker(handler domain.EventHandler) *EventWorker {
	return &EventWorker{handler: handler}
}

// Timeout bounds a single delivery attempt.
func (w *EventWorker) Timeout(*river.Job[EventJobArgs]) time.Duration {
	return deliveryTimeout
}

// Work processes a single event job.
func (w *EventWorker) Work(ctx context.Context, job *river.Job[EventJobArgs]) error {
	logger := slog.With(
		"detailType", job.Args.DetailType,
		"source", job.Args.Source,
		"job_id", job.ID,
		"attempt", job.Attempt,
	)

	err := w.handler.Handle(ctx, job.Args.event())
	switch {
	case err == nil:
		logger.DebugContext(ctx, "event delivered")
		return nil
	case errors.Is(err, domain.ErrMalformedEvent):
		logger.WarnContext(ctx, "dropping malformed event", "error", err)
		return river.JobCancel(err)
	default:
		logger.ErrorContext(ctx, "event delivery failed", "error", err)
		return err
	}
}
