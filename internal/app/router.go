package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/neomorfeo/controlplane/internal/domain"
)

// Compile-time checks.
var (
	_ domain.EventHandler = (*Router)(nil)
	_ domain.EventRouter  = (*Router)(nil)
)

// Router dispatches delivered events to the handlers subscribed to their
// detail type. Like a bus rule, it matches on source as well: an event
// whose source is not the one assigned to its detail type reaches no one.
type Router struct {
	sources domain.EventSources

	mu     sync.RWMutex
	routes map[domain.DetailType][]domain.EventHandler
}

// NewRouter creates an empty router.
func NewRouter(sources domain.EventSources) *Router {
	return &Router{
		sources: sources,
		routes:  make(map[domain.DetailType][]domain.EventHandler),
	}
}

// Subscribe registers h for each of the given detail types.
func (r *Router) Subscribe(h domain.EventHandler, types ...domain.DetailType) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, d := range types {
		if _, err := d.Plane(); err != nil {
			return err
		}
		r.routes[d] = append(r.routes[d], h)
	}
	return nil
}

// Handle dispatches event like Route, ignoring how many subscribers it
// reached.
func (r *Router) Handle(ctx context.Context, event domain.Event) error {
	_, err := r.Route(ctx, event)
	return err
}

// Route dispatches event to every matching subscriber in registration
// order and returns how many there were. All subscribers run; their errors
// are joined. An event dropped for a source mismatch reaches zero.
func (r *Router) Route(ctx context.Context, event domain.Event) (int, error) {
	want, err := r.sources.SourceFor(event.DetailType)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrMalformedEvent, err)
	}
	if event.Source != want {
		slog.WarnContext(ctx, "event source does not match its detail type, dropping",
			"detailType", string(event.DetailType),
			"source", event.Source,
			"expected", want,
		)
		return 0, nil
	}

	r.mu.RLock()
	handlers := r.routes[event.DetailType]
	r.mu.RUnlock()

	if len(handlers) == 0 {
		slog.DebugContext(ctx, "no subscribers for event", "detailType", string(event.DetailType))
		return 0, nil
	}

	var errs []error
	for _, h := range handlers {
		if err := h.Handle(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return len(handlers), errors.Join(errs...)
}
