package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/neomorfeo/controlplane/internal/domain"
)

// timestampLayout matches JavaScript's Date.toISOString.
const timestampLayout = "2006-01-02T15:04:05.000Z"

// JobCompletion is the input of the status reconciler: the registration a
// provisioning job ran for and whatever the job reported.
type JobCompletion struct {
	RegistrationID string
	JobOutput      any
}

// Compile-time check: StatusReconciler implements domain.EventHandler.
var _ domain.EventHandler = (*StatusReconciler)(nil)

// StatusReconciler patches a registration through the orchestrator's
// signed PATCH endpoint when a provisioning job finishes.
type StatusReconciler struct {
	caller  domain.ServiceCaller
	baseURL string
	path    string
	now     func() time.Time
}

// NewStatusReconciler creates a reconciler sending PATCH requests to
// baseURL + path + "/{registrationId}".
func NewStatusReconciler(caller domain.ServiceCaller, baseURL, path string) *StatusReconciler {
	return &StatusReconciler{
		caller:  caller,
		baseURL: baseURL,
		path:    path,
		now:     time.Now,
	}
}

// WithClock replaces the timestamp source.
func (r *StatusReconciler) WithClock(now func() time.Time) *StatusReconciler {
	r.now = now
	return r
}

// OnJobComplete sends {jobOutput, timestamp} to the registration. Repeated
// delivery repeats the same overwrite.
func (r *StatusReconciler) OnJobComplete(ctx context.Context, job JobCompletion) error {
	if job.RegistrationID == "" {
		return fmt.Errorf("%w: missing %s", domain.ErrMalformedEvent, domain.FieldRegistrationID)
	}

	output := job.JobOutput
	if output == nil {
		output = domain.Attributes{}
	}
	payload := map[string]any{
		domain.FieldJobOutput: output,
		domain.FieldTimestamp: r.now().UTC().Format(timestampLayout),
	}

	endpoint, err := url.JoinPath(r.baseURL, r.path, job.RegistrationID)
	if err != nil {
		return fmt.Errorf("building registration url: %w", err)
	}

	resp, err := r.caller.Call(ctx, http.MethodPatch, endpoint, payload)
	if err != nil {
		return fmt.Errorf("patching registration %s: %w", job.RegistrationID, err)
	}
	if !resp.OK() {
		return &domain.UpstreamError{Op: "update tenant registration", Status: resp.Status}
	}

	slog.InfoContext(ctx, "registration status reconciled",
		"tenantRegistrationId", job.RegistrationID,
		"status", resp.Status,
	)
	return nil
}

// Handle applies the rule input transform
// {tenantRegistrationId: detail.tenantRegistrationId, jobOutput: detail.jobOutput}
// and reconciles.
func (r *StatusReconciler) Handle(ctx context.Context, event domain.Event) error {
	return r.OnJobComplete(ctx, JobCompletion{
		RegistrationID: event.Detail.String(domain.FieldRegistrationID),
		JobOutput:      event.Detail[domain.FieldJobOutput],
	})
}
