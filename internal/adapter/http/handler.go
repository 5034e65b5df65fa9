package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"github.com/neomorfeo/controlplane/internal/app"
	"github.com/neomorfeo/controlplane/internal/domain"
)

// ErrorBody is the shape of every non-2xx response.
type ErrorBody struct {
	status  int
	Message string `json:"message" doc:"Human readable error"`
}

func (e *ErrorBody) Error() string { return e.Message }
func (e *ErrorBody) GetStatus() int { return e.status }

func newError(status int, msg string, errs ...error) huma.StatusError {
	// Request validation failures are client errors like any other 400.
	if status == http.StatusUnprocessableEntity {
		status = http.StatusBadRequest
	}
	if len(errs) > 0 {
		details := make([]string, 0, len(errs))
		for _, err := range errs {
			if err != nil {
				details = append(details, err.Error())
			}
		}
		if len(details) > 0 {
			msg = msg + ": " + strings.Join(details, "; ")
		}
	}
	return &ErrorBody{status: status, Message: msg}
}

// NewAPI mounts a huma API on router with the control plane error format.
func NewAPI(router chi.Router, title, version string) huma.API {
	huma.NewError = newError
	return humachi.New(router, huma.DefaultConfig(title, version))
}

// RequestVerifier authenticates service-to-service requests.
type RequestVerifier interface {
	Verify(r *http.Request) error
}

// Deps are the services behind the HTTP surface.
type Deps struct {
	Registrations *app.RegistrationService
	Tenants       *app.TenantService
	Events        domain.EventRouter

	// Verifier guards internal routes. Nil leaves them open.
	Verifier RequestVerifier
}

// Register adds every control plane route to api.
func Register(api huma.API, deps Deps) {
	internal := huma.Middlewares{}
	if deps.Verifier != nil {
		internal = append(internal, requireSignature(api, deps.Verifier))
	}

	registerRegistrations(api, deps.Registrations, internal)
	registerTenants(api, deps.Tenants, internal)
	registerTenantConfig(api, deps.Tenants)
	if deps.Events != nil {
		registerEvents(api, deps.Events, internal)
	}
}

// requireSignature rejects internal calls that do not carry a valid
// request signature.
func requireSignature(api huma.API, v RequestVerifier) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		r, _ := humachi.Unwrap(ctx)
		if err := v.Verify(r); err != nil {
			slog.WarnContext(ctx.Context(), "rejecting unsigned or mis-signed request",
				"method", r.Method,
				"path", r.URL.Path,
				"error", err,
			)
			_ = huma.WriteErr(api, ctx, http.StatusForbidden, "Forbidden: "+err.Error())
			return
		}
		next(ctx)
	}
}

// toHumaError logs err and translates it to an HTTP error. fallback is the
// message for errors with no more specific mapping.
func toHumaError(ctx context.Context, err error, fallback string) error {
	var (
		validation *domain.ValidationError
		transition *domain.TransitionError
		upstream   *domain.UpstreamError
	)

	switch {
	case errors.Is(err, domain.ErrTenantNotLinked):
		return huma.Error404NotFound("Tenant ID not found for this registration")
	case errors.Is(err, domain.ErrMalformedEvent), errors.As(err, &validation):
		return huma.Error400BadRequest(err.Error())
	case errors.As(err, &transition):
		return huma.Error409Conflict(transition.Error())
	case errors.As(err, &upstream):
		slog.ErrorContext(ctx, fallback, "error", err)
		return huma.Error500InternalServerError(fmt.Sprintf("Failed to %s", upstream.Op))
	}

	slog.ErrorContext(ctx, fallback, "error", err)
	return huma.Error500InternalServerError(fallback)
}

// DataOutput wraps a response payload in the {"data": ...} envelope.
type DataOutput[T any] struct {
	Body struct {
		Data T `json:"data"`
	}
}

func dataOf[T any](v T) *DataOutput[T] {
	out := &DataOutput[T]{}
	out.Body.Data = v
	return out
}

// PageOutput is a page of items with an optional continuation token.
type PageOutput struct {
	Body struct {
		Data      []domain.Attributes `json:"data"`
		NextToken string              `json:"next_token,omitempty" doc:"Pass as next_token to fetch the following page"`
	}
}

// PageInput carries the pagination query parameters.
type PageInput struct {
	Limit     int    `query:"limit" minimum:"1" maximum:"1000" default:"10" doc:"Max results"`
	NextToken string `query:"next_token" doc:"Continuation token from a previous page"`
}

func (p PageInput) request() domain.PageRequest {
	return domain.PageRequest{Limit: p.Limit, Token: p.NextToken}
}

// MessageBody carries a human readable acknowledgement.
type MessageBody struct {
	Message string `json:"message"`
}
