package http

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/neomorfeo/controlplane/internal/domain"
)

// DeliverEventInput is an event in the bus envelope format.
type DeliverEventInput struct {
	Body struct {
		Source     string            `json:"source" minLength:"1" doc:"Logical event source"`
		DetailType string            `json:"detail-type" minLength:"1" doc:"Event name"`
		Detail     domain.Attributes `json:"detail,omitempty" doc:"Event payload"`
	}
}

func registerEvents(api huma.API, router domain.EventRouter, internal huma.Middlewares) {
	huma.Register(api, huma.Operation{
		OperationID:   "deliver-event",
		Method:        http.MethodPost,
		Path:          "/events",
		Summary:       "Deliver a bus event",
		Description:   "Dispatches the event to the subscribers of its detail type, as a bus rule would. An event no rule matches is accepted and dropped.",
		Tags:          []string{"Events"},
		DefaultStatus: http.StatusAccepted,
		Middlewares:   internal,
	}, func(ctx context.Context, input *DeliverEventInput) (*DataOutput[MessageBody], error) {
		routed, err := router.Route(ctx, domain.Event{
			Source:     input.Body.Source,
			DetailType: domain.DetailType(input.Body.DetailType),
			Detail:     input.Body.Detail,
		})
		if err != nil {
			return nil, toHumaError(ctx, err, "Error delivering event")
		}
		if routed == 0 {
			return dataOf(MessageBody{Message: "Event accepted, no matching rule"}), nil
		}
		return dataOf(MessageBody{Message: "Event delivered"}), nil
	})
}
