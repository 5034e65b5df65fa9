// Package eventbridge publishes control plane events onto an Amazon
// EventBridge bus.
package eventbridge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awseb "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"

	"github.com/neomorfeo/controlplane/internal/domain"
)

// API is the subset of the EventBridge client the publisher uses.
type API interface {
	PutEvents(ctx context.Context, in *awseb.PutEventsInput, optFns ...func(*awseb.Options)) (*awseb.PutEventsOutput, error)
}

// Compile-time checks.
var (
	_ API                   = (*awseb.Client)(nil)
	_ domain.EventPublisher = (*Publisher)(nil)
)

// Publisher puts one entry per event on the configured bus.
type Publisher struct {
	api     API
	busName string
}

// NewPublisher creates a publisher for busName.
func NewPublisher(api API, busName string) *Publisher {
	return &Publisher{api: api, busName: busName}
}

// Publish sends event. A rejected entry is an error even when the call
// itself succeeds.
func (p *Publisher) Publish(ctx context.Context, event domain.Event) error {
	detail, err := json.Marshal(event.Detail)
	if err != nil {
		return fmt.Errorf("encoding %s detail: %w", event.DetailType, err)
	}

	out, err := p.api.PutEvents(ctx, &awseb.PutEventsInput{
		Entries: []types.PutEventsRequestEntry{{
			EventBusName: aws.String(p.busName),
			Source:       aws.String(event.Source),
			DetailType:   aws.String(string(event.DetailType)),
			Detail:       aws.String(string(detail)),
		}},
	})
	if err != nil {
		return fmt.Errorf("putting %s event: %w", event.DetailType, err)
	}

	if out.FailedEntryCount > 0 {
		code, msg := "unknown", ""
		for _, e := range out.Entries {
			if e.ErrorCode != nil {
				code, msg = aws.ToString(e.ErrorCode), aws.ToString(e.ErrorMessage)
				break
			}
		}
		return fmt.Errorf("event bus rejected %s event: %s %s", event.DetailType, code, msg)
	}
	return nil
}
