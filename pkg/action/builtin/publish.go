package builtin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/AccelByte/extend-marketing-automation/pkg/action"
	"github.com/AccelByte/extend-marketing-automation/pkg/journey"
	"github.com/ThreeDotsLabs/watermill/message"
)

const (
	// PublishActionType publishes deliveries for a channel sender to consume
	PublishActionType = "builtin.publish"

	// DefaultTopicPrefix is followed by the channel name unless the action
	// sets a "topic" parameter
	DefaultTopicPrefix = "marketing.delivery."
)

// DeliveryRequest is the message body of a published delivery.
type DeliveryRequest struct {
	journey.Delivery
	ActionID string `json:"actionId"`
}

// DecodeDeliveryRequest parses a published delivery message.
func DecodeDeliveryRequest(msg *message.Message) (DeliveryRequest, error) {
	var req DeliveryRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		return DeliveryRequest{}, fmt.Errorf("invalid delivery message %s: %w", msg.UUID, err)
	}
	return req, nil
}

// PublishAction hands deliveries to a watermill publisher.
type PublishAction struct {
	config    action.ActionConfig
	publisher message.Publisher
}

func NewPublishAction(config action.ActionConfig, publisher message.Publisher) *PublishAction {
	return &PublishAction{
		config:    config,
		publisher: publisher,
	}
}

func (a *PublishAction) ID() string {
	return a.config.ID
}

func (a *PublishAction) Name() string {
	return "Publish Delivery"
}

func (a *PublishAction) Config() action.ActionConfig {
	return a.config
}

// Topic returns the topic deliveries of the channel are published on.
func (a *PublishAction) Topic(delivery journey.Delivery) string {
	return a.config.GetParameterString("topic", DefaultTopicPrefix+string(delivery.Channel))
}

func (a *PublishAction) Execute(ctx context.Context, delivery journey.Delivery) error {
	payload, err := json.Marshal(DeliveryRequest{Delivery: delivery, ActionID: a.config.ID})
	if err != nil {
		return fmt.Errorf("failed to encode delivery %s: %w", delivery.ID, err)
	}

	// the delivery ID doubles as the message ID so consumers can deduplicate
	msg := message.NewMessage(delivery.ID, payload)
	msg.SetContext(ctx)
	msg.Metadata.Set("channel", string(delivery.Channel))
	msg.Metadata.Set("journey_id", delivery.JourneyID)
	msg.Metadata.Set("organization_id", delivery.OrganizationID)

	if err := a.publisher.Publish(a.Topic(delivery), msg); err != nil {
		return fmt.Errorf("failed to publish delivery %s: %w", delivery.ID, err)
	}
	return nil
}
