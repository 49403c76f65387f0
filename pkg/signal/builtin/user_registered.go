package builtin

import (
	"context"

	"github.com/AccelByte/extend-marketing-automation/pkg/rule"
	"github.com/AccelByte/extend-marketing-automation/pkg/signal"
)

// EventUserRegistered is emitted when a customer signs up.
// Payload: location_id.
const EventUserRegistered = "user.registered"

// UserRegisteredProcessor records the registration time and home location.
type UserRegisteredProcessor struct{}

func (p *UserRegisteredProcessor) EventType() string {
	return EventUserRegistered
}

func (p *UserRegisteredProcessor) Process(ctx context.Context, event signal.Event, attributes signal.AttributeWriter) error {
	ts := float64(event.Timestamp.Unix())
	if err := attributes.SetAttribute(ctx, event.OrganizationID, event.UserID, AttrRegisteredAt, rule.NumberValue(ts)); err != nil {
		return err
	}
	if location, ok := event.String("location_id"); ok {
		return attributes.SetAttribute(ctx, event.OrganizationID, event.UserID, AttrLocationID, rule.StringValue(location))
	}
	return nil
}
