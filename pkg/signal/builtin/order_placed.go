package builtin

import (
	"context"
	"fmt"

	"github.com/AccelByte/extend-marketing-automation/pkg/rule"
	"github.com/AccelByte/extend-marketing-automation/pkg/signal"
	"github.com/sirupsen/logrus"
)

// EventOrderPlaced is emitted when a customer places an order.
// Payload: amount (major units), location_id.
const EventOrderPlaced = "order.placed"

// OrderPlacedProcessor maintains the order counters of a customer.
type OrderPlacedProcessor struct{}

func (p *OrderPlacedProcessor) EventType() string {
	return EventOrderPlaced
}

func (p *OrderPlacedProcessor) Process(ctx context.Context, event signal.Event, attributes signal.AttributeWriter) error {
	count, err := attributes.IncrementAttribute(ctx, event.OrganizationID, event.UserID, AttrOrdersCount, 1)
	if err != nil {
		return err
	}

	if amount, ok := event.Float("amount"); ok {
		if amount < 0 {
			return fmt.Errorf("negative order amount %v", amount)
		}
		if _, err := attributes.IncrementAttribute(ctx, event.OrganizationID, event.UserID, AttrTotalSpend, amount); err != nil {
			return err
		}
	}

	ts := float64(event.Timestamp.Unix())
	if err := attributes.SetAttribute(ctx, event.OrganizationID, event.UserID, AttrLastOrderAt, rule.NumberValue(ts)); err != nil {
		return err
	}

	if location, ok := event.String("location_id"); ok {
		if err := attributes.SetAttribute(ctx, event.OrganizationID, event.UserID, AttrLocationID, rule.StringValue(location)); err != nil {
			return err
		}
	}

	logrus.Debugf("user %s placed order number %.0f", event.UserID, count)
	return nil
}
