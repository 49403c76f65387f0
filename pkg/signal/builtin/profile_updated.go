package builtin

import (
	"context"
	"fmt"
	"sort"

	"github.com/AccelByte/extend-marketing-automation/pkg/rule"
	"github.com/AccelByte/extend-marketing-automation/pkg/signal"
)

// EventProfileUpdated carries arbitrary attribute values in payload.attributes,
// e.g. {"email_opt_in": "false", "diet": ["vegan"]}.
const EventProfileUpdated = "profile.updated"

// ProfileUpdatedProcessor copies the attributes of a profile update.
type ProfileUpdatedProcessor struct{}

func (p *ProfileUpdatedProcessor) EventType() string {
	return EventProfileUpdated
}

func (p *ProfileUpdatedProcessor) Process(ctx context.Context, event signal.Event, attributes signal.AttributeWriter) error {
	raw, ok := event.Payload["attributes"].(map[string]interface{})
	if !ok {
		return nil
	}

	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		value, err := rule.ValueFrom(raw[name])
		if err != nil {
			return fmt.Errorf("attribute %s: %w", name, err)
		}
		if err := attributes.SetAttribute(ctx, event.OrganizationID, event.UserID, name, value); err != nil {
			return err
		}
	}
	return nil
}
