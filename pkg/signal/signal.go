package signal

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
)

// Event is an application event emitted by the canteen platform, e.g.
// "user.registered" or "order.placed".
type Event struct {
	ID             string                 `json:"id"`
	Name           string                 `json:"name"`
	OrganizationID string                 `json:"organizationId"`
	UserID         string                 `json:"userId"`
	Timestamp      time.Time              `json:"timestamp"`
	Payload        map[string]interface{} `json:"payload,omitempty"`
}

// Validate checks the fields every event needs.
func (e *Event) Validate() error {
	switch {
	case e.Name == "":
		return fmt.Errorf("event %s has no name", e.ID)
	case e.OrganizationID == "":
		return fmt.Errorf("event %s has no organization", e.ID)
	case e.UserID == "":
		return fmt.Errorf("event %s has no user", e.ID)
	}
	return nil
}

// Float returns a numeric payload field.
func (e *Event) Float(key string) (float64, bool) {
	switch v := e.Payload[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// String returns a string payload field.
func (e *Event) String(key string) (string, bool) {
	s, ok := e.Payload[key].(string)
	return s, ok && s != ""
}

// DecodeEvent parses an event message. The message UUID is used as the event
// ID when the body has none.
func DecodeEvent(msg *message.Message) (Event, error) {
	var e Event
	if err := json.Unmarshal(msg.Payload, &e); err != nil {
		return Event{}, fmt.Errorf("invalid event message %s: %w", msg.UUID, err)
	}
	if e.ID == "" {
		e.ID = msg.UUID
	}
	return e, nil
}

// NewMessage encodes an event as a watermill message.
func NewMessage(e Event) (*message.Message, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode event %s: %w", e.ID, err)
	}
	return message.NewMessage(e.ID, payload), nil
}
