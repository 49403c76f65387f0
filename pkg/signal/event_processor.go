package signal

import (
	"context"
	"fmt"
	"sync"

	"github.com/AccelByte/extend-marketing-automation/pkg/rule"
)

// EventProcessor updates customer attributes from one kind of event.
type EventProcessor interface {
	// EventType returns the event name this processor handles.
	// Examples: "order.placed", "user.registered"
	EventType() string

	// Process applies the event to the customer's attributes.
	Process(ctx context.Context, event Event, attributes AttributeWriter) error
}

// AttributeWriter writes customer attributes.
type AttributeWriter interface {
	SetAttribute(ctx context.Context, orgID, customerID, name string, value rule.Value) error
	IncrementAttribute(ctx context.Context, orgID, customerID, name string, delta float64) (float64, error)
}

// EventProcessorRegistry manages registered event processors.
type EventProcessorRegistry struct {
	mu         sync.RWMutex
	processors map[string]EventProcessor
}

// NewEventProcessorRegistry creates a new event processor registry.
func NewEventProcessorRegistry() *EventProcessorRegistry {
	return &EventProcessorRegistry{
		processors: make(map[string]EventProcessor),
	}
}

// Register adds an event processor to the registry.
func (r *EventProcessorRegistry) Register(processor EventProcessor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.processors[processor.EventType()] = processor
}

// Get retrieves an event processor by event type.
func (r *EventProcessorRegistry) Get(eventType string) EventProcessor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.processors[eventType]
}

// Count returns the number of registered event processors.
func (r *EventProcessorRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.processors)
}

// Unregister removes an event processor from the registry.
func (r *EventProcessorRegistry) Unregister(eventType string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.processors[eventType]; !exists {
		return fmt.Errorf("event processor for type '%s' not found", eventType)
	}

	delete(r.processors, eventType)
	return nil
}
