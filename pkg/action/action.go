package action

import (
	"context"

	"github.com/AccelByte/extend-marketing-automation/pkg/journey"
)

// Action hands a journey delivery to one channel backend.
// Actions are registered in a Registry and run by the Executor.
type Action interface {
	// ID returns unique action identifier.
	ID() string

	// Name returns human-readable action name.
	Name() string

	// Execute hands off the delivery. It must not wait for the message to
	// reach the customer.
	Execute(ctx context.Context, delivery journey.Delivery) error

	// Config returns the action's configuration.
	Config() ActionConfig
}
