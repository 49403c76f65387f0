package signal

import (
	"context"
	"fmt"

	"github.com/AccelByte/extend-marketing-automation/pkg/common"
	"github.com/AccelByte/extend-marketing-automation/pkg/metrics"
	"github.com/AccelByte/extend-marketing-automation/pkg/service"
)

// Enroller enrolls a user into the journeys triggered by an event.
type Enroller interface {
	HandleEvent(ctx context.Context, organizationID, event, userID string) (*service.BatchResult, error)
}

// Processor applies application events: attributes first, so that journeys
// entered by the event already see its effect, then event-triggered enrollment.
type Processor struct {
	registry   *EventProcessorRegistry
	attributes AttributeWriter
	enroller   Enroller
}

// NewProcessor creates a new event processor pipeline.
func NewProcessor(registry *EventProcessorRegistry, attributes AttributeWriter, enroller Enroller) *Processor {
	return &Processor{
		registry:   registry,
		attributes: attributes,
		enroller:   enroller,
	}
}

// Process handles one event. Events without a registered processor still
// trigger enrollment.
func (p *Processor) Process(ctx context.Context, event Event) (*service.BatchResult, error) {
	scope := common.NewScope(ctx, "signal.process")
	defer scope.Finish()
	scope.SetAttributes("event", event.Name)

	if err := event.Validate(); err != nil {
		metrics.EventsProcessed.WithLabelValues(event.Name, "invalid").Inc()
		return nil, service.NewValidationError("signal.process", []string{err.Error()})
	}

	if processor := p.registry.Get(event.Name); processor != nil {
		if err := processor.Process(scope.Ctx, event, p.attributes); err != nil {
			scope.TraceError(err)
			metrics.EventsProcessed.WithLabelValues(event.Name, "error").Inc()
			return nil, fmt.Errorf("failed to apply %s for user %s: %w", event.Name, event.UserID, err)
		}
	}

	result, err := p.enroller.HandleEvent(scope.Ctx, event.OrganizationID, event.Name, event.UserID)
	if err != nil {
		scope.TraceError(err)
		metrics.EventsProcessed.WithLabelValues(event.Name, "error").Inc()
		return nil, err
	}

	metrics.EventsProcessed.WithLabelValues(event.Name, "ok").Inc()
	scope.Log.Debugf("processed %s for user %s: %d enrollments", event.Name, event.UserID, result.Succeeded)
	return result, nil
}
