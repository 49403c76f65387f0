package action

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AccelByte/extend-marketing-automation/pkg/journey"
	"github.com/AccelByte/extend-marketing-automation/pkg/service"
	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

// DefaultActionTimeout bounds one action's attempts on a delivery, retries included.
const DefaultActionTimeout = 10 * time.Second

// Executor routes journey deliveries to the actions serving their channel.
type Executor struct {
	registry *Registry
	timeout  time.Duration
}

// NewExecutor creates a new action executor.
func NewExecutor(registry *Registry) *Executor {
	return &Executor{
		registry: registry,
		timeout:  DefaultActionTimeout,
	}
}

// SetActionTimeout changes how long one action may spend on a delivery,
// retries included. Non-positive values keep the current timeout.
func (e *Executor) SetActionTimeout(d time.Duration) {
	if d > 0 {
		e.timeout = d
	}
}

// Dispatch runs every action serving the delivery's channel, retrying each
// per its retry policy until the action timeout. Failures come back as a
// DeliveryError; one failing action does not stop the others.
func (e *Executor) Dispatch(ctx context.Context, delivery journey.Delivery) error {
	actions := e.registry.ForChannel(delivery.Channel)
	if len(actions) == 0 {
		return service.NewDeliveryError("action.dispatch", fmt.Errorf("%w %s", ErrNoChannelAction, delivery.Channel))
	}

	var errs []error
	for _, action := range actions {
		if err := e.execute(ctx, action, delivery); err != nil {
			logrus.Errorf("action %s failed for delivery %s: %v", action.ID(), delivery.ID, err)
			errs = append(errs, fmt.Errorf("%s: %w", action.ID(), err))
			continue
		}
		logrus.Debugf("action %s handed off delivery %s", action.ID(), delivery.ID)
	}

	if len(errs) > 0 {
		return service.NewDeliveryError("action.dispatch", errors.Join(errs...))
	}
	return nil
}

func (e *Executor) execute(ctx context.Context, action Action, delivery journey.Delivery) error {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cfg := action.Config()
	attempt := 0
	op := func() error {
		attempt++
		err := action.Execute(ctx, delivery)
		if err != nil && attempt > 1 {
			logrus.Warnf("action %s attempt %d failed: %v", action.ID(), attempt, err)
		}
		return err
	}
	return backoff.Retry(op, backoff.WithContext(cfg.Retry.BackOff(), ctx))
}

// GetRegistry returns the action registry used by this executor.
func (e *Executor) GetRegistry() *Registry {
	return e.registry
}
