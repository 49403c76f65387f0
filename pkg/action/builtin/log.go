package builtin

import (
	"context"

	"github.com/AccelByte/extend-marketing-automation/pkg/action"
	"github.com/AccelByte/extend-marketing-automation/pkg/journey"
	"github.com/sirupsen/logrus"
)

// LogActionType logs deliveries instead of sending them. Useful for local runs.
const LogActionType = "builtin.log"

type LogAction struct {
	config action.ActionConfig
}

func NewLogAction(config action.ActionConfig) *LogAction {
	return &LogAction{
		config: config,
	}
}

func (a *LogAction) ID() string {
	return a.config.ID
}

func (a *LogAction) Name() string {
	return "Log Delivery"
}

func (a *LogAction) Config() action.ActionConfig {
	return a.config
}

func (a *LogAction) Execute(ctx context.Context, delivery journey.Delivery) error {
	logrus.WithFields(logrus.Fields{
		"delivery":    delivery.ID,
		"journey":     delivery.JourneyID,
		"user":        delivery.UserID,
		"channel":     delivery.Channel,
		"template_id": delivery.Template.TemplateID,
	}).Info("[NO-OP] delivery would be sent")
	return nil
}
