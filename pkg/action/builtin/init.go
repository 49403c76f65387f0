package builtin

import (
	"github.com/AccelByte/extend-marketing-automation/pkg/action"
	"github.com/ThreeDotsLabs/watermill/message"
)

// Dependencies holds dependencies needed by built-in actions.
type Dependencies struct {
	Publisher message.Publisher
}

// RegisterActions registers built-in action factories with dependencies.
func RegisterActions(deps *Dependencies) {
	action.RegisterActionType(PublishActionType, func(config action.ActionConfig) (action.Action, error) {
		if deps.Publisher == nil {
			return nil, action.ErrInvalidConfig
		}
		return NewPublishAction(config, deps.Publisher), nil
	})

	action.RegisterActionType(LogActionType, func(config action.ActionConfig) (action.Action, error) {
		return NewLogAction(config), nil
	})
}
