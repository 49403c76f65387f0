package builtin

import "github.com/AccelByte/extend-marketing-automation/pkg/signal"

// RegisterEventProcessors registers the built-in attribute processors.
func RegisterEventProcessors(registry *signal.EventProcessorRegistry) {
	registry.Register(&OrderPlacedProcessor{})
	registry.Register(&UserRegisteredProcessor{})
	registry.Register(&ProfileUpdatedProcessor{})
}
