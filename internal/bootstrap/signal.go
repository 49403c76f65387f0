// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package bootstrap

import (
	"github.com/AccelByte/extend-marketing-automation/pkg/signal"
	signalBuiltin "github.com/AccelByte/extend-marketing-automation/pkg/signal/builtin"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/sirupsen/logrus"
)

// InitSignalListener creates the listener that consumes application events,
// updates customer attributes and enrolls customers into event journeys.
//
// ============================================================
// DEVELOPER: Register custom event processors here.
// ============================================================
// Event processors turn application events into attribute
// updates on the customer snapshot (orders_count, total_spend,
// registered_at, ...).
//
// Steps to add a new event processor:
// 1. Create your processor in pkg/signal/builtin/
// 2. Implement the EventProcessor interface
// 3. Register it in pkg/signal/builtin/event_processors.go
//
// Events without a processor still reach the journey enroller,
// so any event name can trigger an EVENT journey.
// ============================================================
func InitSignalListener(
	subscriber message.Subscriber,
	attributes signal.AttributeWriter,
	enroller signal.Enroller,
	topic string,
) *signal.Listener {
	registry := signal.NewEventProcessorRegistry()
	signalBuiltin.RegisterEventProcessors(registry)

	logrus.Infof("initialized signal processor with %d event processors", registry.Count())

	processor := signal.NewProcessor(registry, attributes, enroller)
	return signal.NewListener(subscriber, processor, topic)
}
