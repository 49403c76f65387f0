// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package signal

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/sirupsen/logrus"
)

// DefaultEventsTopic is the topic application events are consumed from.
const DefaultEventsTopic = "marketing.events"

// Listener feeds events from a watermill subscriber into the Processor.
type Listener struct {
	subscriber message.Subscriber
	processor  *Processor
	topic      string
}

func NewListener(subscriber message.Subscriber, processor *Processor, topic string) *Listener {
	if topic == "" {
		topic = DefaultEventsTopic
	}
	return &Listener{
		subscriber: subscriber,
		processor:  processor,
		topic:      topic,
	}
}

// Run consumes events until ctx is done. Malformed events are acked and
// dropped; processing failures are nacked for redelivery.
func (l *Listener) Run(ctx context.Context) error {
	messages, err := l.subscriber.Subscribe(ctx, l.topic)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", l.topic, err)
	}
	logrus.Infof("listening for events on %s", l.topic)

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			l.handle(ctx, msg)
		}
	}
}

func (l *Listener) handle(ctx context.Context, msg *message.Message) {
	event, err := DecodeEvent(msg)
	if err != nil {
		logrus.Errorf("dropping event: %v", err)
		msg.Ack()
		return
	}

	if _, err := l.processor.Process(ctx, event); err != nil {
		logrus.Errorf("failed to process event %s (%s): %v", event.ID, event.Name, err)
		if isPermanent(err) {
			msg.Ack()
			return
		}
		msg.Nack()
		return
	}
	msg.Ack()
}
