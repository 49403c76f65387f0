package action

import (
	"context"
	"sync"

	"github.com/AccelByte/extend-marketing-automation/pkg/canvas"
	"github.com/AccelByte/extend-marketing-automation/pkg/journey"
)

// testAction is a simple action for testing
type testAction struct {
	config      ActionConfig
	executeFunc func(ctx context.Context, delivery journey.Delivery) error

	mu    sync.Mutex
	calls int
}

func newTestAction(id string, channels ...canvas.NodeType) *testAction {
	return &testAction{config: ActionConfig{ID: id, Type: "test", Enabled: true, Channels: channels}}
}

func (a *testAction) ID() string           { return a.config.ID }
func (a *testAction) Name() string         { return "Test Action" }
func (a *testAction) Config() ActionConfig { return a.config }

func (a *testAction) Execute(ctx context.Context, delivery journey.Delivery) error {
	a.mu.Lock()
	a.calls++
	a.mu.Unlock()
	if a.executeFunc != nil {
		return a.executeFunc(ctx, delivery)
	}
	return nil
}

func (a *testAction) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

func emailDelivery() journey.Delivery {
	return journey.Delivery{
		ID:            "p1:mail:1",
		JourneyID:     "j1",
		ParticipantID: "p1",
		UserID:        "u1",
		NodeID:        "mail",
		Channel:       canvas.NodeEmail,
		Template:      canvas.ChannelConfig{TemplateID: "tpl-1"},
	}
}
