package signal

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/AccelByte/extend-marketing-automation/pkg/rule"
	"github.com/AccelByte/extend-marketing-automation/pkg/service"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type memoryAttributes struct {
	mu     sync.Mutex
	values map[string]rule.Value
}

func newMemoryAttributes() *memoryAttributes {
	return &memoryAttributes{values: map[string]rule.Value{}}
}

func (m *memoryAttributes) SetAttribute(ctx context.Context, orgID, customerID, name string, value rule.Value) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[customerID+"."+name] = value
	return nil
}

func (m *memoryAttributes) IncrementAttribute(ctx context.Context, orgID, customerID, name string, delta float64) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := m.values[customerID+"."+name]
	v = rule.NumberValue(v.Num + delta)
	m.values[customerID+"."+name] = v
	return v.Num, nil
}

type counterProcessor struct {
	err error
}

func (p *counterProcessor) EventType() string { return "order.placed" }

func (p *counterProcessor) Process(ctx context.Context, event Event, attributes AttributeWriter) error {
	if p.err != nil {
		return p.err
	}
	_, err := attributes.IncrementAttribute(ctx, event.OrganizationID, event.UserID, "orders_count", 1)
	return err
}

type recordingEnroller struct {
	mu     sync.Mutex
	events []string
	err    error
}

func (e *recordingEnroller) HandleEvent(ctx context.Context, organizationID, event, userID string) (*service.BatchResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	e.events = append(e.events, organizationID+"/"+event+"/"+userID)
	return &service.BatchResult{Succeeded: 1}, nil
}

func (e *recordingEnroller) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.events)
}

func orderEvent(userID string) Event {
	return Event{
		ID:             "evt-" + userID,
		Name:           "order.placed",
		OrganizationID: "org1",
		UserID:         userID,
		Timestamp:      time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		Payload:        map[string]interface{}{"amount": 12.5},
	}
}

func TestProcessor_Process(t *testing.T) {
	registry := NewEventProcessorRegistry()
	registry.Register(&counterProcessor{})
	attrs := newMemoryAttributes()
	enroller := &recordingEnroller{}
	p := NewProcessor(registry, attrs, enroller)

	res, err := p.Process(context.Background(), orderEvent("u1"))
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if res.Succeeded != 1 {
		t.Errorf("Succeeded = %d, expected 1", res.Succeeded)
	}
	if attrs.values["u1.orders_count"].Num != 1 {
		t.Errorf("orders_count = %v, expected 1", attrs.values["u1.orders_count"])
	}
	if len(enroller.events) != 1 || enroller.events[0] != "org1/order.placed/u1" {
		t.Errorf("enroller events = %v, expected [org1/order.placed/u1]", enroller.events)
	}

	unknown := orderEvent("u2")
	unknown.Name = "menu.viewed"
	if _, err := p.Process(context.Background(), unknown); err != nil {
		t.Fatalf("Process() unknown event error = %v", err)
	}
	if enroller.count() != 2 {
		t.Errorf("unknown event did not reach enrollment")
	}
}

func TestProcessor_Errors(t *testing.T) {
	tests := []struct {
		name      string
		event     Event
		procErr   error
		enrollErr error
		check     func(error) bool
	}{
		{"missing user", Event{Name: "order.placed", OrganizationID: "org1"}, nil, nil, service.IsValidationError},
		{"missing organization", Event{Name: "order.placed", UserID: "u1"}, nil, nil, service.IsValidationError},
		{"processor failure", orderEvent("u1"), errors.New("redis down"), nil, func(err error) bool { return err != nil && !service.IsValidationError(err) }},
		{"enrollment failure", orderEvent("u1"), nil, service.NewStoreError("x", errors.New("db down")), service.IsStoreError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := NewEventProcessorRegistry()
			registry.Register(&counterProcessor{err: tt.procErr})
			p := NewProcessor(registry, newMemoryAttributes(), &recordingEnroller{err: tt.enrollErr})

			_, err := p.Process(context.Background(), tt.event)
			if !tt.check(err) {
				t.Errorf("Process() error = %v", err)
			}
		})
	}
}

func TestEventProcessorRegistry(t *testing.T) {
	registry := NewEventProcessorRegistry()
	registry.Register(&counterProcessor{})

	if registry.Count() != 1 || registry.Get("order.placed") == nil {
		t.Fatalf("registry has %d processors, expected order.placed", registry.Count())
	}
	if err := registry.Unregister("order.placed"); err != nil {
		t.Errorf("Unregister() error = %v", err)
	}
	if err := registry.Unregister("order.placed"); err == nil {
		t.Error("Unregister() twice expected error")
	}
}

func TestListener(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 10, Persistent: true}, watermill.NopLogger{})
	defer pubSub.Close()

	registry := NewEventProcessorRegistry()
	registry.Register(&counterProcessor{})
	enroller := &recordingEnroller{}
	listener := NewListener(pubSub, NewProcessor(registry, newMemoryAttributes(), enroller), "")

	good, _ := NewMessage(orderEvent("u1"))
	invalid, _ := NewMessage(Event{ID: "bad", Name: "order.placed"})
	garbage := message.NewMessage("garbage", []byte("{not json"))
	if err := pubSub.Publish(DefaultEventsTopic, garbage, invalid, good); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- listener.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for enroller.count() < 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if enroller.count() != 1 {
		t.Errorf("enrollments = %d, expected 1", enroller.count())
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Error("Run() did not stop after cancel")
	}
}
