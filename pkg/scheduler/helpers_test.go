package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/AccelByte/extend-marketing-automation/pkg/audience"
	"github.com/AccelByte/extend-marketing-automation/pkg/canvas"
	"github.com/AccelByte/extend-marketing-automation/pkg/journey"
	"github.com/AccelByte/extend-marketing-automation/pkg/rule"
	"github.com/AccelByte/extend-marketing-automation/pkg/store/memory"
)

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type attributeMap struct {
	mu    sync.Mutex
	attrs map[string]rule.Attributes
	err   error
}

func (a *attributeMap) LoadSnapshot(ctx context.Context, orgID, customerID string) (rule.Attributes, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return nil, a.err
	}
	return a.attrs[customerID], nil
}

func (a *attributeMap) Set(userID, name string, v rule.Value) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.attrs[userID] == nil {
		a.attrs[userID] = rule.Attributes{}
	}
	a.attrs[userID][name] = v
}

type recordingDispatcher struct {
	mu         sync.Mutex
	deliveries []journey.Delivery
	err        error
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, delivery journey.Delivery) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deliveries = append(d.deliveries, delivery)
	return d.err
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.deliveries)
}

type staticAudience struct {
	users []string
}

func (a *staticAudience) Resolve(ctx context.Context, segmentID string, opts audience.ResolveOptions) (*audience.Result, error) {
	return &audience.Result{SegmentID: segmentID, Count: len(a.users), UserIDs: a.users}, nil
}

type fixture struct {
	store      *memory.Store
	clock      *clock
	attrs      *attributeMap
	dispatcher *recordingDispatcher
	audience   *staticAudience
	scheduler  *Scheduler
}

func newFixture(t *testing.T, journeys ...*journey.Journey) *fixture {
	t.Helper()
	f := &fixture{
		store:      memory.New(),
		clock:      &clock{now: t0},
		attrs:      &attributeMap{attrs: map[string]rule.Attributes{}},
		dispatcher: &recordingDispatcher{},
		audience:   &staticAudience{},
	}
	for _, j := range journeys {
		if err := f.store.SaveJourney(context.Background(), j); err != nil {
			t.Fatalf("SaveJourney() error = %v", err)
		}
	}
	f.scheduler = f.newScheduler("worker-1")
	return f
}

func (f *fixture) newScheduler(workerID string) *Scheduler {
	s := New(f.store, f.attrs, f.audience, f.dispatcher, Config{WorkerID: workerID, BatchSize: 50, ClaimTTL: time.Minute})
	s.now = f.clock.Now
	return s
}

func (f *fixture) participant(t *testing.T, journeyID, userID string) journey.Participant {
	t.Helper()
	p, err := f.store.LatestParticipant(context.Background(), journeyID, userID)
	if err != nil || p == nil {
		t.Fatalf("LatestParticipant(%s, %s) = %v, %v", journeyID, userID, p, err)
	}
	return *p
}

func (f *fixture) tick(t *testing.T) int {
	t.Helper()
	res, err := f.scheduler.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if len(res.Errors) > 0 {
		t.Fatalf("Tick() item errors = %v", res.Errors)
	}
	return res.Succeeded
}

func orderCondition(min float64) rule.Condition {
	return rule.Condition{
		Rules:       []rule.SegmentRule{rule.New("orders_count", rule.OpGte, rule.NumberValue(min))},
		Combination: rule.And,
	}
}

// onboarding is start -> mail -> wait 1h -> branch(orders_count >= 1) -> yes: push / no: exit
func onboarding(id string) *journey.Journey {
	start := t0.Add(-time.Hour)
	return &journey.Journey{
		ID:             id,
		OrganizationID: "org1",
		Name:           "Onboarding",
		Status:         journey.StatusActive,
		TriggerType:    journey.TriggerEvent,
		TriggerEvent:   "user.registered",
		StartDate:      &start,
		Graph: canvas.Graph{
			Nodes: []canvas.Node{
				{ID: "start", Type: canvas.NodeStart, Config: canvas.StartConfig{}},
				{ID: "mail", Type: canvas.NodeEmail, Config: canvas.ChannelConfig{TemplateID: "tpl-welcome", Subject: "Welcome"}},
				{ID: "wait", Type: canvas.NodeWait, Config: canvas.WaitConfig{Duration: "1h"}},
				{ID: "branch", Type: canvas.NodeBranch, Config: canvas.BranchConfig{Condition: orderCondition(1)}},
				{ID: "push", Type: canvas.NodePush, Config: canvas.ChannelConfig{TemplateID: "tpl-push"}},
				{ID: "bye", Type: canvas.NodeExit, Config: canvas.ExitConfig{Reason: "no order"}},
			},
			Edges: []canvas.Edge{
				{ID: "e1", Source: "start", Target: "mail"},
				{ID: "e2", Source: "mail", Target: "wait"},
				{ID: "e3", Source: "wait", Target: "branch"},
				{ID: "e4", Source: "branch", SourceHandle: canvas.HandleYes, Target: "push"},
				{ID: "e5", Source: "branch", SourceHandle: canvas.HandleNo, Target: "bye"},
			},
		},
	}
}
