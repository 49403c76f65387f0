package builtin

import (
	"context"
	"testing"
	"time"

	"github.com/AccelByte/extend-marketing-automation/pkg/signal"
	"github.com/AccelByte/extend-marketing-automation/pkg/state"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

var at = time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC)

func setupSnapshots(t *testing.T) *state.RedisSnapshotStore {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return state.NewRedisSnapshotStore(client)
}

func event(name, userID string, payload map[string]interface{}) signal.Event {
	return signal.Event{ID: name + "-" + userID, Name: name, OrganizationID: "org1", UserID: userID, Timestamp: at, Payload: payload}
}

func TestOrderPlacedProcessor(t *testing.T) {
	ctx := context.Background()
	snapshots := setupSnapshots(t)
	p := &OrderPlacedProcessor{}

	for _, amount := range []float64{12.5, 7.5} {
		e := event(EventOrderPlaced, "u1", map[string]interface{}{"amount": amount, "location_id": "canteen-north"})
		if err := p.Process(ctx, e, snapshots); err != nil {
			t.Fatalf("Process() error = %v", err)
		}
	}

	attrs, err := snapshots.LoadSnapshot(ctx, "org1", "u1")
	if err != nil {
		t.Fatalf("LoadSnapshot() error = %v", err)
	}
	tests := []struct {
		attribute string
		expected  float64
	}{
		{AttrOrdersCount, 2},
		{AttrTotalSpend, 20},
		{AttrLastOrderAt, float64(at.Unix())},
	}
	for _, tt := range tests {
		if v := attrs[tt.attribute]; !v.IsNumber() || v.Num != tt.expected {
			t.Errorf("%s = %v, expected %v", tt.attribute, v, tt.expected)
		}
	}

	north, err := snapshots.LoadSnapshots(ctx, "org1", []string{"canteen-north"})
	if err != nil {
		t.Fatalf("LoadSnapshots() error = %v", err)
	}
	if len(north) != 1 || north[0].CustomerID != "u1" {
		t.Errorf("location snapshots = %v, expected u1", north)
	}

	negative := event(EventOrderPlaced, "u2", map[string]interface{}{"amount": -3.0})
	if err := p.Process(ctx, negative, snapshots); err == nil {
		t.Error("Process() with negative amount expected error")
	}
}

func TestUserRegisteredProcessor(t *testing.T) {
	ctx := context.Background()
	snapshots := setupSnapshots(t)

	e := event(EventUserRegistered, "u1", map[string]interface{}{"location_id": "canteen-south"})
	if err := (&UserRegisteredProcessor{}).Process(ctx, e, snapshots); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	attrs, _ := snapshots.LoadSnapshot(ctx, "org1", "u1")
	if attrs[AttrRegisteredAt].Num != float64(at.Unix()) {
		t.Errorf("registered_at = %v, expected %d", attrs[AttrRegisteredAt], at.Unix())
	}
	if attrs[AttrLocationID].Str != "canteen-south" {
		t.Errorf("location_id = %v, expected canteen-south", attrs[AttrLocationID])
	}
}

func TestProfileUpdatedProcessor(t *testing.T) {
	ctx := context.Background()
	snapshots := setupSnapshots(t)

	e := event(EventProfileUpdated, "u1", map[string]interface{}{
		"attributes": map[string]interface{}{
			"email_opt_in": false,
			"diet":         []interface{}{"vegan", "halal"},
			"age":          31.0,
		},
	})
	if err := (&ProfileUpdatedProcessor{}).Process(ctx, e, snapshots); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	attrs, _ := snapshots.LoadSnapshot(ctx, "org1", "u1")
	if attrs["email_opt_in"].Str != "false" {
		t.Errorf("email_opt_in = %v, expected false", attrs["email_opt_in"])
	}
	if !attrs["diet"].IsList || len(attrs["diet"].Items) != 2 {
		t.Errorf("diet = %v, expected a two item list", attrs["diet"])
	}
	if attrs["age"].Num != 31 {
		t.Errorf("age = %v, expected 31", attrs["age"])
	}

	bad := event(EventProfileUpdated, "u1", map[string]interface{}{
		"attributes": map[string]interface{}{"nested": map[string]interface{}{"a": 1}},
	})
	if err := (&ProfileUpdatedProcessor{}).Process(ctx, bad, snapshots); err == nil {
		t.Error("Process() with nested attribute expected error")
	}
}

func TestRegisterEventProcessors(t *testing.T) {
	registry := signal.NewEventProcessorRegistry()
	RegisterEventProcessors(registry)

	for _, name := range []string{EventOrderPlaced, EventUserRegistered, EventProfileUpdated} {
		if registry.Get(name) == nil {
			t.Errorf("no processor registered for %s", name)
		}
	}
}
