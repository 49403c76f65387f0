package audience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/AccelByte/extend-marketing-automation/pkg/rule"
	"github.com/AccelByte/extend-marketing-automation/pkg/service"
)

type fakeSegments map[string]*Segment

func (f fakeSegments) GetSegment(ctx context.Context, id string) (*Segment, error) {
	if s, ok := f[id]; ok {
		return s, nil
	}
	return nil, service.NewNotFoundError("segment.get", "segment", id)
}

func (f fakeSegments) SaveSegment(ctx context.Context, s *Segment) error {
	saved := *s
	f[s.ID] = &saved
	return nil
}

type fakeLoader struct {
	snapshots []Snapshot
	calls     int
	err       error
}

func (f *fakeLoader) LoadSnapshots(ctx context.Context, organizationID string, locationIDs []string) ([]Snapshot, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.snapshots, nil
}

func newTestResolver(loader *fakeLoader) *Resolver {
	segments := fakeSegments{
		"loyal": {
			ID:             "loyal",
			OrganizationID: "org",
			Rules:          []rule.SegmentRule{rule.New("orders", rule.OpGte, rule.NumberValue(5))},
			Combination:    rule.And,
		},
	}
	return NewResolver(segments, loader, NewEvaluator(1), NewMemoryCache(), time.Minute)
}

func TestResolver_Resolve(t *testing.T) {
	snapshots := append(testSnapshots(), Snapshot{
		CustomerID:     "intruder",
		OrganizationID: "other-org",
		Attributes:     rule.Attributes{"orders": rule.NumberValue(100)},
	})
	loader := &fakeLoader{snapshots: snapshots}
	resolver := newTestResolver(loader)
	ctx := context.Background()

	result, err := resolver.Resolve(ctx, "loyal", ResolveOptions{IncludeUserIDs: true, IncludeLabels: true})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if result.Count != 2 {
		t.Errorf("Count = %d, expected 2", result.Count)
	}
	if len(result.UserIDs) != 2 || result.UserIDs[0] != "c1" || result.UserIDs[1] != "c3" {
		t.Errorf("UserIDs = %v, expected [c1 c3]", result.UserIDs)
	}
	if len(result.MatchedRuleLabels) != 1 || result.MatchedRuleLabels[0] != "orders >= 5" {
		t.Errorf("MatchedRuleLabels = %v", result.MatchedRuleLabels)
	}

	countOnly, err := resolver.Resolve(ctx, "loyal", ResolveOptions{})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if countOnly.Count != 2 || countOnly.UserIDs != nil {
		t.Errorf("cached count-only result = %+v", countOnly)
	}
	if loader.calls != 1 {
		t.Errorf("loader calls = %d, expected 1 (second resolve should hit cache)", loader.calls)
	}

	if err := resolver.Invalidate(ctx, "loyal"); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}
	if _, err := resolver.Resolve(ctx, "loyal", ResolveOptions{}); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if loader.calls != 2 {
		t.Errorf("loader calls = %d, expected 2 after invalidation", loader.calls)
	}

	if _, err := resolver.Resolve(ctx, "loyal", ResolveOptions{Fresh: true}); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if loader.calls != 3 {
		t.Errorf("loader calls = %d, expected 3 for fresh resolve", loader.calls)
	}
}

func TestResolver_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := newTestResolver(&fakeLoader{}).Resolve(ctx, "missing", ResolveOptions{})
	if !service.IsNotFound(err) {
		t.Errorf("Resolve(missing) error = %v, expected not found", err)
	}

	_, err = newTestResolver(&fakeLoader{err: errors.New("redis down")}).Resolve(ctx, "loyal", ResolveOptions{})
	if !service.IsStoreError(err) {
		t.Errorf("Resolve() error = %v, expected store error", err)
	}
}

func TestResolver_Explain(t *testing.T) {
	resolver := newTestResolver(&fakeLoader{snapshots: testSnapshots()})

	matches, labels, err := resolver.Explain(context.Background(), "loyal", 1)
	if err != nil {
		t.Fatalf("Explain() error = %v", err)
	}
	if len(matches) != 1 || matches[0].UserID != "c1" {
		t.Errorf("Explain() matches = %v", matches)
	}
	if len(labels) != 1 || labels[0] != "orders >= 5" {
		t.Errorf("Explain() labels = %v", labels)
	}
}

func TestMemoryCache_Expiry(t *testing.T) {
	cache := NewMemoryCache()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }
	ctx := context.Background()

	if err := cache.Set(ctx, &Result{SegmentID: "s", Count: 1, UserIDs: []string{"u"}}, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, ok, _ := cache.Get(ctx, "s")
	if !ok || got.Count != 1 {
		t.Fatalf("Get() = %v, %v, expected hit", got, ok)
	}
	got.UserIDs[0] = "mutated"

	again, _, _ := cache.Get(ctx, "s")
	if again.UserIDs[0] != "u" {
		t.Error("cached result was mutated through a returned copy")
	}

	now = now.Add(time.Minute)
	if _, ok, _ := cache.Get(ctx, "s"); ok {
		t.Error("expected entry to expire after TTL")
	}
}

func TestSegment_ReplaceRules(t *testing.T) {
	s := &Segment{ID: "s", Rules: []rule.SegmentRule{rule.New("orders", rule.OpGte, rule.NumberValue(1))}, Combination: rule.And}
	now := time.Now()

	err := s.ReplaceRules([]rule.SegmentRule{rule.New("orders", rule.OpIn, rule.NumberValue(3))}, rule.Or, now)
	if !service.IsValidationError(err) {
		t.Fatalf("ReplaceRules() error = %v, expected validation error", err)
	}
	if s.Combination != rule.And || s.Rules[0].Operator != rule.OpGte {
		t.Error("segment changed despite invalid replacement")
	}

	if err := s.ReplaceRules([]rule.SegmentRule{rule.New("city", rule.OpEq, rule.StringValue("Berlin"))}, rule.Or, now); err != nil {
		t.Fatalf("ReplaceRules() error = %v", err)
	}
	if len(s.Rules) != 1 || s.Rules[0].Attribute != "city" || s.Combination != rule.Or || !s.UpdatedAt.Equal(now) {
		t.Errorf("segment after replace = %+v", s)
	}
}

func TestResolver_ReplaceRulesDropsCachedAudience(t *testing.T) {
	ctx := context.Background()
	segments := fakeSegments{
		"city": {
			ID:             "city",
			OrganizationID: "org",
			Rules:          []rule.SegmentRule{rule.New("city", rule.OpEq, rule.StringValue("Berlin"))},
			Combination:    rule.And,
		},
	}
	loader := &fakeLoader{snapshots: []Snapshot{
		{CustomerID: "u1", OrganizationID: "org", Attributes: rule.Attributes{"city": rule.StringValue("Berlin")}},
		{CustomerID: "u2", OrganizationID: "org", Attributes: rule.Attributes{"city": rule.StringValue("Munich")}},
	}}
	r := NewResolver(segments, loader, NewEvaluator(1), NewMemoryCache(), time.Hour)

	before, err := r.Resolve(ctx, "city", ResolveOptions{IncludeUserIDs: true})
	if err != nil || len(before.UserIDs) != 1 || before.UserIDs[0] != "u1" {
		t.Fatalf("Resolve() = %+v, %v, expected [u1]", before, err)
	}

	updated, err := r.ReplaceRules(ctx, segments, "city",
		[]rule.SegmentRule{rule.New("city", rule.OpEq, rule.StringValue("Munich"))}, rule.And)
	if err != nil {
		t.Fatalf("ReplaceRules() error = %v", err)
	}
	if updated.Rules[0].Value.Str != "Munich" {
		t.Errorf("ReplaceRules() = %+v, expected the Munich rule", updated.Rules)
	}

	after, err := r.Resolve(ctx, "city", ResolveOptions{IncludeUserIDs: true})
	if err != nil || len(after.UserIDs) != 1 || after.UserIDs[0] != "u2" {
		t.Errorf("Resolve() after replace = %+v, %v, expected [u2]", after, err)
	}

	if _, err := r.ReplaceRules(ctx, segments, "city", nil, rule.Combination("XOR")); !service.IsValidationError(err) {
		t.Errorf("ReplaceRules(XOR) error = %v, expected validation error", err)
	}
	if _, err := r.ReplaceRules(ctx, segments, "missing", nil, rule.And); !service.IsNotFound(err) {
		t.Errorf("ReplaceRules(missing) error = %v, expected not found", err)
	}
}
