package catalog

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/AccelByte/extend-marketing-automation/pkg/action"
	"github.com/AccelByte/extend-marketing-automation/pkg/audience"
	"github.com/AccelByte/extend-marketing-automation/pkg/journey"
	"github.com/AccelByte/extend-marketing-automation/pkg/rule"
	"github.com/AccelByte/extend-marketing-automation/pkg/service"
	"github.com/AccelByte/extend-marketing-automation/pkg/store/memory"
)

var now = time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)

const testCatalog = `
segments:
  - id: regulars
    organization_id: ${CATALOG_TEST_ORG:canteen-co}
    name: Regulars
    combination: AND
    rules:
      - attribute: orders_count
        operator: gte
        value: 5
      - attribute: diet
        operator: in
        value: [vegan, vegetarian]

journeys:
  - id: welcome
    organization_id: ${CATALOG_TEST_ORG:canteen-co}
    name: Welcome series
    status: ACTIVE
    trigger_type: EVENT
    trigger_event: user.registered
    re_entry_policy: never
    graph:
      nodes:
        - id: start
          type: start
        - id: hello
          type: email
          config:
            template_id: tpl-welcome
            subject: Welcome to the canteen
        - id: wait
          type: wait
          config:
            amount: 2
            unit: days
        - id: ordered
          type: branch
          config:
            combination: AND
            rules:
              - attribute: orders_count
                operator: gte
                value: 1
        - id: nudge
          type: push
          config:
            template_id: tpl-first-order
        - id: done
          type: exit
      edges:
        - {id: e1, source: start, target: hello}
        - {id: e2, source: hello, target: wait}
        - {id: e3, source: wait, target: ordered}
        - {id: e4, source: ordered, source_handle: "yes", target: done}
        - {id: e5, source: ordered, source_handle: "no", target: nudge}
  - id: winback
    organization_id: canteen-co
    name: Win back (draft)
    trigger_type: SEGMENT_ENTRY
    segment_id: regulars

incentives:
  - id: regulars-coupon
    organization_id: canteen-co
    segment_id: regulars
    type: COUPON
    coupon_id: FREE-COFFEE
    personalize_coupon: true
    coupon_prefix: cafe
    active: true
    schedule: "0 9 * * MON"

channels:
  - id: notify
    type: test.catalog
    enabled: true
    channels: [email, push]
    retry:
      max_attempts: 3
      delay: 1s
      backoff: exponential
`

func registerTestChannel() {
	action.RegisterActionType("test.catalog", func(config action.ActionConfig) (action.Action, error) {
		return nil, nil
	})
}

func TestParse(t *testing.T) {
	t.Setenv("CATALOG_TEST_ORG", "canteen-north")

	c, err := Parse([]byte(testCatalog))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if len(c.Segments) != 1 || len(c.Journeys) != 2 || len(c.Incentives) != 1 || len(c.Channels) != 1 {
		t.Fatalf("Parse() = %d segments, %d journeys, %d incentives, %d channels, expected 1, 2, 1, 1",
			len(c.Segments), len(c.Journeys), len(c.Incentives), len(c.Channels))
	}

	seg, ok := c.Segment("regulars")
	if !ok {
		t.Fatal("Segment(regulars) not found")
	}
	if seg.OrganizationID != "canteen-north" {
		t.Errorf("OrganizationID = %s, expected canteen-north", seg.OrganizationID)
	}
	if !seg.Rules[1].Value.IsList || len(seg.Rules[1].Value.Items) != 2 {
		t.Errorf("diet rule value = %v, expected a two item list", seg.Rules[1].Value)
	}

	welcome := c.Journeys[0]
	if len(welcome.Graph.Nodes) != 6 || len(welcome.Graph.Edges) != 5 {
		t.Errorf("welcome graph = %d nodes, %d edges, expected 6, 5", len(welcome.Graph.Nodes), len(welcome.Graph.Edges))
	}
	if cfg, ok := welcome.Graph.Nodes[1].Channel(); !ok || cfg.TemplateID != "tpl-welcome" {
		t.Errorf("hello node template = %q, expected tpl-welcome", cfg.TemplateID)
	}

	retry := c.Channels[0].Retry
	if retry == nil || retry.MaxAttempts != 3 || retry.Delay != time.Second {
		t.Errorf("Retry = %+v, expected 3 attempts with 1s delay", retry)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte(testCatalog), 0644); err != nil {
		t.Fatalf("failed to write test catalog: %v", err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if c.Segments[0].OrganizationID != "canteen-co" {
		t.Errorf("OrganizationID = %s, expected default canteen-co", c.Segments[0].OrganizationID)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() of a missing file expected error")
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		yaml     string
		expected string
	}{
		{
			name: "duplicate segment",
			yaml: `
segments:
  - {id: a, organization_id: o, combination: AND, rules: [{attribute: x, operator: eq, value: 1}]}
  - {id: a, organization_id: o, combination: AND, rules: [{attribute: x, operator: eq, value: 2}]}
`,
			expected: "duplicate segment ID: a",
		},
		{
			name: "missing organization",
			yaml: `
segments:
  - {id: a, combination: AND, rules: [{attribute: x, operator: eq, value: 1}]}
`,
			expected: "OrganizationID",
		},
		{
			name: "unknown segment reference",
			yaml: `
incentives:
  - {id: i, organization_id: o, segment_id: nope, type: WALLET_CREDIT, wallet_amount: 500, active: true}
`,
			expected: "references unknown segment: nope",
		},
		{
			name: "coupon without coupon id",
			yaml: `
segments:
  - {id: a, organization_id: o, combination: AND, rules: [{attribute: x, operator: eq, value: 1}]}
incentives:
  - {id: i, organization_id: o, segment_id: a, type: COUPON}
`,
			expected: "CouponID",
		},
		{
			name: "active journey with empty canvas",
			yaml: `
journeys:
  - {id: j, organization_id: o, status: ACTIVE, trigger_type: EVENT, trigger_event: order.placed}
`,
			expected: "journey canvas is empty",
		},
		{
			name: "paused journey",
			yaml: `
journeys:
  - {id: j, organization_id: o, status: PAUSED, trigger_type: EVENT, trigger_event: order.placed}
`,
			expected: "status must be DRAFT or ACTIVE",
		},
		{
			name: "bad incentive schedule",
			yaml: `
segments:
  - {id: a, organization_id: o, combination: AND, rules: [{attribute: x, operator: eq, value: 1}]}
incentives:
  - {id: i, organization_id: o, segment_id: a, type: WALLET_CREDIT, wallet_amount: 1, schedule: "every day"}
`,
			expected: "invalid schedule",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("Parse() expected error")
			}
			if !strings.Contains(err.Error(), tt.expected) {
				t.Errorf("Parse() error = %v, expected it to mention %q", err, tt.expected)
			}
		})
	}
}

func TestValidateWiring(t *testing.T) {
	registerTestChannel()

	c, err := Parse([]byte(testCatalog))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if err := ValidateWiring(c); err != nil {
		t.Errorf("ValidateWiring() error = %v", err)
	}

	c.Channels[0].Channels = c.Channels[0].Channels[:1]
	c.Channels = append(c.Channels, action.ActionConfig{ID: "sms", Type: "unknown.sms", Enabled: true})
	err = ValidateWiring(c)
	if err == nil {
		t.Fatal("ValidateWiring() expected error")
	}
	for _, expected := range []string{"unregistered type unknown.sms", "node 'nudge' uses push"} {
		if !strings.Contains(err.Error(), expected) {
			t.Errorf("ValidateWiring() error = %v, expected it to mention %q", err, expected)
		}
	}
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	st := memory.New()

	c, err := Parse([]byte(testCatalog))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	result, err := Seed(ctx, st, c, now, nil)
	if err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	if result.Segments != 1 || result.Journeys != 2 || result.Incentives != 1 || len(result.Skipped) != 0 {
		t.Errorf("Seed() = %+v, expected 1 segment, 2 journeys, 1 incentive", result)
	}

	welcome, err := st.GetJourney(ctx, "welcome")
	if err != nil {
		t.Fatalf("GetJourney() error = %v", err)
	}
	if welcome.Status != journey.StatusActive || welcome.StartDate == nil || !welcome.StartDate.Equal(now) {
		t.Errorf("welcome = %s starting %v, expected ACTIVE starting %v", welcome.Status, welcome.StartDate, now)
	}
	winback, _ := st.GetJourney(ctx, "winback")
	if winback.Status != journey.StatusDraft {
		t.Errorf("winback.Status = %s, expected %s", winback.Status, journey.StatusDraft)
	}

	// A second seed leaves live journeys alone and keeps creation times.
	later := now.Add(time.Hour)
	c.Journeys[0].Name = "Renamed"
	result, err = Seed(ctx, st, c, later, nil)
	if err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	if len(result.Skipped) != 1 || result.Skipped[0] != "welcome" {
		t.Errorf("Skipped = %v, expected [welcome]", result.Skipped)
	}
	welcome, _ = st.GetJourney(ctx, "welcome")
	if welcome.Name != "Welcome series" {
		t.Errorf("welcome.Name = %s, expected Welcome series", welcome.Name)
	}
	seg, _ := st.GetSegment(ctx, "regulars")
	if !seg.CreatedAt.Equal(now) || !seg.UpdatedAt.Equal(later) {
		t.Errorf("segment times = %v/%v, expected %v/%v", seg.CreatedAt, seg.UpdatedAt, now, later)
	}
}

type citySnapshots struct{}

func (citySnapshots) LoadSnapshots(ctx context.Context, organizationID string, locationIDs []string) ([]audience.Snapshot, error) {
	return []audience.Snapshot{
		{CustomerID: "u1", OrganizationID: organizationID, Attributes: rule.Attributes{"city": rule.StringValue("Berlin")}},
		{CustomerID: "u2", OrganizationID: organizationID, Attributes: rule.Attributes{"city": rule.StringValue("Munich")}},
	}, nil
}

func TestSeed_DropsCachedAudience(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	cache := audience.NewMemoryCache()
	resolver := audience.NewResolver(st, citySnapshots{}, audience.NewEvaluator(1), cache, time.Hour)

	cityCatalog := func(city string) *Catalog {
		return &Catalog{Segments: []audience.Segment{{
			ID:             "locals",
			OrganizationID: "canteen-co",
			Rules:          []rule.SegmentRule{rule.New("city", rule.OpEq, rule.StringValue(city))},
			Combination:    rule.And,
		}}}
	}
	members := func() []string {
		t.Helper()
		res, err := resolver.Resolve(ctx, "locals", audience.ResolveOptions{IncludeUserIDs: true})
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		return res.UserIDs
	}

	if _, err := Seed(ctx, st, cityCatalog("Berlin"), now, cache); err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	if got := members(); len(got) != 1 || got[0] != "u1" {
		t.Fatalf("Resolve() = %v, expected [u1]", got)
	}

	if _, err := Seed(ctx, st, cityCatalog("Munich"), now.Add(time.Hour), cache); err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	if got := members(); len(got) != 1 || got[0] != "u2" {
		t.Errorf("Resolve() after reseed = %v, expected [u2]", got)
	}
}

func TestSeed_ActivationFailure(t *testing.T) {
	c := &Catalog{Journeys: []journey.Journey{{
		ID:             "broken",
		OrganizationID: "o",
		Status:         journey.StatusActive,
		TriggerType:    journey.TriggerEvent,
		TriggerEvent:   "order.placed",
	}}}

	_, err := Seed(context.Background(), memory.New(), c, now, nil)
	if !service.IsValidationError(err) {
		t.Errorf("Seed() error = %v, expected validation error", err)
	}
}

func TestSampleCatalog(t *testing.T) {
	c, err := Load(filepath.Join("..", "..", "config", "catalog.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(c.Journeys) == 0 || len(c.Segments) == 0 {
		t.Errorf("sample catalog has %d journeys and %d segments, expected some", len(c.Journeys), len(c.Segments))
	}
}
