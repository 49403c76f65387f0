// Package storetest holds behaviour tests shared by every store.Store
// implementation.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/AccelByte/extend-marketing-automation/pkg/audience"
	"github.com/AccelByte/extend-marketing-automation/pkg/canvas"
	"github.com/AccelByte/extend-marketing-automation/pkg/incentive"
	"github.com/AccelByte/extend-marketing-automation/pkg/journey"
	"github.com/AccelByte/extend-marketing-automation/pkg/rule"
	"github.com/AccelByte/extend-marketing-automation/pkg/service"
	"github.com/AccelByte/extend-marketing-automation/pkg/store"
)

// Factory returns an empty store for one subtest.
type Factory func(t *testing.T) store.Store

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

// Run executes the shared suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("Segments", func(t *testing.T) { testSegments(t, newStore(t)) })
	t.Run("Journeys", func(t *testing.T) { testJourneys(t, newStore(t)) })
	t.Run("OneActiveParticipant", func(t *testing.T) { testOneActiveParticipant(t, newStore(t)) })
	t.Run("ClaimDue", func(t *testing.T) { testClaimDue(t, newStore(t)) })
	t.Run("CompleteStep", func(t *testing.T) { testCompleteStep(t, newStore(t)) })
	t.Run("Grants", func(t *testing.T) { testGrants(t, newStore(t)) })
}

// Journey returns an ACTIVE two-step journey: start -> email -> exit.
func Journey(id string) *journey.Journey {
	start := t0
	return &journey.Journey{
		ID:             id,
		OrganizationID: "org1",
		Name:           "Win back",
		Status:         journey.StatusActive,
		TriggerType:    journey.TriggerEvent,
		TriggerEvent:   "order.placed",
		ReEntryPolicy:  journey.ReEntryAlways,
		StartDate:      &start,
		Graph: canvas.Graph{
			Nodes: []canvas.Node{
				{ID: "start", Type: canvas.NodeStart, Config: canvas.StartConfig{}},
				{ID: "mail", Type: canvas.NodeEmail, Config: canvas.ChannelConfig{TemplateID: "tpl-1", Subject: "We miss you"}},
				{ID: "done", Type: canvas.NodeExit, Config: canvas.ExitConfig{}},
			},
			Edges: []canvas.Edge{
				{ID: "e1", Source: "start", Target: "mail"},
				{ID: "e2", Source: "mail", Target: "done"},
			},
		},
		ConversionGoal: &journey.ConversionGoal{
			Condition: rule.Condition{
				Rules:       []rule.SegmentRule{rule.New("orders_count", rule.OpGte, rule.NumberValue(2))},
				Combination: rule.And,
			},
			Within: journey.Duration(24 * time.Hour),
		},
		ExitRules: []journey.ExitRule{{
			Name:      "opted out",
			Condition: rule.Condition{Rules: []rule.SegmentRule{rule.New("email_opt_in", rule.OpEq, rule.StringValue("false"))}, Combination: rule.And},
			Outcome:   journey.ParticipantExited,
		}},
		CreatedAt: t0,
		UpdatedAt: t0,
	}
}

func participant(id, journeyID, userID string, nextStepAt time.Time) journey.Participant {
	return journey.Participant{
		ID:             id,
		JourneyID:      journeyID,
		OrganizationID: "org1",
		UserID:         userID,
		Status:         journey.ParticipantActive,
		CurrentNodeID:  "mail",
		EnteredAt:      t0,
		NextStepAt:     nextStepAt,
	}
}

func entered(p journey.Participant) journey.LogEntry {
	return journey.LogEntry{
		JourneyID:     p.JourneyID,
		ParticipantID: p.ID,
		NodeID:        "start",
		EventType:     journey.EventEntered,
		Status:        journey.ParticipantActive,
		Details:       map[string]interface{}{"trigger": "test"},
		CreatedAt:     p.EnteredAt,
	}
}

func testSegments(t *testing.T, s store.Store) {
	ctx := context.Background()

	seg := &audience.Segment{
		ID:             "s1",
		OrganizationID: "org1",
		Name:           "Regulars",
		Rules: []rule.SegmentRule{
			rule.New("orders_count", rule.OpGte, rule.NumberValue(5)),
			rule.New("location_id", rule.OpIn, rule.ListValue(rule.Str("loc-1"), rule.Str("loc-2"))),
		},
		Combination: rule.And,
		LocationIDs: []string{"loc-1"},
		CreatedAt:   t0,
		UpdatedAt:   t0,
	}
	if err := s.SaveSegment(ctx, seg); err != nil {
		t.Fatalf("SaveSegment() error = %v", err)
	}

	got, err := s.GetSegment(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSegment() error = %v", err)
	}
	if len(got.Rules) != 2 || got.Rules[1].Operator != rule.OpIn || !got.Rules[1].Value.IsList {
		t.Errorf("GetSegment() rules = %+v, expected the saved rules", got.Rules)
	}
	if rule.Label(got.Rules[0]) != "orders_count >= 5" {
		t.Errorf("Label() = %q, expected %q", rule.Label(got.Rules[0]), "orders_count >= 5")
	}
	if len(got.LocationIDs) != 1 || !got.CreatedAt.Equal(t0) {
		t.Errorf("GetSegment() = %+v, expected locations and timestamps preserved", got)
	}

	seg.Name = "Loyal"
	if err := s.SaveSegment(ctx, seg); err != nil {
		t.Fatalf("SaveSegment() update error = %v", err)
	}
	list, err := s.ListSegments(ctx, "org1")
	if err != nil || len(list) != 1 || list[0].Name != "Loyal" {
		t.Errorf("ListSegments() = %+v, %v, expected one updated segment", list, err)
	}
	if other, _ := s.ListSegments(ctx, "org2"); len(other) != 0 {
		t.Errorf("ListSegments(org2) = %+v, expected none", other)
	}

	if err := s.DeleteSegment(ctx, "s1"); err != nil {
		t.Fatalf("DeleteSegment() error = %v", err)
	}
	if _, err := s.GetSegment(ctx, "s1"); !service.IsNotFound(err) {
		t.Errorf("GetSegment() after delete error = %v, expected not found", err)
	}
	if err := s.DeleteSegment(ctx, "s1"); !service.IsNotFound(err) {
		t.Errorf("DeleteSegment() twice error = %v, expected not found", err)
	}
}

func testJourneys(t *testing.T, s store.Store) {
	ctx := context.Background()

	if err := s.SaveJourney(ctx, Journey("j1")); err != nil {
		t.Fatalf("SaveJourney() error = %v", err)
	}
	draft := Journey("j2")
	draft.Status = journey.StatusDraft
	draft.TriggerEvent = "user.registered"
	draft.ConversionGoal = nil
	draft.StartDate = nil
	if err := s.SaveJourney(ctx, draft); err != nil {
		t.Fatalf("SaveJourney() error = %v", err)
	}

	got, err := s.GetJourney(ctx, "j1")
	if err != nil {
		t.Fatalf("GetJourney() error = %v", err)
	}
	node, ok := got.Graph.Node("mail")
	if !ok {
		t.Fatalf("GetJourney() graph lost node mail")
	}
	if cfg, ok := node.Channel(); !ok || cfg.TemplateID != "tpl-1" {
		t.Errorf("mail config = %+v, expected template tpl-1", node.Config)
	}
	if got.ConversionGoal == nil || time.Duration(got.ConversionGoal.Within) != 24*time.Hour {
		t.Errorf("ConversionGoal = %+v, expected 24h window", got.ConversionGoal)
	}
	if len(got.ExitRules) != 1 || got.ExitRules[0].Outcome != journey.ParticipantExited {
		t.Errorf("ExitRules = %+v, expected one EXITED rule", got.ExitRules)
	}
	if got.StartDate == nil || !got.StartDate.Equal(t0) {
		t.Errorf("StartDate = %v, expected %v", got.StartDate, t0)
	}
	if errs := canvas.Validate(got.Graph); len(errs) != 0 {
		t.Errorf("Validate(stored graph) = %v, expected none", errs)
	}

	loaded, err := s.GetJourney(ctx, "j2")
	if err != nil {
		t.Fatalf("GetJourney(j2) error = %v", err)
	}
	if loaded.ConversionGoal != nil || loaded.StartDate != nil {
		t.Errorf("GetJourney(j2) = %+v, expected no goal and no start date", loaded)
	}

	tests := []struct {
		name     string
		filter   store.JourneyFilter
		expected []string
	}{
		{"all", store.JourneyFilter{}, []string{"j1", "j2"}},
		{"active", store.JourneyFilter{Status: journey.StatusActive}, []string{"j1"}},
		{"by event", store.JourneyFilter{TriggerType: journey.TriggerEvent, TriggerEvent: "user.registered"}, []string{"j2"}},
		{"other org", store.JourneyFilter{OrganizationID: "org2"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := s.ListJourneys(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListJourneys() error = %v", err)
			}
			var ids []string
			for _, j := range list {
				ids = append(ids, j.ID)
			}
			if len(ids) != len(tt.expected) {
				t.Fatalf("ListJourneys() = %v, expected %v", ids, tt.expected)
			}
			for i := range ids {
				if ids[i] != tt.expected[i] {
					t.Errorf("ListJourneys()[%d] = %s, expected %s", i, ids[i], tt.expected[i])
				}
			}
		})
	}

	if err := s.DeleteJourney(ctx, "j2"); err != nil {
		t.Errorf("DeleteJourney() error = %v", err)
	}
	if _, err := s.GetJourney(ctx, "j2"); !service.IsNotFound(err) {
		t.Errorf("GetJourney() after delete error = %v, expected not found", err)
	}
}

func testOneActiveParticipant(t *testing.T, s store.Store) {
	ctx := context.Background()
	if err := s.SaveJourney(ctx, Journey("j1")); err != nil {
		t.Fatalf("SaveJourney() error = %v", err)
	}

	if latest, err := s.LatestParticipant(ctx, "j1", "u1"); err != nil || latest != nil {
		t.Fatalf("LatestParticipant() = %+v, %v, expected nil", latest, err)
	}

	first := participant("p1", "j1", "u1", t0)
	if err := s.CreateParticipant(ctx, first, entered(first)); err != nil {
		t.Fatalf("CreateParticipant() error = %v", err)
	}
	dup := participant("p2", "j1", "u1", t0)
	if err := s.CreateParticipant(ctx, dup, entered(dup)); !service.IsConflict(err) {
		t.Fatalf("CreateParticipant() duplicate error = %v, expected conflict", err)
	}

	counts, err := s.CountParticipants(ctx, "j1")
	if err != nil || counts[journey.ParticipantActive] != 1 {
		t.Errorf("CountParticipants() = %v, %v, expected 1 ACTIVE", counts, err)
	}

	// finishing the first run frees the slot for a new one
	claimed, err := s.ClaimDue(ctx, t0, "w1", time.Minute, 10)
	if err != nil || len(claimed) != 1 {
		t.Fatalf("ClaimDue() = %v, %v, expected one participant", claimed, err)
	}
	done := claimed[0]
	done.Status = journey.ParticipantCompleted
	completedAt := t0
	done.CompletedAt = &completedAt
	if err := s.CompleteStep(ctx, done, nil, "w1"); err != nil {
		t.Fatalf("CompleteStep() error = %v", err)
	}

	second := participant("p3", "j1", "u1", t0.Add(time.Hour))
	second.EnteredAt = t0.Add(time.Hour)
	if err := s.CreateParticipant(ctx, second, entered(second)); err != nil {
		t.Fatalf("CreateParticipant() after completion error = %v", err)
	}

	latest, err := s.LatestParticipant(ctx, "j1", "u1")
	if err != nil || latest == nil || latest.ID != "p3" {
		t.Errorf("LatestParticipant() = %+v, %v, expected p3", latest, err)
	}
	old, err := s.GetParticipant(ctx, "p1")
	if err != nil || old.Status != journey.ParticipantCompleted || old.CompletedAt == nil {
		t.Errorf("GetParticipant(p1) = %+v, %v, expected COMPLETED", old, err)
	}
}

func testClaimDue(t *testing.T, s store.Store) {
	ctx := context.Background()
	if err := s.SaveJourney(ctx, Journey("j1")); err != nil {
		t.Fatalf("SaveJourney() error = %v", err)
	}
	paused := Journey("j2")
	paused.Status = journey.StatusPaused
	if err := s.SaveJourney(ctx, paused); err != nil {
		t.Fatalf("SaveJourney() error = %v", err)
	}

	for _, p := range []journey.Participant{
		participant("due", "j1", "u1", t0.Add(-time.Minute)),
		participant("future", "j1", "u2", t0.Add(time.Hour)),
		participant("paused", "j2", "u3", t0.Add(-time.Minute)),
	} {
		if err := s.CreateParticipant(ctx, p, entered(p)); err != nil {
			t.Fatalf("CreateParticipant(%s) error = %v", p.ID, err)
		}
	}

	claimed, err := s.ClaimDue(ctx, t0, "w1", time.Minute, 10)
	if err != nil {
		t.Fatalf("ClaimDue() error = %v", err)
	}
	if len(claimed) != 1 || claimed[0].ID != "due" {
		t.Fatalf("ClaimDue() = %+v, expected only the due participant", claimed)
	}

	if again, _ := s.ClaimDue(ctx, t0.Add(30*time.Second), "w2", time.Minute, 10); len(again) != 0 {
		t.Errorf("ClaimDue() by a second worker during the lease = %+v, expected none", again)
	}

	expired, err := s.ClaimDue(ctx, t0.Add(2*time.Minute), "w2", time.Minute, 10)
	if err != nil || len(expired) != 1 || expired[0].ID != "due" {
		t.Errorf("ClaimDue() after lease expiry = %+v, %v, expected due", expired, err)
	}

	if err := s.CompleteStep(ctx, claimed[0], nil, "w1"); !service.IsConflict(err) {
		t.Errorf("CompleteStep() by the expired holder error = %v, expected conflict", err)
	}

	if err := s.ReleaseClaim(ctx, "due", "w2"); err != nil {
		t.Fatalf("ReleaseClaim() error = %v", err)
	}
	if again, _ := s.ClaimDue(ctx, t0.Add(2*time.Minute), "w3", time.Minute, 10); len(again) != 1 {
		t.Errorf("ClaimDue() after release = %+v, expected the participant again", again)
	}
}

func testCompleteStep(t *testing.T, s store.Store) {
	ctx := context.Background()
	if err := s.SaveJourney(ctx, Journey("j1")); err != nil {
		t.Fatalf("SaveJourney() error = %v", err)
	}
	p := participant("p1", "j1", "u1", t0)
	if err := s.CreateParticipant(ctx, p, entered(p)); err != nil {
		t.Fatalf("CreateParticipant() error = %v", err)
	}

	claimed, err := s.ClaimDue(ctx, t0, "w1", time.Minute, 1)
	if err != nil || len(claimed) != 1 {
		t.Fatalf("ClaimDue() = %v, %v", claimed, err)
	}

	next := claimed[0]
	next.CurrentNodeID = "done"
	next.NextStepAt = t0.Add(48 * time.Hour)
	logs := []journey.LogEntry{{
		JourneyID:     "j1",
		ParticipantID: "p1",
		NodeID:        "mail",
		EventType:     journey.EventStepExecuted,
		Status:        journey.ParticipantActive,
		Details:       map[string]interface{}{"channel": "email", "templateId": "tpl-1"},
		CreatedAt:     t0,
	}}

	if err := s.CompleteStep(ctx, next, logs, "w2"); !service.IsConflict(err) {
		t.Errorf("CompleteStep() by another worker error = %v, expected conflict", err)
	}
	if err := s.CompleteStep(ctx, next, logs, "w1"); err != nil {
		t.Fatalf("CompleteStep() error = %v", err)
	}

	got, err := s.GetParticipant(ctx, "p1")
	if err != nil {
		t.Fatalf("GetParticipant() error = %v", err)
	}
	if got.CurrentNodeID != "done" || !got.NextStepAt.Equal(next.NextStepAt) {
		t.Errorf("GetParticipant() = %+v, expected node done at %v", got, next.NextStepAt)
	}

	if due, _ := s.ClaimDue(ctx, t0.Add(time.Hour), "w1", time.Minute, 10); len(due) != 0 {
		t.Errorf("ClaimDue() before the next step = %+v, expected none", due)
	}

	entries, err := s.ListLogs(ctx, store.LogQuery{ParticipantID: "p1"})
	if err != nil {
		t.Fatalf("ListLogs() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("ListLogs() = %d entries, expected 2", len(entries))
	}
	if entries[0].EventType != journey.EventEntered || entries[1].EventType != journey.EventStepExecuted {
		t.Errorf("ListLogs() order = %s, %s, expected ENTERED then STEP_EXECUTED", entries[0].EventType, entries[1].EventType)
	}
	if entries[1].ID == "" || entries[1].Details["templateId"] != "tpl-1" {
		t.Errorf("ListLogs()[1] = %+v, expected an ID and details", entries[1])
	}

	steps, err := s.ListLogs(ctx, store.LogQuery{JourneyID: "j1", EventType: journey.EventStepExecuted})
	if err != nil || len(steps) != 1 {
		t.Errorf("ListLogs(STEP_EXECUTED) = %v, %v, expected 1", steps, err)
	}
	paged, err := s.ListLogs(ctx, store.LogQuery{JourneyID: "j1", Limit: 1, Offset: 1})
	if err != nil || len(paged) != 1 || paged[0].EventType != journey.EventStepExecuted {
		t.Errorf("ListLogs(limit 1 offset 1) = %v, %v, expected the second entry", paged, err)
	}
}

func testGrants(t *testing.T, s store.Store) {
	ctx := context.Background()

	inc := &incentive.Incentive{
		ID:                "i1",
		OrganizationID:    "org1",
		Name:              "Free coffee",
		SegmentID:         "s1",
		Type:              incentive.TypeCoupon,
		CouponID:          "coffee",
		PersonalizeCoupon: true,
		CouponPrefix:      "cafe",
		MaxGrantsPerUser:  2,
		Active:            true,
		CreatedAt:         t0,
		UpdatedAt:         t0,
	}
	if err := s.SaveIncentive(ctx, inc); err != nil {
		t.Fatalf("SaveIncentive() error = %v", err)
	}
	got, err := s.GetIncentive(ctx, "i1")
	if err != nil {
		t.Fatalf("GetIncentive() error = %v", err)
	}
	if !got.Active || !got.PersonalizeCoupon || got.GrantCap() != 2 {
		t.Errorf("GetIncentive() = %+v, expected the saved incentive", got)
	}
	if list, _ := s.ListIncentives(ctx, "org1"); len(list) != 1 {
		t.Errorf("ListIncentives() = %v, expected one", list)
	}
	if _, err := s.GetIncentive(ctx, "missing"); !service.IsNotFound(err) {
		t.Errorf("GetIncentive(missing) error = %v, expected not found", err)
	}

	key := incentive.IdempotencyKey("i1", "u1", 1)
	grant := &incentive.Grant{
		IncentiveID:    "i1",
		OrganizationID: "org1",
		UserID:         "u1",
		CouponID:       "coffee",
		CouponCode:     incentive.CouponCode("cafe", key),
		IdempotencyKey: key,
		CreatedAt:      t0,
	}
	if err := s.CreateGrant(ctx, grant); err != nil {
		t.Fatalf("CreateGrant() error = %v", err)
	}
	if grant.ID == "" {
		t.Errorf("CreateGrant() left ID empty")
	}

	retry := *grant
	retry.ID = ""
	if err := s.CreateGrant(ctx, &retry); !service.IsConflict(err) {
		t.Errorf("CreateGrant() same key error = %v, expected conflict", err)
	}

	count, err := s.CountGrants(ctx, "i1", "u1")
	if err != nil || count != 1 {
		t.Errorf("CountGrants() = %d, %v, expected 1", count, err)
	}
	if count, _ := s.CountGrants(ctx, "i1", "u2"); count != 0 {
		t.Errorf("CountGrants(u2) = %d, expected 0", count)
	}

	grants, err := s.ListGrants(ctx, "i1")
	if err != nil || len(grants) != 1 || grants[0].CouponCode != grant.CouponCode {
		t.Errorf("ListGrants() = %+v, %v, expected the one grant", grants, err)
	}
}
