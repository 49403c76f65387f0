// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package scheduler enrolls customers into journeys and advances due
// participants one node per tick.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/AccelByte/extend-marketing-automation/pkg/audience"
	"github.com/AccelByte/extend-marketing-automation/pkg/common"
	"github.com/AccelByte/extend-marketing-automation/pkg/journey"
	"github.com/AccelByte/extend-marketing-automation/pkg/metrics"
	"github.com/AccelByte/extend-marketing-automation/pkg/rule"
	"github.com/AccelByte/extend-marketing-automation/pkg/service"
	"github.com/AccelByte/extend-marketing-automation/pkg/store"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	DefaultBatchSize = 100
	DefaultClaimTTL  = 2 * time.Minute
)

// Store is the persistence the scheduler needs.
type Store interface {
	store.JourneyStore
	store.ParticipantStore
}

// AttributeLoader loads one customer's current attribute snapshot.
type AttributeLoader interface {
	LoadSnapshot(ctx context.Context, orgID, customerID string) (rule.Attributes, error)
}

// AudienceResolver resolves a segment to its members.
type AudienceResolver interface {
	Resolve(ctx context.Context, segmentID string, opts audience.ResolveOptions) (*audience.Result, error)
}

// Dispatcher hands a delivery to its channel. It must not block on the send.
type Dispatcher interface {
	Dispatch(ctx context.Context, d journey.Delivery) error
}

// Config tunes tick batches and claims.
type Config struct {
	// WorkerID identifies this process in participant claims.
	WorkerID  string
	BatchSize int
	ClaimTTL  time.Duration
	// Members remembers segment-entry membership. Defaults to process memory.
	Members MembershipTracker
}

// Scheduler is the journey runtime.
type Scheduler struct {
	store      Store
	attributes AttributeLoader
	audience   AudienceResolver
	dispatcher Dispatcher
	cfg        Config
	now        func() time.Time
}

// New creates a scheduler. Zero config values fall back to defaults and a
// random worker ID.
func New(st Store, attributes AttributeLoader, resolver AudienceResolver, dispatcher Dispatcher, cfg Config) *Scheduler {
	if cfg.WorkerID == "" {
		cfg.WorkerID = "worker-" + uuid.NewString()[:8]
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.ClaimTTL <= 0 {
		cfg.ClaimTTL = DefaultClaimTTL
	}
	if cfg.Members == nil {
		cfg.Members = NewMemoryMembership()
	}
	return &Scheduler{
		store:      st,
		attributes: attributes,
		audience:   resolver,
		dispatcher: dispatcher,
		cfg:        cfg,
		now:        time.Now,
	}
}

// Enroll enters a customer into a journey. Enrolling a customer who already has
// an ACTIVE run is a no-op reported as EnrollAlreadyActive.
func (s *Scheduler) Enroll(ctx context.Context, journeyID, userID, trigger string) (journey.EnrollDecision, error) {
	j, err := s.store.GetJourney(ctx, journeyID)
	if err != nil {
		return journey.EnrollBlocked, err
	}
	return s.enroll(ctx, j, userID, trigger)
}

func (s *Scheduler) enroll(ctx context.Context, j *journey.Journey, userID, trigger string) (journey.EnrollDecision, error) {
	now := s.now()
	if !j.AcceptsEnrollment(now) {
		return journey.EnrollBlocked, service.NewConflictError("scheduler.enroll",
			fmt.Sprintf("journey %s is not accepting enrollments", j.ID))
	}

	latest, err := s.store.LatestParticipant(ctx, j.ID, userID)
	if err != nil {
		return journey.EnrollBlocked, err
	}

	decision := journey.DecideEnrollment(j.EffectiveReEntryPolicy(), latest)
	if decision != journey.EnrollAllowed {
		metrics.Enrollments.WithLabelValues(decision.String()).Inc()
		return decision, nil
	}

	p, entered, err := journey.Enter(j, uuid.NewString(), userID, now, map[string]interface{}{"trigger": trigger})
	if err != nil {
		return journey.EnrollBlocked, service.NewValidationError("scheduler.enroll", []string{err.Error()})
	}

	if err := s.store.CreateParticipant(ctx, p, entered); err != nil {
		if service.IsConflict(err) {
			// lost a race with a concurrent enrollment
			metrics.Enrollments.WithLabelValues(journey.EnrollAlreadyActive.String()).Inc()
			return journey.EnrollAlreadyActive, nil
		}
		return journey.EnrollBlocked, err
	}

	metrics.Enrollments.WithLabelValues(decision.String()).Inc()
	logrus.Debugf("enrolled user %s into journey %s (participant %s, trigger %s)", userID, j.ID, p.ID, trigger)
	return decision, nil
}

// EnrollSegment enrolls every current member of the journey's segment. Members
// blocked by the re-entry policy or already active are counted as skipped.
func (s *Scheduler) EnrollSegment(ctx context.Context, journeyID, trigger string) (*service.BatchResult, error) {
	j, members, err := s.segmentMembers(ctx, journeyID, "scheduler.enroll_segment")
	if err != nil {
		return nil, err
	}

	result := &service.BatchResult{}
	for _, userID := range members {
		s.record(ctx, result, userID, j, userID, trigger)
	}

	logrus.Infof("segment enrollment for journey %s: %d enrolled, %d skipped, %d failed",
		j.ID, result.Succeeded, result.Skipped, len(result.Errors))
	return result, nil
}

// EnrollNewMembers enrolls only the members of the journey's segment that
// were not members on the previous pass. A customer who stays in the segment
// enters once; one who leaves and matches again is a new entry. Members whose
// enrollment failed are not remembered, so the next pass retries them.
func (s *Scheduler) EnrollNewMembers(ctx context.Context, journeyID, trigger string) (*service.BatchResult, error) {
	j, members, err := s.segmentMembers(ctx, journeyID, "scheduler.enroll_new_members")
	if err != nil {
		return nil, err
	}

	entered, err := s.cfg.Members.Entered(ctx, j.ID, members)
	if err != nil {
		return nil, err
	}

	result := &service.BatchResult{}
	for _, userID := range entered {
		s.record(ctx, result, userID, j, userID, trigger)
	}

	remembered := members
	if len(result.Errors) > 0 {
		failed := make(map[string]struct{}, len(result.Errors))
		for _, e := range result.Errors {
			failed[e.ID] = struct{}{}
		}
		remembered = make([]string, 0, len(members))
		for _, id := range members {
			if _, ok := failed[id]; !ok {
				remembered = append(remembered, id)
			}
		}
	}
	if err := s.cfg.Members.Commit(ctx, j.ID, remembered); err != nil {
		return result, err
	}

	logrus.Infof("segment entry for journey %s: %d new members, %d enrolled, %d skipped, %d failed",
		j.ID, len(entered), result.Succeeded, result.Skipped, len(result.Errors))
	return result, nil
}

func (s *Scheduler) segmentMembers(ctx context.Context, journeyID, op string) (*journey.Journey, []string, error) {
	j, err := s.store.GetJourney(ctx, journeyID)
	if err != nil {
		return nil, nil, err
	}
	if j.SegmentID == "" {
		return nil, nil, service.NewValidationError(op,
			[]string{fmt.Sprintf("journey %s has no segment", j.ID)})
	}
	if !j.AcceptsEnrollment(s.now()) {
		return nil, nil, service.NewConflictError(op,
			fmt.Sprintf("journey %s is not accepting enrollments", j.ID))
	}

	members, err := s.audience.Resolve(ctx, j.SegmentID, audience.ResolveOptions{IncludeUserIDs: true, Fresh: true})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve segment %s: %w", j.SegmentID, err)
	}
	return j, members.UserIDs, nil
}

// HandleEvent enrolls the user into every ACTIVE journey of the organization
// triggered by the named event.
func (s *Scheduler) HandleEvent(ctx context.Context, organizationID, event, userID string) (*service.BatchResult, error) {
	journeys, err := s.store.ListJourneys(ctx, store.JourneyFilter{
		OrganizationID: organizationID,
		Status:         journey.StatusActive,
		TriggerType:    journey.TriggerEvent,
		TriggerEvent:   event,
	})
	if err != nil {
		return nil, err
	}

	result := &service.BatchResult{}
	for i := range journeys {
		s.record(ctx, result, journeys[i].ID, &journeys[i], userID, "event:"+event)
	}
	return result, nil
}

// record enrolls one user and counts the outcome under itemID.
func (s *Scheduler) record(ctx context.Context, result *service.BatchResult, itemID string, j *journey.Journey, userID, trigger string) {
	decision, err := s.enroll(ctx, j, userID, trigger)
	switch {
	case err != nil:
		logrus.Warnf("failed to enroll user %s into journey %s: %v", userID, j.ID, err)
		result.AddError(itemID, err)
	case decision == journey.EnrollAllowed:
		result.Succeeded++
	default:
		result.Skipped++
	}
}

// Tick claims a batch of due participants and advances each by one node.
// Failures are reported per participant and release the claim so the
// participant is retried on a later tick.
func (s *Scheduler) Tick(ctx context.Context) (*service.BatchResult, error) {
	scope := common.NewScope(ctx, "scheduler.tick")
	defer scope.Finish()

	start := s.now()
	defer func() {
		metrics.TickDuration.Observe(time.Since(start).Seconds())
	}()

	due, err := s.store.ClaimDue(scope.Ctx, start, s.cfg.WorkerID, s.cfg.ClaimTTL, s.cfg.BatchSize)
	if err != nil {
		scope.TraceError(err)
		return nil, err
	}
	scope.SetAttributes("claimed", len(due))

	result := &service.BatchResult{}
	journeys := make(map[string]*journey.Journey)
	for _, p := range due {
		if err := s.advance(scope.Ctx, p, journeys); err != nil {
			scope.Log.Errorf("failed to advance participant %s of journey %s: %v", p.ID, p.JourneyID, err)
			result.AddError(p.ID, err)
			if rerr := s.store.ReleaseClaim(scope.Ctx, p.ID, s.cfg.WorkerID); rerr != nil {
				scope.Log.Warnf("failed to release claim on participant %s: %v", p.ID, rerr)
			}
			continue
		}
		result.Succeeded++
	}

	if len(due) > 0 {
		scope.Log.Infof("tick advanced %d of %d participants", result.Succeeded, len(due))
	}
	return result, nil
}

func (s *Scheduler) advance(ctx context.Context, p journey.Participant, journeys map[string]*journey.Journey) error {
	j, ok := journeys[p.JourneyID]
	if !ok {
		var err error
		j, err = s.store.GetJourney(ctx, p.JourneyID)
		if err != nil {
			return err
		}
		journeys[p.JourneyID] = j
	}
	if j.Status != journey.StatusActive {
		return service.NewConflictError("scheduler.tick", fmt.Sprintf("journey %s is %s", j.ID, j.Status))
	}

	attrs, err := s.attributes.LoadSnapshot(ctx, p.OrganizationID, p.UserID)
	if err != nil {
		return fmt.Errorf("failed to load attributes of user %s: %w", p.UserID, err)
	}

	t := journey.Step(p, j, attrs, s.now())

	if t.Delivery != nil {
		s.deliver(ctx, &t)
	}

	if err := s.store.CompleteStep(ctx, t.Participant, t.Logs, s.cfg.WorkerID); err != nil {
		return err
	}

	if t.NodeType != "" {
		metrics.StepsExecuted.WithLabelValues(string(t.NodeType)).Inc()
	}
	if t.Participant.Status != p.Status {
		metrics.ParticipantTransitions.WithLabelValues(string(t.Participant.Status)).Inc()
	}
	return nil
}

// deliver hands the delivery off. A failure is recorded on the step's log entry
// and never fails the participant.
func (s *Scheduler) deliver(ctx context.Context, t *journey.Transition) {
	d := t.Delivery
	err := s.dispatcher.Dispatch(ctx, *d)
	if err == nil {
		metrics.Deliveries.WithLabelValues(string(d.Channel), "ok").Inc()
		return
	}

	logrus.Warnf("delivery %s on %s failed: %v", d.ID, d.Channel, err)
	metrics.Deliveries.WithLabelValues(string(d.Channel), "error").Inc()
	for i := range t.Logs {
		entry := &t.Logs[i]
		if entry.NodeID == d.NodeID && entry.EventType == journey.EventStepExecuted {
			if entry.Details == nil {
				entry.Details = map[string]interface{}{}
			}
			entry.Details["deliveryError"] = err.Error()
		}
	}
}
