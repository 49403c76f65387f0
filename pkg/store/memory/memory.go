// Package memory is an in-process implementation of store.Store used for
// local runs and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/AccelByte/extend-marketing-automation/pkg/audience"
	"github.com/AccelByte/extend-marketing-automation/pkg/incentive"
	"github.com/AccelByte/extend-marketing-automation/pkg/journey"
	"github.com/AccelByte/extend-marketing-automation/pkg/service"
	"github.com/AccelByte/extend-marketing-automation/pkg/store"
	"github.com/google/uuid"
)

type claim struct {
	workerID  string
	expiresAt time.Time
}

// Store keeps every record in maps guarded by one lock.
type Store struct {
	mu sync.RWMutex

	segments     map[string]audience.Segment
	journeys     map[string]journey.Journey
	participants map[string]journey.Participant
	claims       map[string]claim
	logs         []journey.LogEntry
	incentives   map[string]incentive.Incentive
	grants       []incentive.Grant
	grantKeys    map[string]struct{}
}

var _ store.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		segments:     make(map[string]audience.Segment),
		journeys:     make(map[string]journey.Journey),
		participants: make(map[string]journey.Participant),
		claims:       make(map[string]claim),
		incentives:   make(map[string]incentive.Incentive),
		grantKeys:    make(map[string]struct{}),
	}
}

func (s *Store) Ping(ctx context.Context) error { return nil }
func (s *Store) Close() error                   { return nil }

// Segments

func (s *Store) GetSegment(ctx context.Context, id string) (*audience.Segment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seg, ok := s.segments[id]
	if !ok {
		return nil, service.NewNotFoundError("store.get_segment", "segment", id)
	}
	return &seg, nil
}

func (s *Store) ListSegments(ctx context.Context, organizationID string) ([]audience.Segment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []audience.Segment
	for _, seg := range s.segments {
		if organizationID == "" || seg.OrganizationID == organizationID {
			out = append(out, seg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) SaveSegment(ctx context.Context, seg *audience.Segment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.segments[seg.ID] = *seg
	return nil
}

func (s *Store) DeleteSegment(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.segments[id]; !ok {
		return service.NewNotFoundError("store.delete_segment", "segment", id)
	}
	delete(s.segments, id)
	return nil
}

// Journeys

func (s *Store) GetJourney(ctx context.Context, id string) (*journey.Journey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.journeys[id]
	if !ok {
		return nil, service.NewNotFoundError("store.get_journey", "journey", id)
	}
	return &j, nil
}

func (s *Store) ListJourneys(ctx context.Context, filter store.JourneyFilter) ([]journey.Journey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []journey.Journey
	for _, j := range s.journeys {
		j := j
		if filter.Matches(&j) {
			out = append(out, j)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) SaveJourney(ctx context.Context, j *journey.Journey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.journeys[j.ID] = *j
	return nil
}

func (s *Store) DeleteJourney(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.journeys[id]; !ok {
		return service.NewNotFoundError("store.delete_journey", "journey", id)
	}
	delete(s.journeys, id)
	return nil
}

// Participants

func (s *Store) CreateParticipant(ctx context.Context, p journey.Participant, entered journey.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.participants[p.ID]; exists {
		return service.NewConflictError("store.create_participant", fmt.Sprintf("participant %s already exists", p.ID))
	}
	if p.Status == journey.ParticipantActive {
		for _, other := range s.participants {
			if other.JourneyID == p.JourneyID && other.UserID == p.UserID && other.Status == journey.ParticipantActive {
				return service.NewConflictError("store.create_participant",
					fmt.Sprintf("user %s already has an active run in journey %s", p.UserID, p.JourneyID))
			}
		}
	}

	s.participants[p.ID] = p
	s.appendLogs([]journey.LogEntry{entered})
	return nil
}

func (s *Store) GetParticipant(ctx context.Context, id string) (*journey.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.participants[id]
	if !ok {
		return nil, service.NewNotFoundError("store.get_participant", "participant", id)
	}
	return &p, nil
}

func (s *Store) LatestParticipant(ctx context.Context, journeyID, userID string) (*journey.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *journey.Participant
	for _, p := range s.participants {
		if p.JourneyID != journeyID || p.UserID != userID {
			continue
		}
		if latest == nil || p.EnteredAt.After(latest.EnteredAt) {
			p := p
			latest = &p
		}
	}
	return latest, nil
}

func (s *Store) ClaimDue(ctx context.Context, now time.Time, workerID string, lease time.Duration, limit int) ([]journey.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []journey.Participant
	for _, p := range s.participants {
		if !p.IsDue(now) {
			continue
		}
		if j, ok := s.journeys[p.JourneyID]; !ok || j.Status != journey.StatusActive {
			continue
		}
		if c, ok := s.claims[p.ID]; ok && now.Before(c.expiresAt) {
			continue
		}
		due = append(due, p)
	}

	sort.Slice(due, func(i, j int) bool {
		if due[i].NextStepAt.Equal(due[j].NextStepAt) {
			return due[i].ID < due[j].ID
		}
		return due[i].NextStepAt.Before(due[j].NextStepAt)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	for _, p := range due {
		s.claims[p.ID] = claim{workerID: workerID, expiresAt: now.Add(lease)}
	}
	return due, nil
}

func (s *Store) CompleteStep(ctx context.Context, p journey.Participant, logs []journey.LogEntry, workerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.claims[p.ID]
	if !ok || c.workerID != workerID {
		return service.NewConflictError("store.complete_step",
			fmt.Sprintf("participant %s is not claimed by %s", p.ID, workerID))
	}
	if _, exists := s.participants[p.ID]; !exists {
		return service.NewNotFoundError("store.complete_step", "participant", p.ID)
	}

	s.participants[p.ID] = p
	delete(s.claims, p.ID)
	s.appendLogs(logs)
	return nil
}

func (s *Store) ReleaseClaim(ctx context.Context, participantID, workerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.claims[participantID]; ok && c.workerID == workerID {
		delete(s.claims, participantID)
	}
	return nil
}

func (s *Store) appendLogs(logs []journey.LogEntry) {
	for _, entry := range logs {
		if entry.ID == "" {
			entry.ID = uuid.NewString()
		}
		s.logs = append(s.logs, entry)
	}
}

func (s *Store) ListLogs(ctx context.Context, q store.LogQuery) ([]journey.LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []journey.LogEntry
	for _, entry := range s.logs {
		if q.JourneyID != "" && entry.JourneyID != q.JourneyID {
			continue
		}
		if q.ParticipantID != "" && entry.ParticipantID != q.ParticipantID {
			continue
		}
		if q.EventType != "" && entry.EventType != q.EventType {
			continue
		}
		matched = append(matched, entry)
	}

	if q.Offset >= len(matched) {
		return nil, nil
	}
	matched = matched[q.Offset:]
	if limit := q.EffectiveLimit(); len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (s *Store) CountParticipants(ctx context.Context, journeyID string) (map[journey.ParticipantStatus]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[journey.ParticipantStatus]int)
	for _, p := range s.participants {
		if p.JourneyID == journeyID {
			counts[p.Status]++
		}
	}
	return counts, nil
}

// Incentives

func (s *Store) GetIncentive(ctx context.Context, id string) (*incentive.Incentive, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inc, ok := s.incentives[id]
	if !ok {
		return nil, service.NewNotFoundError("store.get_incentive", "incentive", id)
	}
	return &inc, nil
}

func (s *Store) ListIncentives(ctx context.Context, organizationID string) ([]incentive.Incentive, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []incentive.Incentive
	for _, inc := range s.incentives {
		if organizationID == "" || inc.OrganizationID == organizationID {
			out = append(out, inc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) SaveIncentive(ctx context.Context, inc *incentive.Incentive) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.incentives[inc.ID] = *inc
	return nil
}

func (s *Store) CountGrants(ctx context.Context, incentiveID, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, g := range s.grants {
		if g.IncentiveID == incentiveID && g.UserID == userID {
			count++
		}
	}
	return count, nil
}

func (s *Store) CreateGrant(ctx context.Context, g *incentive.Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.grantKeys[g.IdempotencyKey]; exists {
		return service.NewConflictError("store.create_grant",
			fmt.Sprintf("grant with idempotency key %s already exists", g.IdempotencyKey))
	}
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	s.grantKeys[g.IdempotencyKey] = struct{}{}
	s.grants = append(s.grants, *g)
	return nil
}

func (s *Store) ListGrants(ctx context.Context, incentiveID string) ([]incentive.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []incentive.Grant
	for _, g := range s.grants {
		if g.IncentiveID == incentiveID {
			out = append(out, g)
		}
	}
	return out, nil
}
