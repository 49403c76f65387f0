package scheduler

import (
	"context"
	"time"

	"github.com/AccelByte/extend-marketing-automation/pkg/journey"
	"github.com/AccelByte/extend-marketing-automation/pkg/store"
	"github.com/sirupsen/logrus"
)

// Activate validates the journey's canvas and settings and moves it to ACTIVE.
// Validation failures come back as a ValidationError listing every reason.
func (s *Scheduler) Activate(ctx context.Context, journeyID string) (*journey.Journey, error) {
	return s.transition(ctx, journeyID, "activated", (*journey.Journey).Activate)
}

// Pause stops enrollment and advancement without touching participants.
func (s *Scheduler) Pause(ctx context.Context, journeyID string) (*journey.Journey, error) {
	return s.transition(ctx, journeyID, "paused", (*journey.Journey).Pause)
}

// Resume lets participants of a paused journey continue where they left off.
func (s *Scheduler) Resume(ctx context.Context, journeyID string) (*journey.Journey, error) {
	return s.transition(ctx, journeyID, "resumed", (*journey.Journey).Resume)
}

func (s *Scheduler) Archive(ctx context.Context, journeyID string) (*journey.Journey, error) {
	return s.transition(ctx, journeyID, "archived", (*journey.Journey).Archive)
}

func (s *Scheduler) transition(ctx context.Context, journeyID, verb string, apply func(*journey.Journey, time.Time) error) (*journey.Journey, error) {
	j, err := s.store.GetJourney(ctx, journeyID)
	if err != nil {
		return nil, err
	}
	if err := apply(j, s.now()); err != nil {
		return nil, err
	}
	if err := s.store.SaveJourney(ctx, j); err != nil {
		return nil, err
	}
	logrus.Infof("journey %s %s", j.ID, verb)
	return j, nil
}

// Delete removes a DRAFT journey.
func (s *Scheduler) Delete(ctx context.Context, journeyID string) error {
	j, err := s.store.GetJourney(ctx, journeyID)
	if err != nil {
		return err
	}
	if err := j.CanDelete(); err != nil {
		return err
	}
	return s.store.DeleteJourney(ctx, journeyID)
}

// Stats summarizes a journey's participants.
type Stats struct {
	JourneyID    string                            `json:"journeyId"`
	Status       journey.Status                    `json:"status"`
	Total        int                               `json:"total"`
	Participants map[journey.ParticipantStatus]int `json:"participants"`
}

func (s *Scheduler) Stats(ctx context.Context, journeyID string) (*Stats, error) {
	j, err := s.store.GetJourney(ctx, journeyID)
	if err != nil {
		return nil, err
	}
	counts, err := s.store.CountParticipants(ctx, journeyID)
	if err != nil {
		return nil, err
	}

	stats := &Stats{JourneyID: j.ID, Status: j.Status, Participants: counts}
	for _, n := range counts {
		stats.Total += n
	}
	return stats, nil
}

// Logs returns execution log entries, oldest first.
func (s *Scheduler) Logs(ctx context.Context, q store.LogQuery) ([]journey.LogEntry, error) {
	return s.store.ListLogs(ctx, q)
}
