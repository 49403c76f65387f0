// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package store defines the persistence boundary for segments, journeys,
// participants, the execution log, incentives and grants.
//
// Missing records are reported with service.NewNotFoundError, uniqueness
// violations with service.NewConflictError and everything else with
// service.NewStoreError.
package store

import (
	"context"
	"time"

	"github.com/AccelByte/extend-marketing-automation/pkg/audience"
	"github.com/AccelByte/extend-marketing-automation/pkg/incentive"
	"github.com/AccelByte/extend-marketing-automation/pkg/journey"
)

// DefaultLogLimit bounds log queries that do not set a limit.
const DefaultLogLimit = 100

// JourneyFilter narrows ListJourneys. Empty fields match everything.
type JourneyFilter struct {
	OrganizationID string
	Status         journey.Status
	TriggerType    journey.TriggerType
	TriggerEvent   string
}

// Matches reports whether j passes the filter.
func (f JourneyFilter) Matches(j *journey.Journey) bool {
	if f.OrganizationID != "" && j.OrganizationID != f.OrganizationID {
		return false
	}
	if f.Status != "" && j.Status != f.Status {
		return false
	}
	if f.TriggerType != "" && j.TriggerType != f.TriggerType {
		return false
	}
	if f.TriggerEvent != "" && j.TriggerEvent != f.TriggerEvent {
		return false
	}
	return true
}

// LogQuery selects execution log rows, oldest first.
type LogQuery struct {
	JourneyID     string
	ParticipantID string
	EventType     journey.EventType
	Limit         int
	Offset        int
}

// EffectiveLimit returns Limit or DefaultLogLimit when unset.
func (q LogQuery) EffectiveLimit() int {
	if q.Limit <= 0 {
		return DefaultLogLimit
	}
	return q.Limit
}

type SegmentStore interface {
	GetSegment(ctx context.Context, id string) (*audience.Segment, error)
	ListSegments(ctx context.Context, organizationID string) ([]audience.Segment, error)
	SaveSegment(ctx context.Context, s *audience.Segment) error
	DeleteSegment(ctx context.Context, id string) error
}

type JourneyStore interface {
	GetJourney(ctx context.Context, id string) (*journey.Journey, error)
	ListJourneys(ctx context.Context, filter JourneyFilter) ([]journey.Journey, error)
	SaveJourney(ctx context.Context, j *journey.Journey) error
	DeleteJourney(ctx context.Context, id string) error
}

// ParticipantStore persists participants and their append-only log.
type ParticipantStore interface {
	// CreateParticipant stores a new ACTIVE participant together with its
	// ENTERED log row. A second ACTIVE participant for the same journey and
	// user is a ConflictError.
	CreateParticipant(ctx context.Context, p journey.Participant, entered journey.LogEntry) error
	GetParticipant(ctx context.Context, id string) (*journey.Participant, error)
	// LatestParticipant returns the most recent run of the user through the
	// journey, or nil when there is none.
	LatestParticipant(ctx context.Context, journeyID, userID string) (*journey.Participant, error)
	// ClaimDue leases up to limit ACTIVE participants of ACTIVE journeys whose
	// next step is due. A participant is leased to one worker at a time; an
	// expired lease can be claimed again.
	ClaimDue(ctx context.Context, now time.Time, workerID string, lease time.Duration, limit int) ([]journey.Participant, error)
	// CompleteStep persists the participant after a step, appends its log rows
	// and releases the lease. It fails with a ConflictError when the worker no
	// longer holds the lease.
	CompleteStep(ctx context.Context, p journey.Participant, logs []journey.LogEntry, workerID string) error
	ReleaseClaim(ctx context.Context, participantID, workerID string) error
	ListLogs(ctx context.Context, q LogQuery) ([]journey.LogEntry, error)
	CountParticipants(ctx context.Context, journeyID string) (map[journey.ParticipantStatus]int, error)
}

type IncentiveStore interface {
	GetIncentive(ctx context.Context, id string) (*incentive.Incentive, error)
	ListIncentives(ctx context.Context, organizationID string) ([]incentive.Incentive, error)
	SaveIncentive(ctx context.Context, i *incentive.Incentive) error
	CountGrants(ctx context.Context, incentiveID, userID string) (int, error)
	// CreateGrant fails with a ConflictError when the idempotency key exists.
	CreateGrant(ctx context.Context, g *incentive.Grant) error
	ListGrants(ctx context.Context, incentiveID string) ([]incentive.Grant, error)
}

// Store is the full persistence surface wired by the application.
type Store interface {
	SegmentStore
	JourneyStore
	ParticipantStore
	IncentiveStore
	Ping(ctx context.Context) error
	Close() error
}
