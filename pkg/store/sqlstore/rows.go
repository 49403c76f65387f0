package sqlstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/AccelByte/extend-marketing-automation/pkg/audience"
	"github.com/AccelByte/extend-marketing-automation/pkg/canvas"
	"github.com/AccelByte/extend-marketing-automation/pkg/incentive"
	"github.com/AccelByte/extend-marketing-automation/pkg/journey"
	"github.com/AccelByte/extend-marketing-automation/pkg/rule"
)

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func timePtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromMillis(n.Int64)
	return &t
}

func marshalJSON(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

type segmentRow struct {
	ID             string `db:"id"`
	OrganizationID string `db:"organization_id"`
	Name           string `db:"name"`
	Rules          string `db:"rules"`
	Combination    string `db:"combination"`
	LocationIDs    string `db:"location_ids"`
	CreatedAt      int64  `db:"created_at"`
	UpdatedAt      int64  `db:"updated_at"`
}

func (r segmentRow) toSegment() (audience.Segment, error) {
	s := audience.Segment{
		ID:             r.ID,
		OrganizationID: r.OrganizationID,
		Name:           r.Name,
		Combination:    rule.Combination(r.Combination),
		CreatedAt:      fromMillis(r.CreatedAt),
		UpdatedAt:      fromMillis(r.UpdatedAt),
	}
	if err := json.Unmarshal([]byte(r.Rules), &s.Rules); err != nil {
		return s, fmt.Errorf("segment %s rules: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(r.LocationIDs), &s.LocationIDs); err != nil {
		return s, fmt.Errorf("segment %s location ids: %w", r.ID, err)
	}
	return s, nil
}

type journeyRow struct {
	ID             string         `db:"id"`
	OrganizationID string         `db:"organization_id"`
	Name           string         `db:"name"`
	Status         string         `db:"status"`
	Graph          string         `db:"graph"`
	TriggerType    string         `db:"trigger_type"`
	TriggerEvent   string         `db:"trigger_event"`
	SegmentID      string         `db:"segment_id"`
	Schedule       string         `db:"schedule"`
	ReEntryPolicy  string         `db:"re_entry_policy"`
	ConversionGoal sql.NullString `db:"conversion_goal"`
	ExitRules      string         `db:"exit_rules"`
	StartDate      sql.NullInt64  `db:"start_date"`
	CreatedAt      int64          `db:"created_at"`
	UpdatedAt      int64          `db:"updated_at"`
}

func (r journeyRow) toJourney() (journey.Journey, error) {
	j := journey.Journey{
		ID:             r.ID,
		OrganizationID: r.OrganizationID,
		Name:           r.Name,
		Status:         journey.Status(r.Status),
		TriggerType:    journey.TriggerType(r.TriggerType),
		TriggerEvent:   r.TriggerEvent,
		SegmentID:      r.SegmentID,
		Schedule:       r.Schedule,
		ReEntryPolicy:  journey.ReEntryPolicy(r.ReEntryPolicy),
		StartDate:      timePtr(r.StartDate),
		CreatedAt:      fromMillis(r.CreatedAt),
		UpdatedAt:      fromMillis(r.UpdatedAt),
	}
	var g canvas.Graph
	if err := json.Unmarshal([]byte(r.Graph), &g); err != nil {
		return j, fmt.Errorf("journey %s graph: %w", r.ID, err)
	}
	j.Graph = g
	if r.ConversionGoal.Valid && r.ConversionGoal.String != "" && r.ConversionGoal.String != "null" {
		var goal journey.ConversionGoal
		if err := json.Unmarshal([]byte(r.ConversionGoal.String), &goal); err != nil {
			return j, fmt.Errorf("journey %s conversion goal: %w", r.ID, err)
		}
		j.ConversionGoal = &goal
	}
	if err := json.Unmarshal([]byte(r.ExitRules), &j.ExitRules); err != nil {
		return j, fmt.Errorf("journey %s exit rules: %w", r.ID, err)
	}
	return j, nil
}

type participantRow struct {
	ID             string        `db:"id"`
	JourneyID      string        `db:"journey_id"`
	OrganizationID string        `db:"organization_id"`
	UserID         string        `db:"user_id"`
	Status         string        `db:"status"`
	CurrentNodeID  string        `db:"current_node_id"`
	EnteredAt      int64         `db:"entered_at"`
	NextStepAt     int64         `db:"next_step_at"`
	ConvertedAt    sql.NullInt64 `db:"converted_at"`
	ExitedAt       sql.NullInt64 `db:"exited_at"`
	CompletedAt    sql.NullInt64 `db:"completed_at"`
}

func (r participantRow) toParticipant() journey.Participant {
	return journey.Participant{
		ID:             r.ID,
		JourneyID:      r.JourneyID,
		OrganizationID: r.OrganizationID,
		UserID:         r.UserID,
		Status:         journey.ParticipantStatus(r.Status),
		CurrentNodeID:  r.CurrentNodeID,
		EnteredAt:      fromMillis(r.EnteredAt),
		NextStepAt:     fromMillis(r.NextStepAt),
		ConvertedAt:    timePtr(r.ConvertedAt),
		ExitedAt:       timePtr(r.ExitedAt),
		CompletedAt:    timePtr(r.CompletedAt),
	}
}

type logRow struct {
	ID            string         `db:"id"`
	JourneyID     string         `db:"journey_id"`
	ParticipantID string         `db:"participant_id"`
	NodeID        string         `db:"node_id"`
	EventType     string         `db:"event_type"`
	Status        string         `db:"status"`
	Details       sql.NullString `db:"details"`
	CreatedAt     int64          `db:"created_at"`
}

func (r logRow) toLogEntry() (journey.LogEntry, error) {
	entry := journey.LogEntry{
		ID:            r.ID,
		JourneyID:     r.JourneyID,
		ParticipantID: r.ParticipantID,
		NodeID:        r.NodeID,
		EventType:     journey.EventType(r.EventType),
		Status:        journey.ParticipantStatus(r.Status),
		CreatedAt:     fromMillis(r.CreatedAt),
	}
	if r.Details.Valid && r.Details.String != "" && r.Details.String != "null" {
		if err := json.Unmarshal([]byte(r.Details.String), &entry.Details); err != nil {
			return entry, fmt.Errorf("log %s details: %w", r.ID, err)
		}
	}
	return entry, nil
}

type incentiveRow struct {
	ID                string `db:"id"`
	OrganizationID    string `db:"organization_id"`
	Name              string `db:"name"`
	SegmentID         string `db:"segment_id"`
	Type              string `db:"type"`
	CouponID          string `db:"coupon_id"`
	PersonalizeCoupon bool   `db:"personalize_coupon"`
	CouponPrefix      string `db:"coupon_prefix"`
	WalletAmount      int64  `db:"wallet_amount"`
	Currency          string `db:"currency"`
	MaxGrantsPerUser  int    `db:"max_grants_per_user"`
	Active            bool   `db:"active"`
	Schedule          string `db:"schedule"`
	CreatedAt         int64  `db:"created_at"`
	UpdatedAt         int64  `db:"updated_at"`
}

func (r incentiveRow) toIncentive() incentive.Incentive {
	return incentive.Incentive{
		ID:                r.ID,
		OrganizationID:    r.OrganizationID,
		Name:              r.Name,
		SegmentID:         r.SegmentID,
		Type:              incentive.Type(r.Type),
		CouponID:          r.CouponID,
		PersonalizeCoupon: r.PersonalizeCoupon,
		CouponPrefix:      r.CouponPrefix,
		WalletAmount:      r.WalletAmount,
		Currency:          r.Currency,
		MaxGrantsPerUser:  r.MaxGrantsPerUser,
		Active:            r.Active,
		Schedule:          r.Schedule,
		CreatedAt:         fromMillis(r.CreatedAt),
		UpdatedAt:         fromMillis(r.UpdatedAt),
	}
}

type grantRow struct {
	ID             string        `db:"id"`
	IncentiveID    string        `db:"incentive_id"`
	OrganizationID string        `db:"organization_id"`
	UserID         string        `db:"user_id"`
	CouponID       string        `db:"coupon_id"`
	CouponCode     string        `db:"coupon_code"`
	WalletAmount   int64         `db:"wallet_amount"`
	Currency       string        `db:"currency"`
	IdempotencyKey string        `db:"idempotency_key"`
	RedeemedAt     sql.NullInt64 `db:"redeemed_at"`
	CreatedAt      int64         `db:"created_at"`
}

func (r grantRow) toGrant() incentive.Grant {
	return incentive.Grant{
		ID:             r.ID,
		IncentiveID:    r.IncentiveID,
		OrganizationID: r.OrganizationID,
		UserID:         r.UserID,
		CouponID:       r.CouponID,
		CouponCode:     r.CouponCode,
		WalletAmount:   r.WalletAmount,
		Currency:       r.Currency,
		IdempotencyKey: r.IdempotencyKey,
		RedeemedAt:     timePtr(r.RedeemedAt),
		CreatedAt:      fromMillis(r.CreatedAt),
	}
}
