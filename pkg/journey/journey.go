// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package journey

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/AccelByte/extend-marketing-automation/pkg/canvas"
	"github.com/AccelByte/extend-marketing-automation/pkg/rule"
	"gopkg.in/yaml.v3"
)

// Status is the lifecycle state of a journey.
type Status string

const (
	StatusDraft    Status = "DRAFT"
	StatusActive   Status = "ACTIVE"
	StatusPaused   Status = "PAUSED"
	StatusArchived Status = "ARCHIVED"
)

// TriggerType decides how customers enter a journey.
type TriggerType string

const (
	TriggerEvent        TriggerType = "EVENT"
	TriggerSegmentEntry TriggerType = "SEGMENT_ENTRY"
	TriggerDateBased    TriggerType = "DATE_BASED"
)

// ReEntryPolicy decides whether a customer who already left a journey may enter again.
type ReEntryPolicy string

const (
	ReEntryNever           ReEntryPolicy = "never"
	ReEntryAfterCompletion ReEntryPolicy = "after_completion"
	ReEntryAlways          ReEntryPolicy = "always"
)

// Duration is a time.Duration written as a Go duration string in JSON and YAML.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	if d == 0 {
		return json.Marshal("")
	}
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	return d.parse(s)
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.parse(node.Value)
}

func (d *Duration) parse(s string) error {
	if s == "" {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// ConversionGoal is the condition under which a participant counts as converted.
// A zero Within means no time limit.
type ConversionGoal struct {
	rule.Condition `yaml:",inline"`
	Within         Duration `yaml:"within,omitempty" json:"within,omitempty"`
}

// ExitRule removes a participant without conversion. Outcome is EXITED or FAILED.
type ExitRule struct {
	Name      string            `yaml:"name" json:"name"`
	Condition rule.Condition    `yaml:"condition" json:"condition"`
	Outcome   ParticipantStatus `yaml:"outcome" json:"outcome"`
}

// Journey is a graph of timed and branching marketing steps.
type Journey struct {
	ID             string          `yaml:"id" json:"id" validate:"required"`
	OrganizationID string          `yaml:"organization_id" json:"organizationId" validate:"required"`
	Name           string          `yaml:"name" json:"name"`
	Status         Status          `yaml:"status" json:"status"`
	Graph          canvas.Graph    `yaml:"graph" json:"graph"`
	TriggerType    TriggerType     `yaml:"trigger_type" json:"triggerType" validate:"oneof=EVENT SEGMENT_ENTRY DATE_BASED"`
	TriggerEvent   string          `yaml:"trigger_event,omitempty" json:"triggerEvent,omitempty"`
	SegmentID      string          `yaml:"segment_id,omitempty" json:"segmentId,omitempty"`
	Schedule       string          `yaml:"schedule,omitempty" json:"schedule,omitempty"`
	ReEntryPolicy  ReEntryPolicy   `yaml:"re_entry_policy,omitempty" json:"reEntryPolicy,omitempty"`
	ConversionGoal *ConversionGoal `yaml:"conversion_goal,omitempty" json:"conversionGoal,omitempty"`
	ExitRules      []ExitRule      `yaml:"exit_rules,omitempty" json:"exitRules,omitempty"`
	StartDate      *time.Time      `yaml:"start_date,omitempty" json:"startDate,omitempty"`
	CreatedAt      time.Time       `yaml:"-" json:"createdAt"`
	UpdatedAt      time.Time       `yaml:"-" json:"updatedAt"`
}

// EffectiveReEntryPolicy returns the policy, defaulting to never.
func (j *Journey) EffectiveReEntryPolicy() ReEntryPolicy {
	if j.ReEntryPolicy == "" {
		return ReEntryNever
	}
	return j.ReEntryPolicy
}

// AcceptsEnrollment reports whether new participants may enter now.
func (j *Journey) AcceptsEnrollment(now time.Time) bool {
	if j.Status != StatusActive {
		return false
	}
	return j.StartDate == nil || !now.Before(*j.StartDate)
}
