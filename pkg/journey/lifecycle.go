package journey

import (
	"fmt"
	"time"

	"github.com/AccelByte/extend-marketing-automation/pkg/canvas"
	"github.com/AccelByte/extend-marketing-automation/pkg/rule"
	"github.com/AccelByte/extend-marketing-automation/pkg/service"
	"github.com/robfig/cron/v3"
)

// Activate moves a DRAFT journey to ACTIVE. The canvas validator output is
// returned verbatim as a ValidationError and the journey is left unchanged.
func (j *Journey) Activate(now time.Time) error {
	if j.Status != StatusDraft {
		return service.NewConflictError("journey.activate",
			fmt.Sprintf("journey %s is %s, only DRAFT journeys can be activated", j.ID, j.Status))
	}

	if errs := canvas.Validate(j.Graph); len(errs) > 0 {
		return service.NewValidationError("journey.activate", errs)
	}
	if errs := j.ValidateSettings(); len(errs) > 0 {
		return service.NewValidationError("journey.activate", errs)
	}

	if j.StartDate == nil {
		start := now
		j.StartDate = &start
	}
	j.Status = StatusActive
	j.UpdatedAt = now
	return nil
}

// Pause stops enrollment and advancement. Participants keep their node and
// next step time.
func (j *Journey) Pause(now time.Time) error {
	if j.Status != StatusActive {
		return service.NewConflictError("journey.pause",
			fmt.Sprintf("journey %s is %s, only ACTIVE journeys can be paused", j.ID, j.Status))
	}
	j.Status = StatusPaused
	j.UpdatedAt = now
	return nil
}

// Resume continues a paused journey where every participant left off.
func (j *Journey) Resume(now time.Time) error {
	if j.Status != StatusPaused {
		return service.NewConflictError("journey.resume",
			fmt.Sprintf("journey %s is %s, only PAUSED journeys can be resumed", j.ID, j.Status))
	}
	j.Status = StatusActive
	j.UpdatedAt = now
	return nil
}

// Archive retires a paused journey for good.
func (j *Journey) Archive(now time.Time) error {
	if j.Status != StatusPaused {
		return service.NewConflictError("journey.archive",
			fmt.Sprintf("journey %s is %s, only PAUSED journeys can be archived", j.ID, j.Status))
	}
	j.Status = StatusArchived
	j.UpdatedAt = now
	return nil
}

// CanDelete reports whether the journey may be deleted. Only drafts can.
func (j *Journey) CanDelete() error {
	if j.Status != StatusDraft {
		return service.NewConflictError("journey.delete",
			fmt.Sprintf("journey %s is %s, only DRAFT journeys can be deleted", j.ID, j.Status))
	}
	return nil
}

// ValidateSettings checks trigger, re-entry, conversion and exit settings.
func (j *Journey) ValidateSettings() []string {
	var errs []string

	switch j.TriggerType {
	case TriggerEvent:
		if j.TriggerEvent == "" {
			errs = append(errs, "EVENT journeys need a trigger event")
		}
	case TriggerSegmentEntry:
		if j.SegmentID == "" {
			errs = append(errs, "SEGMENT_ENTRY journeys need a segment")
		}
	case TriggerDateBased:
		if j.SegmentID == "" {
			errs = append(errs, "DATE_BASED journeys need a segment")
		}
		if _, err := cron.ParseStandard(j.Schedule); err != nil {
			errs = append(errs, fmt.Sprintf("invalid schedule %q: %v", j.Schedule, err))
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown trigger type %q", j.TriggerType))
	}

	switch j.EffectiveReEntryPolicy() {
	case ReEntryNever, ReEntryAfterCompletion, ReEntryAlways:
	default:
		errs = append(errs, fmt.Sprintf("unknown re-entry policy %q", j.ReEntryPolicy))
	}

	if j.ConversionGoal != nil {
		for _, e := range rule.ValidateCondition(j.ConversionGoal.Condition) {
			errs = append(errs, "conversion goal: "+e)
		}
	}

	for i, er := range j.ExitRules {
		if er.Outcome != ParticipantExited && er.Outcome != ParticipantFailed {
			errs = append(errs, fmt.Sprintf("exit rule %d (%s): outcome must be EXITED or FAILED", i, er.Name))
		}
		for _, e := range rule.ValidateCondition(er.Condition) {
			errs = append(errs, fmt.Sprintf("exit rule %d (%s): %s", i, er.Name, e))
		}
	}

	return errs
}
