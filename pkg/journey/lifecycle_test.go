package journey

import (
	"errors"
	"testing"
	"time"

	"github.com/AccelByte/extend-marketing-automation/pkg/canvas"
	"github.com/AccelByte/extend-marketing-automation/pkg/service"
)

func TestActivate_InvalidCanvasStaysDraft(t *testing.T) {
	j := welcomeJourney()
	j.Graph.Nodes[1] = node("mail", canvas.NodeEmail, canvas.ChannelConfig{})

	err := j.Activate(t0)
	if !service.IsValidationError(err) {
		t.Fatalf("Activate() error = %v, expected validation error", err)
	}
	if j.Status != StatusDraft {
		t.Errorf("Status = %s, expected DRAFT", j.Status)
	}
	reasons := service.ValidationReasons(err)
	expected := []string{`email node "mail" is missing a template`}
	if len(reasons) != 1 || reasons[0] != expected[0] {
		t.Errorf("reasons = %v, expected %v", reasons, expected)
	}
}

func TestActivate_Settings(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(j *Journey)
		wantErr bool
	}{
		{"valid", func(j *Journey) {}, false},
		{"event without name", func(j *Journey) { j.TriggerEvent = "" }, true},
		{"segment entry without segment", func(j *Journey) { j.TriggerType = TriggerSegmentEntry }, true},
		{"date based bad cron", func(j *Journey) {
			j.TriggerType = TriggerDateBased
			j.SegmentID = "s1"
			j.Schedule = "every tuesday"
		}, true},
		{"date based ok", func(j *Journey) {
			j.TriggerType = TriggerDateBased
			j.SegmentID = "s1"
			j.Schedule = "0 9 * * 1"
		}, false},
		{"bad re-entry", func(j *Journey) { j.ReEntryPolicy = "sometimes" }, true},
		{"bad exit outcome", func(j *Journey) {
			j.ExitRules = []ExitRule{{Name: "x", Outcome: ParticipantCompleted}}
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := welcomeJourney()
			tt.mutate(j)
			err := j.Activate(t0)
			if (err != nil) != tt.wantErr {
				t.Errorf("Activate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && j.Status != StatusDraft {
				t.Errorf("Status = %s, expected DRAFT after failed activation", j.Status)
			}
		})
	}
}

func TestLifecycle_Transitions(t *testing.T) {
	j := welcomeJourney()

	if err := j.Pause(t0); !service.IsConflict(err) {
		t.Errorf("Pause() on DRAFT error = %v, expected conflict", err)
	}
	if err := j.CanDelete(); err != nil {
		t.Errorf("CanDelete() on DRAFT error = %v, expected nil", err)
	}
	if err := j.Activate(t0); err != nil {
		t.Fatalf("Activate() error = %v", err)
	}
	if j.StartDate == nil || !j.StartDate.Equal(t0) {
		t.Errorf("StartDate = %v, expected %v", j.StartDate, t0)
	}
	if err := j.Activate(t0); !errors.Is(err, service.ErrConflict) {
		t.Errorf("Activate() twice error = %v, expected conflict", err)
	}
	if err := j.Archive(t0); !service.IsConflict(err) {
		t.Errorf("Archive() on ACTIVE error = %v, expected conflict", err)
	}
	if err := j.Pause(t0); err != nil {
		t.Fatalf("Pause() error = %v", err)
	}
	if j.AcceptsEnrollment(t0) {
		t.Errorf("AcceptsEnrollment() on PAUSED = true, expected false")
	}
	if err := j.Resume(t0); err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	if err := j.Pause(t0); err != nil {
		t.Fatalf("Pause() error = %v", err)
	}
	if err := j.CanDelete(); !service.IsConflict(err) {
		t.Errorf("CanDelete() on PAUSED error = %v, expected conflict", err)
	}
	if err := j.Archive(t0); err != nil {
		t.Fatalf("Archive() error = %v", err)
	}
	if j.Status != StatusArchived {
		t.Errorf("Status = %s, expected ARCHIVED", j.Status)
	}
}

func TestAcceptsEnrollment_StartDate(t *testing.T) {
	j := welcomeJourney()
	future := t0.Add(24 * time.Hour)
	j.StartDate = &future
	if err := j.Activate(t0); err != nil {
		t.Fatalf("Activate() error = %v", err)
	}

	if j.AcceptsEnrollment(t0) {
		t.Errorf("AcceptsEnrollment() before start date = true, expected false")
	}
	if !j.AcceptsEnrollment(future) {
		t.Errorf("AcceptsEnrollment() at start date = false, expected true")
	}
}

func TestDuration_JSON(t *testing.T) {
	var d Duration
	if err := d.UnmarshalJSON([]byte(`"72h"`)); err != nil {
		t.Fatalf("UnmarshalJSON() error = %v", err)
	}
	if time.Duration(d) != 72*time.Hour {
		t.Errorf("Duration = %v, expected 72h", time.Duration(d))
	}
	if err := d.UnmarshalJSON([]byte(`"soon"`)); err == nil {
		t.Errorf("UnmarshalJSON(soon) error = nil, expected error")
	}
}
