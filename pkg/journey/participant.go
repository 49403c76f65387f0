package journey

import (
	"time"
)

// ParticipantStatus is the state of one customer's run through a journey.
type ParticipantStatus string

const (
	ParticipantActive    ParticipantStatus = "ACTIVE"
	ParticipantConverted ParticipantStatus = "CONVERTED"
	ParticipantFailed    ParticipantStatus = "FAILED"
	ParticipantExited    ParticipantStatus = "EXITED"
	ParticipantCompleted ParticipantStatus = "COMPLETED"
)

// IsTerminal reports whether no further step can run.
func (s ParticipantStatus) IsTerminal() bool {
	return s != ParticipantActive
}

// Participant is one customer's run through one journey.
type Participant struct {
	ID             string            `json:"id"`
	JourneyID      string            `json:"journeyId"`
	OrganizationID string            `json:"organizationId"`
	UserID         string            `json:"userId"`
	Status         ParticipantStatus `json:"status"`
	CurrentNodeID  string            `json:"currentNodeId"`
	EnteredAt      time.Time         `json:"enteredAt"`
	NextStepAt     time.Time         `json:"nextStepAt"`
	ConvertedAt    *time.Time        `json:"convertedAt,omitempty"`
	ExitedAt       *time.Time        `json:"exitedAt,omitempty"`
	CompletedAt    *time.Time        `json:"completedAt,omitempty"`
}

// IsDue reports whether the scheduler should advance the participant.
func (p *Participant) IsDue(now time.Time) bool {
	return p.Status == ParticipantActive && !p.NextStepAt.After(now)
}

// EventType classifies a log entry.
type EventType string

const (
	EventEntered      EventType = "ENTERED"
	EventStepExecuted EventType = "STEP_EXECUTED"
	EventConverted    EventType = "CONVERTED"
	EventExited       EventType = "EXITED"
	EventFailed       EventType = "FAILED"
)

// LogEntry is an immutable audit record of one participant transition.
type LogEntry struct {
	ID            string                 `json:"id"`
	JourneyID     string                 `json:"journeyId"`
	ParticipantID string                 `json:"participantId"`
	NodeID        string                 `json:"nodeId"`
	EventType     EventType              `json:"eventType"`
	Status        ParticipantStatus      `json:"status"`
	Details       map[string]interface{} `json:"details,omitempty"`
	CreatedAt     time.Time              `json:"createdAt"`
}
