package journey

import (
	"fmt"
	"time"

	"github.com/AccelByte/extend-marketing-automation/pkg/canvas"
	"github.com/AccelByte/extend-marketing-automation/pkg/rule"
)

// Delivery is a request for a channel to send one message. The state machine
// enqueues it and moves on without waiting for the send.
type Delivery struct {
	ID             string               `json:"id"`
	JourneyID      string               `json:"journeyId"`
	ParticipantID  string               `json:"participantId"`
	OrganizationID string               `json:"organizationId"`
	UserID         string               `json:"userId"`
	NodeID         string               `json:"nodeId"`
	Channel        canvas.NodeType      `json:"channel"`
	Template       canvas.ChannelConfig `json:"template"`
	RequestedAt    time.Time            `json:"requestedAt"`
}

// Transition is the outcome of one step. Log entries have no ID yet; the caller
// assigns IDs when persisting.
type Transition struct {
	Participant Participant
	Logs        []LogEntry
	Delivery    *Delivery
	// NodeType is the type of the node executed, empty when no node ran.
	NodeType canvas.NodeType
}

// Step advances a participant by exactly one node. It is a pure function of its
// inputs: exit rules are checked first, then the current node runs, then the
// conversion goal is checked.
func Step(p Participant, j *Journey, attrs rule.Attributes, now time.Time) Transition {
	t := Transition{Participant: p}
	if p.Status != ParticipantActive {
		return t
	}

	for _, er := range j.ExitRules {
		if er.Condition.Match(attrs) {
			t.terminate(j, er.Outcome, now, map[string]interface{}{"exitRule": er.Name})
			return t
		}
	}

	node, ok := j.Graph.Node(p.CurrentNodeID)
	if !ok {
		t.terminate(j, ParticipantFailed, now, map[string]interface{}{
			"error": fmt.Sprintf("node %q not found in journey graph", p.CurrentNodeID),
		})
		return t
	}
	t.NodeType = node.Type

	switch {
	case node.Type.IsChannel():
		cfg, _ := node.Channel()
		t.Delivery = &Delivery{
			ID:             fmt.Sprintf("%s:%s:%d", p.ID, node.ID, now.UnixMilli()),
			JourneyID:      j.ID,
			ParticipantID:  p.ID,
			OrganizationID: p.OrganizationID,
			UserID:         p.UserID,
			NodeID:         node.ID,
			Channel:        node.Type,
			Template:       cfg,
			RequestedAt:    now,
		}
		t.advance(j, node, "", now, now, map[string]interface{}{
			"channel":    string(node.Type),
			"templateId": cfg.TemplateID,
			"config":     cfg,
		})

	case node.Type == canvas.NodeBranch:
		cfg, _ := node.Branch()
		handle := canvas.HandleNo
		if cfg.Condition.Match(attrs) {
			handle = canvas.HandleYes
		}
		t.advance(j, node, handle, now, now, map[string]interface{}{"branch": handle})

	case node.Type == canvas.NodeWait:
		cfg, _ := node.Wait()
		delay, err := cfg.Delay()
		if err != nil {
			t.terminate(j, ParticipantFailed, now, map[string]interface{}{"error": err.Error()})
			return t
		}
		t.advance(j, node, "", now, now.Add(delay), map[string]interface{}{"delay": delay.String()})

	case node.Type == canvas.NodeExit:
		details := map[string]interface{}{}
		if cfg, ok := node.Config.(canvas.ExitConfig); ok && cfg.Reason != "" {
			details["reason"] = cfg.Reason
		}
		t.terminate(j, ParticipantExited, now, details)
		return t

	default:
		t.advance(j, node, "", now, now, nil)
	}

	t.checkConversion(j, attrs, now)
	return t
}

// advance logs the executed node and moves to its successor. A node without a
// matching outgoing edge completes the participant.
func (t *Transition) advance(j *Journey, node canvas.Node, handle string, now, nextStepAt time.Time, details map[string]interface{}) {
	p := &t.Participant

	next, ok := j.Graph.Next(node.ID, handle)
	if ok {
		p.CurrentNodeID = next
		p.NextStepAt = nextStepAt
	} else {
		p.Status = ParticipantCompleted
		completed := now
		p.CompletedAt = &completed
	}

	t.Logs = append(t.Logs, LogEntry{
		JourneyID:     j.ID,
		ParticipantID: p.ID,
		NodeID:        node.ID,
		EventType:     EventStepExecuted,
		Status:        p.Status,
		Details:       details,
		CreatedAt:     now,
	})
}

func (t *Transition) terminate(j *Journey, status ParticipantStatus, now time.Time, details map[string]interface{}) {
	p := &t.Participant
	p.Status = status
	at := now
	p.ExitedAt = &at

	event := EventExited
	if status == ParticipantFailed {
		event = EventFailed
	}

	t.Logs = append(t.Logs, LogEntry{
		JourneyID:     j.ID,
		ParticipantID: p.ID,
		NodeID:        p.CurrentNodeID,
		EventType:     event,
		Status:        status,
		Details:       details,
		CreatedAt:     now,
	})
}

func (t *Transition) checkConversion(j *Journey, attrs rule.Attributes, now time.Time) {
	goal := j.ConversionGoal
	if goal == nil {
		return
	}
	p := &t.Participant
	if p.Status != ParticipantActive && p.Status != ParticipantCompleted {
		return
	}
	if goal.Within > 0 && now.Sub(p.EnteredAt) > time.Duration(goal.Within) {
		return
	}
	if !goal.Condition.Match(attrs) {
		return
	}

	p.Status = ParticipantConverted
	p.CompletedAt = nil
	converted := now
	p.ConvertedAt = &converted

	t.Logs = append(t.Logs, LogEntry{
		JourneyID:     j.ID,
		ParticipantID: p.ID,
		NodeID:        p.CurrentNodeID,
		EventType:     EventConverted,
		Status:        ParticipantConverted,
		CreatedAt:     now,
	})
}

// Enter places a new participant on the successor of the start node and returns
// the ENTERED log entry.
func Enter(j *Journey, participantID, userID string, now time.Time, details map[string]interface{}) (Participant, LogEntry, error) {
	start, ok := j.Graph.Start()
	if !ok {
		return Participant{}, LogEntry{}, fmt.Errorf("journey %s has no single start node", j.ID)
	}
	first, ok := j.Graph.Next(start.ID, "")
	if !ok {
		return Participant{}, LogEntry{}, fmt.Errorf("journey %s start node has no outgoing connection", j.ID)
	}

	p := Participant{
		ID:             participantID,
		JourneyID:      j.ID,
		OrganizationID: j.OrganizationID,
		UserID:         userID,
		Status:         ParticipantActive,
		CurrentNodeID:  first,
		EnteredAt:      now,
		NextStepAt:     now,
	}

	entry := LogEntry{
		JourneyID:     j.ID,
		ParticipantID: participantID,
		NodeID:        start.ID,
		EventType:     EventEntered,
		Status:        ParticipantActive,
		Details:       details,
		CreatedAt:     now,
	}
	return p, entry, nil
}

// EnrollDecision is the verdict on a new enrollment request.
type EnrollDecision int

const (
	EnrollAllowed EnrollDecision = iota
	EnrollAlreadyActive
	EnrollBlocked
)

func (d EnrollDecision) String() string {
	switch d {
	case EnrollAllowed:
		return "enrolled"
	case EnrollAlreadyActive:
		return "already_active"
	case EnrollBlocked:
		return "re_entry_blocked"
	}
	return "unknown"
}

// DecideEnrollment applies the re-entry policy to the customer's latest run, if any.
func DecideEnrollment(policy ReEntryPolicy, latest *Participant) EnrollDecision {
	if latest == nil {
		return EnrollAllowed
	}
	if latest.Status == ParticipantActive {
		return EnrollAlreadyActive
	}

	switch policy {
	case ReEntryAlways:
		return EnrollAllowed
	case ReEntryAfterCompletion:
		if latest.Status == ParticipantCompleted || latest.Status == ParticipantConverted {
			return EnrollAllowed
		}
	}
	return EnrollBlocked
}
