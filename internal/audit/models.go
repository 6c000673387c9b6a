package audit

import (
	"context"
	"time"
)

// EventKind enumerates the flow lifecycle actions worth an audit trail.
type EventKind string

const (
	EventFlowStarted        EventKind = "flow_started"
	EventScreenSubmitted    EventKind = "screen_submitted"
	EventDataSubmitted      EventKind = "data_submitted"
	EventChallengeRequested EventKind = "challenge_requested"
	EventChallengeVerified  EventKind = "challenge_verified"
	EventFlowCompleted      EventKind = "flow_completed"
)

// Event is emitted from flow logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out. Field values never
// appear here, only field identifiers and counts.
type Event struct {
	Timestamp time.Time
	FlowID    string
	PartyID   string
	Action    string
	Screen    string
	Fields    []string
	Detail    string
}

// Store is the audit sink boundary. Append-only.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByFlow(ctx context.Context, flowID string) ([]Event, error)
}
