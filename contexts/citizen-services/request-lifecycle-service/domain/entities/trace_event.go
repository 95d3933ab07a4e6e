package entities

import (
	"strings"
	"time"
)

type EventType string

const (
	EventCreated    EventType = "created"
	EventAssigned   EventType = "assigned"
	EventReassigned EventType = "reassigned"
	EventSubmitted  EventType = "submitted"
	EventApproved   EventType = "approved"
	EventReturned   EventType = "returned"
	EventSigned     EventType = "signed"
	EventFinalized  EventType = "finalized"
)

func (t EventType) Valid() bool {
	switch t {
	case EventCreated, EventAssigned, EventReassigned, EventSubmitted,
		EventApproved, EventReturned, EventSigned, EventFinalized:
		return true
	default:
		return false
	}
}

// TraceEvent is one immutable entry of a request's audit trail. Sequence is
// 1-based per request and equals the request version the event produced.
type TraceEvent struct {
	EventID    string
	RequestID  string
	Sequence   int64
	OccurredAt time.Time
	EventType  EventType
	FromActor  Actor
	ToActor    *Actor
	Message    *string
}

func (e TraceEvent) Validate() bool {
	return strings.TrimSpace(e.EventID) != "" &&
		strings.TrimSpace(e.RequestID) != "" &&
		e.Sequence > 0 &&
		!e.OccurredAt.IsZero() &&
		e.EventType.Valid() &&
		strings.TrimSpace(e.FromActor.ID) != ""
}

func (e TraceEvent) Clone() TraceEvent {
	out := e
	if e.ToActor != nil {
		to := *e.ToActor
		out.ToActor = &to
	}
	if e.Message != nil {
		message := *e.Message
		out.Message = &message
	}
	return out
}

func (e TraceEvent) MessageText() string {
	if e.Message == nil {
		return ""
	}
	return *e.Message
}
