package events

import (
	"time"

	"github.com/final-year-project/doubtfire-api/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated     EventType = "ticket_created"
	EventTicketResolved    EventType = "ticket_resolved"
	EventTicketClosed      EventType = "ticket_closed"
	EventSessionClockedOn  EventType = "session_clocked_on"
	EventSessionClockedOff EventType = "session_clocked_off"
)

// TicketEventTypes lists every event that changes ticket statistics.
var TicketEventTypes = []EventType{EventTicketCreated, EventTicketResolved, EventTicketClosed}

// AllEventTypes lists every event the service emits.
var AllEventTypes = []EventType{
	EventTicketCreated,
	EventTicketResolved,
	EventTicketClosed,
	EventSessionClockedOn,
	EventSessionClockedOff,
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	TicketID  *int64    `json:"ticket_id,omitempty"`
	SessionID *int64    `json:"session_id,omitempty"`
	ActorID   *int64    `json:"actor_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	ProjectID        int64  `json:"project_id"`
	UserID           int64  `json:"user_id"`
	TaskDefinitionID *int64 `json:"task_definition_id,omitempty"`
}

// TicketStateChangedPayload is carried by resolve and close events.
type TicketStateChangedPayload struct {
	OldState         domain.TicketState `json:"old_state"`
	NewState         domain.TicketState `json:"new_state"`
	MinutesToResolve *float64           `json:"minutes_to_resolve,omitempty"`
}

// SessionPayload is carried by clock on/off events.
type SessionPayload struct {
	UserID       int64     `json:"user_id"`
	ClockOnTime  time.Time `json:"clock_on_time"`
	ClockOffTime time.Time `json:"clock_off_time"`
}
