package domain

import (
	"math"
	"time"
)

// TicketState enumerates lifecycle states for helpdesk tickets.
type TicketState string

const (
	TicketStateOpen     TicketState = "open"
	TicketStateResolved TicketState = "resolved"
	TicketStateClosed   TicketState = "closed"
)

// MaxDescriptionLength bounds the free-text description of a ticket.
const MaxDescriptionLength = 2048

var ticketTransitions = map[TicketState][]TicketState{
	TicketStateOpen:     {TicketStateResolved, TicketStateClosed},
	TicketStateResolved: {},
	TicketStateClosed:   {},
}

// CanTransition reports whether a ticket may move from current to next.
func CanTransition(current, next TicketState) bool {
	for _, candidate := range ticketTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known state.
func (s TicketState) Valid() bool {
	_, ok := ticketTransitions[s]
	return ok
}

// Ticket is a help request raised against a student's project.
type Ticket struct {
	ID               int64
	ProjectID        int64
	TaskID           *int64
	TaskDefinitionID *int64
	UserID           int64
	Description      string
	State            TicketState
	CreatedAt        time.Time
	ClosedAt         *time.Time
	MinutesToResolve *float64
}

// IsClosed is true for both terminal states.
func (t Ticket) IsClosed() bool {
	return t.State != TicketStateOpen
}

// IsResolved is true only when the ticket was closed as resolved.
func (t Ticket) IsResolved() bool {
	return t.State == TicketStateResolved
}

// ResolvedAt mirrors ClosedAt for resolved tickets.
func (t Ticket) ResolvedAt() *time.Time {
	if !t.IsResolved() {
		return nil
	}
	return t.ClosedAt
}

// Resolve returns the ticket resolved at now. The bool is false when the
// ticket was already closed, in which case t is returned unchanged.
func (t Ticket) Resolve(now time.Time) (Ticket, bool) {
	if !CanTransition(t.State, TicketStateResolved) {
		return t, false
	}
	closedAt := now
	minutes := MinutesBetween(t.CreatedAt, now)
	t.State = TicketStateResolved
	t.ClosedAt = &closedAt
	t.MinutesToResolve = &minutes
	return t, true
}

// Close returns the ticket closed without resolution at now.
func (t Ticket) Close(now time.Time) (Ticket, bool) {
	if !CanTransition(t.State, TicketStateClosed) {
		return t, false
	}
	closedAt := now
	t.State = TicketStateClosed
	t.ClosedAt = &closedAt
	t.MinutesToResolve = nil
	return t, true
}

// MinutesBetween is the elapsed time from start to end in minutes, rounded to 2 decimals.
func MinutesBetween(start, end time.Time) float64 {
	return math.Round(end.Sub(start).Minutes()*100) / 100
}

// TicketFilterState selects tickets for listing.
type TicketFilterState string

const (
	FilterAll      TicketFilterState = "all"
	FilterOpen     TicketFilterState = "open"
	FilterResolved TicketFilterState = "resolved"
	FilterClosed   TicketFilterState = "closed"
)

// ParseTicketFilter accepts the listing filter names used by clients.
// "unresolved" is an alias for open. An empty value means all.
func ParseTicketFilter(raw string) (TicketFilterState, bool) {
	switch raw {
	case "", "all":
		return FilterAll, true
	case "open", "unresolved":
		return FilterOpen, true
	case "resolved":
		return FilterResolved, true
	case "closed":
		return FilterClosed, true
	}
	return "", false
}

// States returns the ticket states matched by the filter; nil means no restriction.
func (f TicketFilterState) States() []TicketState {
	switch f {
	case FilterOpen:
		return []TicketState{TicketStateOpen}
	case FilterResolved:
		return []TicketState{TicketStateResolved}
	case FilterClosed:
		return []TicketState{TicketStateClosed}
	}
	return nil
}

// Matches applies the filter predicate to a ticket.
func (f TicketFilterState) Matches(t Ticket) bool {
	switch f {
	case FilterOpen:
		return !t.IsClosed()
	case FilterResolved:
		return t.IsResolved()
	case FilterClosed:
		return t.IsClosed() && !t.IsResolved()
	}
	return true
}
