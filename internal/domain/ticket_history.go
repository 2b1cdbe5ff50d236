package domain

import "time"

// TicketHistory is an immutable audit trail entry for a state change.
type TicketHistory struct {
	ID        int64
	TicketID  int64
	ActorID   *int64
	OldState  TicketState
	NewState  TicketState
	CreatedAt time.Time
}
