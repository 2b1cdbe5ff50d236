package dto

import (
	"time"

	"github.com/final-year-project/doubtfire-api/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	ProjectID        int64  `json:"project_id" validate:"required,gt=0"`
	TaskID           *int64 `json:"task_id" validate:"omitempty,gt=0"`
	TaskDefinitionID *int64 `json:"task_definition_id" validate:"omitempty,gt=0"`
	Description      string `json:"description" validate:"max=2048"`
}

// TicketListQuery captures listing filters.
type TicketListQuery struct {
	UserID int64  `query:"user_id" validate:"omitempty,gt=0"`
	Filter string `query:"filter" validate:"omitempty,oneof=all resolved unresolved open closed"`
}

// TicketResponse is the wire form of a ticket.
type TicketResponse struct {
	ID               int64              `json:"id"`
	ProjectID        int64              `json:"project_id"`
	TaskID           *int64             `json:"task_id"`
	TaskDefinitionID *int64             `json:"task_definition_id"`
	UserID           int64              `json:"user_id"`
	Description      string             `json:"description"`
	State            domain.TicketState `json:"state"`
	IsClosed         bool               `json:"is_closed"`
	IsResolved       bool               `json:"is_resolved"`
	CreatedAt        time.Time          `json:"created_at"`
	ClosedAt         *time.Time         `json:"closed_at"`
	ResolvedAt       *time.Time         `json:"resolved_at"`
	MinutesToResolve *float64           `json:"minutes_to_resolve"`
}

// NewTicketResponse maps a ticket.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:               t.ID,
		ProjectID:        t.ProjectID,
		TaskID:           t.TaskID,
		TaskDefinitionID: t.TaskDefinitionID,
		UserID:           t.UserID,
		Description:      t.Description,
		State:            t.State,
		IsClosed:         t.IsClosed(),
		IsResolved:       t.IsResolved(),
		CreatedAt:        t.CreatedAt,
		ClosedAt:         t.ClosedAt,
		ResolvedAt:       t.ResolvedAt(),
		MinutesToResolve: t.MinutesToResolve,
	}
}

// NewTicketList maps tickets preserving order.
func NewTicketList(tickets []domain.Ticket) []TicketResponse {
	out := make([]TicketResponse, 0, len(tickets))
	for i := range tickets {
		out = append(out, NewTicketResponse(&tickets[i]))
	}
	return out
}

// TicketHistoryResponse is one audit entry.
type TicketHistoryResponse struct {
	ID        int64              `json:"id"`
	TicketID  int64              `json:"ticket_id"`
	ActorID   *int64             `json:"actor_id"`
	OldState  domain.TicketState `json:"old_state"`
	NewState  domain.TicketState `json:"new_state"`
	CreatedAt time.Time          `json:"created_at"`
}

// NewTicketHistoryList maps audit entries.
func NewTicketHistoryList(entries []domain.TicketHistory) []TicketHistoryResponse {
	out := make([]TicketHistoryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, TicketHistoryResponse{
			ID:        e.ID,
			TicketID:  e.TicketID,
			ActorID:   e.ActorID,
			OldState:  e.OldState,
			NewState:  e.NewState,
			CreatedAt: e.CreatedAt,
		})
	}
	return out
}
