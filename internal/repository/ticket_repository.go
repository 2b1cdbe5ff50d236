package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/final-year-project/doubtfire-api/internal/domain"
)

// TicketFilter narrows ticket queries. Nil fields are not applied.
type TicketFilter struct {
	States        []domain.TicketState
	UserID        *int64
	CreatedFrom   *time.Time // inclusive
	CreatedBefore *time.Time // exclusive
	ClosedFrom    *time.Time // inclusive
	ClosedTo      *time.Time // inclusive
}

// ResolutionSummary aggregates resolved tickets in a window.
type ResolutionSummary struct {
	Count          int
	AverageMinutes *float64
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	// Transition stores next only if the stored ticket is still in state from.
	Transition(ctx context.Context, from domain.TicketState, next *domain.Ticket) (bool, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	Count(ctx context.Context, filter TicketFilter) (int, error)
	// ResolutionSummary counts resolved tickets closed within [from, to] and
	// averages their minutes to resolve. Nil bounds are open.
	ResolutionSummary(ctx context.Context, from, to *time.Time) (ResolutionSummary, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, project_id, task_id, task_definition_id, user_id, description,
               state, created_at, closed_at, minutes_to_resolve`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO helpdesk_tickets (project_id, task_id, task_definition_id, user_id, description, state, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id`
	err := r.pool.QueryRow(ctx, query,
		ticket.ProjectID,
		ticket.TaskID,
		ticket.TaskDefinitionID,
		ticket.UserID,
		ticket.Description,
		ticket.State,
		ticket.CreatedAt,
	).Scan(&ticket.ID)
	if isUniqueViolation(err, openTicketPerUserIndex) {
		return ErrDuplicateOpenTicket
	}
	return err
}

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM helpdesk_tickets WHERE id=$1`
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapNoRows(err)
	}
	return ticket, nil
}

func (r *ticketRepository) Transition(ctx context.Context, from domain.TicketState, next *domain.Ticket) (bool, error) {
	const query = `
        UPDATE helpdesk_tickets SET state=$1, closed_at=$2, minutes_to_resolve=$3
        WHERE id=$4 AND state=$5`
	cmd, err := r.pool.Exec(ctx, query,
		next.State,
		next.ClosedAt,
		next.MinutesToResolve,
		next.ID,
		from,
	)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	where, args := buildTicketWhere(filter)
	query := fmt.Sprintf(`SELECT %s FROM helpdesk_tickets WHERE %s ORDER BY created_at ASC, id ASC`, ticketColumns, where)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) Count(ctx context.Context, filter TicketFilter) (int, error) {
	where, args := buildTicketWhere(filter)
	var count int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM helpdesk_tickets WHERE `+where, args...).Scan(&count); err != nil {
		return 0, err
	}
	return int(count), nil
}

func (r *ticketRepository) ResolutionSummary(ctx context.Context, from, to *time.Time) (ResolutionSummary, error) {
	where, args := buildTicketWhere(TicketFilter{
		States:     []domain.TicketState{domain.TicketStateResolved},
		ClosedFrom: from,
		ClosedTo:   to,
	})
	var (
		count int64
		avg   *float64
	)
	query := `SELECT COUNT(*), AVG(minutes_to_resolve) FROM helpdesk_tickets WHERE ` + where
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&count, &avg); err != nil {
		return ResolutionSummary{}, err
	}
	return ResolutionSummary{Count: int(count), AverageMinutes: avg}, nil
}

func buildTicketWhere(filter TicketFilter) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	if len(filter.States) > 0 {
		placeholders := make([]string, len(filter.States))
		for i, state := range filter.States {
			args = append(args, state)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("state IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		clauses = append(clauses, fmt.Sprintf("user_id=$%d", len(args)))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedBefore != nil {
		args = append(args, *filter.CreatedBefore)
		clauses = append(clauses, fmt.Sprintf("created_at < $%d", len(args)))
	}
	if filter.ClosedFrom != nil {
		args = append(args, *filter.ClosedFrom)
		clauses = append(clauses, fmt.Sprintf("closed_at >= $%d", len(args)))
	}
	if filter.ClosedTo != nil {
		args = append(args, *filter.ClosedTo)
		clauses = append(clauses, fmt.Sprintf("closed_at <= $%d", len(args)))
	}
	return strings.Join(clauses, " AND "), args
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.ProjectID,
		&ticket.TaskID,
		&ticket.TaskDefinitionID,
		&ticket.UserID,
		&ticket.Description,
		&ticket.State,
		&ticket.CreatedAt,
		&ticket.ClosedAt,
		&ticket.MinutesToResolve,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	result := []domain.Ticket{}
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}
