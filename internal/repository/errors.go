package repository

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateOpenTicket is returned when the user already has an open ticket.
	ErrDuplicateOpenTicket = errors.New("user already has an open ticket")
	// ErrAlreadyOnDuty is returned when the user already has an active session.
	ErrAlreadyOnDuty = errors.New("user already has an active helpdesk session")
)

const (
	pgUniqueViolation      = "23505"
	openTicketPerUserIndex = "helpdesk_tickets_one_open_per_user"
)

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgUniqueViolation && (constraint == "" || pgErr.ConstraintName == constraint)
}

func mapNoRows(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
