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

// SessionFilter narrows session queries. Nil fields are not applied.
type SessionFilter struct {
	UserID      *int64
	ActiveAt    *time.Time // clock_off_time > ActiveAt
	ClockOnFrom *time.Time // clock_on_time >= ClockOnFrom
	ClockOffTo  *time.Time // clock_off_time <= ClockOffTo
}

// SessionRepository persists helpdesk sessions.
type SessionRepository interface {
	// Create inserts the session unless its user already has one active at now.
	Create(ctx context.Context, session *domain.HelpdeskSession, now time.Time) error
	GetByID(ctx context.Context, id int64) (*domain.HelpdeskSession, error)
	// ClockOff sets clock_off_time to now if the session is still running at now.
	ClockOff(ctx context.Context, id int64, now time.Time) (bool, error)
	List(ctx context.Context, filter SessionFilter) ([]domain.HelpdeskSession, error)
}

type sessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository builds repository.
func NewSessionRepository(pool *pgxpool.Pool) SessionRepository {
	return &sessionRepository{pool: pool}
}

const sessionColumns = `id, user_id, clock_on_time, clock_off_time, created_at`

func (r *sessionRepository) Create(ctx context.Context, session *domain.HelpdeskSession, now time.Time) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// Serialises clock-on attempts for the same user until commit.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, session.UserID); err != nil {
		return fmt.Errorf("lock user sessions: %w", err)
	}

	var active bool
	if err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM helpdesk_sessions WHERE user_id=$1 AND clock_off_time > $2)`,
		session.UserID, now,
	).Scan(&active); err != nil {
		return err
	}
	if active {
		return ErrAlreadyOnDuty
	}

	const query = `
        INSERT INTO helpdesk_sessions (user_id, clock_on_time, clock_off_time, created_at)
        VALUES ($1,$2,$3,$4)
        RETURNING id`
	if err := tx.QueryRow(ctx, query,
		session.UserID,
		session.ClockOnTime,
		session.ClockOffTime,
		session.CreatedAt,
	).Scan(&session.ID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *sessionRepository) GetByID(ctx context.Context, id int64) (*domain.HelpdeskSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM helpdesk_sessions WHERE id=$1`
	session, err := scanSession(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapNoRows(err)
	}
	return session, nil
}

func (r *sessionRepository) ClockOff(ctx context.Context, id int64, now time.Time) (bool, error) {
	cmd, err := r.pool.Exec(ctx,
		`UPDATE helpdesk_sessions SET clock_off_time=$1 WHERE id=$2 AND clock_off_time > $1`,
		now, id)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *sessionRepository) List(ctx context.Context, filter SessionFilter) ([]domain.HelpdeskSession, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		clauses = append(clauses, fmt.Sprintf("user_id=$%d", len(args)))
	}
	if filter.ActiveAt != nil {
		args = append(args, *filter.ActiveAt)
		clauses = append(clauses, fmt.Sprintf("clock_off_time > $%d", len(args)))
	}
	if filter.ClockOnFrom != nil {
		args = append(args, *filter.ClockOnFrom)
		clauses = append(clauses, fmt.Sprintf("clock_on_time >= $%d", len(args)))
	}
	if filter.ClockOffTo != nil {
		args = append(args, *filter.ClockOffTo)
		clauses = append(clauses, fmt.Sprintf("clock_off_time <= $%d", len(args)))
	}

	query := fmt.Sprintf(`SELECT %s FROM helpdesk_sessions WHERE %s ORDER BY clock_on_time ASC, id ASC`,
		sessionColumns, strings.Join(clauses, " AND "))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.HelpdeskSession{}
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *session)
	}
	return result, rows.Err()
}

func scanSession(row pgx.Row) (*domain.HelpdeskSession, error) {
	var session domain.HelpdeskSession
	if err := row.Scan(
		&session.ID,
		&session.UserID,
		&session.ClockOnTime,
		&session.ClockOffTime,
		&session.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &session, nil
}
