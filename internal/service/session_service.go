package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/final-year-project/doubtfire-api/internal/clock"
	"github.com/final-year-project/doubtfire-api/internal/domain"
	"github.com/final-year-project/doubtfire-api/internal/events"
	"github.com/final-year-project/doubtfire-api/internal/observability"
	"github.com/final-year-project/doubtfire-api/internal/repository"
	"github.com/final-year-project/doubtfire-api/pkg/util/errorutil"
)

// SessionService tracks staff clocking on and off helpdesk duty.
type SessionService struct {
	sessions   repository.SessionRepository
	users      repository.UserRepository
	dispatcher events.Dispatcher
	clock      clock.Clock
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// SessionDependencies bundles collaborators for the session service.
type SessionDependencies struct {
	SessionRepo repository.SessionRepository
	UserRepo    repository.UserRepository
	Dispatcher  events.Dispatcher
	Clock       clock.Clock
	Metrics     *observability.Metrics
	Logger      *zap.Logger
}

// NewSessionService constructs the service.
func NewSessionService(deps SessionDependencies) *SessionService {
	if deps.Clock == nil {
		deps.Clock = clock.System()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &SessionService{
		sessions:   deps.SessionRepo,
		users:      deps.UserRepo,
		dispatcher: deps.Dispatcher,
		clock:      deps.Clock,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
	}
}

// User loads the staff member a session is for.
func (s *SessionService) User(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "user")
	}
	return user, nil
}

// ClockOn starts a session for staff that runs until clockOffTime.
func (s *SessionService) ClockOn(ctx context.Context, actorID int64, staff *domain.User, clockOffTime time.Time) (*domain.HelpdeskSession, error) {
	if !staff.Role.IsStaff() {
		return nil, errorutil.NewValidationError("students cannot clock on to the helpdesk", map[string]any{
			"user_id": staff.ID,
		})
	}
	now := s.clock.Now()
	if !clockOffTime.After(now) {
		return nil, errorutil.NewValidationError("clock off time must be in the future", map[string]any{
			"clock_off_time": "must be after the current time",
		})
	}

	session := &domain.HelpdeskSession{
		UserID:       staff.ID,
		ClockOnTime:  now,
		ClockOffTime: clockOffTime.UTC(),
		CreatedAt:    now,
	}
	if err := s.sessions.Create(ctx, session, now); err != nil {
		if errors.Is(err, repository.ErrAlreadyOnDuty) {
			return nil, errorutil.NewAlreadyOnDuty(staff.Username)
		}
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.publishSessionEvent(ctx, events.EventSessionClockedOn, actorID, *session)
	return session, nil
}

// ClockOff ends a running session now. Sessions already over are returned unchanged.
func (s *SessionService) ClockOff(ctx context.Context, actorID int64, session *domain.HelpdeskSession) (*domain.HelpdeskSession, error) {
	now := s.clock.Now()
	if !session.ClockedOn(now) {
		return session, nil
	}
	changed, err := s.sessions.ClockOff(ctx, session.ID, now)
	if err != nil {
		return nil, fmt.Errorf("clock off session %d: %w", session.ID, err)
	}
	updated, err := s.Find(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	if changed {
		s.publishSessionEvent(ctx, events.EventSessionClockedOff, actorID, *updated)
	}
	return updated, nil
}

// Find fetches a session by id.
func (s *SessionService) Find(ctx context.Context, id int64) (*domain.HelpdeskSession, error) {
	session, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "helpdesk session")
	}
	return session, nil
}

// List returns sessions, optionally for one user and only those still running.
func (s *SessionService) List(ctx context.Context, userID *int64, activeOnly bool) ([]domain.HelpdeskSession, error) {
	filter := repository.SessionFilter{UserID: userID}
	if activeOnly {
		now := s.clock.Now()
		filter.ActiveAt = &now
	}
	return s.sessions.List(ctx, filter)
}

// ActiveSessions returns every session whose clock off time is still ahead.
func (s *SessionService) ActiveSessions(ctx context.Context) ([]domain.HelpdeskSession, error) {
	return s.List(ctx, nil, true)
}

// StaffOnDutyNow returns the distinct users of active sessions ordered by id.
func (s *SessionService) StaffOnDutyNow(ctx context.Context) ([]domain.User, error) {
	active, err := s.ActiveSessions(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[int64]struct{}, len(active))
	ids := make([]int64, 0, len(active))
	for _, session := range active {
		if _, ok := seen[session.UserID]; ok {
			continue
		}
		seen[session.UserID] = struct{}{}
		ids = append(ids, session.UserID)
	}
	if len(ids) == 0 {
		return []domain.User{}, nil
	}
	users, err := s.users.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

// SessionsBetween returns sessions that started at or after from and ended by to.
// Without from, every session ended by to is returned.
func (s *SessionService) SessionsBetween(ctx context.Context, from *time.Time, to time.Time) ([]domain.HelpdeskSession, error) {
	return s.sessions.List(ctx, repository.SessionFilter{
		ClockOnFrom: from,
		ClockOffTo:  &to,
	})
}

// StatsByStaff averages session length in hours per staff member.
func (s *SessionService) StatsByStaff(ctx context.Context, from *time.Time, to time.Time) (map[int64]domain.StaffSessionStats, error) {
	sessions, err := s.SessionsBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}
	totals := map[int64]float64{}
	stats := map[int64]domain.StaffSessionStats{}
	for _, session := range sessions {
		totals[session.UserID] += session.Duration().Hours()
		entry := stats[session.UserID]
		entry.Count++
		stats[session.UserID] = entry
	}
	for userID, entry := range stats {
		entry.AverageDurationHours = math.Round(totals[userID]/float64(entry.Count)*100) / 100
		stats[userID] = entry
	}
	return stats, nil
}

func (s *SessionService) publishSessionEvent(ctx context.Context, eventType events.EventType, actorID int64, session domain.HelpdeskSession) {
	publish(ctx, s.dispatcher, s.clock, s.metrics, events.Event{
		Type:      eventType,
		SessionID: int64Ptr(session.ID),
		ActorID:   int64Ptr(actorID),
		Payload: events.SessionPayload{
			UserID:       session.UserID,
			ClockOnTime:  session.ClockOnTime,
			ClockOffTime: session.ClockOffTime,
		},
	})
}
