package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/final-year-project/doubtfire-api/internal/domain"
)

// MemoryStore keeps every helpdesk table in process memory. It backs the
// service when no Postgres DSN is configured and is used throughout tests.
type MemoryStore struct {
	mu       sync.Mutex
	seq      map[string]int64
	tickets  map[int64]domain.Ticket
	sessions map[int64]domain.HelpdeskSession
	history  []domain.TicketHistory
	users    map[int64]domain.User
	projects map[int64]domain.Project
	tasks    map[int64]domain.Task
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		seq:      make(map[string]int64),
		tickets:  make(map[int64]domain.Ticket),
		sessions: make(map[int64]domain.HelpdeskSession),
		users:    make(map[int64]domain.User),
		projects: make(map[int64]domain.Project),
		tasks:    make(map[int64]domain.Task),
	}
}

func (m *MemoryStore) next(table string) int64 {
	m.seq[table]++
	return m.seq[table]
}

// PutUser inserts or replaces a user.
func (m *MemoryStore) PutUser(user domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
}

// PutProject inserts or replaces a project.
func (m *MemoryStore) PutProject(project domain.Project) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects[project.ID] = project
}

// PutTask inserts or replaces a task.
func (m *MemoryStore) PutTask(task domain.Task) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[task.ID] = task
}

func (m *MemoryStore) Tickets() TicketRepository              { return memoryTickets{m} }
func (m *MemoryStore) Sessions() SessionRepository            { return memorySessions{m} }
func (m *MemoryStore) Projects() ProjectRepository            { return memoryProjects{m} }
func (m *MemoryStore) Users() UserRepository                  { return memoryUsers{m} }
func (m *MemoryStore) TicketHistory() TicketHistoryRepository { return memoryHistory{m} }

type memoryTickets struct{ m *MemoryStore }

func (r memoryTickets) Create(_ context.Context, ticket *domain.Ticket) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if ticket.State == domain.TicketStateOpen {
		for _, existing := range r.m.tickets {
			if existing.UserID == ticket.UserID && existing.State == domain.TicketStateOpen {
				return ErrDuplicateOpenTicket
			}
		}
	}
	ticket.ID = r.m.next("tickets")
	r.m.tickets[ticket.ID] = *ticket
	return nil
}

func (r memoryTickets) GetByID(_ context.Context, id int64) (*domain.Ticket, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	ticket, ok := r.m.tickets[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &ticket, nil
}

func (r memoryTickets) Transition(_ context.Context, from domain.TicketState, next *domain.Ticket) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	current, ok := r.m.tickets[next.ID]
	if !ok || current.State != from {
		return false, nil
	}
	current.State = next.State
	current.ClosedAt = next.ClosedAt
	current.MinutesToResolve = next.MinutesToResolve
	r.m.tickets[next.ID] = current
	return true, nil
}

func (r memoryTickets) List(_ context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	result := []domain.Ticket{}
	for _, ticket := range r.m.tickets {
		if ticketMatches(ticket, filter) {
			result = append(result, ticket)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (r memoryTickets) Count(ctx context.Context, filter TicketFilter) (int, error) {
	tickets, err := r.List(ctx, filter)
	return len(tickets), err
}

func (r memoryTickets) ResolutionSummary(ctx context.Context, from, to *time.Time) (ResolutionSummary, error) {
	tickets, err := r.List(ctx, TicketFilter{
		States:     []domain.TicketState{domain.TicketStateResolved},
		ClosedFrom: from,
		ClosedTo:   to,
	})
	if err != nil {
		return ResolutionSummary{}, err
	}
	summary := ResolutionSummary{Count: len(tickets)}
	if len(tickets) == 0 {
		return summary, nil
	}
	var total float64
	for _, ticket := range tickets {
		total += *ticket.MinutesToResolve
	}
	avg := total / float64(len(tickets))
	summary.AverageMinutes = &avg
	return summary, nil
}

func ticketMatches(ticket domain.Ticket, filter TicketFilter) bool {
	if len(filter.States) > 0 {
		found := false
		for _, state := range filter.States {
			if ticket.State == state {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.UserID != nil && ticket.UserID != *filter.UserID {
		return false
	}
	if filter.CreatedFrom != nil && ticket.CreatedAt.Before(*filter.CreatedFrom) {
		return false
	}
	if filter.CreatedBefore != nil && !ticket.CreatedAt.Before(*filter.CreatedBefore) {
		return false
	}
	if filter.ClosedFrom != nil && (ticket.ClosedAt == nil || ticket.ClosedAt.Before(*filter.ClosedFrom)) {
		return false
	}
	if filter.ClosedTo != nil && (ticket.ClosedAt == nil || ticket.ClosedAt.After(*filter.ClosedTo)) {
		return false
	}
	return true
}

type memorySessions struct{ m *MemoryStore }

func (r memorySessions) Create(_ context.Context, session *domain.HelpdeskSession, now time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, existing := range r.m.sessions {
		if existing.UserID == session.UserID && existing.ClockedOn(now) {
			return ErrAlreadyOnDuty
		}
	}
	session.ID = r.m.next("sessions")
	r.m.sessions[session.ID] = *session
	return nil
}

func (r memorySessions) GetByID(_ context.Context, id int64) (*domain.HelpdeskSession, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	session, ok := r.m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &session, nil
}

func (r memorySessions) ClockOff(_ context.Context, id int64, now time.Time) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	session, ok := r.m.sessions[id]
	if !ok {
		return false, nil
	}
	off, changed := session.ClockOff(now)
	if changed {
		r.m.sessions[id] = off
	}
	return changed, nil
}

func (r memorySessions) List(_ context.Context, filter SessionFilter) ([]domain.HelpdeskSession, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	result := []domain.HelpdeskSession{}
	for _, session := range r.m.sessions {
		if filter.UserID != nil && session.UserID != *filter.UserID {
			continue
		}
		if filter.ActiveAt != nil && !session.ClockedOn(*filter.ActiveAt) {
			continue
		}
		if filter.ClockOnFrom != nil && session.ClockOnTime.Before(*filter.ClockOnFrom) {
			continue
		}
		if filter.ClockOffTo != nil && session.ClockOffTime.After(*filter.ClockOffTo) {
			continue
		}
		result = append(result, session)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].ClockOnTime.Equal(result[j].ClockOnTime) {
			return result[i].ID < result[j].ID
		}
		return result[i].ClockOnTime.Before(result[j].ClockOnTime)
	})
	return result, nil
}

type memoryProjects struct{ m *MemoryStore }

func (r memoryProjects) GetByID(_ context.Context, id int64) (*domain.Project, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	project, ok := r.m.projects[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &project, nil
}

func (r memoryProjects) GetTask(_ context.Context, id int64) (*domain.Task, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	task, ok := r.m.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &task, nil
}

func (r memoryProjects) FindTaskByDefinition(_ context.Context, projectID, taskDefinitionID int64) (*domain.Task, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, task := range r.m.tasks {
		if task.ProjectID == projectID && task.TaskDefinitionID == taskDefinitionID {
			return &task, nil
		}
	}
	return nil, ErrNotFound
}

type memoryUsers struct{ m *MemoryStore }

func (r memoryUsers) GetByID(_ context.Context, id int64) (*domain.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	user, ok := r.m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &user, nil
}

func (r memoryUsers) ListByIDs(_ context.Context, ids []int64) ([]domain.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	result := []domain.User{}
	for _, id := range ids {
		if user, ok := r.m.users[id]; ok {
			result = append(result, user)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

type memoryHistory struct{ m *MemoryStore }

func (r memoryHistory) Create(_ context.Context, history *domain.TicketHistory) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	history.ID = r.m.next("history")
	r.m.history = append(r.m.history, *history)
	return nil
}

func (r memoryHistory) ListByTicket(_ context.Context, ticketID int64) ([]domain.TicketHistory, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	result := []domain.TicketHistory{}
	for _, entry := range r.m.history {
		if entry.TicketID == ticketID {
			result = append(result, entry)
		}
	}
	return result, nil
}
