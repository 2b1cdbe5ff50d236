package service

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/final-year-project/doubtfire-api/internal/clock"
	"github.com/final-year-project/doubtfire-api/internal/domain"
	"github.com/final-year-project/doubtfire-api/internal/events"
	"github.com/final-year-project/doubtfire-api/internal/observability"
	"github.com/final-year-project/doubtfire-api/internal/repository"
	"github.com/final-year-project/doubtfire-api/pkg/util/errorutil"
)

// TicketService coordinates ticket workflows.
type TicketService struct {
	tickets    repository.TicketRepository
	projects   repository.ProjectRepository
	history    repository.TicketHistoryRepository
	dispatcher events.Dispatcher
	clock      clock.Clock
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// TicketDependencies bundles repositories for ticket service.
type TicketDependencies struct {
	TicketRepo  repository.TicketRepository
	ProjectRepo repository.ProjectRepository
	HistoryRepo repository.TicketHistoryRepository
	Dispatcher  events.Dispatcher
	Clock       clock.Clock
	Metrics     *observability.Metrics
	Logger      *zap.Logger
}

// TicketCreateInput describes ticket creation payload. TaskID wins over
// TaskDefinitionID when both are given.
type TicketCreateInput struct {
	TaskID           *int64
	TaskDefinitionID *int64
	Description      string
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	if deps.Clock == nil {
		deps.Clock = clock.System()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		projects:   deps.ProjectRepo,
		history:    deps.HistoryRepo,
		dispatcher: deps.Dispatcher,
		clock:      deps.Clock,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
	}
}

// Project loads the project a ticket would be raised against.
func (s *TicketService) Project(ctx context.Context, id int64) (*domain.Project, error) {
	project, err := s.projects.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "project")
	}
	return project, nil
}

// Create opens a ticket for the project's student.
func (s *TicketService) Create(ctx context.Context, actorID int64, project *domain.Project, input TicketCreateInput) (*domain.Ticket, error) {
	if utf8.RuneCountInString(input.Description) > domain.MaxDescriptionLength {
		return nil, errorutil.NewValidationError("description is too long", map[string]any{
			"description": fmt.Sprintf("must be at most %d characters", domain.MaxDescriptionLength),
		})
	}

	task, err := s.resolveTask(ctx, project, input)
	if err != nil {
		return nil, err
	}

	open, err := s.HasOpenTicket(ctx, project.UserID)
	if err != nil {
		return nil, err
	}
	if open {
		return nil, errorutil.NewDuplicateOpenTicket(project.UserID)
	}

	ticket := &domain.Ticket{
		ProjectID:   project.ID,
		UserID:      project.UserID,
		Description: input.Description,
		State:       domain.TicketStateOpen,
		CreatedAt:   s.clock.Now(),
	}
	if task != nil {
		ticket.TaskID = int64Ptr(task.ID)
		ticket.TaskDefinitionID = int64Ptr(task.TaskDefinitionID)
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		if errors.Is(err, repository.ErrDuplicateOpenTicket) {
			return nil, errorutil.NewDuplicateOpenTicket(project.UserID)
		}
		return nil, fmt.Errorf("create ticket: %w", err)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: int64Ptr(ticket.ID),
		ActorID:  int64Ptr(actorID),
		Payload: events.TicketCreatedPayload{
			ProjectID:        ticket.ProjectID,
			UserID:           ticket.UserID,
			TaskDefinitionID: ticket.TaskDefinitionID,
		},
	})
	return ticket, nil
}

func (s *TicketService) resolveTask(ctx context.Context, project *domain.Project, input TicketCreateInput) (*domain.Task, error) {
	switch {
	case input.TaskID != nil:
		task, err := s.projects.GetTask(ctx, *input.TaskID)
		if err != nil {
			return nil, mapRepoError(err, "task")
		}
		if task.ProjectID != project.ID {
			return nil, errorutil.NewInvalidReference("task does not belong to project", map[string]any{
				"task_id":    task.ID,
				"project_id": project.ID,
			})
		}
		return task, nil
	case input.TaskDefinitionID != nil:
		task, err := s.projects.FindTaskByDefinition(ctx, project.ID, *input.TaskDefinitionID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errorutil.NewInvalidReference("project has no task for that task definition", map[string]any{
				"task_definition_id": *input.TaskDefinitionID,
				"project_id":         project.ID,
			})
		}
		if err != nil {
			return nil, err
		}
		return task, nil
	}
	return nil, nil
}

// Find fetches a ticket by id.
func (s *TicketService) Find(ctx context.Context, id int64) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "ticket")
	}
	return ticket, nil
}

// Resolve marks the ticket resolved. Already closed tickets come back unchanged.
func (s *TicketService) Resolve(ctx context.Context, actorID int64, ticket *domain.Ticket) (*domain.Ticket, error) {
	return s.transition(ctx, actorID, ticket, domain.Ticket.Resolve, events.EventTicketResolved)
}

// Close closes the ticket without resolving it.
func (s *TicketService) Close(ctx context.Context, actorID int64, ticket *domain.Ticket) (*domain.Ticket, error) {
	return s.transition(ctx, actorID, ticket, domain.Ticket.Close, events.EventTicketClosed)
}

func (s *TicketService) transition(
	ctx context.Context,
	actorID int64,
	current *domain.Ticket,
	apply func(domain.Ticket, time.Time) (domain.Ticket, bool),
	eventType events.EventType,
) (*domain.Ticket, error) {
	next, changed := apply(*current, s.clock.Now())
	if !changed {
		return current, nil
	}

	applied, err := s.tickets.Transition(ctx, current.State, &next)
	if err != nil {
		return nil, fmt.Errorf("transition ticket %d: %w", current.ID, err)
	}
	if !applied {
		// Someone else moved the ticket first; report what they left.
		return s.Find(ctx, current.ID)
	}

	s.recordHistory(ctx, actorID, current.State, next)
	s.publishEvent(ctx, events.Event{
		Type:     eventType,
		TicketID: int64Ptr(next.ID),
		ActorID:  int64Ptr(actorID),
		Payload: events.TicketStateChangedPayload{
			OldState:         current.State,
			NewState:         next.State,
			MinutesToResolve: next.MinutesToResolve,
		},
	})
	return &next, nil
}

// ListByState lists tickets matching filter, optionally for one user, oldest first.
func (s *TicketService) ListByState(ctx context.Context, filter domain.TicketFilterState, userID *int64) ([]domain.Ticket, error) {
	return s.tickets.List(ctx, repository.TicketFilter{
		States: filter.States(),
		UserID: userID,
	})
}

// HasOpenTicket reports whether the user has an open ticket.
func (s *TicketService) HasOpenTicket(ctx context.Context, userID int64) (bool, error) {
	count, err := s.tickets.Count(ctx, repository.TicketFilter{
		States: domain.FilterOpen.States(),
		UserID: &userID,
	})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// History returns the transition audit trail of a ticket.
func (s *TicketService) History(ctx context.Context, ticketID int64) ([]domain.TicketHistory, error) {
	if _, err := s.Find(ctx, ticketID); err != nil {
		return nil, err
	}
	return s.history.ListByTicket(ctx, ticketID)
}

func (s *TicketService) recordHistory(ctx context.Context, actorID int64, oldState domain.TicketState, ticket domain.Ticket) {
	if s.history == nil {
		return
	}
	entry := &domain.TicketHistory{
		TicketID:  ticket.ID,
		ActorID:   int64Ptr(actorID),
		OldState:  oldState,
		NewState:  ticket.State,
		CreatedAt: *ticket.ClosedAt,
	}
	if err := s.history.Create(ctx, entry); err != nil {
		s.logger.Error("record ticket history failed", zap.Int64("ticket_id", ticket.ID), zap.Error(err))
	}
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	publish(ctx, s.dispatcher, s.clock, s.metrics, event)
}

// publish stamps and dispatches event. Handler failures are already logged by
// the dispatcher and only counted here so the write that raised the event still succeeds.
func publish(ctx context.Context, dispatcher events.Dispatcher, c clock.Clock, metrics *observability.Metrics, event events.Event) {
	if dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = c.Now()
	}
	if err := dispatcher.Publish(ctx, event); err != nil {
		metrics.RecordEventFailure(string(event.Type))
	}
}
