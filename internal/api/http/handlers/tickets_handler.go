package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/final-year-project/doubtfire-api/internal/api/dto"
	"github.com/final-year-project/doubtfire-api/internal/auth"
	"github.com/final-year-project/doubtfire-api/internal/authz"
	"github.com/final-year-project/doubtfire-api/internal/domain"
	"github.com/final-year-project/doubtfire-api/internal/service"
)

// TicketsHandler serves the helpdesk ticket endpoints.
type TicketsHandler struct {
	service *service.TicketService
	gate    *authz.Gate
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService, gate *authz.Gate) *TicketsHandler {
	return &TicketsHandler{service: ticketService, gate: gate}
}

// CreateTicket POST /helpdesk/tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	ctx := c.UserContext()
	project, err := h.service.Project(ctx, req.ProjectID)
	if err != nil {
		return err
	}
	if err := h.gate.Authorize(user, authz.Project(project), authz.ActionCreateTicket); err != nil {
		return err
	}

	ticket, err := h.service.Create(ctx, user.ID, project, service.TicketCreateInput{
		TaskID:           req.TaskID,
		TaskDefinitionID: req.TaskDefinitionID,
		Description:      req.Description,
	})
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusCreated, dto.NewTicketResponse(ticket))
}

// ListTickets GET /helpdesk/tickets. Students without a user_id see their own tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	var q dto.TicketListQuery
	if err := parseQuery(c, &q); err != nil {
		return err
	}
	filter, _ := domain.ParseTicketFilter(q.Filter)

	var userID *int64
	switch {
	case q.UserID != 0:
		userID = &q.UserID
	case user.Role == domain.RoleStudent:
		userID = &user.ID
	}

	action := authz.ActionGetTickets
	if userID != nil && *userID == user.ID {
		action = authz.ActionGetOwnTickets
	}
	if err := h.gate.Authorize(user, authz.TicketType, action); err != nil {
		return err
	}

	tickets, err := h.service.ListByState(c.UserContext(), filter, userID)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, dto.NewTicketList(tickets))
}

// GetTicket GET /helpdesk/tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	ticket, err := h.authorizedTicket(c, authz.ActionGetDetails)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, dto.NewTicketResponse(ticket))
}

// TicketHistory GET /helpdesk/tickets/:id/history.
func (h *TicketsHandler) TicketHistory(c *fiber.Ctx) error {
	ticket, err := h.authorizedTicket(c, authz.ActionGetHistory)
	if err != nil {
		return err
	}
	entries, err := h.service.History(c.UserContext(), ticket.ID)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, dto.NewTicketHistoryList(entries))
}

// CloseTicket DELETE /helpdesk/tickets/:id. resolve=true resolves instead of closing.
func (h *TicketsHandler) CloseTicket(c *fiber.Ctx) error {
	resolve := c.QueryBool("resolve", false)
	action := authz.ActionCloseTicket
	if resolve {
		action = authz.ActionResolveTicket
	}
	ticket, err := h.authorizedTicket(c, action)
	if err != nil {
		return err
	}

	user, _ := auth.UserFromContext(c)
	if resolve {
		ticket, err = h.service.Resolve(c.UserContext(), user.ID, ticket)
	} else {
		ticket, err = h.service.Close(c.UserContext(), user.ID, ticket)
	}
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, dto.NewTicketResponse(ticket))
}

func (h *TicketsHandler) authorizedTicket(c *fiber.Ctx, action authz.Action) (*domain.Ticket, error) {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return nil, err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return nil, err
	}
	ticket, err := h.service.Find(c.UserContext(), id)
	if err != nil {
		return nil, err
	}
	if err := h.gate.Authorize(user, authz.Ticket(ticket), action); err != nil {
		return nil, err
	}
	return ticket, nil
}
