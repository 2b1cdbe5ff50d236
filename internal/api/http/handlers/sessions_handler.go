package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/final-year-project/doubtfire-api/internal/api/dto"
	"github.com/final-year-project/doubtfire-api/internal/auth"
	"github.com/final-year-project/doubtfire-api/internal/authz"
	"github.com/final-year-project/doubtfire-api/internal/clock"
	"github.com/final-year-project/doubtfire-api/internal/service"
)

// SessionsHandler serves helpdesk duty endpoints.
type SessionsHandler struct {
	service *service.SessionService
	gate    *authz.Gate
	clock   clock.Clock
}

// NewSessionsHandler constructs handler.
func NewSessionsHandler(sessionService *service.SessionService, gate *authz.Gate, c clock.Clock) *SessionsHandler {
	if c == nil {
		c = clock.System()
	}
	return &SessionsHandler{service: sessionService, gate: gate, clock: c}
}

// ClockOn POST /helpdesk/sessions.
func (h *SessionsHandler) ClockOn(c *fiber.Ctx) error {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	var req dto.CreateSessionRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	ctx := c.UserContext()
	staff := user
	if req.UserID != nil && *req.UserID != user.ID {
		if err := h.gate.Authorize(user, authz.SessionType, authz.ActionCreateSessionForOthers); err != nil {
			return err
		}
		if staff, err = h.service.User(ctx, *req.UserID); err != nil {
			return err
		}
	} else if err := h.gate.Authorize(user, authz.SessionType, authz.ActionCreateSession); err != nil {
		return err
	}

	session, err := h.service.ClockOn(ctx, user.ID, staff, req.ClockOffTime.UTC())
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusCreated, dto.NewSessionResponse(session, h.clock.Now()))
}

// ClockOff DELETE /helpdesk/sessions/:id.
func (h *SessionsHandler) ClockOff(c *fiber.Ctx) error {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	ctx := c.UserContext()
	session, err := h.service.Find(ctx, id)
	if err != nil {
		return err
	}
	if err := h.gate.Authorize(user, authz.Session(session), authz.ActionClockOffSession); err != nil {
		return err
	}
	session, err = h.service.ClockOff(ctx, user.ID, session)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, dto.NewSessionResponse(session, h.clock.Now()))
}

// ListSessions GET /helpdesk/sessions.
func (h *SessionsHandler) ListSessions(c *fiber.Ctx) error {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	var q dto.SessionListQuery
	if err := parseQuery(c, &q); err != nil {
		return err
	}
	if err := h.gate.Authorize(user, authz.SessionType, authz.ActionGetSessions); err != nil {
		return err
	}

	var userID *int64
	if q.UserID != 0 {
		userID = &q.UserID
	}
	sessions, err := h.service.List(c.UserContext(), userID, q.IsActive)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, dto.NewSessionList(sessions, h.clock.Now()))
}

// OnDuty GET /helpdesk/sessions/tutors.
func (h *SessionsHandler) OnDuty(c *fiber.Ctx) error {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	if err := h.gate.Authorize(user, authz.SessionType, authz.ActionGetAllCurrentSessionUsers); err != nil {
		return err
	}
	staff, err := h.service.StaffOnDutyNow(c.UserContext())
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, dto.NewUserList(staff))
}
