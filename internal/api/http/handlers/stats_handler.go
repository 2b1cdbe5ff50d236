package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/final-year-project/doubtfire-api/internal/api/dto"
	"github.com/final-year-project/doubtfire-api/internal/auth"
	"github.com/final-year-project/doubtfire-api/internal/authz"
	"github.com/final-year-project/doubtfire-api/internal/domain"
	"github.com/final-year-project/doubtfire-api/internal/service"
	apperrors "github.com/final-year-project/doubtfire-api/pkg/util/errorutil"
)

// StatsHandler serves helpdesk statistics.
type StatsHandler struct {
	service *service.StatsService
	gate    *authz.Gate
}

// NewStatsHandler constructs handler.
func NewStatsHandler(statsService *service.StatsService, gate *authz.Gate) *StatsHandler {
	return &StatsHandler{service: statsService, gate: gate}
}

// TicketStats GET /helpdesk/stats/tickets.
func (h *StatsHandler) TicketStats(c *fiber.Ctx) error {
	if _, err := h.authorize(c); err != nil {
		return err
	}
	var q dto.StatsQuery
	if err := parseQuery(c, &q); err != nil {
		return err
	}
	from, to := q.Window()
	end := h.service.Now()
	if to != nil {
		end = *to
	}
	if from != nil && end.Before(*from) {
		return apperrors.NewValidationError("from must not be after to", nil)
	}

	stats, err := h.service.TicketStats(c.UserContext(), from, end)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, dto.NewTicketStatsResponse(stats))
}

// Dashgraph GET /helpdesk/stats/dashgraph.
func (h *StatsHandler) Dashgraph(c *fiber.Ctx) error {
	if _, err := h.authorize(c); err != nil {
		return err
	}
	series, err := h.service.Dashboard(c.UserContext())
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, dto.NewGraphData(series))
}

// Report GET /helpdesk/stats. Session stats are included only for callers allowed to see them.
func (h *StatsHandler) Report(c *fiber.Ctx) error {
	user, err := h.authorize(c)
	if err != nil {
		return err
	}
	var q dto.StatsQuery
	if err := parseQuery(c, &q); err != nil {
		return err
	}
	from, to := q.Window()

	report, err := h.service.Report(c.UserContext(), service.ReportInput{
		From:            from,
		To:              to,
		IntervalSeconds: q.Interval,
		IncludeSessions: h.gate.Can(user, authz.SessionType, authz.ActionGetStats),
	})
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, dto.NewReportResponse(report))
}

func (h *StatsHandler) authorize(c *fiber.Ctx) (*domain.User, error) {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return nil, err
	}
	if err := h.gate.Authorize(user, authz.TicketType, authz.ActionGetStats); err != nil {
		return nil, err
	}
	return user, nil
}
