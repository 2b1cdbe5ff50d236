package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/final-year-project/doubtfire-api/internal/api/http/handlers"
	"github.com/final-year-project/doubtfire-api/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	Sessions       *handlers.SessionsHandler
	Stats          *handlers.StatsHandler
	AuthMiddleware *auth.AuthMiddleware
	RateLimiter    fiber.Handler
	Metrics        fiber.Handler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", cfg.Metrics)
	}

	limit := cfg.RateLimiter
	if limit == nil {
		limit = func(c *fiber.Ctx) error { return c.Next() }
	}

	helpdesk := app.Group("/helpdesk", cfg.AuthMiddleware.Handle)

	tickets := helpdesk.Group("/tickets")
	tickets.Post("/", limit, cfg.Tickets.CreateTicket)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Get("/:id/history", cfg.Tickets.TicketHistory)
	tickets.Delete("/:id", limit, cfg.Tickets.CloseTicket)

	sessions := helpdesk.Group("/sessions")
	sessions.Post("/", limit, cfg.Sessions.ClockOn)
	sessions.Get("/", cfg.Sessions.ListSessions)
	sessions.Get("/tutors", cfg.Sessions.OnDuty)
	sessions.Delete("/:id", limit, cfg.Sessions.ClockOff)

	stats := helpdesk.Group("/stats")
	stats.Get("/", cfg.Stats.Report)
	stats.Get("/tickets", cfg.Stats.TicketStats)
	stats.Get("/dashgraph", cfg.Stats.Dashgraph)
}
