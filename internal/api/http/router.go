package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-console/internal/api/http/handlers"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health   *handlers.HealthHandler
	Sessions *handlers.SessionsHandler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/sessions", cfg.Sessions.Create)
	app.Delete("/sessions/:id", cfg.Sessions.Close)

	sessions := app.Group("/sessions/:id")
	sessions.Post("/refresh", cfg.Sessions.Refresh)
	sessions.Get("/tickets", cfg.Sessions.ListTickets)
	sessions.Get("/conversation", cfg.Sessions.Conversation)
	sessions.Post("/tickets/:ticketID/select", cfg.Sessions.Select)
	sessions.Post("/tickets/:ticketID/messages", cfg.Sessions.SendMessage)
	sessions.Patch("/tickets/:ticketID/status", cfg.Sessions.ChangeStatus)
	sessions.Delete("/tickets/:ticketID", cfg.Sessions.DeleteTicket)
}
