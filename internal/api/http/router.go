package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-ingest/internal/api/http/handlers"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health  *handlers.HealthHandler
	Queries *handlers.QueriesHandler
	Actions *handlers.ActionsHandler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Get("/summary", cfg.Queries.Summary)
	app.Get("/regions", cfg.Queries.RegionSummary)
	app.Get("/columns", cfg.Queries.Columns)
	app.Get("/info", cfg.Queries.Info)

	// static segments before the :id parameter
	app.Get("/tickets", cfg.Queries.ListTickets)
	app.Get("/tickets/regions", cfg.Queries.ListByRegion)
	app.Get("/tickets/priority/:priority", cfg.Queries.ListByPriority)
	app.Get("/tickets/:id", cfg.Queries.GetTicket)

	actions := app.Group("/actions")
	actions.Post("/refresh", cfg.Actions.RequestRefresh)
	actions.Post("/import", cfg.Actions.RequestImport)
	actions.Post("/confirm", cfg.Actions.Confirm)
	actions.Post("/cancel", cfg.Actions.Cancel)
}
