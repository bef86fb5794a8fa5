package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/mentor-queue/internal/api/http/handlers"
	"github.com/spec-kit/mentor-queue/internal/auth"
	"github.com/spec-kit/mentor-queue/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Queue          *handlers.QueueHandler
	Admin          *handlers.AdminHandler
	Auth           *handlers.AuthHandler
	AuthMiddleware *auth.AuthMiddleware
	MinAdmin       int
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Get("/login", cfg.Auth.Login)
	authGroup.Get("/callback", cfg.Auth.Callback)
	authGroup.Get("/logout", cfg.Auth.Logout)
	authGroup.Post("/logout", cfg.Auth.Logout)
	authGroup.Get("/whoami", cfg.Auth.WhoAmI)

	account := authGroup.Group("", cfg.AuthMiddleware.Handle)
	account.Post("/update", cfg.Auth.Update)
	account.Get("/discord/login", cfg.Auth.DiscordLogin)
	account.Get("/discord/callback", cfg.Auth.DiscordCallback)
	account.Post("/discord/exchange-token", cfg.Auth.DiscordExchange)

	anyRole := auth.RequireRole(domain.RoleHacker, domain.RoleMentor, domain.RoleAdmin)
	staff := auth.RequireRole(domain.RoleMentor, domain.RoleAdmin)

	queue := app.Group("/queue", cfg.AuthMiddleware.Handle)
	queue.Get("/get", anyRole, cfg.Queue.List)
	queue.Post("/create", anyRole, cfg.Queue.Create)
	queue.Post("/resolve", anyRole, cfg.Queue.Resolve)
	queue.Post("/feedback", anyRole, cfg.Queue.Feedback)
	queue.Post("/claim", staff, cfg.Queue.Claim)
	queue.Post("/unclaim", staff, cfg.Queue.Unclaim)
	queue.Get("/claimed", staff, cfg.Queue.Claimed)
	queue.Get("/ranking", staff, cfg.Queue.Ranking)

	admin := app.Group("/admin", cfg.AuthMiddleware.Handle, auth.RequireAdmin(cfg.MinAdmin))
	admin.Get("/ticketdata", cfg.Admin.TicketData)
	admin.Get("/userdata", cfg.Admin.UserData)
	admin.Get("/alltickets", cfg.Admin.AllTickets)
	admin.Get("/tickets/:id/history", cfg.Admin.History)
	admin.Get("/metrics", cfg.Admin.Metrics)
}
