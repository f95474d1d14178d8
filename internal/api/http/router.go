package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/auth-service/internal/api/http/handlers"
	"github.com/spec-kit/auth-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Users          *handlers.UsersHandler
	AuthMiddleware *auth.AuthMiddleware
	RoleGate       *auth.RoleGate
}

// RegisterRoutes wires the authentication filter, the role gate and the
// HTTP routes. The filter runs on every request; the gate decides per route
// whether an unauthenticated request may pass.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Use(cfg.AuthMiddleware.Handle)
	app.Use(cfg.RoleGate.Handle)

	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/refresh", cfg.Auth.Refresh)
	authGroup.Post("/register", cfg.Auth.Register)

	userGroup := app.Group("/user")
	userGroup.Get("/", cfg.Users.Me)
	userGroup.Get("/email/:email", cfg.Users.FindByEmail)
	userGroup.Get("/username/:username", cfg.Users.FindByUsername)
	userGroup.Get("/:id", cfg.Users.FindByID)
	userGroup.Put("/", cfg.Users.Update)
	userGroup.Post("/delete", cfg.Users.Delete)
}
