package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/campusops/devtrack/internal/config"
	"github.com/campusops/devtrack/internal/handler"
	"github.com/campusops/devtrack/internal/middleware"
	"github.com/campusops/devtrack/internal/observability"
	"github.com/campusops/devtrack/internal/service"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	CheckInHandler *handler.CheckInHandler
	AuditHandler   *handler.AuditHandler
	JWTMiddleware  fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/healthz", handler.HealthCheck(cfg))
	app.Get("/metrics", observability.MetricsHandler())

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	api := app.Group("/api/v1", jwtMiddleware, func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})

	if deps.CheckInHandler != nil {
		// Scans arrive in bursts during homeroom; bound them per operator.
		deps.CheckInHandler.Register(api.Group("", middleware.RateLimit("checkin", 30, time.Minute)))
	}

	if deps.AuditHandler != nil {
		deps.AuditHandler.Register(api.Group("/audit"), middleware.RequireRole(service.RoleAdmin))
	}
}
