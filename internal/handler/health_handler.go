package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/campusops/devtrack/internal/config"
)

// HealthCheck reports process liveness.
func HealthCheck(cfg config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"app":    cfg.AppName,
			"env":    cfg.AppEnv,
		})
	}
}
