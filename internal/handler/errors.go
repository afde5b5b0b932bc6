package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/campusops/devtrack/internal/apperr"
	"github.com/campusops/devtrack/internal/service"
	"github.com/campusops/devtrack/internal/utils"
)

// sendServiceError maps core error kinds onto HTTP responses. Raw tracker
// payloads and stack detail stay on the server side; callers get a kinded
// message or a generic retry-safe failure.
func sendServiceError(c *fiber.Ctx, logger zerolog.Logger, err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	}
	if errors.Is(err, service.ErrNotPrivileged) {
		return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
	}

	var kinded *apperr.Error
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		errors.As(err, &kinded)
		return utils.SendError(c, fiber.StatusNotFound, kinded.Message)
	case apperr.KindConfirmationRequired:
		errors.As(err, &kinded)
		return utils.SendConfirmationRequired(c, kinded.Message)
	case apperr.KindSessionClosed, apperr.KindConflict:
		errors.As(err, &kinded)
		return utils.SendError(c, fiber.StatusConflict, kinded.Message)
	case apperr.KindRateLimited:
		return utils.SendError(c, fiber.StatusTooManyRequests, "the asset tracker is throttling requests; try again shortly")
	case apperr.KindTimeout:
		return utils.SendError(c, fiber.StatusGatewayTimeout, "the asset tracker did not respond in time")
	case apperr.KindProtocol:
		return utils.SendError(c, fiber.StatusBadGateway, "the asset tracker returned an unexpected response")
	default:
		logger.Error().Err(err).Msg("operation failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "operation failed; it is safe to retry")
	}
}
