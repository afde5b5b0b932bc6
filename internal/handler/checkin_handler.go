package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/campusops/devtrack/internal/dto"
	"github.com/campusops/devtrack/internal/middleware"
	"github.com/campusops/devtrack/internal/service"
	"github.com/campusops/devtrack/internal/utils"
)

// CheckInHandler exposes device check-in and tag assignment.
type CheckInHandler struct {
	service   service.CheckInService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewCheckInHandler builds a check-in handler instance.
func NewCheckInHandler(service service.CheckInService, validator *validator.Validate, logger zerolog.Logger) *CheckInHandler {
	return &CheckInHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("component", "checkin_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *CheckInHandler) Register(router fiber.Router) {
	router.Post("/checkin", h.checkIn)
	router.Post("/tags", h.assignTag)
}

func (h *CheckInHandler) checkIn(c *fiber.Ctx) error {
	var payload dto.CheckInRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Struct(payload); err != nil {
		return sendServiceError(c, h.logger, err)
	}

	result, err := h.service.CheckIn(c.UserContext(), payload.AssetRef, middleware.OperatorFrom(c), payload.Override)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}

	message := "device checked in"
	if !result.StudentUpdated {
		message = "device checked in; no student record updated"
	}
	return utils.SendSuccess(c, message, result)
}

func (h *CheckInHandler) assignTag(c *fiber.Ctx) error {
	var payload dto.AssignTagRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.service.AssignTag(c.UserContext(), payload, middleware.OperatorFrom(c))
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "tag assigned", result)
}
