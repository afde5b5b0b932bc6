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

// AuditHandler exposes audit session lifecycle and marking.
type AuditHandler struct {
	service   service.AuditService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewAuditHandler builds an audit handler instance.
func NewAuditHandler(service service.AuditService, validator *validator.Validate, logger zerolog.Logger) *AuditHandler {
	return &AuditHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("component", "audit_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group. Opening and
// closing sessions additionally require the admin role.
func (h *AuditHandler) Register(router fiber.Router, adminOnly fiber.Handler) {
	router.Post("/sessions", adminOnly, h.openSession)
	router.Post("/sessions/:id/marks", h.mark)
	router.Post("/sessions/:id/close", adminOnly, h.closeSession)
	router.Get("/sessions/:id/summary", h.summary)
}

func (h *AuditHandler) openSession(c *fiber.Ctx) error {
	session, err := h.service.OpenSession(c.UserContext(), middleware.OperatorFrom(c))
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "audit session opened", session)
}

func (h *AuditHandler) mark(c *fiber.Ctx) error {
	var payload dto.MarkRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Struct(payload); err != nil {
		return sendServiceError(c, h.logger, err)
	}

	err := h.service.Mark(c.UserContext(), c.Params("id"), payload.StudentID, payload.Audited, middleware.OperatorFrom(c))
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "mark recorded", nil)
}

func (h *AuditHandler) closeSession(c *fiber.Ctx) error {
	session, err := h.service.CloseSession(c.UserContext(), c.Params("id"), middleware.OperatorFrom(c))
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "audit session closed", session)
}

func (h *AuditHandler) summary(c *fiber.Ctx) error {
	filter := dto.SummaryFilter{
		Grade:   c.Query("grade"),
		Advisor: c.Query("advisor"),
	}

	summary, err := h.service.Summary(c.UserContext(), c.Params("id"), filter)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "session summary", summary)
}
