package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/optimark/optimark-api/internal/service"
	"github.com/optimark/optimark-api/internal/utils"
)

// AnalyticsHandler wires the psychometric report endpoint.
type AnalyticsHandler struct {
	service service.AnalyticsService
	logger  zerolog.Logger
}

// NewAnalyticsHandler constructs the handler.
func NewAnalyticsHandler(service service.AnalyticsService, logger zerolog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		service: service,
		logger:  logger.With().Str("component", "analytics_handler").Logger(),
	}
}

// Register attaches the analytics endpoint to the exams router group.
func (h *AnalyticsHandler) Register(router fiber.Router) {
	router.Get("/:id/analytics", h.examAnalytics)
}

func (h *AnalyticsHandler) examAnalytics(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	report, err := h.service.ComputeExamAnalytics(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, service.ErrExamNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "exam not found")
		}
		h.logger.Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}

	return utils.SendSuccess(c, "exam analytics computed", report)
}
