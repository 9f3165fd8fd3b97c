package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/optimark/optimark-api/internal/dto"
	"github.com/optimark/optimark-api/internal/service"
	"github.com/optimark/optimark-api/internal/utils"
)

// ScoreHandler wires direct grading HTTP routes.
type ScoreHandler struct {
	service   service.ScoreService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewScoreHandler constructs the handler.
func NewScoreHandler(service service.ScoreService, validator *validator.Validate, logger zerolog.Logger) *ScoreHandler {
	return &ScoreHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("component", "score_handler").Logger(),
	}
}

// Register attaches score endpoints to the router group.
func (h *ScoreHandler) Register(router fiber.Router) {
	router.Post("", h.upsert)
	router.Post("/bulk", h.bulkUpsert)
}

func (h *ScoreHandler) upsert(c *fiber.Ctx) error {
	var payload dto.ScoreUpsertRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.validator.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	score, err := h.service.Upsert(c.UserContext(), payload.ExamID, payload.StudentID, payload.SetCode, payload.Answers)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "score graded", score)
}

func (h *ScoreHandler) bulkUpsert(c *fiber.Ctx) error {
	var payload dto.BulkScoreRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.validator.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	processed, err := h.service.BulkUpsert(c.UserContext(), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "scores graded", dto.BulkScoreResponse{Processed: processed})
}

func (h *ScoreHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrExamNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "exam not found")
	case errors.Is(err, service.ErrStudentNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "student not found")
	case errors.Is(err, service.ErrAnswerKeySetNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "answer key set not found")
	case isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		h.logger.Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
