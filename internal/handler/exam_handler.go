package handler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/optimark/optimark-api/internal/dto"
	"github.com/optimark/optimark-api/internal/service"
	"github.com/optimark/optimark-api/internal/utils"
)

// ExamHandler wires exam and answer-key HTTP routes.
type ExamHandler struct {
	exams     service.ExamService
	scores    service.ScoreService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewExamHandler constructs the handler.
func NewExamHandler(exams service.ExamService, scores service.ScoreService, validator *validator.Validate, logger zerolog.Logger) *ExamHandler {
	return &ExamHandler{
		exams:     exams,
		scores:    scores,
		validator: validator,
		logger:    logger.With().Str("component", "exam_handler").Logger(),
	}
}

// Register attaches exam endpoints to the router group.
func (h *ExamHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Get("/:id", h.get)
	router.Post("", h.create)
	router.Patch("/:id", h.update)
	router.Delete("/:id", h.delete)

	router.Get("/:id/sets", h.listSets)
	router.Put("/:id/sets", h.saveSet)
	router.Delete("/:id/sets/:set_code", h.deleteSet)

	router.Get("/:id/scores", h.listScores)
	router.Post("/:id/recompute", h.recompute)
	router.Get("/:id/export", h.exportCSV)
}

func (h *ExamHandler) list(c *fiber.Ctx) error {
	batchID, err := parseQueryUint(c, "batch")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	exams, err := h.exams.List(c.UserContext(), batchID)
	if err != nil {
		return h.internalError(c, err)
	}

	return utils.SendSuccess(c, "exams retrieved", exams)
}

func (h *ExamHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	exam, err := h.exams.Get(c.UserContext(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "exam retrieved", exam)
}

func (h *ExamHandler) create(c *fiber.Ctx) error {
	var payload dto.ExamCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	exam, err := h.exams.Create(c.UserContext(), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "exam created", exam)
}

func (h *ExamHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.ExamUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	exam, err := h.exams.Update(c.UserContext(), id, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "exam updated", exam)
}

func (h *ExamHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.exams.Delete(c.UserContext(), id); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "exam deleted", fiber.Map{"id": id})
}

func (h *ExamHandler) listSets(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	sets, err := h.exams.ListKeySets(c.UserContext(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "answer key sets retrieved", sets)
}

func (h *ExamHandler) saveSet(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.AnswerKeySetRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	set, err := h.exams.SaveKeySet(c.UserContext(), id, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "answer key set saved", set)
}

func (h *ExamHandler) deleteSet(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	setCode := strings.TrimSpace(c.Params("set_code"))
	if setCode == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "set code required")
	}

	if err := h.exams.DeleteKeySet(c.UserContext(), id, setCode); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "answer key set deleted", fiber.Map{"exam_id": id, "set_code": strings.ToUpper(setCode)})
}

func (h *ExamHandler) listScores(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	scores, err := h.scores.ListByExam(c.UserContext(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "scores retrieved", scores)
}

func (h *ExamHandler) recompute(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	updated, err := h.scores.Recompute(c.UserContext(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "scores recomputed", dto.RecomputeResponse{Updated: updated})
}

func (h *ExamHandler) exportCSV(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	data, err := h.scores.ExportCSV(c.UserContext(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendCSV(c, fmt.Sprintf("exam-%d-scores.csv", id), data)
}

func (h *ExamHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrExamNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "exam not found")
	case errors.Is(err, service.ErrBatchNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "batch not found")
	case errors.Is(err, service.ErrAnswerKeySetNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "answer key set not found")
	case errors.Is(err, service.ErrKeyLengthMismatch):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		return h.internalError(c, err)
	}
}

func (h *ExamHandler) internalError(c *fiber.Ctx, err error) error {
	h.logger.Error().Err(err).Msg("internal server error")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}
