package handler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/optimark/optimark-api/internal/dto"
	"github.com/optimark/optimark-api/internal/omr"
	"github.com/optimark/optimark-api/internal/service"
	"github.com/optimark/optimark-api/internal/utils"
)

// ScanHandler wires scan lifecycle HTTP routes.
type ScanHandler struct {
	service   service.ScanService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewScanHandler constructs the handler.
func NewScanHandler(service service.ScanService, validator *validator.Validate, logger zerolog.Logger) *ScanHandler {
	return &ScanHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("component", "scan_handler").Logger(),
	}
}

// Register attaches scan endpoints to the router group.
func (h *ScanHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Get("/:id", h.get)
	router.Post("", h.upload)
	router.Post("/:id/process", h.process)
	router.Post("/:id/review", h.review)
	router.Get("/:id/overlay", h.overlay)
	router.Delete("/:id", h.delete)
}

func (h *ScanHandler) list(c *fiber.Ctx) error {
	examID, err := parseQueryUint(c, "exam")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	filter := dto.ScanFilter{ExamID: examID}
	if status := strings.TrimSpace(c.Query("status")); status != "" {
		filter.Status = &status
	}

	if err := h.validator.Struct(filter); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	scans, err := h.service.List(c.UserContext(), filter)
	if err != nil {
		return h.internalError(c, err)
	}

	return utils.SendSuccess(c, "scans retrieved", scans)
}

func (h *ScanHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	scan, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "scan retrieved", scan)
}

func (h *ScanHandler) upload(c *fiber.Ctx) error {
	examID, err := parseQueryUint(c, "exam")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	if examID == nil {
		if formValue := strings.TrimSpace(c.FormValue("exam_id")); formValue != "" {
			parsed, parseErr := parseFormUint(formValue)
			if parseErr != nil {
				return utils.SendError(c, fiber.StatusBadRequest, "invalid exam_id")
			}
			examID = &parsed
		}
	}
	if examID == nil {
		return utils.SendError(c, fiber.StatusBadRequest, "exam_id required")
	}

	image, err := c.FormFile("image")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "scan image is required")
	}

	sidecar, err := c.FormFile("sidecar")
	if err != nil {
		sidecar = nil
	}

	scan, err := h.service.Upload(c.UserContext(), *examID, image, sidecar)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "scan uploaded", scan)
}

func (h *ScanHandler) process(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	scan, err := h.service.Process(c.UserContext(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "scan processed", scan)
}

func (h *ScanHandler) review(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.ScanReviewRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	scan, err := h.service.Review(c.UserContext(), id, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "scan reviewed", scan)
}

func (h *ScanHandler) overlay(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	path, err := h.service.Overlay(c.UserContext(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return c.SendFile(path)
}

func (h *ScanHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.Delete(c.UserContext(), id); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "scan deleted", fiber.Map{"id": id})
}

func (h *ScanHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrScanNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "scan not found")
	case errors.Is(err, service.ErrExamNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "exam not found")
	case errors.Is(err, service.ErrStudentNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "student not found")
	case errors.Is(err, service.ErrAnswerKeySetNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "answer key set not found")
	case errors.Is(err, service.ErrScanImageRequired),
		errors.Is(err, service.ErrScanImageTooLarge),
		errors.Is(err, service.ErrScanImageType):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		if processingErr, ok := omr.AsProcessingError(err); ok {
			return utils.SendError(c, fiber.StatusUnprocessableEntity, processingErr.Reason)
		}
		return h.internalError(c, err)
	}
}

func (h *ScanHandler) internalError(c *fiber.Ctx, err error) error {
	h.logger.Error().Err(err).Msg("internal server error")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}

func parseFormUint(value string) (uint, error) {
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, errors.New("invalid number")
	}
	return uint(parsed), nil
}
