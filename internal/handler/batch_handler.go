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

// BatchHandler wires batch HTTP routes.
type BatchHandler struct {
	service   service.RosterService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewBatchHandler constructs the handler.
func NewBatchHandler(service service.RosterService, validator *validator.Validate, logger zerolog.Logger) *BatchHandler {
	return &BatchHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("component", "batch_handler").Logger(),
	}
}

// Register attaches batch endpoints to the router group.
func (h *BatchHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Get("/:id", h.get)
	router.Post("", h.create)
	router.Delete("/:id", h.delete)
}

func (h *BatchHandler) list(c *fiber.Ctx) error {
	batches, err := h.service.ListBatches(c.UserContext())
	if err != nil {
		return h.internalError(c, err)
	}

	return utils.SendSuccess(c, "batches retrieved", batches)
}

func (h *BatchHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	batch, err := h.service.GetBatch(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, service.ErrBatchNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "batch not found")
		}
		return h.internalError(c, err)
	}

	return utils.SendSuccess(c, "batch retrieved", batch)
}

func (h *BatchHandler) create(c *fiber.Ctx) error {
	var payload dto.BatchCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	batch, err := h.service.CreateBatch(c.UserContext(), payload)
	if err != nil {
		if isValidationError(err) {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}
		return h.internalError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "batch created", batch)
}

func (h *BatchHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.DeleteBatch(c.UserContext(), id); err != nil {
		if errors.Is(err, service.ErrBatchNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "batch not found")
		}
		return h.internalError(c, err)
	}

	return utils.SendSuccess(c, "batch deleted", fiber.Map{"id": id})
}

func (h *BatchHandler) internalError(c *fiber.Ctx, err error) error {
	h.logger.Error().Err(err).Msg("internal server error")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}
