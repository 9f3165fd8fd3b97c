package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/optimark/optimark-api/internal/dto"
	"github.com/optimark/optimark-api/internal/service"
	"github.com/optimark/optimark-api/internal/utils"
)

// SeedHandler exposes the roster provisioning endpoint.
type SeedHandler struct {
	service service.SeedService
	logger  zerolog.Logger
}

// NewSeedHandler constructs the handler.
func NewSeedHandler(service service.SeedService, logger zerolog.Logger) *SeedHandler {
	return &SeedHandler{
		service: service,
		logger:  logger.With().Str("component", "seed_handler").Logger(),
	}
}

// Register attaches the seed endpoint to the router group.
func (h *SeedHandler) Register(router fiber.Router) {
	router.Post("/roster", h.seedRoster)
}

func (h *SeedHandler) seedRoster(c *fiber.Ctx) error {
	var payload dto.SeedRosterRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	token := c.Get("X-Seed-Token")

	result, err := h.service.SeedRoster(c.UserContext(), token, payload)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSeedDisabled):
			return utils.SendError(c, fiber.StatusForbidden, "seeding is disabled")
		case errors.Is(err, service.ErrSeedUnauthorized):
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid seed token")
		case isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		default:
			h.logger.Error().Err(err).Msg("internal server error")
			return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
		}
	}

	return utils.SendSuccess(c, "roster seeded", result)
}
