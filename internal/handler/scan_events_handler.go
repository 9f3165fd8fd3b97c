package handler

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/optimark/optimark-api/internal/service"
)

// ScanEventsHandler streams scan lifecycle events over a websocket.
type ScanEventsHandler struct {
	events service.ScanEventService
	logger zerolog.Logger
}

// NewScanEventsHandler constructs the handler.
func NewScanEventsHandler(events service.ScanEventService, logger zerolog.Logger) *ScanEventsHandler {
	return &ScanEventsHandler{
		events: events,
		logger: logger.With().Str("component", "scan_events_handler").Logger(),
	}
}

// Register binds the websocket upgrade under the provided router group.
func (h *ScanEventsHandler) Register(router fiber.Router) {
	router.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	router.Get("/ws", websocket.New(h.handleConnection))
}

func (h *ScanEventsHandler) handleConnection(conn *websocket.Conn) {
	examID := uint(0)
	if raw := strings.TrimSpace(conn.Query("exam")); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(fiber.StatusBadRequest, "invalid exam filter"))
			_ = conn.Close()
			return
		}
		examID = uint(parsed)
	}

	events, cancel := h.events.Subscribe(examID)
	defer cancel()

	h.logger.Info().Uint("exam_id", examID).Msg("scan event stream connected")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				_ = conn.Close()
				h.logger.Info().Uint("exam_id", examID).Msg("scan event stream closed")
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				h.logger.Debug().Err(err).Msg("scan event write failed")
				_ = conn.Close()
				return
			}
		case <-done:
			h.logger.Info().Uint("exam_id", examID).Msg("scan event stream disconnected")
			return
		}
	}
}
