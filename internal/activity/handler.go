package activity

import (
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes the caller's activity trail.
type Handler struct {
	recorder *Recorder
	logger   *slog.Logger
}

// NewHandler builds an activity HTTP handler.
func NewHandler(recorder *Recorder, logger *slog.Logger) *Handler {
	return &Handler{recorder: recorder, logger: logger}
}

// List returns the caller's records, oldest first.
func (h *Handler) List(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	records, err := h.recorder.List(c.UserContext(), uid)
	if err != nil {
		h.logger.Error("activity list failed", slog.String("owner_id", uid), slog.Any("error", err))
		return fiber.NewError(http.StatusInternalServerError, "internal server error")
	}
	return c.Status(http.StatusOK).JSON(records)
}
