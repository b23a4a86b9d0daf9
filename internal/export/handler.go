package export

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/contacthub/contacthub/internal/contacts"
)

// Filename is the attachment name of the export download.
const Filename = "contacts.csv"

// Lister returns the contacts owned by a user.
type Lister interface {
	List(ctx context.Context, ownerID string) ([]contacts.Contact, error)
}

// Handler serves the CSV export.
type Handler struct {
	contacts Lister
	logger   *slog.Logger
}

// NewHandler builds an export handler.
func NewHandler(contacts Lister, logger *slog.Logger) *Handler {
	return &Handler{contacts: contacts, logger: logger}
}

// Download streams the caller's contacts as a CSV attachment.
func (h *Handler) Download(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	list, err := h.contacts.List(c.UserContext(), uid)
	if err != nil {
		h.logger.Error("export list failed", slog.String("owner_id", uid), slog.Any("error", err))
		return fiber.NewError(http.StatusInternalServerError, "internal server error")
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, list); err != nil {
		h.logger.Error("export encode failed", slog.String("owner_id", uid), slog.Any("error", err))
		return fiber.NewError(http.StatusInternalServerError, "internal server error")
	}

	c.Attachment(Filename)
	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	return c.Status(http.StatusOK).Send(buf.Bytes())
}
