package contacts

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/gofiber/fiber/v2"

	"github.com/contacthub/contacthub/internal/files"
)

// Handler exposes contact HTTP endpoints. Every route expects the auth
// middleware to have stored the caller in c.Locals("user_id").
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler builds a contact HTTP handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

type contactRequest struct {
	Name  string   `json:"name"`
	Email string   `json:"email"`
	Tags  TagField `json:"tags"`
}

// List returns the caller's contacts.
func (h *Handler) List(c *fiber.Ctx) error {
	list, err := h.service.List(c.UserContext(), userID(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(http.StatusOK).JSON(list)
}

// Get returns a single contact.
func (h *Handler) Get(c *fiber.Ctx) error {
	contact, err := h.service.Get(c.UserContext(), userID(c), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(http.StatusOK).JSON(contact)
}

// Create adds a contact. Accepts multipart (with an optional "photo" file),
// urlencoded or JSON bodies.
func (h *Handler) Create(c *fiber.Ctx) error {
	req, photo, cleanup, err := parseRequest(c, true)
	if err != nil {
		return err
	}
	defer cleanup()

	var tags []string
	if req.Tags.Set {
		tags = req.Tags.Tags
	}
	contact, err := h.service.Create(c.UserContext(), CreateInput{
		OwnerID: userID(c),
		Name:    req.Name,
		Email:   req.Email,
		Tags:    tags,
		Photo:   photo,
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(http.StatusCreated).JSON(contact)
}

// Update edits a contact owned by the caller.
func (h *Handler) Update(c *fiber.Ctx) error {
	req, _, cleanup, err := parseRequest(c, false)
	if err != nil {
		return err
	}
	defer cleanup()

	contact, err := h.service.Update(c.UserContext(), UpdateInput{
		OwnerID: userID(c),
		ID:      c.Params("id"),
		Name:    req.Name,
		Email:   req.Email,
		Tags:    req.Tags.Ptr(),
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(http.StatusOK).JSON(contact)
}

// Delete removes a contact owned by the caller.
func (h *Handler) Delete(c *fiber.Ctx) error {
	if err := h.service.Delete(c.UserContext(), userID(c), c.Params("id")); err != nil {
		return h.fail(c, err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"message": "Contact deleted"})
}

func (h *Handler) fail(c *fiber.Ctx, err error) error {
	var verrs validation.Errors
	switch {
	case errors.As(err, &verrs):
		return fiber.NewError(http.StatusBadRequest, verrs.Error())
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(http.StatusNotFound, "Contact not found")
	case errors.Is(err, ErrNotOwner):
		return fiber.NewError(http.StatusForbidden, ErrNotOwner.Error())
	default:
		h.logger.Error("contact request failed",
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Any("error", err),
		)
		return fiber.NewError(http.StatusInternalServerError, "internal server error")
	}
}

func userID(c *fiber.Ctx) string {
	uid, _ := c.Locals("user_id").(string)
	return uid
}

func noop() {}

// parseRequest decodes the body according to its content type. For form
// bodies the presence of the "tags" key is tracked so updates can tell an
// absent field from a supplied one.
func parseRequest(c *fiber.Ctx, withPhoto bool) (contactRequest, *files.Upload, func(), error) {
	var req contactRequest
	ctype := strings.ToLower(c.Get(fiber.HeaderContentType))

	switch {
	case strings.HasPrefix(ctype, fiber.MIMEMultipartForm):
		form, err := c.MultipartForm()
		if err != nil {
			return req, nil, noop, fiber.NewError(http.StatusBadRequest, err.Error())
		}
		req.Name = first(form.Value["name"])
		req.Email = first(form.Value["email"])
		if v, ok := form.Value["tags"]; ok {
			req.Tags.FromForm(first(v))
		}
		headers := form.File["photo"]
		if !withPhoto || len(headers) == 0 {
			return req, nil, noop, nil
		}
		fh := headers[0]
		f, err := fh.Open()
		if err != nil {
			return req, nil, noop, fiber.NewError(http.StatusBadRequest, err.Error())
		}
		upload := &files.Upload{
			Name:        fh.Filename,
			ContentType: fh.Header.Get(fiber.HeaderContentType),
			Size:        fh.Size,
			Body:        f,
		}
		return req, upload, func() { _ = f.Close() }, nil

	case strings.HasPrefix(ctype, fiber.MIMEApplicationForm):
		args := c.Request().PostArgs()
		req.Name = string(args.Peek("name"))
		req.Email = string(args.Peek("email"))
		if args.Has("tags") {
			req.Tags.FromForm(string(args.Peek("tags")))
		}
		return req, nil, noop, nil

	case strings.HasPrefix(ctype, fiber.MIMEApplicationJSON), ctype == "":
		body := c.Body()
		if len(strings.TrimSpace(string(body))) == 0 {
			return req, nil, noop, nil
		}
		if err := json.Unmarshal(body, &req); err != nil {
			return req, nil, noop, fiber.NewError(http.StatusBadRequest, err.Error())
		}
		return req, nil, noop, nil

	default:
		return req, nil, noop, fiber.ErrUnsupportedMediaType
	}
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
