package auth

import (
	"errors"
	"log/slog"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/gofiber/fiber/v2"

	"github.com/contacthub/contacthub/internal/identity"
)

// Handler exposes the register and login endpoints.
type Handler struct {
	ids    *identity.Service
	tokens *TokenService
	logger *slog.Logger
}

func NewHandler(ids *identity.Service, tokens *TokenService, logger *slog.Logger) *Handler {
	return &Handler{ids: ids, tokens: tokens, logger: logger}
}

type registerRequest struct {
	Name     string `json:"name" form:"name"`
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

type loginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

type loginResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
	UserID    string `json:"user_id"`
}

// Register creates an account.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	user, err := h.ids.Register(c.UserContext(), identity.Registration{Name: req.Name, Email: req.Email, Password: req.Password})
	if err != nil {
		var verrs validation.Errors
		switch {
		case errors.As(err, &verrs):
			return fiber.NewError(http.StatusBadRequest, verrs.Error())
		case errors.Is(err, identity.ErrEmailTaken):
			return fiber.NewError(http.StatusConflict, err.Error())
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}
	h.logger.Info("user registered", slog.String("user_id", user.ID))
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"message": "User registered",
		"user_id": user.ID,
	})
}

// Login validates credentials and returns a bearer token.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	user, err := h.ids.Authenticate(c.UserContext(), identity.Credentials{Email: req.Email, Password: req.Password})
	if err != nil {
		var verrs validation.Errors
		switch {
		case errors.As(err, &verrs):
			return fiber.NewError(http.StatusBadRequest, verrs.Error())
		case errors.Is(err, identity.ErrInvalidCredentials):
			return fiber.NewError(http.StatusUnauthorized, "Invalid credentials")
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}
	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(loginResponse{
		Token:     token.Value,
		ExpiresIn: int64(h.tokens.ttl.Seconds()),
		UserID:    user.ID,
	})
}
