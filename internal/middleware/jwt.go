package middleware

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/contacthub/contacthub/internal/auth"
	"github.com/contacthub/contacthub/internal/identity"
)

const bearerPrefix = "bearer "

// JWTAuth validates the bearer access token and checks the user still
// exists. The user id is stored in c.Locals("user_id").
func JWTAuth(tokens auth.Verifier, users identity.Repository) fiber.Handler {
	return jwtAuth(tokens, users, false)
}

// WebSocketAuth is JWTAuth that also accepts the token as a "token" query
// parameter, since browsers cannot set headers on a websocket handshake.
func WebSocketAuth(tokens auth.Verifier, users identity.Repository) fiber.Handler {
	return jwtAuth(tokens, users, true)
}

func jwtAuth(tokens auth.Verifier, users identity.Repository, allowQuery bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenStr := bearerToken(c.Get(fiber.HeaderAuthorization))
		if tokenStr == "" && allowQuery {
			tokenStr = strings.TrimSpace(c.Query("token"))
		}
		if tokenStr == "" {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}

		sub, err := tokens.Verify(tokenStr)
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid token")
		}

		if users != nil {
			if _, err := users.FindByID(c.UserContext(), sub); err != nil {
				return fiber.NewError(http.StatusUnauthorized, "token invalidated")
			}
		}

		c.Locals("user_id", sub)
		return c.Next()
	}
}

func bearerToken(header string) string {
	if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(header[len(bearerPrefix):])
}
