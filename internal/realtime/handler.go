package realtime

import (
	"context"
	"log/slog"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

// Handler upgrades an authenticated request to a websocket and runs a
// Session for it. The auth middleware in front must set c.Locals("user_id").
func Handler(hub *Hub, buffer int, logger *slog.Logger) fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		userID, _ := conn.Locals("user_id").(string)
		logger.Info("realtime connection opened", slog.String("user_id", userID))
		NewSession(hub, conn, userID, buffer, logger).Run(context.Background())
		logger.Info("realtime connection closed", slog.String("user_id", userID))
	})
}

// RequireUpgrade rejects plain HTTP requests to the websocket endpoint.
func RequireUpgrade() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		return c.Next()
	}
}
