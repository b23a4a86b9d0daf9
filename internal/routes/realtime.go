package routes

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/contacthub/contacthub/internal/realtime"
)

// RegisterRealtimeRoutes wires the websocket endpoint.
func RegisterRealtimeRoutes(app *fiber.App, hub *realtime.Hub, authn fiber.Handler, logger *slog.Logger) {
	app.Get("/ws", realtime.RequireUpgrade(), authn, realtime.Handler(hub, sessionBuffer, logger))
}
