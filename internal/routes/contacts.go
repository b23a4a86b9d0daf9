package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/contacthub/contacthub/internal/contacts"
	"github.com/contacthub/contacthub/internal/export"
)

// RegisterContactRoutes wires the contact endpoints onto an authenticated group.
func RegisterContactRoutes(r fiber.Router, h *contacts.Handler, exp *export.Handler) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/export", exp.Download)
	r.Get("/:id", h.Get)
	r.Put("/:id", h.Update)
	r.Delete("/:id", h.Delete)
}
