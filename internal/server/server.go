package server

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/contacthub/contacthub/internal/config"
	"github.com/contacthub/contacthub/internal/routes"
)

// multipartOverhead leaves room for form fields and boundaries around a
// maximum-size photo.
const multipartOverhead = 1 << 20

// Server wraps the Fiber application and shared dependencies.
type Server struct {
	app *fiber.App
	cfg config.Config
}

// New instantiates the HTTP server and delegates route wiring to routes.Setup.
func New(d routes.Deps) (*Server, error) {
	app := fiber.New(fiber.Config{
		AppName:      d.Cfg.AppName,
		BodyLimit:    d.Cfg.MaxUploadBytes + multipartOverhead,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	if err := routes.Setup(app, d); err != nil {
		return nil, err
	}

	return &Server{app: app, cfg: d.Cfg}, nil
}

// Listen starts the HTTP server.
func (s *Server) Listen() error {
	return s.app.Listen(s.cfg.Address())
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
