package routes

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/contacthub/contacthub/internal/activity"
	"github.com/contacthub/contacthub/internal/auth"
	"github.com/contacthub/contacthub/internal/config"
	"github.com/contacthub/contacthub/internal/contacts"
	"github.com/contacthub/contacthub/internal/export"
	"github.com/contacthub/contacthub/internal/files"
	"github.com/contacthub/contacthub/internal/identity"
	"github.com/contacthub/contacthub/internal/middleware"
	"github.com/contacthub/contacthub/internal/realtime"
)

const sessionBuffer = 32

// Deps aggregates shared dependencies required to wire routes. DB, Cache and
// AMQP are optional in development; Photos defaults to a disk store.
// ActivitySinks receive every appended activity record; their owner closes them.
type Deps struct {
	Cfg           config.Config
	DB            *pgxpool.Pool
	Cache         *redis.Client
	AMQP          *amqp.Connection
	ActivitySinks []activity.Sink
	Photos        files.Store
	Logger        *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Enforce DB/Redis presence outside of dev, even though config also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: d.Cfg.CORSOrigins,
		AllowHeaders: strings.Join([]string{
			fiber.HeaderOrigin,
			fiber.HeaderContentType,
			fiber.HeaderAccept,
			fiber.HeaderAuthorization,
			"Idempotency-Key",
			"X-Request-ID",
		}, ", "),
	}))
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))

	// Health
	RegisterHealthRoutes(app, d)

	// Stores
	var (
		userRepo    identity.Repository
		contactRepo contacts.Repository
		activityLog activity.Log
	)
	if d.DB != nil {
		userRepo = identity.NewPostgresRepository(d.DB)
		contactRepo = contacts.NewPostgresRepository(d.DB)
		activityLog = activity.NewPostgresLog(d.DB)
	} else {
		d.Logger.Warn("no database configured, using in-memory stores")
		userRepo = identity.NewMemoryRepository()
		contactRepo = contacts.NewMemoryRepository()
		activityLog = activity.NewMemoryLog()
	}

	photos := d.Photos
	if photos == nil {
		disk, err := files.NewDiskStore(d.Cfg.UploadDir, d.Cfg.UploadURLPrefix)
		if err != nil {
			return err
		}
		photos = disk
	}
	if disk, ok := photos.(*files.DiskStore); ok {
		app.Static(d.Cfg.UploadURLPrefix, disk.Dir())
	}

	// Services and handlers
	tokens := auth.NewTokenService(d.Cfg.JWTSecret, d.Cfg.AccessTokenTTL, d.Cfg.AppName)
	identitySvc := identity.NewService(userRepo, d.Cfg.BcryptCost)
	recorder := activity.NewRecorder(activityLog, d.Logger, d.ActivitySinks...)
	hub := realtime.NewHub(d.Logger)
	contactSvc := contacts.NewService(contactRepo, photos, recorder, hub, d.Logger)

	authHandler := auth.NewHandler(identitySvc, tokens, d.Logger)
	contactHandler := contacts.NewHandler(contactSvc, d.Logger)
	exportHandler := export.NewHandler(contactSvc, d.Logger)
	activityHandler := activity.NewHandler(recorder, d.Logger)

	// Public routes
	RegisterAuthRoutes(app, authHandler)

	// Protected routes
	jwtmw := middleware.JWTAuth(tokens, userRepo)
	mutating := []fiber.Handler{jwtmw}
	if d.Cache != nil {
		mutating = append(mutating, middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}
	RegisterContactRoutes(app.Group("/contacts", mutating...), contactHandler, exportHandler)
	app.Get("/activity", jwtmw, activityHandler.List)
	RegisterRealtimeRoutes(app, hub, middleware.WebSocketAuth(tokens, userRepo), d.Logger)

	return nil
}
