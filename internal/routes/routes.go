package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/mankatbank/mankatbank/internal/accounts"
	"github.com/mankatbank/mankatbank/internal/auth"
	"github.com/mankatbank/mankatbank/internal/config"
	"github.com/mankatbank/mankatbank/internal/identity"
	"github.com/mankatbank/mankatbank/internal/ledger"
	"github.com/mankatbank/mankatbank/internal/metrics"
	"github.com/mankatbank/mankatbank/internal/middleware"
	"github.com/mankatbank/mankatbank/internal/notification"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg     config.Config
	DB      *pgxpool.Pool
	Cache   *redis.Client
	Logger  *slog.Logger
	Metrics *metrics.Collector
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Enforce DB/Redis presence outside of dev, even though main also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Metrics == nil {
		d.Metrics = metrics.NewCollector()
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.CORS(d.Cfg.CORSAllowedOrigins))
	app.Use(middleware.Metrics(d.Metrics))
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)

	// Services and handlers
	var store ledger.Store
	if d.DB != nil {
		store = ledger.NewPostgresStore(d.DB)
	} else {
		store = ledger.NewInMemory()
	}
	if d.Cfg.BreakerEnabled {
		store = ledger.WithBreaker(store, ledger.DefaultBreakerSettings(), d.Logger)
	}

	var identityRepo identity.Repository
	if d.DB != nil {
		identityRepo = identity.NewPostgresRepository(d.DB)
	} else {
		identityRepo = identity.NewMemoryRepository()
	}

	var revoked auth.RevocationStore
	if d.Cache != nil {
		revoked = auth.NewRedisRevocationStore(d.Cache)
	} else {
		revoked = auth.NewMemoryRevocationStore()
	}

	notifier := notification.NewLoggerNotifier(d.Logger)
	accountSvc := accounts.NewService(store, notifier, d.Metrics, d.Logger)
	identitySvc := identity.NewService(identityRepo)
	authSvc := auth.NewService(d.Cfg.JWTSecret, d.Cfg.JWTTTL, revoked)

	accountHandler := accounts.NewHandler(accountSvc, middleware.UserID)
	identityHandler := identity.NewHandler(identitySvc, accountSvc, middleware.UserID)
	authHandler := auth.NewHandler(identitySvc, authSvc)

	// API routes
	api := app.Group("/api")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Public routes
	rateLimiter := middleware.LoginRateLimit(d.Cache, d.Cfg.LoginMaxPerMinute, d.Logger)
	RegisterAuthRoutes(api, identityHandler, authHandler, rateLimiter)

	// Protected routes
	protected := api.Group("", middleware.JWTAuth(authSvc))
	if d.Cache != nil {
		protected.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}
	RegisterIdentityRoutes(protected, identityHandler)
	RegisterAccountRoutes(protected, accountHandler)

	return nil
}
