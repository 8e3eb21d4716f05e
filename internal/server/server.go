// Package server exposes the idea ledger, lifecycle and merge services over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"agora/internal/cache"
	"agora/internal/config"
	"agora/internal/middleware"
	"agora/internal/models"
	"agora/internal/notifications"
	"agora/internal/repository"
	"agora/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	store          repository.Store
	notifier       *notifications.Notifier
	ideas          *service.IdeaService
	votes          *service.VoteService
	lifecycle      *service.LifecycleService
	merges         *service.MergeService
}

// NewServerWithDeps creates a Server using already-initialized dependencies. redisClient may be
// nil, in which case caching and notification fan-out are disabled.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	if cfg == nil || db == nil {
		return nil, errors.New("server requires config and database")
	}

	store := repository.NewStore(db)
	ideaCache := cache.New(redisClient)
	notifier := notifications.NewNotifier(redisClient)
	scopes := repository.NewIdeaScopes(cfg.SuppressEmptyIdeas)

	lifecycleSvc := service.NewLifecycleService(store, notifier, ideaCache, time.Now)
	mergeTimeout := time.Duration(cfg.MergeTimeoutSeconds) * time.Second

	return &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("agora-api"),
		store:          store,
		notifier:       notifier,
		ideas:          service.NewIdeaService(store, scopes, lifecycleSvc, notifier, ideaCache, time.Now),
		votes:          service.NewVoteService(store, ideaCache),
		lifecycle:      lifecycleSvc,
		merges:         service.NewMergeService(store, ideaCache, mergeTimeout),
	}, nil
}

// App builds the Fiber application on first use.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}
	app := fiber.New(fiber.Config{
		AppName:      "agora",
		ErrorHandler: errorHandler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return app
}

// Start listens on the configured port until Shutdown is called.
func (s *Server) Start() error {
	addr := ":" + s.config.Port
	middleware.Logger.Info("Starting HTTP server", slog.String("addr", addr))
	return s.App().Listen(addr)
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app == nil {
		return nil
	}
	return s.app.ShutdownWithContext(ctx)
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())

	// Context Middleware to propagate Request ID, User ID and Trace ID
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(s.promMiddleware.Middleware)
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so rejected requests still carry CORS headers.
	app.Use(cors.New(cors.Config{
		AllowOrigins: s.config.AllowedOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		MaxAge:       86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || s.config.Env == "test"
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api")

	// Public idea routes
	publicIdeas := api.Group("/ideas", middleware.OptionalAuth(s.config.JWTSecret))
	publicIdeas.Get("/", s.ListIdeas)
	publicIdeas.Get("/:id", s.GetIdea)

	protected := api.Group("", middleware.AuthRequired(s.config.JWTSecret))

	ideas := protected.Group("/ideas")
	ideas.Post("/", s.rateLimit("create_idea", 5, 10*time.Minute), s.CreateIdea)
	ideas.Post("/:id/vote", s.rateLimit("vote", 60, time.Minute), s.CastVote)
	ideas.Delete("/:id/vote", s.rateLimit("vote", 60, time.Minute), s.WithdrawVote)
	ideas.Post("/:id/flag", s.rateLimit("flag", 10, 10*time.Minute), s.FlagIdea)

	admin := protected.Group("/admin", s.AdminRequired())
	adminIdeas := admin.Group("/ideas")
	adminIdeas.Post("/:id/events/:event", s.FireEvent)
	adminIdeas.Post("/:id/official-status", s.ChangeOfficialStatus)
	adminIdeas.Post("/:id/merge", s.MergeIdea)
}

// rateLimit throttles a route per user through Redis. Without Redis the limit fails open.
func (s *Server) rateLimit(name string, limit int, window time.Duration) fiber.Handler {
	return middleware.RateLimit(s.redis, middleware.RateLimitConfig{
		Name:     name,
		Limit:    limit,
		Window:   window,
		Disabled: s.config.Env == "test",
	})
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck pings the database and, when configured, Redis.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	// Redis is optional: the services fall back to the database without it.
	redisStatus := "disabled"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus != "healthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// AdminRequired returns middleware that rejects non-admin users with 403.
// Must be placed after AuthRequired so that userID is available in locals.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(uint)

		user, err := s.store.Users().GetByID(c.UserContext(), userID)
		if err != nil {
			var appErr *models.AppError
			if errors.As(err, &appErr) && appErr.Code == models.CodeNotFound {
				return models.RespondWithError(c, fiber.StatusForbidden,
					models.NewUnauthorizedError("Admin access required"))
			}
			return respondError(c, err)
		}
		if !user.IsAdmin || user.Status != models.UserStatusActive {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewUnauthorizedError("Admin access required"))
		}

		return c.Next()
	}
}

// errorHandler answers errors that escape a handler, such as unmatched routes.
func errorHandler(c *fiber.Ctx, err error) error {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(models.ErrorResponse{Error: fiberErr.Message})
	}
	return respondError(c, err)
}
