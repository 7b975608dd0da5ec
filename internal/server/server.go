// Package server contains the HTTP pages, JSON API and change-feed websocket
// of the recipe service.
package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"time"

	_ "recipebox/docs" // swagger docs
	"recipebox/internal/cache"
	"recipebox/internal/config"
	"recipebox/internal/database"
	"recipebox/internal/middleware"
	"recipebox/internal/models"
	"recipebox/internal/notifications"
	"recipebox/internal/repository"
	"recipebox/internal/service"
	"recipebox/internal/storage"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/gofiber/template/html/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
	"gorm.io/gorm"
)

//go:embed views
var viewsFS embed.FS

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	store          *storage.Store
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownFn     context.CancelFunc
	userRepo       repository.UserRepository
	recipeRepo     repository.RecipeRepository
	commentRepo    repository.CommentRepository
	notifier       *notifications.Notifier
	hub            *notifications.Hub
	feed           *notifications.Feed
	recipeService  *service.RecipeService
	commentService *service.CommentService
	authService    *service.AuthService
}

// NewServer connects the database, Redis and image storage from cfg.
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	store, err := storage.NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("storage setup failed: %w", err)
	}

	return NewServerWithDeps(cfg, db, cache.InitRedis(cfg.RedisURL), store)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// redisClient may be nil: caching, token revocation and cross-instance change
// delivery are then disabled.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, store *storage.Store) (*Server, error) {
	if store == nil {
		return nil, errors.New("image storage is required")
	}
	middleware.InitMiddleware(cfg, redisClient)

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		store:          store,
		promMiddleware: middleware.InitMetrics("recipebox-api"),
		userRepo:       repository.NewUserRepository(db),
		recipeRepo:     repository.NewRecipeRepository(db),
		commentRepo:    repository.NewCommentRepository(db),
		notifier:       notifications.NewNotifier(redisClient),
		hub:            notifications.NewHub(),
	}
	server.feed = notifications.NewFeed(server.hub, server.notifier)
	server.recipeService = service.NewRecipeService(server.recipeRepo, server.userRepo, store, redisClient, server.feed)
	server.commentService = service.NewCommentService(server.commentRepo, server.recipeRepo, server.feed)
	server.authService = service.NewAuthService(server.userRepo, redisClient, cfg.JWTSecret, cfg.PublicBaseURL)

	return server, nil
}

// Hub returns the change hub, for in-process comment views.
func (s *Server) Hub() *notifications.Hub { return s.hub }

// CommentService returns the comment service, for in-process comment views.
func (s *Server) CommentService() *service.CommentService { return s.commentService }

// App builds the Fiber application with middleware and routes.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}

	views, err := fs.Sub(viewsFS, "views")
	if err != nil {
		panic(err)
	}
	engine := html.NewFileSystem(http.FS(views), ".html")
	engine.AddFunc("deref", deref)
	engine.AddFunc("date", func(t time.Time) string { return t.Format("Jan 2, 2006 15:04") })

	app := fiber.New(fiber.Config{
		AppName:      "Recipebox",
		Views:        engine,
		BodyLimit:    (s.config.ImageMaxUploadSizeMB + 1) * 1024 * 1024,
		ErrorHandler: errorHandler,
	})
	s.app = app

	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
	}
	middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", "error", err)
	return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())

	if s.config.TracingEnabled {
		app.Use(middleware.TracingMiddleware())
	}

	// Context Middleware to propagate Request ID and trace ID
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New(helmet.Config{
		// Pages load images from the storage route and run one inline script.
		ContentSecurityPolicy: "default-src 'self'; img-src 'self' data: https: http:; script-src 'self' 'unsafe-inline'; connect-src 'self' ws: wss:",
	}))

	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so rejected requests still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:3000,http://127.0.0.1:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: origins != "*",
		MaxAge:           86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
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
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	// Uploaded images, served read-only from the bucket.
	app.Use("/storage/"+s.store.Bucket(), filesystem.New(filesystem.Config{
		Root:   afero.NewHttpFs(s.store.BucketFS()),
		MaxAge: 3600,
	}))

	api := app.Group("/api")
	api.Get("/", s.ReadinessCheck)
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{Title: "Recipebox Metrics"}))
	api.Get("/swagger/*", swagger.HandlerDefault)

	auth := api.Group("/auth")
	auth.Post("/signup", middleware.RateLimit(s.redis, 3, 10*time.Minute, "signup"), s.Signup)
	auth.Post("/login", middleware.RateLimit(s.redis, 10, 5*time.Minute, "login"), s.Login)
	auth.Post("/logout", middleware.AuthRequired, s.Logout)
	auth.Post("/recover", middleware.RateLimit(s.redis, 3, 15*time.Minute, "recover"), s.RecoverPassword)
	auth.Post("/reset", middleware.RateLimit(s.redis, 5, 15*time.Minute, "reset"), s.ResetPassword)
	auth.Put("/user", middleware.AuthRequired, s.UpdatePassword)
	auth.Get("/session", middleware.AuthRequired, s.GetSession)

	recipes := api.Group("/recipes")
	recipes.Get("/", s.GetRecipes)
	// Specific /:id/:resource routes before the generic /:id route.
	recipes.Get("/:id/comments", s.GetComments)
	recipes.Post("/:id/comments", middleware.AuthRequired,
		middleware.RateLimit(s.redis, 10, time.Minute, "create_comment"), s.CreateComment)
	recipes.Get("/:id", s.GetRecipe)
	recipes.Post("/", middleware.AuthRequired,
		middleware.RateLimit(s.redis, 10, 5*time.Minute, "create_recipe"), s.CreateRecipe)
	recipes.Put("/:id", middleware.AuthRequired, s.UpdateRecipe)
	recipes.Delete("/:id", middleware.AuthRequired, s.DeleteRecipe)

	api.Get("/users/me/recipes", middleware.AuthRequired, s.GetMyRecipes)

	comments := api.Group("/comments")
	comments.Get("/:commentId", s.GetComment)
	comments.Delete("/:commentId", middleware.AuthRequired, s.DeleteComment)

	api.Get("/ws/changes", middleware.AuthOptional, s.RequireWebSocketUpgrade, s.ChangesWebSocketHandler())

	s.setupPageRoutes(app)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests. Redis is optional: when it
// is not configured the check reports it as disabled.
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

	redisStatus := "disabled"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"websocket_clients": s.hub.ClientCount(),
		"time":              time.Now(),
	})
}

// Start starts the server on the configured port.
func (s *Server) Start() error {
	s.startChangeFeed()
	middleware.Logger.Info("Server starting", "port", s.config.Port)
	return s.App().Listen(":" + s.config.Port)
}

// Serve runs the server on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	s.startChangeFeed()
	middleware.Logger.Info("Server starting", "addr", ln.Addr().String())
	return s.App().Listener(ln)
}

// startChangeFeed subscribes the hub to Redis before the first request is
// served. A failed subscription leaves the server up with local delivery only.
func (s *Server) startChangeFeed() {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownFn = cancel

	if !s.notifier.Enabled() {
		return
	}
	if err := s.hub.StartWiring(ctx, s.notifier); err != nil {
		middleware.Logger.Error("failed to start change hub wiring", "hub", s.hub.Name(), "error", err)
	}
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", "error", err)
		}
	}

	if err := s.hub.Shutdown(ctx); err != nil {
		middleware.Logger.Error("error shutting down hub", "hub", s.hub.Name(), "error", err)
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", "error", cerr)
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", "error", rerr)
		}
	}

	middleware.Logger.Info("Server shutdown complete")
	return nil
}
