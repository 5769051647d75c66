// Package server assembles the full backend: configuration, infrastructure,
// the routing pipeline, and the Fiber HTTP surface.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"time"

	"github.com/modelzoo/backend/internal/api"
	"github.com/modelzoo/backend/internal/config"
	"github.com/modelzoo/backend/internal/services/chat"
	"github.com/modelzoo/backend/internal/services/circuitbreaker"
	"github.com/modelzoo/backend/internal/services/conversation"
	"github.com/modelzoo/backend/internal/services/database"
	"github.com/modelzoo/backend/internal/services/dispatch"
	"github.com/modelzoo/backend/internal/services/feedback"
	"github.com/modelzoo/backend/internal/services/orchestrator"
	"github.com/modelzoo/backend/internal/services/providers"
	"github.com/modelzoo/backend/internal/services/routing"
	"github.com/modelzoo/backend/internal/services/scoring"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/pprof"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Server is one backend instance
type Server struct {
	config *config.Config
	app    *fiber.App
	redis  *redis.Client
	db     *database.DB

	chatService     *chat.Service
	feedbackService *feedback.Service
	pipeline        *orchestrator.Orchestrator
	breakers        *circuitbreaker.Manager
}

// New creates a Server from a loaded configuration
func New(cfg *config.Config) *Server {
	if cfg == nil {
		panic("config cannot be nil - use config.LoadFromFile() to create one")
	}
	return &Server{config: cfg}
}

// Run starts the server and blocks until shutdown
func (s *Server) Run() error {
	if err := s.config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	setupLogLevel(s.config)

	port := s.config.Server.Port
	if port == "" {
		port = "8080"
	}
	listenAddr := ":" + port

	s.app = createFiberApp(s.config)

	var err error
	s.redis, err = createRedisClient(s.config)
	if err != nil {
		return err
	}
	if s.redis != nil {
		defer func() {
			if err := s.redis.Close(); err != nil {
				fiberlog.Errorf("Failed to close Redis client: %v", err)
			}
		}()
	}

	s.db, err = createDatabase(s.config)
	if err != nil {
		return err
	}
	if s.db != nil {
		defer func() {
			if err := s.db.Close(); err != nil {
				fiberlog.Errorf("Failed to close database connection: %v", err)
			}
		}()
	}

	s.setupServices()
	setupMiddleware(s.app, s.config)
	s.setupRoutes()

	fmt.Printf("ModelZoo backend starting on %s\n", listenAddr)
	fmt.Printf("   Environment: %s\n", s.config.Server.Environment)
	fmt.Printf("   Go version: %s\n", runtime.Version())
	fmt.Printf("   GOMAXPROCS: %d\n", runtime.GOMAXPROCS(0))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)

	serverErrChan := make(chan error, 1)
	go func() {
		if err := s.app.Listen(listenAddr); err != nil {
			serverErrChan <- err
		}
	}()

	select {
	case sig := <-sigChan:
		fiberlog.Infof("Received signal: %v. Starting graceful shutdown...", sig)
	case err := <-serverErrChan:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		fiberlog.Info("Context cancelled, starting shutdown...")
	}

	fiberlog.Info("Server shutting down gracefully...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	shutdownErrChan := make(chan error, 1)
	go func() {
		shutdownErrChan <- s.app.ShutdownWithTimeout(30 * time.Second)
	}()

	select {
	case err := <-shutdownErrChan:
		if err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		fiberlog.Info("Server shutdown completed successfully")
	case <-shutdownCtx.Done():
		return fmt.Errorf("shutdown timeout exceeded")
	}

	return nil
}

func (s *Server) setupServices() {
	contexts := conversation.NewRegistry(s.config.Router.Conversation)
	s.chatService = chat.NewService(s.db, contexts)

	scorer := scoring.NewScorer(s.config.Router.Scoring)
	selector := routing.NewSelector(s.config, s.config.Router.Routes, s.config.Router.FallbackModel)
	invokers := providers.NewRegistry(s.config)
	s.breakers = circuitbreaker.NewManager(s.redis, s.config.Router.CircuitBreaker)
	dispatcher := dispatch.NewDispatcher(invokers, s.breakers, s.config.Router.Retry)

	s.pipeline = orchestrator.New(scorer, selector, dispatcher, contexts, s.chatService, s.config.Router.SystemPrompt)
	s.chatService.SetPipeline(s.pipeline)

	s.feedbackService = feedback.NewService(s.db)
}

func (s *Server) setupRoutes() {
	chatHandler := api.NewChatHandler(s.chatService, s.pipeline)
	sessionHandler := api.NewSessionHandler(s.chatService)
	feedbackHandler := api.NewFeedbackHandler(s.feedbackService)
	modelsHandler := api.NewModelsHandler(s.config)
	healthHandler := api.NewHealthHandler(s.redis, s.db, s.breakers)

	s.app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"service": "modelzoo-backend", "status": "running"})
	})
	s.app.Get("/health", healthHandler.HealthCheck)

	apiGroup := s.app.Group("/api")
	apiGroup.Post("/chat", chatHandler.Chat)
	apiGroup.Post("/chat/stream", chatHandler.ChatStream)
	apiGroup.Post("/analyze", chatHandler.Analyze)

	apiGroup.Get("/models", modelsHandler.List)
	apiGroup.Get("/models/:id", modelsHandler.Get)

	apiGroup.Post("/sessions", sessionHandler.Create)
	apiGroup.Get("/sessions", sessionHandler.List)
	apiGroup.Get("/sessions/:id", sessionHandler.Get)
	apiGroup.Put("/sessions/:id", sessionHandler.Update)
	apiGroup.Delete("/sessions/:id", sessionHandler.Delete)
	apiGroup.Get("/sessions/:id/messages", sessionHandler.Messages)
	apiGroup.Get("/sessions/:id/feedback", feedbackHandler.SessionFeedback)

	apiGroup.Post("/feedback", feedbackHandler.Create)
	apiGroup.Get("/feedback/stats", feedbackHandler.Stats)
	apiGroup.Get("/messages/:id/suggestions", feedbackHandler.Suggestions)
}

func createFiberApp(cfg *config.Config) *fiber.App {
	isProd := cfg.IsProduction()

	return fiber.New(fiber.Config{
		AppName:              "ModelZoo Backend v1.0",
		EnablePrintRoutes:    !isProd,
		ReadTimeout:          2 * time.Minute,
		WriteTimeout:         2 * time.Minute,
		IdleTimeout:          5 * time.Minute,
		ReadBufferSize:       8192,
		WriteBufferSize:      8192,
		CompressedFileSuffix: ".gz",
		CaseSensitive:        true,
		ServerHeader:         "ModelZoo",
	})
}

func setupMiddleware(app *fiber.App, cfg *config.Config) {
	isProd := cfg.IsProduction()

	app.Use(recover.New(recover.Config{
		EnableStackTrace: !isProd,
	}))

	// Correlation id, readable from handlers via Locals
	app.Use(func(c *fiber.Ctx) error {
		id := c.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Locals("request_id", id)
		c.Set("X-Request-ID", id)
		return c.Next()
	})

	app.Use(limiter.New(limiter.Config{
		Max:               1000,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return fmt.Errorf("1000 requests per minute")
		},
	}))

	// Per-request deadline, client-tunable within bounds
	app.Use(func(c *fiber.Ctx) error {
		const (
			defaultTimeout = 30 * time.Second
			maxTimeout     = 2 * time.Minute
		)

		timeout := defaultTimeout
		if customTimeout := c.Get("X-Request-Timeout"); customTimeout != "" {
			if d, err := time.ParseDuration(customTimeout); err == nil && d > 0 {
				timeout = min(d, maxTimeout)
			}
		}

		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)

		return c.Next()
	})

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	if isProd {
		app.Use(logger.New(logger.Config{
			Format: "${time} ${status} ${method} ${path} ${latency} ${bytesSent}b\n",
			Output: os.Stdout,
		}))
	} else {
		app.Use(logger.New(logger.Config{
			Format: "[${time}] ${status} - ${latency} ${method} ${path} ${error}\n",
			Output: os.Stdout,
		}))
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, User-Agent, X-Request-ID, X-Request-Timeout",
		AllowMethods:     "GET, POST, PUT, DELETE, OPTIONS",
		AllowCredentials: true,
		MaxAge:           86400,
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
	}))

	if !isProd {
		app.Use(pprof.New())
	}
}

func setupLogLevel(cfg *config.Config) {
	logLevel := cfg.GetNormalizedLogLevel()

	switch logLevel {
	case "trace":
		fiberlog.SetLevel(fiberlog.LevelTrace)
	case "debug":
		fiberlog.SetLevel(fiberlog.LevelDebug)
	case "info":
		fiberlog.SetLevel(fiberlog.LevelInfo)
	case "warn", "warning":
		fiberlog.SetLevel(fiberlog.LevelWarn)
	case "error":
		fiberlog.SetLevel(fiberlog.LevelError)
	case "fatal":
		fiberlog.SetLevel(fiberlog.LevelFatal)
	case "panic":
		fiberlog.SetLevel(fiberlog.LevelPanic)
	default:
		fiberlog.SetLevel(fiberlog.LevelInfo)
		fiberlog.Warnf("Unknown log level '%s', defaulting to 'info'", logLevel)
	}
}

func createRedisClient(cfg *config.Config) (*redis.Client, error) {
	if cfg.RedisURL == "" {
		fiberlog.Info("Redis not configured - circuit breakers disabled")
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	return redis.NewClient(opt), nil
}

func createDatabase(cfg *config.Config) (*database.DB, error) {
	if cfg.Database == nil {
		fiberlog.Info("Database not configured - sessions are in-memory only")
		return nil, nil
	}

	db, err := database.New(*cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	fiberlog.Infof("Database connected (%s)", db.DriverName())
	return db, nil
}
