// Package api exposes the size cache engine to presentation layers
// (editors, CI) over HTTP in daemon mode.
package api

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rs/zerolog/log"

	"github.com/bundlecost/bundlecost/internal/config"
	"github.com/bundlecost/bundlecost/internal/observability"
	"github.com/bundlecost/bundlecost/internal/sizecache"
	"github.com/bundlecost/bundlecost/internal/watch"
)

// Server is the bundlecost measurement daemon.
type Server struct {
	app     *fiber.App
	config  *config.Config
	engine  *sizecache.Engine
	metrics *observability.Metrics
	tracer  *observability.Tracer
	watcher *watch.Manager
}

// NewServer creates the daemon around a cache engine. metrics, tracer
// and watcher may be nil (one-shot and test use).
func NewServer(cfg *config.Config, engine *sizecache.Engine, metrics *observability.Metrics, tracer *observability.Tracer, watcher *watch.Manager) *Server {
	app := fiber.New(fiber.Config{
		ServerHeader:          "bundlecost",
		AppName:               "bundlecost",
		BodyLimit:             cfg.Server.BodyLimit,
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
		IdleTimeout:           cfg.Server.IdleTimeout,
		DisableStartupMessage: !cfg.Debug,
		ErrorHandler:          errorHandler,
	})

	s := &Server{
		app:     app,
		config:  cfg,
		engine:  engine,
		metrics: metrics,
		tracer:  tracer,
		watcher: watcher,
	}

	app.Use(requestid.New())
	app.Use(recover.New())
	app.Use(cors.New())
	app.Use(compress.New())
	if cfg.Debug {
		app.Use(logger.New())
	}
	if metrics != nil {
		app.Use(metrics.MetricsMiddleware())
	}

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.app.Get("/health", s.handleHealth)
	if s.metrics != nil {
		s.app.Get("/metrics", s.metrics.Handler())
	}

	v1 := s.app.Group("/api/v1")
	v1.Post("/measure", s.handleMeasure)
	v1.Post("/state", s.handleState)
	v1.Post("/cache/clear", s.handleClearCache)
	v1.Get("/available", s.handleAvailable)
}

// Start begins listening on the configured address.
func (s *Server) Start() error {
	log.Info().Str("address", s.config.Server.Address).Msg("Starting bundlecost daemon")
	return s.app.Listen(s.config.Server.Address)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// App returns the underlying Fiber app, for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}
