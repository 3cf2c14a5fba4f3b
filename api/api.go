package api

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/reveriehq/engram/pkg/memory"
	"github.com/reveriehq/engram/pkg/storage"
)

// Server is the HTTP API server over the memory core.
type Server struct {
	config    Config
	manager   *memory.Manager
	summaries storage.SummaryStore
	logger    *zap.Logger
	app       *fiber.App
}

// NewServer creates the API server. The manager and summary store are
// injected so they can be shared with the background jobs.
func NewServer(config Config, manager *memory.Manager, summaries storage.SummaryStore, logger *zap.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config:    config,
		manager:   manager,
		summaries: summaries,
		logger:    logger,
		app:       app,
	}

	app.Get("/ping", s.handlePing)
	app.Post("/v1/memories", s.handleWriteMemory)
	app.Get("/v1/recall", s.handleRecall)
	app.Get("/v1/summaries", s.handleListSummaries)

	return s
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		zap.String("listen", s.config.ListenAddr),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App exposes the underlying fiber app for in-process testing.
func (s *Server) App() *fiber.App {
	return s.app
}
