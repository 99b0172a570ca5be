package api

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/quarryhq/quarry/pkg/docproc"
	"github.com/quarryhq/quarry/pkg/document"
	"github.com/quarryhq/quarry/pkg/ingest"
	"github.com/quarryhq/quarry/pkg/ingest/worker"
	"github.com/quarryhq/quarry/pkg/rag"
	"github.com/quarryhq/quarry/pkg/vector"
)

// Server is the HTTP API server for the document platform.
type Server struct {
	config    Config
	store     document.Store
	driver    vector.Driver
	engine    *rag.Engine
	processor *ingest.Processor
	pool      *worker.Pool
	docs      *docproc.Processor
	logger    *zap.Logger
	app       *fiber.App
}

// Deps carries the service dependencies injected into the server. The store
// and worker pool are shared with the inbox watcher when both run together.
type Deps struct {
	Store     document.Store
	Driver    vector.Driver
	Engine    *rag.Engine
	Processor *ingest.Processor
	Pool      *worker.Pool
	Docs      *docproc.Processor
}

// NewServer creates a new API server.
func NewServer(config Config, deps Deps, logger *zap.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		BodyLimit:             bodyLimit(config.MaxUploadBytes),
	})

	s := &Server{
		config:    config,
		store:     deps.Store,
		driver:    deps.Driver,
		engine:    deps.Engine,
		processor: deps.Processor,
		pool:      deps.Pool,
		docs:      deps.Docs,
		logger:    logger,
		app:       app,
	}

	app.Get("/api/health", s.handleHealth)
	app.Get("/api/stats", s.handleStats)
	app.Post("/api/documents/upload", s.handleUploadDocument)
	app.Get("/api/documents", s.handleListDocuments)
	app.Get("/api/documents/:id", s.handleGetDocument)
	app.Get("/api/documents/:id/content", s.handleGetDocumentContent)
	app.Delete("/api/documents/:id", s.handleDeleteDocument)
	app.Post("/api/search/query", s.handleSearchQuery)

	return s
}

// App exposes the underlying fiber app so additional handlers (e.g. the MCP
// endpoint) can be mounted before Run.
func (s *Server) App() *fiber.App {
	return s.app
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

func bodyLimit(maxUploadBytes int64) int {
	if maxUploadBytes <= 0 {
		return int(docproc.DefaultMaxFileSizeBytes) + 1024*1024
	}
	return int(maxUploadBytes) + 1024*1024
}
