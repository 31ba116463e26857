package api

import (
	"errors"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/sleeves/api/mcp"
	"github.com/papercomputeco/sleeves/pkg/search"
)

// multipartOverhead leaves room for multipart framing around an upload of
// MaxUploadBytes.
const multipartOverhead = 64 << 10

// Server is the API server for querying the album corpus.
type Server struct {
	config Config
	engine *search.Engine
	logger *zap.Logger
	app    *fiber.App
}

// NewServer creates a new API server.
// The engine is injected so that every space is loaded once at startup.
func NewServer(config Config, engine *search.Engine, logger *zap.Logger) (*Server, error) {
	if engine == nil {
		return nil, errors.New("search engine is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = DefaultMaxUploadBytes
	}

	s := &Server{
		config: config,
		engine: engine,
		logger: logger,
	}

	s.app = fiber.New(fiber.Config{
		DisableStartupMessage: true,
		Immutable:             true,
		BodyLimit:             config.MaxUploadBytes + multipartOverhead,
		ErrorHandler:          s.handleFiberError,
	})

	s.app.Get("/health", s.handleHealth)

	apiGroup := s.app.Group("/api")
	apiGroup.Post("/search", s.handleSearchVector)
	apiGroup.Get("/search-by-text", s.handleSearchText)
	apiGroup.Post("/search-by-image", s.handleSearchImage)
	apiGroup.Get("/genres", s.handleGenres)
	apiGroup.Get("/year-range", s.handleYearRange)
	apiGroup.Get("/stats", s.handleStats)

	mcpServer, err := mcp.NewServer(mcp.Config{
		Engine: engine,
		Noop:   config.DisableMCP,
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}
	if h := mcpServer.Handler(); h != nil {
		s.app.All("/mcp", adaptor.HTTPHandler(h))
	}

	return s, nil
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		zap.String("listen", s.config.ListenAddr),
		zap.Strings("spaces", s.engine.Spaces()),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
