// Package http provides the HTTP API for docchat.
package http

import (
	"context"
	"fmt"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docchat/internal/rag"
	"github.com/fyrsmithlabs/docchat/internal/registry"
)

// RAG is the document question-answering surface the server exposes.
type RAG interface {
	Ingest(ctx context.Context, req rag.IngestRequest) (*rag.IngestResult, error)
	ListCollections() []registry.Summary
	DeleteCollection(ctx context.Context, id string) error
	Answer(ctx context.Context, req rag.AnswerRequest, onFragment func(ctx context.Context, fragment string) error) error
	Chat(ctx context.Context, developerMessage, question, model, apiKey string, onFragment func(ctx context.Context, fragment string) error) error
}

// Server provides HTTP endpoints for docchat.
type Server struct {
	echo   *echo.Echo
	rag    RAG
	logger *zap.Logger
	config *Config
}

// defaultBodyLimit caps request body size, chiefly document uploads. Chunks
// and vectors for a document this size still fit comfortably in memory.
const defaultBodyLimit = "32M"

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int

	// BodyLimit caps request body size (echo syntax, e.g. "32M").
	// Defaults to defaultBodyLimit.
	BodyLimit string
}

// NewServer creates a new HTTP server.
func NewServer(ragService RAG, logger *zap.Logger, cfg *Config) (*Server, error) {
	if ragService == nil {
		return nil, fmt.Errorf("rag service cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "0.0.0.0",
			Port: 8000,
		}
	}
	if cfg.BodyLimit == "" {
		cfg.BodyLimit = defaultBodyLimit
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORS())
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:   e,
		rag:    ragService,
		logger: logger,
		config: cfg,
	}

	// Register routes
	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := s.echo.Group("/api")
	api.GET("/health", s.handleHealth)
	api.POST("/upload-document", s.handleUploadDocument)
	api.GET("/collections", s.handleListCollections)
	api.DELETE("/collections/:id", s.handleDeleteCollection)
	api.POST("/rag-chat", s.handleRAGChat)
	api.POST("/chat", s.handleChat)
}

// Handler returns the underlying HTTP handler, for tests.
func (s *Server) Handler() *echo.Echo {
	return s.echo
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
