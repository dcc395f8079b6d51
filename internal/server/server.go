// Package server provides the HTTP API for kotae.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/extract"
	"github.com/hyperjump/kotae/internal/keyword"
	"github.com/hyperjump/kotae/internal/metrics"
	"github.com/hyperjump/kotae/internal/rag"
	"github.com/hyperjump/kotae/internal/storage"
)

// Server is the HTTP server for the kotae API.
type Server struct {
	pipeline  *rag.Pipeline
	registry  storage.Storage
	keyword   *keyword.BleveIndex
	extractor *extract.Extractor
	metrics   *metrics.Registry
	config    *config.Config
	logger    *zap.Logger
	server    *http.Server
}

// NewServer creates a server with the given dependencies. keyword may be nil
// when document search is disabled.
func NewServer(
	pipeline *rag.Pipeline,
	registry storage.Storage,
	kw *keyword.BleveIndex,
	reg *metrics.Registry,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		pipeline:  pipeline,
		registry:  registry,
		keyword:   kw,
		extractor: extract.NewExtractor(),
		metrics:   reg,
		config:    cfg,
		logger:    logger,
	}
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Post("/api/query", s.handleQuery)
	r.Post("/api/stream", s.handleStream)
	r.Post("/api/chat", s.handleChat)
	r.Delete("/api/sessions/{id}", s.handleResetSession)

	r.Post("/api/index", s.handleIndexText)
	r.Get("/api/index/info", s.handleIndexInfo)

	r.Post("/api/documents", s.handleUpload)
	r.Get("/api/documents", s.handleListDocuments)
	r.Get("/api/documents/search", s.handleSearchDocuments)
	r.Get("/api/documents/{id}", s.handleGetDocument)
	r.Delete("/api/documents/{id}", s.handleDeleteDocument)

	r.Post("/api/evaluation/run", s.handleEvaluationRun)
	r.Post("/api/benchmark/run", s.handleBenchmarkRun)

	r.Get("/api/metrics", s.handleMetrics)
	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
