package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/decksmith-ai/decksmith/internal/export"
	"github.com/decksmith-ai/decksmith/internal/orchestrator"
	"github.com/decksmith-ai/decksmith/internal/registry"
	"github.com/decksmith-ai/decksmith/internal/render"
)

// Server is the Decksmith HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	handlers   *Handlers
	logger     *slog.Logger
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ServerConfig holds all dependencies and configuration for creating a
// Server. MCPServer is optional (nil = disabled).
type ServerConfig struct {
	// Required dependencies.
	Registry     *registry.Registry
	Orchestrator *orchestrator.Orchestrator
	Renderer     *render.Renderer
	PPTX         *export.PPTXExporter
	DOCX         *export.DOCXExporter
	Logger       *slog.Logger

	// Optional dependencies (nil = disabled).
	MCPServer *mcpserver.MCPServer

	// HTTP server settings.
	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	Version             string
	LLMName             string
	MaxRequestBodyBytes int64
	KeepaliveEvery      time.Duration
	CORSOrigins         string
}

// New creates a new HTTP server with all routes configured.
func New(cfg ServerConfig) *Server {
	h := NewHandlers(HandlersDeps{
		Registry:            cfg.Registry,
		Orchestrator:        cfg.Orchestrator,
		Renderer:            cfg.Renderer,
		PPTX:                cfg.PPTX,
		DOCX:                cfg.DOCX,
		Logger:              cfg.Logger,
		Version:             cfg.Version,
		LLMName:             cfg.LLMName,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		KeepaliveEvery:      cfg.KeepaliveEvery,
	})

	mux := http.NewServeMux()

	// Run lifecycle.
	mux.HandleFunc("POST /v1/runs", h.HandleCreateRun)
	mux.HandleFunc("GET /v1/runs", h.HandleListRuns)
	mux.HandleFunc("GET /v1/runs/{run_id}", h.HandleGetRun)
	mux.HandleFunc("POST /v1/runs/{run_id}/cancel", h.HandleCancelRun)
	mux.HandleFunc("DELETE /v1/runs/{run_id}", h.HandleDeleteRun)

	// Progress stream (long-lived connection, starts the pipeline).
	mux.HandleFunc("GET /v1/runs/{run_id}/stream", h.HandleStreamRun)

	// Artifacts.
	mux.HandleFunc("GET /v1/artifacts", h.HandleListArtifacts)
	mux.HandleFunc("GET /v1/artifacts/{artifact_id}", h.HandleGetArtifact)
	mux.HandleFunc("GET /v1/artifacts/{artifact_id}/document", h.HandleGetDocument)
	mux.HandleFunc("GET /v1/artifacts/{artifact_id}/preview", h.HandlePreviewArtifact)
	mux.HandleFunc("GET /v1/artifacts/{artifact_id}/download", h.HandleDownloadArtifact)
	mux.HandleFunc("GET /v1/artifacts/{artifact_id}/slides/{index}", h.HandleGetSlide)
	mux.HandleFunc("PUT /v1/artifacts/{artifact_id}/slides/{index}", h.HandleEditSlide)
	mux.HandleFunc("PUT /v1/artifacts/{artifact_id}/slides/{index}/elements/{element_id}", h.HandleEditElement)
	mux.HandleFunc("POST /v1/artifacts/{artifact_id}/slides/{index}/regenerate", h.HandleRegenerateSlide)

	// MCP StreamableHTTP transport.
	if cfg.MCPServer != nil {
		mux.Handle("/mcp", mcpserver.NewStreamableHTTPServer(cfg.MCPServer))
	}

	// Health.
	mux.HandleFunc("GET /health", h.HandleHealth)

	// Middleware chain (outermost executes first):
	// request ID → CORS → tracing → logging → recovery → handler.
	var handler http.Handler = mux
	handler = recoveryMiddleware(cfg.Logger, handler)
	handler = loggingMiddleware(cfg.Logger, handler)
	handler = tracingMiddleware(handler)
	handler = corsMiddleware(splitOrigins(cfg.CORSOrigins), handler)
	handler = requestIDMiddleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		handler:  handler,
		handlers: h,
		logger:   cfg.Logger,
	}
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
