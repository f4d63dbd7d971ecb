package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/decksmith-ai/decksmith/internal/config"
	"github.com/decksmith-ai/decksmith/internal/export"
	"github.com/decksmith-ai/decksmith/internal/generate"
	"github.com/decksmith-ai/decksmith/internal/llm"
	"github.com/decksmith-ai/decksmith/internal/mcp"
	"github.com/decksmith-ai/decksmith/internal/orchestrator"
	"github.com/decksmith-ai/decksmith/internal/registry"
	"github.com/decksmith-ai/decksmith/internal/render"
	"github.com/decksmith-ai/decksmith/internal/server"
	"github.com/decksmith-ai/decksmith/internal/telemetry"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run0())
}

func run0() int {
	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	level := slog.LevelInfo
	if os.Getenv("DECKSMITH_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger); err != nil {
		slog.Error("fatal error", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	slog.Info("decksmith starting", "version", version, "port", cfg.Port)

	// Initialize OpenTelemetry.
	otelShutdown, err := telemetry.Init(ctx, cfg.OTELEndpoint, cfg.ServiceName, version, true)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	// Open the durable store and warm the registry cache from it.
	store, err := newStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	reg, err := registry.Open(ctx, store, logger)
	if err != nil {
		return err
	}
	defer func() { _ = reg.Close() }()

	// Create the LLM client.
	client, err := newLLMClient(ctx, cfg)
	if err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	logger.Info("llm provider ready", "provider", client.Name())

	renderer, err := render.New()
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}

	gen := generate.NewService(client, logger)
	orch := orchestrator.New(reg, gen, renderer, int64(cfg.MaxConcurrentRuns), logger)

	// PPTX export captures slide images through the headless capture service
	// when one is configured; without it decks export as native text shapes.
	pptx := export.NewPPTXExporter()
	if cfg.CaptureEndpoint != "" {
		pptx = pptx.WithCapture(export.NewHTTPCapturer(cfg.CaptureEndpoint), renderer.RenderSlide)
		logger.Info("pptx export: image capture enabled", "endpoint", cfg.CaptureEndpoint)
	} else {
		logger.Info("pptx export: text mode (no capture endpoint)")
	}

	mcpSrv := mcp.New(reg, orch, logger, version)

	srv := server.New(server.ServerConfig{
		Registry:            reg,
		Orchestrator:        orch,
		Renderer:            renderer,
		PPTX:                pptx,
		DOCX:                export.NewDOCXExporter(),
		Logger:              logger,
		MCPServer:           mcpSrv.MCPServer(),
		Port:                cfg.Port,
		ReadTimeout:         cfg.ReadTimeout,
		WriteTimeout:        cfg.WriteTimeout,
		Version:             version,
		LLMName:             client.Name(),
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		KeepaliveEvery:      cfg.SSEKeepaliveEvery,
		CORSOrigins:         cfg.CORSOrigins,
	})

	// Start HTTP server in background.
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	// Graceful shutdown: stop accepting requests and drain in-flight SSE
	// streams, then close the store.
	slog.Info("decksmith shutting down")
	httpCtx, httpCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer httpCancel()
	if err := srv.Shutdown(httpCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}
	return nil
}

func newStore(ctx context.Context, cfg config.Config) (registry.Store, error) {
	switch cfg.StorageBackend {
	case "sqlite":
		return registry.NewSQLiteStore(ctx, cfg.SQLitePath)
	default:
		return registry.NewFileStore(cfg.StorageDir)
	}
}

func newLLMClient(ctx context.Context, cfg config.Config) (llm.Client, error) {
	switch cfg.LLMProvider {
	case "auto":
		// First provider with credentials wins.
		switch {
		case cfg.AnthropicAPIKey != "":
			return llm.NewAnthropicClient(cfg.AnthropicAPIKey, cfg.AnthropicModel, ""), nil
		case cfg.OpenAIAPIKey != "":
			return llm.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, ""), nil
		case cfg.GCPProjectID != "":
			return llm.NewVertexClient(ctx, cfg.GCPProjectID, cfg.GCPRegion, cfg.VertexModel)
		}
		return nil, fmt.Errorf("auto provider: no credentials found")
	case "anthropic":
		return llm.NewAnthropicClient(cfg.AnthropicAPIKey, cfg.AnthropicModel, ""), nil
	case "openai":
		return llm.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, ""), nil
	case "vertex":
		return llm.NewVertexClient(ctx, cfg.GCPProjectID, cfg.GCPRegion, cfg.VertexModel)
	case "stub":
		// Development provider; returns canned responses.
		return llm.NewStubClient(), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.LLMProvider)
	}
}
