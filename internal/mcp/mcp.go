// Package mcp implements the Model Context Protocol server for Decksmith.
//
// The MCP server exposes deck generation and artifact access through MCP
// tools and resources, allowing MCP-compatible AI agents to drive the same
// pipeline as the HTTP API.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/decksmith-ai/decksmith/internal/model"
	"github.com/decksmith-ai/decksmith/internal/orchestrator"
	"github.com/decksmith-ai/decksmith/internal/registry"
)

// Server wraps the MCP server with Decksmith's service layer.
type Server struct {
	mcpServer *mcpserver.MCPServer
	registry  *registry.Registry
	orch      *orchestrator.Orchestrator
	logger    *slog.Logger
}

// New creates and configures a new MCP server with all resources and tools.
func New(reg *registry.Registry, orch *orchestrator.Orchestrator, logger *slog.Logger, version string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		registry: reg,
		orch:     orch,
		logger:   logger,
	}

	s.mcpServer = mcpserver.NewMCPServer(
		"decksmith",
		version,
		mcpserver.WithResourceCapabilities(true, true),
		mcpserver.WithToolCapabilities(true),
	)

	s.registerResources()
	s.registerTools()

	return s
}

// MCPServer returns the underlying mcp-go server for transport setup.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

func (s *Server) registerResources() {
	// decksmith://runs/recent: latest runs with status and progress.
	s.mcpServer.AddResource(
		mcplib.NewResource(
			"decksmith://runs/recent",
			"Recent Runs",
			mcplib.WithResourceDescription("Latest generation runs with status and progress"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleRunsRecent,
	)

	// decksmith://artifacts: generated deck summaries.
	s.mcpServer.AddResource(
		mcplib.NewResource(
			"decksmith://artifacts",
			"Artifacts",
			mcplib.WithResourceDescription("Generated deck artifacts with titles and slide counts"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleArtifacts,
	)

	// decksmith://artifact/{id}: one artifact's full structured document.
	s.mcpServer.AddResourceTemplate(
		mcplib.NewResourceTemplate(
			"decksmith://artifact/{id}",
			"Artifact Document",
			mcplib.WithTemplateDescription("Full structured document for a generated deck"),
			mcplib.WithTemplateMIMEType("application/json"),
		),
		s.handleArtifactDocument,
	)
}

func (s *Server) registerTools() {
	// decksmith_generate: run the full pipeline and return the artifact.
	s.mcpServer.AddTool(
		mcplib.NewTool("decksmith_generate",
			mcplib.WithDescription("Generate a slide deck from a prompt. Runs outline planning and per-slide generation, then returns the artifact id."),
			mcplib.WithString("prompt", mcplib.Description("What the deck should cover"), mcplib.Required()),
			mcplib.WithString("language", mcplib.Description("Output language code, e.g. ko or en")),
			mcplib.WithString("audience", mcplib.Description("Target audience")),
			mcplib.WithString("tone", mcplib.Description("Presentation tone")),
			mcplib.WithNumber("slide_count", mcplib.Description("Requested number of slides")),
		),
		s.handleGenerate,
	)

	// decksmith_get_run: run status lookup.
	s.mcpServer.AddTool(
		mcplib.NewTool("decksmith_get_run",
			mcplib.WithDescription("Get the status, progress, and artifact id of a generation run"),
			mcplib.WithString("run_id", mcplib.Description("Run identifier"), mcplib.Required()),
		),
		s.handleGetRun,
	)

	// decksmith_regenerate_slide: rebuild a single slide.
	s.mcpServer.AddTool(
		mcplib.NewTool("decksmith_regenerate_slide",
			mcplib.WithDescription("Regenerate one slide of a completed deck, optionally steering the rewrite"),
			mcplib.WithString("run_id", mcplib.Description("Run identifier"), mcplib.Required()),
			mcplib.WithNumber("index", mcplib.Description("Zero-based slide index"), mcplib.Required()),
			mcplib.WithString("instructions", mcplib.Description("Optional steering instructions")),
		),
		s.handleRegenerateSlide,
	)
}

func (s *Server) handleRunsRecent(ctx context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	runs, _ := s.registry.ListRuns(20, 0)
	data, err := json.MarshalIndent(runs, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal runs: %w", err)
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      "decksmith://runs/recent",
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleArtifacts(ctx context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	metas, _ := s.registry.ListDocuments(50, 0)
	data, err := json.MarshalIndent(metas, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal artifacts: %w", err)
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      "decksmith://artifacts",
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleArtifactDocument(ctx context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	uri := request.Params.URI
	id := strings.TrimPrefix(uri, "decksmith://artifact/")
	if id == "" || id == uri {
		return nil, fmt.Errorf("mcp: invalid artifact URI: %s", uri)
	}

	doc, err := s.registry.GetDocument(id)
	if err != nil {
		return nil, fmt.Errorf("mcp: artifact %s: %w", id, err)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal document: %w", err)
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// handleGenerate creates a run and drives its pipeline to a terminal state,
// draining the progress stream internally. MCP tool calls are synchronous, so
// there is no consumer to stream to.
func (s *Server) handleGenerate(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	prompt := request.GetString("prompt", "")
	if prompt == "" {
		return errorResult("prompt is required"), nil
	}

	req := model.RunRequest{
		Prompt:   prompt,
		Language: request.GetString("language", ""),
	}
	if audience := request.GetString("audience", ""); audience != "" {
		req.Audience = &audience
	}
	if tone := request.GetString("tone", ""); tone != "" {
		req.Tone = &tone
	}
	if n := request.GetInt("slide_count", 0); n > 0 {
		req.SlideCount = &n
	}
	req.Normalize()

	run := model.NewRun(req)
	if err := s.registry.CreateRun(ctx, run); err != nil {
		return errorResult(fmt.Sprintf("failed to create run: %v", err)), nil
	}

	events, err := s.orch.Stream(ctx, run.RunID)
	if err != nil {
		return errorResult(fmt.Sprintf("failed to start run: %v", err)), nil
	}
	var failure *model.RunErrorPayload
	for ev := range events {
		if ev.Kind != model.EventRunError {
			continue
		}
		var payload model.RunErrorPayload
		if jsonErr := json.Unmarshal(ev.Data, &payload); jsonErr == nil {
			failure = &payload
		}
	}
	if failure != nil {
		return errorResult(fmt.Sprintf("generation failed (%s): %s", failure.Stage, failure.Error)), nil
	}

	final, err := s.registry.GetRun(run.RunID)
	if err != nil {
		return errorResult(fmt.Sprintf("failed to load run: %v", err)), nil
	}
	resultData, _ := json.Marshal(map[string]any{
		"run_id":      final.RunID,
		"status":      final.Status,
		"artifact_id": final.ArtifactID,
		"total_slides": func() int {
			if final.TotalSlides != nil {
				return *final.TotalSlides
			}
			return 0
		}(),
	})
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: string(resultData)},
		},
	}, nil
}

func (s *Server) handleGetRun(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	runID := request.GetString("run_id", "")
	if runID == "" {
		return errorResult("run_id is required"), nil
	}

	run, err := s.registry.GetRun(runID)
	if err != nil {
		return errorResult(fmt.Sprintf("run lookup failed: %v", err)), nil
	}
	resultData, _ := json.MarshalIndent(run, "", "  ")
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: string(resultData)},
		},
	}, nil
}

func (s *Server) handleRegenerateSlide(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	runID := request.GetString("run_id", "")
	if runID == "" {
		return errorResult("run_id is required"), nil
	}
	index := request.GetInt("index", -1)
	if index < 0 {
		return errorResult("index is required and must be >= 0"), nil
	}

	slide, err := s.orch.RegenerateSlide(ctx, runID, index, request.GetString("instructions", ""))
	if err != nil {
		return errorResult(fmt.Sprintf("regeneration failed: %v", err)), nil
	}
	resultData, _ := json.MarshalIndent(slide, "", "  ")
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: string(resultData)},
		},
	}, nil
}

func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
