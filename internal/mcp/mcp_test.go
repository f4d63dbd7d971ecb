package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decksmith-ai/decksmith/internal/generate"
	"github.com/decksmith-ai/decksmith/internal/llm"
	"github.com/decksmith-ai/decksmith/internal/model"
	"github.com/decksmith-ai/decksmith/internal/orchestrator"
	"github.com/decksmith-ai/decksmith/internal/registry"
	"github.com/decksmith-ai/decksmith/internal/render"
)

const testOutlineJSON = `{
  "title": "Quarterly Review",
  "sections": [
    {"section_id": "sec1", "title": "Results", "slides": 1, "key_points": ["revenue"]}
  ]
}`

const testSlideJSON = `{
  "slide_id": "s1",
  "type": "content",
  "layout": {"layout_id": "one_column"},
  "elements": [{"element_id": "e1", "kind": "text", "content": {"text": "body"}}]
}`

func newTestMCP(t *testing.T) *Server {
	t.Helper()
	store, err := registry.NewFileStore(t.TempDir())
	require.NoError(t, err)
	reg, err := registry.Open(context.Background(), store, nil)
	require.NoError(t, err)
	renderer, err := render.New()
	require.NoError(t, err)

	stub := llm.NewStubClient(testOutlineJSON, testSlideJSON)
	orch := orchestrator.New(reg, generate.NewService(stub, nil), renderer, 2, nil)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(reg, orch, logger, "test")
}

func toolRequest(name string, args map[string]any) mcplib.CallToolRequest {
	return mcplib.CallToolRequest{
		Params: mcplib.CallToolParams{Name: name, Arguments: args},
	}
}

// toolText extracts the first TextContent text from a CallToolResult.
func toolText(t *testing.T, result *mcplib.CallToolResult) string {
	t.Helper()
	for _, c := range result.Content {
		if tc, ok := c.(mcplib.TextContent); ok {
			return tc.Text
		}
	}
	t.Fatal("no text content in tool result")
	return ""
}

func TestGenerateTool(t *testing.T) {
	s := newTestMCP(t)

	result, err := s.handleGenerate(context.Background(),
		toolRequest("decksmith_generate", map[string]any{"prompt": "quarterly review"}))
	require.NoError(t, err)
	require.False(t, result.IsError, toolText(t, result))

	var out struct {
		RunID       string          `json:"run_id"`
		Status      model.RunStatus `json:"status"`
		ArtifactID  *string         `json:"artifact_id"`
		TotalSlides int             `json:"total_slides"`
	}
	require.NoError(t, json.Unmarshal([]byte(toolText(t, result)), &out))
	assert.Equal(t, model.RunStatusCompleted, out.Status)
	require.NotNil(t, out.ArtifactID)
	// title + section header + closing
	assert.Equal(t, 3, out.TotalSlides)

	doc, err := s.registry.GetDocument(*out.ArtifactID)
	require.NoError(t, err)
	assert.Equal(t, "Quarterly Review", doc.Deck.Title)
}

func TestGenerateToolRequiresPrompt(t *testing.T) {
	s := newTestMCP(t)

	result, err := s.handleGenerate(context.Background(),
		toolRequest("decksmith_generate", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestGetRunTool(t *testing.T) {
	s := newTestMCP(t)
	run := model.NewRun(model.RunRequest{Prompt: "hello"})
	require.NoError(t, s.registry.CreateRun(context.Background(), run))

	result, err := s.handleGetRun(context.Background(),
		toolRequest("decksmith_get_run", map[string]any{"run_id": run.RunID}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var got model.Run
	require.NoError(t, json.Unmarshal([]byte(toolText(t, result)), &got))
	assert.Equal(t, run.RunID, got.RunID)
	assert.Equal(t, model.RunStatusCreated, got.Status)
}

func TestGetRunToolUnknown(t *testing.T) {
	s := newTestMCP(t)

	result, err := s.handleGetRun(context.Background(),
		toolRequest("decksmith_get_run", map[string]any{"run_id": "ghost"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestRegenerateSlideTool(t *testing.T) {
	s := newTestMCP(t)

	gen, err := s.handleGenerate(context.Background(),
		toolRequest("decksmith_generate", map[string]any{"prompt": "quarterly review"}))
	require.NoError(t, err)
	require.False(t, gen.IsError)
	var out struct {
		RunID string `json:"run_id"`
	}
	require.NoError(t, json.Unmarshal([]byte(toolText(t, gen)), &out))

	result, err := s.handleRegenerateSlide(context.Background(),
		toolRequest("decksmith_regenerate_slide", map[string]any{
			"run_id": out.RunID, "index": 1, "instructions": "shorter",
		}))
	require.NoError(t, err)
	require.False(t, result.IsError, toolText(t, result))

	var slide model.Slide
	require.NoError(t, json.Unmarshal([]byte(toolText(t, result)), &slide))
	assert.Equal(t, "s2", slide.SlideID)
}

func TestArtifactResource(t *testing.T) {
	s := newTestMCP(t)

	gen, err := s.handleGenerate(context.Background(),
		toolRequest("decksmith_generate", map[string]any{"prompt": "quarterly review"}))
	require.NoError(t, err)
	require.False(t, gen.IsError)
	var out struct {
		ArtifactID string `json:"artifact_id"`
	}
	require.NoError(t, json.Unmarshal([]byte(toolText(t, gen)), &out))

	req := mcplib.ReadResourceRequest{}
	req.Params.URI = "decksmith://artifact/" + out.ArtifactID
	contents, err := s.handleArtifactDocument(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, contents, 1)

	text, ok := contents[0].(mcplib.TextResourceContents)
	require.True(t, ok)
	var doc model.Document
	require.NoError(t, json.Unmarshal([]byte(text.Text), &doc))
	assert.Equal(t, "Quarterly Review", doc.Deck.Title)
}

func TestRunsRecentResource(t *testing.T) {
	s := newTestMCP(t)
	require.NoError(t, s.registry.CreateRun(context.Background(), model.NewRun(model.RunRequest{Prompt: "a"})))

	contents, err := s.handleRunsRecent(context.Background(), mcplib.ReadResourceRequest{})
	require.NoError(t, err)
	require.Len(t, contents, 1)

	text := contents[0].(mcplib.TextResourceContents)
	var runs []model.Run
	require.NoError(t, json.Unmarshal([]byte(text.Text), &runs))
	assert.Len(t, runs, 1)
}
