// Package generate turns user prompts into outlines and slides via staged
// LLM calls. It owns the prompts, the outline-to-brief expansion, and the
// structural validation of what comes back.
package generate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/decksmith-ai/decksmith/internal/llm"
	"github.com/decksmith-ai/decksmith/internal/model"
)

// Service generates outlines and slides.
type Service struct {
	client llm.Client
	logger *slog.Logger
}

// NewService creates a generation service on top of an LLM client.
func NewService(client llm.Client, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{client: client, logger: logger}
}

// DeckContext carries the request-level parameters every slide call needs.
type DeckContext struct {
	Title       string
	Prompt      string
	Language    string
	Audience    string
	Tone        string
	TotalSlides int
}

// ContextFor builds a DeckContext from a run request and its outline.
func ContextFor(req model.RunRequest, outline *model.Outline, total int) DeckContext {
	dc := DeckContext{
		Title:       outline.Title,
		Prompt:      req.Prompt,
		Language:    req.Language,
		Audience:    "General",
		Tone:        "Professional",
		TotalSlides: total,
	}
	if req.Audience != nil && *req.Audience != "" {
		dc.Audience = *req.Audience
	}
	if req.Tone != nil && *req.Tone != "" {
		dc.Tone = *req.Tone
	}
	return dc
}

// GenerateOutline runs the planning stage. Failures are wrapped as
// GenerationError with stage "outline".
func (s *Service) GenerateOutline(ctx context.Context, req model.RunRequest) (*model.Outline, error) {
	target := "10-15"
	if req.SlideCount != nil {
		target = fmt.Sprintf("%d", *req.SlideCount)
	}
	audience := "General"
	if req.Audience != nil && *req.Audience != "" {
		audience = *req.Audience
	}
	tone := "Professional"
	if req.Tone != nil && *req.Tone != "" {
		tone = *req.Tone
	}

	user := fmt.Sprintf(`Create a presentation outline for:
%s

Requirements:
- Language: %s
- Target audience: %s
- Tone: %s
- Target slide count: %s slides

Create a well-structured outline.`, req.Prompt, req.Language, audience, tone, target)

	var outline model.Outline
	if err := llm.InvokeJSON(ctx, s.client, outlineSystemPrompt, user, &outline); err != nil {
		return nil, model.NewGenerationError("outline", err)
	}
	if err := outline.Validate(); err != nil {
		return nil, model.NewGenerationError("outline", err)
	}

	s.logger.Debug("outline generated",
		"title", outline.Title,
		"sections", len(outline.Sections))
	return &outline, nil
}

// GenerateSlide runs one generation-stage call for the brief at index
// (zero-based). The returned slide always carries slide_id "s<index+1>"
// regardless of what the model produced, and is structurally validated.
// Failures are wrapped as GenerationError with stage "slide".
func (s *Service) GenerateSlide(ctx context.Context, dc DeckContext, index int, brief model.SlideBrief) (*model.Slide, error) {
	points, _ := json.Marshal(brief.KeyPoints)

	user := fmt.Sprintf(`Generate slide #%d for presentation: %q

Slide info:
- Type: %s
- Title: %s
- Key points to cover: %s

Context:
- Language: %s
- Audience: %s
- Tone: %s
- Total slides: %d

Generate the slide JSON with slide_id "s%d".`,
		index+1, dc.Title, brief.Type, brief.Title, points,
		dc.Language, dc.Audience, dc.Tone, dc.TotalSlides, index+1)

	slide, err := s.invokeSlide(ctx, user, index)
	if err != nil {
		return nil, err
	}
	return slide, nil
}

// RegenerateSlide rebuilds a single existing slide, optionally steered by
// caller instructions, keeping its slide_id stable.
func (s *Service) RegenerateSlide(ctx context.Context, dc DeckContext, index int, current *model.Slide, instructions string) (*model.Slide, error) {
	existing, _ := json.Marshal(current)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Regenerate slide #%d of presentation %q.\n\nCurrent slide JSON:\n%s\n", index+1, dc.Title, existing)
	if instructions != "" {
		fmt.Fprintf(&sb, "\nApply these instructions:\n%s\n", instructions)
	}
	fmt.Fprintf(&sb, `
Context:
- Language: %s
- Audience: %s
- Tone: %s
- Total slides: %d

Generate a fresh slide JSON with slide_id %q.`, dc.Language, dc.Audience, dc.Tone, dc.TotalSlides, current.SlideID)

	slide, err := s.invokeSlide(ctx, sb.String(), index)
	if err != nil {
		return nil, err
	}
	slide.SlideID = current.SlideID
	return slide, nil
}

func (s *Service) invokeSlide(ctx context.Context, user string, index int) (*model.Slide, error) {
	var slide model.Slide
	if err := llm.InvokeJSON(ctx, s.client, slideSystemPrompt, user, &slide); err != nil {
		return nil, model.NewGenerationError("slide", err)
	}

	// The id is positional, not the model's to choose.
	slide.SlideID = fmt.Sprintf("s%d", index+1)
	renumberElements(&slide)

	if err := slide.Validate(); err != nil {
		return nil, model.NewGenerationError("slide", err)
	}
	return &slide, nil
}

// renumberElements rewrites element ids to the canonical s<N>_e<M> form so
// deck-wide uniqueness survives whatever ids the model invented.
func renumberElements(slide *model.Slide) {
	for i := range slide.Elements {
		slide.Elements[i].ElementID = fmt.Sprintf("%s_e%d", slide.SlideID, i+1)
	}
}
