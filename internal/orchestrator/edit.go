package orchestrator

import (
	"context"
	"fmt"

	"github.com/decksmith-ai/decksmith/internal/generate"
	"github.com/decksmith-ai/decksmith/internal/model"
)

// EditSlide replaces one slide of a completed run's document after
// validating the replacement. Index is zero-based.
func (o *Orchestrator) EditSlide(ctx context.Context, runID string, index int, slide *model.Slide) (*model.Document, error) {
	run, err := o.registry.GetRun(runID)
	if err != nil {
		return nil, err
	}
	if run.ArtifactID == nil {
		return nil, fmt.Errorf("run %s has no artifact: %w", runID, model.ErrNotFound)
	}
	if err := slide.Validate(); err != nil {
		return nil, err
	}
	return o.registry.UpdateSlide(ctx, *run.ArtifactID, index, slide)
}

// EditElement replaces one element of a completed run's slide, matched by
// element id, after validating the replacement. Index is zero-based.
func (o *Orchestrator) EditElement(ctx context.Context, runID string, index int, elementID string, el *model.Element) (*model.Document, error) {
	run, err := o.registry.GetRun(runID)
	if err != nil {
		return nil, err
	}
	if run.ArtifactID == nil {
		return nil, fmt.Errorf("run %s has no artifact: %w", runID, model.ErrNotFound)
	}
	if err := el.Validate(); err != nil {
		return nil, err
	}
	return o.registry.UpdateElement(ctx, *run.ArtifactID, index, elementID, el)
}

// RegenerateSlide rebuilds one slide of a completed run's document with a
// fresh generation call and persists the result.
func (o *Orchestrator) RegenerateSlide(ctx context.Context, runID string, index int, instructions string) (*model.Slide, error) {
	run, err := o.registry.GetRun(runID)
	if err != nil {
		return nil, err
	}
	if run.ArtifactID == nil {
		return nil, fmt.Errorf("run %s has no artifact: %w", runID, model.ErrNotFound)
	}
	doc, err := o.registry.GetDocument(*run.ArtifactID)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(doc.Slides) {
		return nil, model.NewValidationError(
			fmt.Sprintf("document %s", doc.ArtifactID),
			fmt.Errorf("slide index %d out of range [0,%d)", index, len(doc.Slides)))
	}

	outline := &model.Outline{Title: doc.Deck.Title}
	dc := generate.ContextFor(run.Request, outline, len(doc.Slides))

	slide, err := o.gen.RegenerateSlide(ctx, dc, index, &doc.Slides[index], instructions)
	if err != nil {
		return nil, err
	}
	if _, err := o.registry.UpdateSlide(ctx, doc.ArtifactID, index, slide); err != nil {
		return nil, err
	}
	return slide, nil
}
