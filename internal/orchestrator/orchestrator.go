// Package orchestrator drives the staged generation pipeline for a run:
// outline, per-slide generation, per-slide render. It owns the run state
// machine, persists every transition through the registry before the
// matching event reaches the consumer, and honors cooperative cancellation
// at stage boundaries.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/decksmith-ai/decksmith/internal/generate"
	"github.com/decksmith-ai/decksmith/internal/model"
	"github.com/decksmith-ai/decksmith/internal/registry"
	"github.com/decksmith-ai/decksmith/internal/render"
	"github.com/decksmith-ai/decksmith/internal/telemetry"
)

// ErrAlreadyStarted is returned when a second consumer tries to stream a run
// whose pipeline has already been claimed. Runs are single-pass.
var ErrAlreadyStarted = errors.New("run already started")

// Orchestrator executes runs against the generation, render, and registry
// layers. Concurrency across runs is bounded by a weighted semaphore.
type Orchestrator struct {
	registry *registry.Registry
	gen      *generate.Service
	renderer *render.Renderer
	logger   *slog.Logger
	sem      *semaphore.Weighted
	metrics  *telemetry.RunMetrics

	mu      sync.Mutex
	started map[string]*runHandle
}

type runHandle struct {
	cancelled atomic.Bool
}

// New creates an orchestrator allowing at most maxConcurrent runs in flight.
func New(reg *registry.Registry, gen *generate.Service, renderer *render.Renderer, maxConcurrent int64, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	metrics, err := telemetry.NewRunMetrics()
	if err != nil {
		logger.Warn("run metrics unavailable", "error", err)
	}
	return &Orchestrator{
		registry: reg,
		gen:      gen,
		renderer: renderer,
		logger:   logger,
		sem:      semaphore.NewWeighted(maxConcurrent),
		metrics:  metrics,
		started:  make(map[string]*runHandle),
	}
}

// Stream claims the run and starts its pipeline. The returned channel is
// unbuffered: each event must be received before the pipeline advances, so a
// slow consumer naturally throttles generation. The channel closes when the
// run reaches a terminal state or the consumer's context ends.
//
// Returns ErrNotFound for unknown runs, ErrAlreadyStarted if the pipeline
// was claimed before, and ErrInvalidTransition for runs already terminal.
func (o *Orchestrator) Stream(ctx context.Context, runID string) (<-chan model.Event, error) {
	run, err := o.registry.GetRun(runID)
	if err != nil {
		return nil, err
	}
	if run.Status.Terminal() {
		return nil, fmt.Errorf("run %s is %s: %w", runID, run.Status, model.ErrInvalidTransition)
	}

	o.mu.Lock()
	if _, dup := o.started[runID]; dup {
		o.mu.Unlock()
		return nil, fmt.Errorf("run %s: %w", runID, ErrAlreadyStarted)
	}
	handle := &runHandle{}
	o.started[runID] = handle
	o.mu.Unlock()

	if err := o.sem.Acquire(ctx, 1); err != nil {
		o.mu.Lock()
		delete(o.started, runID)
		o.mu.Unlock()
		return nil, fmt.Errorf("acquire run slot: %w", err)
	}

	events := make(chan model.Event)
	go func() {
		defer o.sem.Release(1)
		defer close(events)
		o.execute(ctx, runID, handle, events)
	}()
	return events, nil
}

// Cancel requests cooperative cancellation. A run that has not started its
// pipeline is cancelled immediately; a running one stops at the next stage
// boundary. Cancelling a terminal run returns ErrInvalidTransition.
func (o *Orchestrator) Cancel(ctx context.Context, runID string) (*model.Run, error) {
	o.mu.Lock()
	handle, isStarted := o.started[runID]
	o.mu.Unlock()

	if isStarted {
		run, err := o.registry.GetRun(runID)
		if err != nil {
			return nil, err
		}
		if run.Status.Terminal() {
			return nil, fmt.Errorf("run %s is %s: %w", runID, run.Status, model.ErrInvalidTransition)
		}
		handle.cancelled.Store(true)
		o.logger.Info("cancellation requested", "run_id", runID)
		return run, nil
	}

	return o.registry.UpdateRun(ctx, runID, func(r *model.Run) error {
		return r.Transition(model.RunStatusCancelled)
	})
}

// execute runs the pipeline to a terminal state. Every status and progress
// change is persisted before the corresponding event is offered to the
// consumer; a consumer disconnect mid-run is treated as cancellation.
func (o *Orchestrator) execute(ctx context.Context, runID string, handle *runHandle, events chan<- model.Event) {
	logger := o.logger.With("run_id", runID)
	start := time.Now()

	run, err := o.registry.UpdateRun(ctx, runID, func(r *model.Run) error {
		if err := r.Transition(model.RunStatusPlanning); err != nil {
			return err
		}
		r.SetProgress(5)
		return nil
	})
	if err != nil {
		logger.Error("enter planning", "error", err)
		return
	}

	o.metrics.RunStarted(ctx)

	ok := o.emit(ctx, events, model.EventRunStart, runID, model.RunStartPayload{
		RunID:   runID,
		Status:  string(model.RunStatusPlanning),
		Message: "Starting presentation generation...",
	}) &&
		o.emit(ctx, events, model.EventRunProgress, runID, model.RunProgressPayload{
			Status:   string(model.RunStatusPlanning),
			Progress: run.Progress,
			Message:  "Planning presentation outline...",
		})
	if !ok {
		o.abandon(runID, "consumer disconnected during planning")
		return
	}

	outline, err := o.gen.GenerateOutline(ctx, run.Request)
	if err != nil {
		o.fail(ctx, runID, events, err)
		return
	}
	logger.Info("outline generated", "title", outline.Title, "sections", len(outline.Sections))

	if handle.cancelled.Load() {
		o.cancelNow(runID, "before generation")
		return
	}

	briefs := generate.ExpandBriefs(outline)
	total := len(briefs)
	dc := generate.ContextFor(run.Request, outline, total)

	if _, err := o.registry.UpdateRun(ctx, runID, func(r *model.Run) error {
		if err := r.Transition(model.RunStatusGenerating); err != nil {
			return err
		}
		r.SetTotalSlides(total)
		r.SetProgress(model.PlanningReserve)
		return nil
	}); err != nil {
		logger.Error("enter generating", "error", err)
		return
	}

	if !o.emit(ctx, events, model.EventRunProgress, runID, model.RunProgressPayload{
		Status:      string(model.RunStatusGenerating),
		Progress:    model.PlanningReserve,
		TotalSlides: total,
		Message:     fmt.Sprintf("Generating %d slides...", total),
	}) {
		o.abandon(runID, "consumer disconnected entering generation")
		return
	}

	slides := make([]model.Slide, 0, total)
	for i, brief := range briefs {
		if handle.cancelled.Load() {
			o.cancelNow(runID, fmt.Sprintf("before slide %d", i+1))
			return
		}

		if !o.emit(ctx, events, model.EventSlideStart, runID, model.SlideStartPayload{
			Index: i, Total: total, Type: brief.Type, Title: brief.Title,
		}) {
			o.abandon(runID, "consumer disconnected mid-generation")
			return
		}

		slide, err := o.gen.GenerateSlide(ctx, dc, i, brief)
		if err != nil {
			o.fail(ctx, runID, events, err)
			return
		}

		html, err := o.renderer.RenderSlide(slide, i, nil)
		if err != nil {
			o.fail(ctx, runID, events, err)
			return
		}

		slides = append(slides, *slide)

		updated, err := o.registry.UpdateRun(ctx, runID, func(r *model.Run) error {
			r.AdvanceSlide(i+1, total)
			return nil
		})
		if err != nil {
			logger.Error("persist slide progress", "slide", i+1, "error", err)
			return
		}

		ok := o.emit(ctx, events, model.EventSlideChunk, runID, model.SlideChunkPayload{Index: i, HTML: html}) &&
			o.emit(ctx, events, model.EventSlideComplete, runID, model.SlideCompletePayload{
				Index: i, Total: total, SlideID: slide.SlideID, Progress: updated.Progress,
			}) &&
			o.emit(ctx, events, model.EventRunProgress, runID, model.RunProgressPayload{
				Status:       string(model.RunStatusGenerating),
				Progress:     updated.Progress,
				CurrentSlide: i + 1,
				TotalSlides:  total,
				Message:      fmt.Sprintf("Generated slide %d of %d", i+1, total),
			})
		if !ok {
			o.abandon(runID, "consumer disconnected mid-generation")
			return
		}
		logger.Debug("slide generated", "slide", i+1, "total", total)
	}

	doc := &model.Document{
		SchemaVersion: model.SchemaVersionV1,
		ArtifactID:    runID,
		Deck: model.DeckMeta{
			Title:    outline.Title,
			Subtitle: outline.Subtitle,
			Language: run.Request.Language,
			Audience: run.Request.Audience,
			Tone:     run.Request.Tone,
		},
		Slides:    slides,
		CreatedAt: time.Now().UTC(),
	}
	if err := doc.Validate(); err != nil {
		o.fail(ctx, runID, events, err)
		return
	}
	if err := o.registry.SaveDocument(ctx, doc); err != nil {
		o.fail(ctx, runID, events, err)
		return
	}

	if _, err := o.registry.UpdateRun(ctx, runID, func(r *model.Run) error {
		return r.Complete(doc.ArtifactID)
	}); err != nil {
		logger.Error("complete run", "error", err)
		return
	}

	o.emit(ctx, events, model.EventRunComplete, runID, model.RunCompletePayload{
		ArtifactID:  doc.ArtifactID,
		TotalSlides: total,
		Progress:    100,
		Document:    doc,
	})
	o.metrics.RunCompleted(ctx, total, time.Since(start))
	logger.Info("run completed", "slides", total, "duration", time.Since(start))
}

// fail persists the FAILED transition and then offers the error event. No
// partial document is written.
func (o *Orchestrator) fail(ctx context.Context, runID string, events chan<- model.Event, cause error) {
	o.logger.Error("run failed", "run_id", runID, "error", cause)

	// Persist with a fresh context; the consumer may already be gone.
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if _, err := o.registry.UpdateRun(pctx, runID, func(r *model.Run) error {
		return r.Fail(cause.Error())
	}); err != nil {
		o.logger.Error("persist failure", "run_id", runID, "error", err)
	}

	stage := ""
	var genErr *model.GenerationError
	if errors.As(cause, &genErr) {
		stage = genErr.Stage
	}
	o.metrics.RunFailed(pctx, stage)
	o.emit(ctx, events, model.EventRunError, runID, model.RunErrorPayload{
		Error: cause.Error(),
		Stage: stage,
	})
}

// cancelNow persists the CANCELLED transition at a stage boundary.
func (o *Orchestrator) cancelNow(runID, where string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := o.registry.UpdateRun(ctx, runID, func(r *model.Run) error {
		return r.Transition(model.RunStatusCancelled)
	}); err != nil {
		o.logger.Error("persist cancellation", "run_id", runID, "error", err)
		return
	}
	o.logger.Info("run cancelled", "run_id", runID, "at", where)
}

// abandon handles a consumer disconnect: the pipeline stops and the run is
// marked cancelled. Already-persisted progress stays as it was.
func (o *Orchestrator) abandon(runID, reason string) {
	o.logger.Warn("run abandoned", "run_id", runID, "reason", reason)
	o.cancelNow(runID, reason)
}

// emit offers one event to the consumer, blocking until it is received or
// the consumer's context ends. Reports whether the event was delivered.
func (o *Orchestrator) emit(ctx context.Context, events chan<- model.Event, kind model.EventKind, runID string, payload any) bool {
	ev, err := model.NewEvent(kind, runID, payload)
	if err != nil {
		o.logger.Error("build event", "kind", kind, "error", err)
		return false
	}
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
