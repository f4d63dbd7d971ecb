// Package registry is the write-through persistence layer for runs and
// generated documents. An in-process cache is the read source of truth;
// every mutation lands in the durable store before the cache serves it.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/decksmith-ai/decksmith/internal/model"
)

// Registry caches runs and documents in memory and writes through to a
// durable store. Safe for concurrent use. Mutations to the same id are
// serialized by a per-id lock so state transitions cannot interleave, while
// writes for unrelated ids proceed without waiting on each other's store
// I/O; the registry-wide lock guards only the cache maps.
type Registry struct {
	store  Store
	logger *slog.Logger

	mu   sync.RWMutex
	runs map[string]*model.Run
	docs map[string]*model.Document

	keymu sync.Mutex
	keys  map[string]*sync.Mutex
}

// lockKey acquires the write lock for one run or artifact id. Key locks are
// kept for the registry's lifetime; ids are few and short-lived entries
// would race with waiting writers.
func (r *Registry) lockKey(id string) *sync.Mutex {
	r.keymu.Lock()
	m, ok := r.keys[id]
	if !ok {
		m = &sync.Mutex{}
		r.keys[id] = m
	}
	r.keymu.Unlock()
	m.Lock()
	return m
}

// Open creates a registry and warms its cache from the store.
func Open(ctx context.Context, store Store, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	runs, docs, err := store.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("registry: load: %w", err)
	}

	r := &Registry{
		store:  store,
		logger: logger,
		runs:   make(map[string]*model.Run, len(runs)),
		docs:   make(map[string]*model.Document, len(docs)),
		keys:   make(map[string]*sync.Mutex),
	}
	for _, run := range runs {
		r.runs[run.RunID] = run
	}
	for _, doc := range docs {
		r.docs[doc.ArtifactID] = doc
	}

	logger.Info("registry loaded",
		"store", store.Name(),
		"runs", len(r.runs),
		"documents", len(r.docs))
	return r, nil
}

// StoreName reports the durable backend for health checks.
func (r *Registry) StoreName() string { return r.store.Name() }

// Close closes the durable store.
func (r *Registry) Close() error { return r.store.Close() }

// CreateRun persists a new run. The store write happens before the cache
// insert; a store failure leaves the registry unchanged.
func (r *Registry) CreateRun(ctx context.Context, run *model.Run) error {
	key := r.lockKey(run.RunID)
	defer key.Unlock()

	r.mu.RLock()
	_, exists := r.runs[run.RunID]
	r.mu.RUnlock()
	if exists {
		return fmt.Errorf("registry: run %s already exists", run.RunID)
	}

	if err := r.store.SaveRun(ctx, run); err != nil {
		return fmt.Errorf("registry: save run: %w", err)
	}

	r.mu.Lock()
	r.runs[run.RunID] = run.Clone()
	r.mu.Unlock()
	return nil
}

// GetRun returns a copy of the run, or ErrNotFound.
func (r *Registry) GetRun(runID string) (*model.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	run, ok := r.runs[runID]
	if !ok {
		return nil, fmt.Errorf("registry: run %s: %w", runID, model.ErrNotFound)
	}
	return run.Clone(), nil
}

// UpdateRun applies fn to the current run state under the run's lock and
// writes the result through. If fn returns an error nothing is persisted and
// the error is returned unchanged, so callers can surface
// ErrInvalidTransition from the state machine directly.
func (r *Registry) UpdateRun(ctx context.Context, runID string, fn func(*model.Run) error) (*model.Run, error) {
	key := r.lockKey(runID)
	defer key.Unlock()

	r.mu.RLock()
	current, ok := r.runs[runID]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("registry: run %s: %w", runID, model.ErrNotFound)
	}

	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	if err := r.store.SaveRun(ctx, next); err != nil {
		return nil, fmt.Errorf("registry: save run: %w", err)
	}

	r.mu.Lock()
	r.runs[runID] = next
	r.mu.Unlock()
	return next.Clone(), nil
}

// ListRuns returns runs sorted newest-first with pagination, plus the total
// count before paging.
func (r *Registry) ListRuns(limit, offset int) ([]*model.Run, int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*model.Run, 0, len(r.runs))
	for _, run := range r.runs {
		all = append(all, run)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].RunID < all[j].RunID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := len(all)
	page := paginate(all, limit, offset)
	out := make([]*model.Run, len(page))
	for i, run := range page {
		out[i] = run.Clone()
	}
	return out, total
}

// DeleteRun removes a run and cascades to its artifact. Removing an unknown
// run returns ErrNotFound; the cascade tolerates an already-missing artifact.
func (r *Registry) DeleteRun(ctx context.Context, runID string) error {
	// Artifact ids mirror run ids, so one key lock covers the cascade.
	key := r.lockKey(runID)
	defer key.Unlock()

	r.mu.RLock()
	run, ok := r.runs[runID]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("registry: run %s: %w", runID, model.ErrNotFound)
	}

	if run.ArtifactID != nil {
		if err := r.store.DeleteDocument(ctx, *run.ArtifactID); err != nil {
			return fmt.Errorf("registry: delete document: %w", err)
		}
		r.mu.Lock()
		delete(r.docs, *run.ArtifactID)
		r.mu.Unlock()
	}
	if err := r.store.DeleteRun(ctx, runID); err != nil {
		return fmt.Errorf("registry: delete run: %w", err)
	}

	r.mu.Lock()
	delete(r.runs, runID)
	r.mu.Unlock()
	return nil
}

// SaveDocument persists a document, overwriting any previous version.
func (r *Registry) SaveDocument(ctx context.Context, doc *model.Document) error {
	key := r.lockKey(doc.ArtifactID)
	defer key.Unlock()

	if err := r.store.SaveDocument(ctx, doc); err != nil {
		return fmt.Errorf("registry: save document: %w", err)
	}

	r.mu.Lock()
	r.docs[doc.ArtifactID] = cloneDocument(doc)
	r.mu.Unlock()
	return nil
}

// GetDocument returns a copy of the document, or ErrNotFound.
func (r *Registry) GetDocument(artifactID string) (*model.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	doc, ok := r.docs[artifactID]
	if !ok {
		return nil, fmt.Errorf("registry: document %s: %w", artifactID, model.ErrNotFound)
	}
	return cloneDocument(doc), nil
}

// ListDocuments returns artifact summaries sorted by title with pagination,
// plus the total count before paging.
func (r *Registry) ListDocuments(limit, offset int) ([]model.ArtifactMeta, int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	metas := make([]model.ArtifactMeta, 0, len(r.docs))
	for _, doc := range r.docs {
		metas = append(metas, model.ArtifactMeta{
			ArtifactID: doc.ArtifactID,
			Title:      doc.Deck.Title,
			SlideCount: len(doc.Slides),
			Language:   doc.Deck.Language,
			CreatedAt:  doc.CreatedAt,
		})
	}
	sort.Slice(metas, func(i, j int) bool {
		if metas[i].Title == metas[j].Title {
			return metas[i].ArtifactID < metas[j].ArtifactID
		}
		return metas[i].Title < metas[j].Title
	})

	total := len(metas)
	return paginate(metas, limit, offset), total
}

// UpdateSlide replaces one slide of a stored document and writes the result
// through. Index is zero-based.
func (r *Registry) UpdateSlide(ctx context.Context, artifactID string, index int, slide *model.Slide) (*model.Document, error) {
	return r.updateDocument(ctx, artifactID, func(next *model.Document) error {
		if index < 0 || index >= len(next.Slides) {
			return model.NewValidationError(
				fmt.Sprintf("document %s", artifactID),
				fmt.Errorf("slide index %d out of range [0,%d)", index, len(next.Slides)))
		}
		next.Slides[index] = *slide
		return nil
	})
}

// UpdateElement replaces one element of a stored document's slide, matched
// by element id, and writes the result through. Index is zero-based.
func (r *Registry) UpdateElement(ctx context.Context, artifactID string, index int, elementID string, el *model.Element) (*model.Document, error) {
	return r.updateDocument(ctx, artifactID, func(next *model.Document) error {
		if index < 0 || index >= len(next.Slides) {
			return model.NewValidationError(
				fmt.Sprintf("document %s", artifactID),
				fmt.Errorf("slide index %d out of range [0,%d)", index, len(next.Slides)))
		}
		slide := &next.Slides[index]
		for i := range slide.Elements {
			if slide.Elements[i].ElementID == elementID {
				slide.Elements[i] = *el
				return nil
			}
		}
		return fmt.Errorf("registry: slide %s element %s: %w", slide.SlideID, elementID, model.ErrNotFound)
	})
}

// updateDocument clones the cached document, applies fn, validates, and
// writes the result through under the artifact's key lock.
func (r *Registry) updateDocument(ctx context.Context, artifactID string, fn func(*model.Document) error) (*model.Document, error) {
	key := r.lockKey(artifactID)
	defer key.Unlock()

	r.mu.RLock()
	doc, ok := r.docs[artifactID]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("registry: document %s: %w", artifactID, model.ErrNotFound)
	}

	next := cloneDocument(doc)
	if err := fn(next); err != nil {
		return nil, err
	}
	if err := next.Validate(); err != nil {
		return nil, err
	}
	if err := r.store.SaveDocument(ctx, next); err != nil {
		return nil, fmt.Errorf("registry: save document: %w", err)
	}

	r.mu.Lock()
	r.docs[artifactID] = next
	r.mu.Unlock()
	return cloneDocument(next), nil
}

// ActiveRuns counts runs not yet in a terminal status.
func (r *Registry) ActiveRuns() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, run := range r.runs {
		if !run.Status.Terminal() {
			n++
		}
	}
	return n
}

// cloneDocument deep-copies via a JSON round trip. Documents are mutated
// only on slide edits, so the cost is off the hot path.
func cloneDocument(doc *model.Document) *model.Document {
	raw, err := json.Marshal(doc)
	if err != nil {
		panic(fmt.Sprintf("registry: document marshal: %v", err))
	}
	var out model.Document
	if err := json.Unmarshal(raw, &out); err != nil {
		panic(fmt.Sprintf("registry: document unmarshal: %v", err))
	}
	return &out
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) || offset < 0 {
		return nil
	}
	end := offset + limit
	if limit <= 0 || end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
