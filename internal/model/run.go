// Package model defines the core domain types for Decksmith: runs and their
// lifecycle state machine, the generated document, and the progress event
// stream. Types use strong typing (UUIDs as strings on the wire, time.Time,
// enums) and avoid interface{} wherever possible.
package model

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus represents the lifecycle state of a generation run.
type RunStatus string

const (
	RunStatusCreated    RunStatus = "created"
	RunStatusPlanning   RunStatus = "planning"
	RunStatusGenerating RunStatus = "generating"
	RunStatusRendering  RunStatus = "rendering"
	RunStatusCompleted  RunStatus = "completed"
	RunStatusFailed     RunStatus = "failed"
	RunStatusCancelled  RunStatus = "cancelled"
)

// Terminal reports whether no further transitions are permitted from s.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed, RunStatusCancelled:
		return true
	}
	return false
}

// Progress weights. Outline generation reserves a visible slice of the bar
// before the first slide lands; the remainder is spread over slide
// generation, and completion forces 100.
const (
	PlanningReserve = 10.0
	GenerationSpan  = 85.0
)

// DocumentType is the kind of artifact a run produces.
type DocumentType string

const (
	DocumentTypeSlides   DocumentType = "slides"
	DocumentTypeDocument DocumentType = "document"
)

// Run is one end-to-end document-generation request. Created on submission,
// exclusively mutated by the orchestrator while active, immutable once a
// terminal status is reached.
type Run struct {
	RunID        string       `json:"run_id"`
	Status       RunStatus    `json:"status"`
	DocumentType DocumentType `json:"document_type"`
	Progress     float64      `json:"progress"`
	CurrentSlide *int         `json:"current_slide,omitempty"`
	TotalSlides  *int         `json:"total_slides,omitempty"`
	ArtifactID   *string      `json:"artifact_id,omitempty"`
	Error        *string      `json:"error,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
	Request      RunRequest   `json:"request"`
}

// NewRun creates a Run in the created state from validated request parameters.
func NewRun(req RunRequest) *Run {
	now := time.Now().UTC()
	docType := req.DocumentType
	if docType == "" {
		docType = DocumentTypeSlides
	}
	return &Run{
		RunID:        uuid.New().String(),
		Status:       RunStatusCreated,
		DocumentType: docType,
		Progress:     0,
		CreatedAt:    now,
		UpdatedAt:    now,
		Request:      req,
	}
}

// validTransitions encodes the run state machine. FAILED is reachable from
// any non-terminal state; CANCELLED from any state strictly before
// COMPLETED/FAILED.
var validTransitions = map[RunStatus][]RunStatus{
	RunStatusCreated:    {RunStatusPlanning, RunStatusFailed, RunStatusCancelled},
	RunStatusPlanning:   {RunStatusGenerating, RunStatusFailed, RunStatusCancelled},
	RunStatusGenerating: {RunStatusRendering, RunStatusCompleted, RunStatusFailed, RunStatusCancelled},
	RunStatusRendering:  {RunStatusCompleted, RunStatusFailed, RunStatusCancelled},
}

// CanTransition reports whether to is a legal next status for the run.
func (r *Run) CanTransition(to RunStatus) bool {
	for _, next := range validTransitions[r.Status] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition moves the run to the given status, applying the entry effects
// of the target state. Returns ErrInvalidTransition (wrapped) if the move is
// not legal; the run is left unchanged in that case.
func (r *Run) Transition(to RunStatus) error {
	if !r.CanTransition(to) {
		return invalidTransition(r.Status, to)
	}

	switch to {
	case RunStatusPlanning:
		r.Error = nil
	case RunStatusCompleted:
		r.Progress = 100.0
	}
	// FAILED and CANCELLED freeze progress at its last value.

	r.Status = to
	r.UpdatedAt = time.Now().UTC()
	return nil
}

// Fail transitions the run to FAILED and records the error message.
func (r *Run) Fail(msg string) error {
	if err := r.Transition(RunStatusFailed); err != nil {
		return err
	}
	r.Error = &msg
	return nil
}

// Complete transitions the run to COMPLETED and attaches the artifact id.
func (r *Run) Complete(artifactID string) error {
	if err := r.Transition(RunStatusCompleted); err != nil {
		return err
	}
	r.ArtifactID = &artifactID
	return nil
}

// SetTotalSlides records the slide count learned from the outline.
// Called on entry to GENERATING.
func (r *Run) SetTotalSlides(n int) {
	r.TotalSlides = &n
	r.UpdatedAt = time.Now().UTC()
}

// AdvanceSlide records the completion of one slide and recomputes progress.
// Progress is monotonically non-decreasing while the run is active.
func (r *Run) AdvanceSlide(done, total int) {
	cur := done
	r.CurrentSlide = &cur
	if total > 0 {
		p := PlanningReserve + float64(done)/float64(total)*GenerationSpan
		if p > r.Progress {
			r.Progress = p
		}
	}
	r.UpdatedAt = time.Now().UTC()
}

// SetProgress raises progress to p if p is higher than the current value.
func (r *Run) SetProgress(p float64) {
	if p > r.Progress {
		r.Progress = p
	}
	r.UpdatedAt = time.Now().UTC()
}

// Clone returns a deep copy of the run. The orchestrator persists clones so
// registry readers never observe a run mid-mutation.
func (r *Run) Clone() *Run {
	c := *r
	c.CurrentSlide = clonePtr(r.CurrentSlide)
	c.TotalSlides = clonePtr(r.TotalSlides)
	c.ArtifactID = clonePtr(r.ArtifactID)
	c.Error = clonePtr(r.Error)
	c.Request.Options = cloneMap(r.Request.Options)
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
