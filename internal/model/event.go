package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventKind identifies a progress event type on the run stream.
type EventKind string

const (
	EventRunStart      EventKind = "run_start"
	EventRunProgress   EventKind = "run_progress"
	EventRunComplete   EventKind = "run_complete"
	EventRunError      EventKind = "run_error"
	EventSlideStart    EventKind = "slide_start"
	EventSlideChunk    EventKind = "slide_chunk"
	EventSlideComplete EventKind = "slide_complete"
)

// Event is a single typed progress event emitted during a run. Data holds
// the kind-specific payload already marshalled to JSON, so the stream layer
// can forward it without knowing the payload shapes.
type Event struct {
	EventID   string          `json:"id"`
	Kind      EventKind       `json:"event"`
	RunID     string          `json:"run_id"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewEvent builds an event for a run, marshalling the payload. A payload
// that cannot marshal is a programming error, so the error propagates.
func NewEvent(kind EventKind, runID string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		EventID:   uuid.New().String(),
		Kind:      kind,
		RunID:     runID,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}, nil
}

// RunStartPayload announces that the run has been picked up.
type RunStartPayload struct {
	RunID   string `json:"run_id"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// RunProgressPayload reports overall completion after a status or slide
// boundary.
type RunProgressPayload struct {
	Status       string  `json:"status,omitempty"`
	Progress     float64 `json:"progress"`
	CurrentSlide int     `json:"current_slide"`
	TotalSlides  int     `json:"total_slides"`
	Message      string  `json:"message,omitempty"`
}

// RunCompletePayload carries the terminal success summary plus the finished
// document, so stream consumers need no follow-up fetch.
type RunCompletePayload struct {
	ArtifactID  string    `json:"artifact_id"`
	TotalSlides int       `json:"total_slides"`
	Progress    float64   `json:"progress"`
	Document    *Document `json:"document"`
}

// RunErrorPayload carries the terminal failure summary.
type RunErrorPayload struct {
	Error string `json:"error"`
	Stage string `json:"stage,omitempty"`
}

// SlideStartPayload announces generation of one slide.
type SlideStartPayload struct {
	Index int       `json:"index"`
	Total int       `json:"total"`
	Type  SlideType `json:"type"`
	Title string    `json:"title"`
}

// SlideChunkPayload carries rendered output for one slide.
type SlideChunkPayload struct {
	Index int    `json:"index"`
	HTML  string `json:"html"`
}

// SlideCompletePayload confirms one slide has been generated and persisted.
type SlideCompletePayload struct {
	Index    int     `json:"index"`
	Total    int     `json:"total"`
	SlideID  string  `json:"slide_id"`
	Progress float64 `json:"progress"`
}
