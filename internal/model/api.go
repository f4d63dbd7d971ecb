package model

import (
	"time"
)

// Field length limits for run creation fields. These keep a single
// oversized prompt from blowing up LLM token budgets or filling the
// registry with caller-controlled garbage.
const (
	MaxPromptLen   = 10000
	MaxLanguageLen = 20
	MaxAudienceLen = 200
	MaxToneLen     = 200
	MaxSlideCount  = 100
)

// DefaultLanguage is applied when a run request omits the language field.
const DefaultLanguage = "ko"

// RunRequest is the request body for POST /v1/runs.
type RunRequest struct {
	Prompt       string       `json:"prompt" validate:"required,min=1,max=10000"`
	DocumentType DocumentType `json:"document_type,omitempty" validate:"omitempty,oneof=slides document"`
	Language     string       `json:"language,omitempty" validate:"omitempty,max=20"`
	Audience     *string      `json:"audience,omitempty" validate:"omitempty,max=200"`
	Tone         *string      `json:"tone,omitempty" validate:"omitempty,max=200"`
	SlideCount   *int         `json:"slide_count,omitempty" validate:"omitempty,min=1,max=100"`

	// Options carries provider-specific knobs passed through to the LLM
	// layer, e.g. {"temperature": 0.4}. Unknown keys are ignored.
	Options map[string]any `json:"options,omitempty"`
}

// Normalize fills request defaults in place.
func (r *RunRequest) Normalize() {
	if r.DocumentType == "" {
		r.DocumentType = DocumentTypeSlides
	}
	if r.Language == "" {
		r.Language = DefaultLanguage
	}
}

// EditSlideRequest is the request body for PUT .../slides/{index}.
type EditSlideRequest struct {
	Slide Slide `json:"slide"`
}

// EditElementRequest is the request body for PUT .../slides/{index}/elements/{element_id}.
type EditElementRequest struct {
	Element Element `json:"element"`
}

// RegenerateSlideRequest is the request body for POST .../slides/{index}/regenerate.
type RegenerateSlideRequest struct {
	Instructions *string `json:"instructions,omitempty" validate:"omitempty,max=2000"`
}

// APIResponse is the standard response envelope for all HTTP API responses.
type APIResponse struct {
	Data any          `json:"data,omitempty"`
	Meta ResponseMeta `json:"meta"`
}

// ListResponse is the standard envelope for paginated list endpoints.
type ListResponse struct {
	Data    any          `json:"data"`
	Total   *int         `json:"total,omitempty"`
	HasMore bool         `json:"has_more"`
	Limit   int          `json:"limit"`
	Offset  int          `json:"offset"`
	Meta    ResponseMeta `json:"meta"`
}

// APIError is the standard error response envelope.
type APIError struct {
	Error ErrorDetail  `json:"error"`
	Meta  ResponseMeta `json:"meta"`
}

// ResponseMeta contains request metadata included in every response.
type ResponseMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorDetail describes an API error.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorCode constants for standard API error codes.
const (
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeConflict      = "CONFLICT"
	ErrCodeInternalError = "INTERNAL_ERROR"
	ErrCodeUnavailable   = "UNAVAILABLE"
)

// ArtifactMeta is the summary returned by artifact metadata endpoints.
type ArtifactMeta struct {
	ArtifactID string    `json:"artifact_id"`
	Title      string    `json:"title"`
	SlideCount int       `json:"slide_count"`
	Language   string    `json:"language"`
	CreatedAt  time.Time `json:"created_at"`
}

// SlideResponse pairs a slide's structure with its rendered markup. Returned
// by slide edit and regeneration endpoints.
type SlideResponse struct {
	Slide Slide  `json:"slide"`
	HTML  string `json:"html"`
}

// HealthResponse is the response for GET /health.
type HealthResponse struct {
	Status     string `json:"status"`
	Version    string `json:"version"`
	Store      string `json:"store"`
	LLM        string `json:"llm"`
	ActiveRuns int    `json:"active_runs"`
	Uptime     int64  `json:"uptime_seconds"`
}
