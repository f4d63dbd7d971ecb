package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/decksmith-ai/decksmith/internal/export"
	"github.com/decksmith-ai/decksmith/internal/model"
	"github.com/decksmith-ai/decksmith/internal/orchestrator"
	"github.com/decksmith-ai/decksmith/internal/registry"
	"github.com/decksmith-ai/decksmith/internal/render"
)

// validate checks request struct tags. Shared instance; the validator caches
// struct metadata and is safe for concurrent use.
var validate = validator.New()

// Handlers holds HTTP handler dependencies.
type Handlers struct {
	registry            *registry.Registry
	orchestrator        *orchestrator.Orchestrator
	renderer            *render.Renderer
	pptx                *export.PPTXExporter
	docx                *export.DOCXExporter
	logger              *slog.Logger
	startedAt           time.Time
	version             string
	llmName             string
	maxRequestBodyBytes int64
	keepaliveEvery      time.Duration
}

// HandlersDeps holds all dependencies for constructing Handlers.
type HandlersDeps struct {
	Registry            *registry.Registry
	Orchestrator        *orchestrator.Orchestrator
	Renderer            *render.Renderer
	PPTX                *export.PPTXExporter
	DOCX                *export.DOCXExporter
	Logger              *slog.Logger
	Version             string
	LLMName             string
	MaxRequestBodyBytes int64
	KeepaliveEvery      time.Duration
}

// NewHandlers creates a new Handlers with all dependencies.
func NewHandlers(d HandlersDeps) *Handlers {
	keepalive := d.KeepaliveEvery
	if keepalive <= 0 {
		keepalive = 15 * time.Second
	}
	return &Handlers{
		registry:            d.Registry,
		orchestrator:        d.Orchestrator,
		renderer:            d.Renderer,
		pptx:                d.PPTX,
		docx:                d.DOCX,
		logger:              d.Logger,
		startedAt:           time.Now(),
		version:             d.Version,
		llmName:             d.LLMName,
		maxRequestBodyBytes: d.MaxRequestBodyBytes,
		keepaliveEvery:      keepalive,
	}
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, model.HealthResponse{
		Status:     "ok",
		Version:    h.version,
		Store:      h.registry.StoreName(),
		LLM:        h.llmName,
		ActiveRuns: h.registry.ActiveRuns(),
		Uptime:     int64(time.Since(h.startedAt).Seconds()),
	})
}

// writeInternalError logs the cause and returns a generic 500 so internal
// details never leak to clients.
func (h *Handlers) writeInternalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.logger.Error(msg, "error", err, "request_id", RequestIDFromContext(r.Context()))
	writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, msg)
}

// writeDomainError maps domain errors onto HTTP statuses. Unrecognized errors
// fall through as 500s.
func (h *Handlers) writeDomainError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var vErr *model.ValidationError
	switch {
	case errors.Is(err, model.ErrNotFound):
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, err.Error())
	case errors.Is(err, orchestrator.ErrAlreadyStarted):
		writeError(w, r, http.StatusConflict, model.ErrCodeConflict, err.Error())
	case errors.Is(err, model.ErrInvalidTransition):
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
	case errors.As(err, &vErr):
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
	default:
		h.writeInternalError(w, r, fallback, err)
	}
}

// parseSlideIndex parses the zero-based {index} path segment.
func parseSlideIndex(r *http.Request) (int, error) {
	return strconv.Atoi(r.PathValue("index"))
}

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// parseListParams reads limit/offset query parameters with clamped defaults.
func parseListParams(r *http.Request) (limit, offset int) {
	limit = defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = min(n, maxListLimit)
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			offset = n
		}
	}
	return limit, offset
}
