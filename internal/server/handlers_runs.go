package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/decksmith-ai/decksmith/internal/model"
)

// HandleCreateRun handles POST /v1/runs. The run is persisted in the created
// state; generation starts when a consumer attaches to its stream.
func (h *Handlers) HandleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req model.RunRequest
	if err := decodeJSON(r, &req, h.maxRequestBodyBytes); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body")
		return
	}

	req.Normalize()
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput,
				fmt.Sprintf("invalid field %q (%s)", verrs[0].Field(), verrs[0].Tag()))
			return
		}
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request")
		return
	}

	run := model.NewRun(req)

	// Set OTEL span attributes for trace correlation.
	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(
		attribute.String("decksmith.run_id", run.RunID),
		attribute.String("decksmith.document_type", string(run.DocumentType)),
	)

	if err := h.registry.CreateRun(r.Context(), run); err != nil {
		h.writeInternalError(w, r, "failed to create run", err)
		return
	}
	writeJSON(w, r, http.StatusCreated, run)
}

// HandleListRuns handles GET /v1/runs.
func (h *Handlers) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	limit, offset := parseListParams(r)
	runs, total := h.registry.ListRuns(limit, offset)
	writeList(w, r, runs, total, limit, offset, len(runs))
}

// HandleGetRun handles GET /v1/runs/{run_id}.
func (h *Handlers) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.registry.GetRun(r.PathValue("run_id"))
	if err != nil {
		h.writeDomainError(w, r, err, "failed to get run")
		return
	}
	writeJSON(w, r, http.StatusOK, run)
}

// HandleCancelRun handles POST /v1/runs/{run_id}/cancel.
func (h *Handlers) HandleCancelRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.orchestrator.Cancel(r.Context(), r.PathValue("run_id"))
	if err != nil {
		h.writeDomainError(w, r, err, "failed to cancel run")
		return
	}
	writeJSON(w, r, http.StatusOK, run)
}

// HandleDeleteRun handles DELETE /v1/runs/{run_id}. Deleting a run also
// removes its artifact.
func (h *Handlers) HandleDeleteRun(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("run_id")
	if err := h.registry.DeleteRun(r.Context(), runID); err != nil {
		h.writeDomainError(w, r, err, "failed to delete run")
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"run_id": runID, "deleted": true})
}

// HandleStreamRun handles GET /v1/runs/{run_id}/stream (SSE). Attaching to
// the stream claims the run and starts its pipeline; the connection carries
// every progress event until the run reaches a terminal state. Disconnecting
// mid-run cancels the run.
func (h *Handlers) HandleStreamRun(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("run_id")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "streaming not supported")
		return
	}

	// Claim before committing to the SSE response so claim failures can
	// still produce a proper JSON error status.
	events, err := h.orchestrator.Stream(r.Context(), runID)
	if err != nil {
		h.writeDomainError(w, r, err, "failed to start run")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Disable the server's WriteTimeout for this long-lived connection.
	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	keepalive := time.NewTicker(h.keepaliveEvery)
	defer keepalive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-keepalive.C:
			if _, err := w.Write([]byte(":keepalive\n\n")); err != nil {
				return
			}
			flusher.Flush()
		case ev, ok := <-events:
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", ev.EventID, ev.Kind, ev.Data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
