package server

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/decksmith-ai/decksmith/internal/model"
)

// HandleListArtifacts handles GET /v1/artifacts.
func (h *Handlers) HandleListArtifacts(w http.ResponseWriter, r *http.Request) {
	limit, offset := parseListParams(r)
	metas, total := h.registry.ListDocuments(limit, offset)
	writeList(w, r, metas, total, limit, offset, len(metas))
}

// HandleGetArtifact handles GET /v1/artifacts/{artifact_id}.
func (h *Handlers) HandleGetArtifact(w http.ResponseWriter, r *http.Request) {
	doc, err := h.registry.GetDocument(r.PathValue("artifact_id"))
	if err != nil {
		h.writeDomainError(w, r, err, "failed to get artifact")
		return
	}
	writeJSON(w, r, http.StatusOK, model.ArtifactMeta{
		ArtifactID: doc.ArtifactID,
		Title:      doc.Deck.Title,
		SlideCount: len(doc.Slides),
		Language:   doc.Deck.Language,
		CreatedAt:  doc.CreatedAt,
	})
}

// HandleGetDocument handles GET /v1/artifacts/{artifact_id}/document.
// Returns the full structured document.
func (h *Handlers) HandleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.registry.GetDocument(r.PathValue("artifact_id"))
	if err != nil {
		h.writeDomainError(w, r, err, "failed to get document")
		return
	}
	writeJSON(w, r, http.StatusOK, doc)
}

// HandlePreviewArtifact handles GET /v1/artifacts/{artifact_id}/preview.
// Serves the deck as a browsable HTML page.
func (h *Handlers) HandlePreviewArtifact(w http.ResponseWriter, r *http.Request) {
	doc, err := h.registry.GetDocument(r.PathValue("artifact_id"))
	if err != nil {
		h.writeDomainError(w, r, err, "failed to get artifact")
		return
	}
	page, err := h.renderer.RenderDeck(doc)
	if err != nil {
		h.writeInternalError(w, r, "failed to render deck", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(page))
}

// HandleDownloadArtifact handles GET /v1/artifacts/{artifact_id}/download.
// The format query parameter selects pptx (default), docx, or html.
func (h *Handlers) HandleDownloadArtifact(w http.ResponseWriter, r *http.Request) {
	doc, err := h.registry.GetDocument(r.PathValue("artifact_id"))
	if err != nil {
		h.writeDomainError(w, r, err, "failed to get artifact")
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "pptx"
	}

	var (
		payload     []byte
		contentType string
	)
	switch format {
	case "pptx":
		payload, err = h.pptx.Export(r.Context(), doc)
		contentType = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	case "docx":
		payload, err = h.docx.Export(doc)
		contentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case "html":
		var page string
		page, err = h.renderer.RenderDeck(doc)
		payload = []byte(page)
		contentType = "text/html; charset=utf-8"
	default:
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput,
			fmt.Sprintf("unsupported format %q (want pptx, docx, or html)", format))
		return
	}
	if err != nil {
		h.writeInternalError(w, r, "failed to export artifact", err)
		return
	}

	filename := downloadFilename(doc.Deck.Title, format)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q; filename*=UTF-8''%s", filename, url.PathEscape(filename)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

// HandleGetSlide handles GET /v1/artifacts/{artifact_id}/slides/{index}.
// Serves one slide's rendered HTML.
func (h *Handlers) HandleGetSlide(w http.ResponseWriter, r *http.Request) {
	index, err := parseSlideIndex(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "slide index must be an integer")
		return
	}
	doc, err := h.registry.GetDocument(r.PathValue("artifact_id"))
	if err != nil {
		h.writeDomainError(w, r, err, "failed to get artifact")
		return
	}
	if index < 0 || index >= len(doc.Slides) {
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound,
			fmt.Sprintf("slide index %d out of range [0,%d)", index, len(doc.Slides)))
		return
	}
	html, err := h.renderer.RenderSlide(&doc.Slides[index], index, doc.Style)
	if err != nil {
		h.writeInternalError(w, r, "failed to render slide", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(html))
}

// HandleEditSlide handles PUT /v1/artifacts/{artifact_id}/slides/{index}.
// Replaces one slide with a caller-supplied version after validation.
func (h *Handlers) HandleEditSlide(w http.ResponseWriter, r *http.Request) {
	index, err := parseSlideIndex(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "slide index must be an integer")
		return
	}

	var req model.EditSlideRequest
	if err := decodeJSON(r, &req, h.maxRequestBodyBytes); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body")
		return
	}

	// Artifact ids mirror their run ids, so the orchestrator resolves the
	// owning run directly.
	doc, err := h.orchestrator.EditSlide(r.Context(), r.PathValue("artifact_id"), index, &req.Slide)
	if err != nil {
		h.writeDomainError(w, r, err, "failed to edit slide")
		return
	}
	html, err := h.renderer.RenderSlide(&doc.Slides[index], index, doc.Style)
	if err != nil {
		h.writeInternalError(w, r, "failed to render slide", err)
		return
	}
	writeJSON(w, r, http.StatusOK, model.SlideResponse{Slide: doc.Slides[index], HTML: html})
}

// HandleEditElement handles PUT /v1/artifacts/{artifact_id}/slides/{index}/elements/{element_id}.
// Replaces a single element in place, leaving the rest of the slide untouched.
func (h *Handlers) HandleEditElement(w http.ResponseWriter, r *http.Request) {
	index, err := parseSlideIndex(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "slide index must be an integer")
		return
	}

	var req model.EditElementRequest
	if err := decodeJSON(r, &req, h.maxRequestBodyBytes); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body")
		return
	}

	doc, err := h.orchestrator.EditElement(r.Context(), r.PathValue("artifact_id"), index, r.PathValue("element_id"), &req.Element)
	if err != nil {
		h.writeDomainError(w, r, err, "failed to edit element")
		return
	}
	html, err := h.renderer.RenderSlide(&doc.Slides[index], index, doc.Style)
	if err != nil {
		h.writeInternalError(w, r, "failed to render slide", err)
		return
	}
	writeJSON(w, r, http.StatusOK, model.SlideResponse{Slide: doc.Slides[index], HTML: html})
}

// HandleRegenerateSlide handles POST /v1/artifacts/{artifact_id}/slides/{index}/regenerate.
// Rebuilds one slide with a fresh generation call; optional instructions
// steer the rewrite.
func (h *Handlers) HandleRegenerateSlide(w http.ResponseWriter, r *http.Request) {
	index, err := parseSlideIndex(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "slide index must be an integer")
		return
	}

	var req model.RegenerateSlideRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req, h.maxRequestBodyBytes); err != nil {
			writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body")
			return
		}
	}
	instructions := ""
	if req.Instructions != nil {
		instructions = *req.Instructions
	}

	artifactID := r.PathValue("artifact_id")
	slide, err := h.orchestrator.RegenerateSlide(r.Context(), artifactID, index, instructions)
	if err != nil {
		h.writeDomainError(w, r, err, "failed to regenerate slide")
		return
	}
	doc, err := h.registry.GetDocument(artifactID)
	if err != nil {
		h.writeDomainError(w, r, err, "failed to get artifact")
		return
	}
	html, err := h.renderer.RenderSlide(slide, index, doc.Style)
	if err != nil {
		h.writeInternalError(w, r, "failed to render slide", err)
		return
	}
	writeJSON(w, r, http.StatusOK, model.SlideResponse{Slide: *slide, HTML: html})
}

// downloadFilename builds a safe attachment filename from the deck title.
func downloadFilename(title, ext string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', '\n', '\r':
			return '_'
		}
		return r
	}, strings.TrimSpace(title))
	if name == "" {
		name = "presentation"
	}
	return name + "." + ext
}
