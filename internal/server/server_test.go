package server_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decksmith-ai/decksmith/internal/export"
	"github.com/decksmith-ai/decksmith/internal/generate"
	"github.com/decksmith-ai/decksmith/internal/llm"
	"github.com/decksmith-ai/decksmith/internal/model"
	"github.com/decksmith-ai/decksmith/internal/orchestrator"
	"github.com/decksmith-ai/decksmith/internal/registry"
	"github.com/decksmith-ai/decksmith/internal/render"
	"github.com/decksmith-ai/decksmith/internal/server"
)

const testOutlineJSON = `{
  "title": "Launch Plan",
  "subtitle": "H2 priorities",
  "sections": [
    {"section_id": "sec1", "title": "Context", "slides": 1, "key_points": ["market"]},
    {"section_id": "sec2", "title": "Plan", "slides": 1, "key_points": ["timeline"]}
  ]
}`

// title + 2 section headers + closing
const testTotalSlides = 4

const testSlideJSON = `{
  "slide_id": "s1",
  "type": "content",
  "layout": {"layout_id": "one_column"},
  "elements": [{"element_id": "e1", "kind": "text", "content": {"text": "body"}}]
}`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store, err := registry.NewFileStore(t.TempDir())
	require.NoError(t, err)
	reg, err := registry.Open(context.Background(), store, nil)
	require.NoError(t, err)
	renderer, err := render.New()
	require.NoError(t, err)

	stub := llm.NewStubClient(testOutlineJSON, testSlideJSON)
	orch := orchestrator.New(reg, generate.NewService(stub, nil), renderer, 4, nil)

	srv := server.New(server.ServerConfig{
		Registry:            reg,
		Orchestrator:        orch,
		Renderer:            renderer,
		PPTX:                export.NewPPTXExporter(),
		DOCX:                export.NewDOCXExporter(),
		Logger:              testLogger(),
		Version:             "test",
		LLMName:             stub.Name(),
		MaxRequestBodyBytes: 1 << 20,
		KeepaliveEvery:      time.Minute,
	})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

// postJSON posts a body and decodes the standard envelope's data field into out.
func postJSON(t *testing.T, url string, body string, out any) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	if out != nil {
		decodeData(t, resp.Body, out)
	}
	return resp
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	if out != nil {
		decodeData(t, resp.Body, out)
	}
	return resp
}

func decodeData(t *testing.T, body io.Reader, out any) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(body).Decode(&envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, out))
}

func decodeErrorCode(t *testing.T, body io.Reader) string {
	t.Helper()
	var envelope model.APIError
	require.NoError(t, json.NewDecoder(body).Decode(&envelope))
	return envelope.Error.Code
}

func createRun(t *testing.T, baseURL string) string {
	t.Helper()
	var run model.Run
	resp := postJSON(t, baseURL+"/v1/runs", `{"prompt": "launch plan"}`, &run)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NotEmpty(t, run.RunID)
	return run.RunID
}

// streamEventKinds consumes the SSE stream to completion and returns the
// event names in order.
func streamEventKinds(t *testing.T, baseURL, runID string) []string {
	t.Helper()
	resp, err := http.Get(baseURL + "/v1/runs/" + runID + "/stream")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	var kinds []string
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		if line := scanner.Text(); strings.HasPrefix(line, "event: ") {
			kinds = append(kinds, strings.TrimPrefix(line, "event: "))
		}
	}
	require.NoError(t, scanner.Err())
	return kinds
}

func completeRun(t *testing.T, baseURL string) string {
	t.Helper()
	runID := createRun(t, baseURL)
	kinds := streamEventKinds(t, baseURL, runID)
	require.NotEmpty(t, kinds)
	require.Equal(t, "run_complete", kinds[len(kinds)-1])
	return runID
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	var health model.HealthResponse
	resp := getJSON(t, ts.URL+"/health", &health)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "file", health.Store)
	assert.Equal(t, "stub", health.LLM)
	assert.Equal(t, "test", health.Version)
}

func TestRequestIDEcho(t *testing.T) {
	ts := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "req-42")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "req-42", resp.Header.Get("X-Request-ID"))
}

func TestCreateRunValidation(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"missing prompt", `{}`},
		{"blank prompt", `{"prompt": ""}`},
		{"unknown field", `{"prompt": "hi", "bogus": true}`},
		{"bad document type", `{"prompt": "hi", "document_type": "poster"}`},
		{"slide count too high", `{"prompt": "hi", "slide_count": 500}`},
		{"malformed json", `{"prompt"`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := postJSON(t, ts.URL+"/v1/runs", tc.body, nil)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestCreateRunDefaults(t *testing.T) {
	ts := newTestServer(t)

	var run model.Run
	resp := postJSON(t, ts.URL+"/v1/runs", `{"prompt": "launch plan"}`, &run)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, model.RunStatusCreated, run.Status)
	assert.Equal(t, model.DocumentTypeSlides, run.DocumentType)
	assert.Equal(t, model.DefaultLanguage, run.Request.Language)
	assert.Zero(t, run.Progress)
}

func TestGetRunNotFound(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/v1/runs/ghost")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, model.ErrCodeNotFound, decodeErrorCode(t, resp.Body))
}

func TestListRuns(t *testing.T) {
	ts := newTestServer(t)
	createRun(t, ts.URL)
	createRun(t, ts.URL)

	var runs []model.Run
	resp := getJSON(t, ts.URL+"/v1/runs?limit=1", &runs)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, runs, 1)
}

func TestStreamRunToCompletion(t *testing.T) {
	ts := newTestServer(t)
	runID := createRun(t, ts.URL)

	kinds := streamEventKinds(t, ts.URL, runID)
	want := []string{"run_start", "run_progress", "run_progress"}
	for i := 0; i < testTotalSlides; i++ {
		want = append(want, "slide_start", "slide_chunk", "slide_complete", "run_progress")
	}
	want = append(want, "run_complete")
	assert.Equal(t, want, kinds)

	var run model.Run
	getJSON(t, ts.URL+"/v1/runs/"+runID, &run)
	assert.Equal(t, model.RunStatusCompleted, run.Status)
	assert.Equal(t, 100.0, run.Progress)
	require.NotNil(t, run.ArtifactID)
	assert.Equal(t, runID, *run.ArtifactID)
}

func TestStreamUnknownRun(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/v1/runs/ghost/stream")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStreamTerminalRunRejected(t *testing.T) {
	ts := newTestServer(t)
	runID := completeRun(t, ts.URL)

	resp, err := http.Get(ts.URL + "/v1/runs/" + runID + "/stream")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, model.ErrCodeInvalidInput, decodeErrorCode(t, resp.Body))
}

func TestCancelRun(t *testing.T) {
	ts := newTestServer(t)
	runID := createRun(t, ts.URL)

	var run model.Run
	resp := postJSON(t, ts.URL+"/v1/runs/"+runID+"/cancel", "", &run)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, model.RunStatusCancelled, run.Status)

	// Cancelling a terminal run is rejected.
	resp = postJSON(t, ts.URL+"/v1/runs/"+runID+"/cancel", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDeleteRunCascades(t *testing.T) {
	ts := newTestServer(t)
	runID := completeRun(t, ts.URL)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/v1/runs/"+runID, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	for _, path := range []string{"/v1/runs/" + runID, "/v1/artifacts/" + runID} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
	}
}

func TestArtifactEndpoints(t *testing.T) {
	ts := newTestServer(t)
	runID := completeRun(t, ts.URL)

	var meta model.ArtifactMeta
	resp := getJSON(t, ts.URL+"/v1/artifacts/"+runID, &meta)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Launch Plan", meta.Title)
	assert.Equal(t, testTotalSlides, meta.SlideCount)

	var doc model.Document
	getJSON(t, ts.URL+"/v1/artifacts/"+runID+"/document", &doc)
	assert.Equal(t, model.SchemaVersionV1, doc.SchemaVersion)
	assert.Len(t, doc.Slides, testTotalSlides)

	var metas []model.ArtifactMeta
	getJSON(t, ts.URL+"/v1/artifacts", &metas)
	assert.Len(t, metas, 1)

	resp, err := http.Get(ts.URL + "/v1/artifacts/" + runID + "/slides/0")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
	page, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(page), `id="slide-s1"`)

	resp, err = http.Get(ts.URL + "/v1/artifacts/" + runID + "/slides/99")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPreviewArtifact(t *testing.T) {
	ts := newTestServer(t)
	runID := completeRun(t, ts.URL)

	resp, err := http.Get(ts.URL + "/v1/artifacts/" + runID + "/preview")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))

	page, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(page), "Launch Plan")
	assert.Contains(t, string(page), `id="slide-s1"`)
}

func TestDownloadArtifact(t *testing.T) {
	ts := newTestServer(t)
	runID := completeRun(t, ts.URL)

	tests := []struct {
		format      string
		contentType string
	}{
		{"pptx", "application/vnd.openxmlformats-officedocument.presentationml.presentation"},
		{"docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
		{"html", "text/html; charset=utf-8"},
	}
	for _, tc := range tests {
		t.Run(tc.format, func(t *testing.T) {
			resp, err := http.Get(ts.URL + "/v1/artifacts/" + runID + "/download?format=" + tc.format)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, tc.contentType, resp.Header.Get("Content-Type"))
			disposition := resp.Header.Get("Content-Disposition")
			assert.Contains(t, disposition, "Launch Plan."+tc.format)
			assert.Contains(t, disposition, "filename*=UTF-8''Launch%20Plan."+tc.format)

			payload, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.NotEmpty(t, payload)
		})
	}

	resp, err := http.Get(ts.URL + "/v1/artifacts/" + runID + "/download?format=pdf")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestEditSlideEndpoint(t *testing.T) {
	ts := newTestServer(t)
	runID := completeRun(t, ts.URL)

	body := `{"slide": {
	  "slide_id": "s2",
	  "type": "content",
	  "elements": [{"element_id": "s2_e1", "kind": "text", "content": {"text": "edited"}}]
	}}`
	req, err := http.NewRequest(http.MethodPut,
		ts.URL+"/v1/artifacts/"+runID+"/slides/1", bytes.NewReader([]byte(body)))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var edited model.SlideResponse
	decodeData(t, resp.Body, &edited)
	assert.Equal(t, "s2", edited.Slide.SlideID)
	assert.Contains(t, edited.HTML, `id="slide-s2"`)

	var doc model.Document
	getJSON(t, ts.URL+"/v1/artifacts/"+runID+"/document", &doc)
	assert.Equal(t, "s2_e1", doc.Slides[1].Elements[0].ElementID)
}

func TestEditElementEndpoint(t *testing.T) {
	ts := newTestServer(t)
	runID := completeRun(t, ts.URL)

	var doc model.Document
	getJSON(t, ts.URL+"/v1/artifacts/"+runID+"/document", &doc)
	target := doc.Slides[1].Elements[0].ElementID

	body := fmt.Sprintf(`{"element": {"element_id": %q, "kind": "text", "content": {"text": "patched"}}}`, target)
	req, err := http.NewRequest(http.MethodPut,
		ts.URL+"/v1/artifacts/"+runID+"/slides/1/elements/"+target, bytes.NewReader([]byte(body)))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var updated model.SlideResponse
	decodeData(t, resp.Body, &updated)
	assert.Contains(t, updated.HTML, "patched")

	ghost := `{"element": {"element_id": "ghost", "kind": "text", "content": {"text": "x"}}}`
	req, err = http.NewRequest(http.MethodPut,
		ts.URL+"/v1/artifacts/"+runID+"/slides/1/elements/ghost", bytes.NewReader([]byte(ghost)))
	require.NoError(t, err)
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
}

func TestRegenerateSlideEndpoint(t *testing.T) {
	ts := newTestServer(t)
	runID := completeRun(t, ts.URL)

	var regen model.SlideResponse
	resp := postJSON(t, ts.URL+"/v1/artifacts/"+runID+"/slides/2/regenerate",
		`{"instructions": "shorter"}`, &regen)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "s3", regen.Slide.SlideID, "regeneration keeps the positional id")
	assert.NotEmpty(t, regen.HTML)
}

func TestRegenerateSlideUnknownArtifact(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/v1/artifacts/ghost/slides/0/regenerate", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
