// Package export converts finished documents to downloadable formats:
// PPTX, DOCX, and standalone HTML. Office files are built directly as OOXML
// packages, optionally with slide images from a headless-browser capture
// service.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Capture dimensions, 16:9 at 2x for quality.
const (
	CaptureWidth  = 1920
	CaptureHeight = 1080
)

// Capturer renders one slide's HTML to a PNG image.
type Capturer interface {
	CaptureSlide(ctx context.Context, html string, width, height int) ([]byte, error)
}

// HTTPCapturer delegates screenshots to an external capture service that
// drives a headless browser. The service accepts {html, width, height} and
// returns image/png.
type HTTPCapturer struct {
	endpoint   string
	httpClient *http.Client
}

// NewHTTPCapturer creates a capturer for the given service endpoint.
func NewHTTPCapturer(endpoint string) *HTTPCapturer {
	return &HTTPCapturer{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type captureRequest struct {
	HTML   string `json:"html"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// CaptureSlide posts the slide HTML and returns the PNG bytes.
func (c *HTTPCapturer) CaptureSlide(ctx context.Context, html string, width, height int) ([]byte, error) {
	reqBody, err := json.Marshal(captureRequest{HTML: html, Width: width, Height: height})
	if err != nil {
		return nil, fmt.Errorf("capture: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("capture: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("capture: send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("capture: status %d: %s", resp.StatusCode, string(body))
	}

	png, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("capture: read image: %w", err)
	}
	if len(png) == 0 {
		return nil, fmt.Errorf("capture: empty image")
	}
	return png, nil
}
