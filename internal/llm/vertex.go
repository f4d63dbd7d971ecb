package llm

import (
	"context"
	"fmt"

	"cloud.google.com/go/vertexai/genai"
)

// VertexClient calls Gemini models through Vertex AI. Authentication uses
// application default credentials.
type VertexClient struct {
	client *genai.Client
	model  string
}

// NewVertexClient creates a client bound to a GCP project and region, e.g.
// model "gemini-1.5-pro" in "us-central1".
func NewVertexClient(ctx context.Context, projectID, region, model string) (*VertexClient, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("vertex: projectID and region cannot be empty")
	}
	client, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("vertex: create client: %w", err)
	}
	return &VertexClient{client: client, model: model}, nil
}

// Name identifies the provider.
func (c *VertexClient) Name() string { return "vertex" }

// Invoke sends one prompt pair to the model. Low temperature keeps the
// structured-output stages deterministic enough to parse.
func (c *VertexClient) Invoke(ctx context.Context, system, user string) (string, error) {
	ctx, cancel := callContext(ctx)
	defer cancel()

	m := c.client.GenerativeModel(c.model)
	m.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(system)},
	}
	m.GenerationConfig = genai.GenerationConfig{
		Temperature: genai.Ptr[float32](0.3),
	}

	resp, err := m.GenerateContent(ctx, genai.Text(user))
	if err != nil {
		return "", fmt.Errorf("vertex: generate content: %w", err)
	}

	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok && text != "" {
				return string(text), nil
			}
		}
	}
	return "", ErrEmptyResponse
}

// Close releases the underlying gRPC connection.
func (c *VertexClient) Close() error {
	return c.client.Close()
}
