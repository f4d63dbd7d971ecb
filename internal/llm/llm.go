// Package llm provides text-generation clients for the planning and
// generation stages.
//
// Defines a Client interface and Anthropic, OpenAI, and Vertex AI
// implementations. The interface allows swapping providers without changing
// consumers; tests use StubClient.
package llm

import (
	"context"
	"errors"
	"time"
)

// Client generates a completion from a system prompt and a user prompt.
type Client interface {
	// Invoke sends one prompt pair and returns the model's text output.
	Invoke(ctx context.Context, system, user string) (string, error)

	// Name identifies the provider for logging and health reporting.
	Name() string
}

// ErrEmptyResponse is returned when a provider answers successfully but with
// no usable text content.
var ErrEmptyResponse = errors.New("llm: empty response from provider")

// DefaultCallTimeout bounds a single provider call when the caller's context
// carries no earlier deadline. Slide generation makes many sequential calls,
// so one hung call must not stall the whole run.
const DefaultCallTimeout = 120 * time.Second

// callContext applies DefaultCallTimeout unless the parent context already
// has a deadline.
func callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, DefaultCallTimeout)
}
