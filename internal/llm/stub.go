package llm

import (
	"context"
	"sync"
)

// StubClient returns scripted responses in call order. Used by tests and by
// local development without provider credentials.
type StubClient struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	calls     int

	// LastSystem and LastUser hold the prompts from the most recent call.
	LastSystem string
	LastUser   string
}

// NewStubClient creates a stub that replays the given responses. When the
// script runs out the last response repeats.
func NewStubClient(responses ...string) *StubClient {
	return &StubClient{responses: responses}
}

// FailAt makes the nth call (zero-based) return err instead of its response.
func (s *StubClient) FailAt(n int, err error) *StubClient {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.errs) <= n {
		s.errs = append(s.errs, nil)
	}
	s.errs[n] = err
	return s
}

// Calls reports how many times Invoke has been called.
func (s *StubClient) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Name identifies the provider.
func (s *StubClient) Name() string { return "stub" }

// Invoke returns the next scripted response, honoring context cancellation.
func (s *StubClient) Invoke(ctx context.Context, system, user string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.calls
	s.calls++
	s.LastSystem = system
	s.LastUser = user

	if n < len(s.errs) && s.errs[n] != nil {
		return "", s.errs[n]
	}
	if len(s.responses) == 0 {
		return "", ErrEmptyResponse
	}
	if n >= len(s.responses) {
		n = len(s.responses) - 1
	}
	return s.responses[n], nil
}
