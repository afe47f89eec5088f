package testutil

import (
	"context"
	"sync"
)

// MockProvider satisfies refine.Provider for tests without live API calls.
// When Responses is empty, Complete returns Content for every call; otherwise
// call N gets Responses[N] (or the last entry when N runs past the end).
// Set Err to simulate provider failures.
type MockProvider struct {
	mu        sync.Mutex
	Content   string   // canned response used when Responses is empty
	Responses []string // per-call response sequence
	Err       error    // if set, Complete returns this error
	CallCount int      // incremented on each Complete call
	Prompts   []string // every prompt received, for assertions
}

// Name returns the provider identifier.
func (m *MockProvider) Name() string { return "mock" }

// Complete returns the next canned response or the configured error.
func (m *MockProvider) Complete(_ context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.CallCount++
	idx := m.CallCount - 1
	m.Prompts = append(m.Prompts, prompt)
	m.mu.Unlock()

	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Responses) == 0 {
		return m.Content, nil
	}
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	}
	return m.Responses[idx], nil
}
