package mocks

import (
	"context"
	"sync"

	"github.com/phrazzld/scry-worker/internal/generation"
)

// MockProvider implements generation.Provider for testing.
//
// Without GenerateFn it returns Errors in order, one per call, and then
// succeeds with Response (or an echo response when Response is nil).
type MockProvider struct {
	// GenerateFn allows test cases to mock the Generate behavior
	GenerateFn func(ctx context.Context, req generation.Request) (*generation.Response, error)

	// Errors are returned by the first len(Errors) calls
	Errors []error

	// Response is returned once Errors are used up
	Response *generation.Response

	mu       sync.Mutex
	requests []generation.Request
	contexts []context.Context
}

// Generate implements generation.Provider
func (m *MockProvider) Generate(ctx context.Context, req generation.Request) (*generation.Response, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.contexts = append(m.contexts, ctx)
	call := len(m.requests)
	m.mu.Unlock()

	if m.GenerateFn != nil {
		return m.GenerateFn(ctx, req)
	}

	if call <= len(m.Errors) {
		return nil, m.Errors[call-1]
	}

	if m.Response != nil {
		resp := *m.Response
		resp.Primary = req.Primary
		return &resp, nil
	}

	return &generation.Response{
		Text:    "response to " + req.CallName(),
		Model:   req.Model,
		Primary: req.Primary,
	}, nil
}

// CallCount returns how many times Generate was called
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Requests returns a copy of every request passed to Generate
func (m *MockProvider) Requests() []generation.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]generation.Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// Contexts returns a copy of every context passed to Generate
func (m *MockProvider) Contexts() []context.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]context.Context, len(m.contexts))
	copy(out, m.contexts)
	return out
}
