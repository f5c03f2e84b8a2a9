package backend

import (
	"context"
	"encoding/json"
	"sync"
)

// Schema names used in requests so handlers can tell the phases apart
const (
	SchemaFileContext   = "file_context"
	SchemaAnnotationSet = "annotation_set"
)

// MockHandler produces the response for the n-th call (0-based)
type MockHandler func(req Request, call int) (json.RawMessage, error)

// Mock is a scripted backend for tests. It is safe for concurrent use.
type Mock struct {
	mu      sync.Mutex
	handler MockHandler
	calls   []Request
}

// NewMock creates a mock backend driven by handler
func NewMock(handler MockHandler) *Mock {
	return &Mock{handler: handler}
}

func (m *Mock) Generate(ctx context.Context, req Request) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	m.mu.Lock()
	n := len(m.calls)
	m.calls = append(m.calls, req)
	m.mu.Unlock()

	return m.handler(req, n)
}

func (m *Mock) Name() string {
	return "mock"
}

func (m *Mock) Model() string {
	return "mock-v1"
}

func (m *Mock) Close() error {
	return nil
}

// Calls returns a copy of every request received so far
func (m *Mock) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.calls...)
}

// CallCount returns the number of requests received so far
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// JSON marshals v for use in mock handlers; it panics on failure
func JSON(v interface{}) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
