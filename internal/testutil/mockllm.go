package testutil

import (
	"context"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// MockLLM provides scripted model responses for testing.
//
// Responses are consumed in enqueue order, one per Generate call, which makes
// multi-round tool loops testable: the first scripted step can request a tool
// call and the next one can return the final answer. When the script is
// exhausted, the fallback text is returned.
//
// Thread-safe for concurrent use.
type MockLLM struct {
	mu       sync.Mutex
	script   []mockStep
	fallback string
	requests []*ai.ModelRequest
}

type mockStep struct {
	parts []*ai.Part
	err   error
}

// NewMockLLM creates a mock LLM with the given fallback response.
func NewMockLLM(fallback string) *MockLLM {
	return &MockLLM{fallback: fallback}
}

// EnqueueText scripts a final-answer response.
func (m *MockLLM) EnqueueText(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, mockStep{parts: []*ai.Part{ai.NewTextPart(text)}})
}

// EnqueueToolCalls scripts a response requesting the given tool calls.
func (m *MockLLM) EnqueueToolCalls(calls ...*ai.ToolRequest) {
	parts := make([]*ai.Part, 0, len(calls))
	for _, tr := range calls {
		parts = append(parts, &ai.Part{
			Kind:        ai.PartToolRequest,
			ToolRequest: tr,
		})
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, mockStep{parts: parts})
}

// EnqueueError scripts a failing call.
func (m *MockLLM) EnqueueError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, mockStep{err: err})
}

// Requests returns a copy of every ModelRequest the mock has seen.
func (m *MockLLM) Requests() []*ai.ModelRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]*ai.ModelRequest, len(m.requests))
	copy(cp, m.requests)
	return cp
}

// CallCount returns the number of Generate calls the mock has received.
func (m *MockLLM) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Reset clears the script and recorded requests.
func (m *MockLLM) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = nil
	m.requests = nil
}

// RegisterModel registers the mock as a Genkit model and returns a reference.
// The model name will be "mock/test-model".
func (m *MockLLM) RegisterModel(g *genkit.Genkit) ai.Model {
	return genkit.DefineModel(g, "mock/test-model", &ai.ModelOptions{
		Label: "Mock Test Model",
		Supports: &ai.ModelSupports{
			Multiturn:  true,
			Tools:      true,
			SystemRole: true,
			Media:      false,
		},
	}, m.generate)
}

// generate is the Genkit model function.
func (m *MockLLM) generate(_ context.Context, req *ai.ModelRequest, _ ai.ModelStreamCallback) (*ai.ModelResponse, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)

	var step mockStep
	if len(m.script) > 0 {
		step = m.script[0]
		m.script = m.script[1:]
	} else {
		step = mockStep{parts: []*ai.Part{ai.NewTextPart(m.fallback)}}
	}
	m.mu.Unlock()

	if step.err != nil {
		return nil, step.err
	}

	return &ai.ModelResponse{
		Request: req,
		Message: &ai.Message{
			Role:    ai.RoleModel,
			Content: step.parts,
		},
	}, nil
}
