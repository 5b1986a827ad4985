package model

import (
	"context"
	"fmt"
	"sync"
)

// MockModel is a lightweight in-memory Model useful for tests & examples.
// It supports two modes that can be combined:
//
//   - canned completions keyed by the latest user/tool input (AddResponse)
//   - a scripted queue of full responses consumed in order (Enqueue),
//     allowing tool-call turns to be simulated deterministically
//
// Scripted responses take precedence over canned completions.
type MockModel struct {
	mu        sync.Mutex
	info      Info
	responses map[string]string
	script    []Response
}

// NewMockModel constructs a MockModel with basic tool support enabled.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info: Info{
			Name:          name,
			Provider:      provider,
			SupportsTools: true,
		},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// Enqueue appends scripted responses consumed in FIFO order by Generate.
func (m *MockModel) Enqueue(responses ...Response) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, responses...)
}

// EnqueueText is shorthand for scripting a plain assistant reply.
func (m *MockModel) EnqueueText(text string) {
	m.Enqueue(Response{Text: text, FinishReason: "stop"})
}

// EnqueueToolCall is shorthand for scripting a single function call turn.
func (m *MockModel) EnqueueToolCall(id, name, argsJSON string) {
	m.Enqueue(Response{
		ToolCalls:    []ToolCall{{ID: id, Name: name, Arguments: []byte(argsJSON)}},
		FinishReason: "tool_calls",
	})
}

func (m *MockModel) next(req Request) Response {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.script) > 0 {
		resp := m.script[0]
		m.script = m.script[1:]
		return resp
	}

	var inputText string
	if n := len(req.Messages); n > 0 {
		inputText = req.Messages[n-1].Content
	}
	full := m.responses[inputText]
	if full == "" {
		full = fmt.Sprintf("Mock response to: %s", inputText)
	}
	return Response{Text: full, FinishReason: "stop"}
}

// Generate implements Model; emits optional streaming char chunks then the
// final response.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)

		final := m.next(req)
		if req.Stream && final.Text != "" {
			for _, r := range final.Text {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{Partial: true, Text: string(r)}:
				}
			}
		}
		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
		case respCh <- final:
		}
	}()

	return respCh, errCh
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }
