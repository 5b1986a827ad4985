package model

import (
	"context"
	"encoding/json"

	"github.com/hupe1980/voicemesh/core"
)

// ToolCall represents a function call request surfaced by a model provider.
// Unified across vendors so downstream logic does not need per-provider
// branching.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"` // JSON object of arguments
}

// ParseArguments decodes the raw argument payload into a generic map. An
// empty payload yields an empty map.
func (c ToolCall) ParseArguments() (map[string]any, error) {
	if len(c.Arguments) == 0 {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal(c.Arguments, &args); err != nil {
		return nil, err
	}
	return args, nil
}

// ToolDefinition declaratively exposes a callable function to the model.
// Parameters is a JSON Schema object (minimal subset expected).
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Request captures the normalized model input produced by the turn loop:
// the active task's chat history and its tool definitions. Task
// instructions travel as the leading system message of the history.
type Request struct {
	Messages []core.ChatMessage `json:"messages"`
	Tools    []ToolDefinition   `json:"tools,omitempty"`
	Stream   bool               `json:"stream,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a model.
type Response struct {
	ID           string      `json:"id"`
	Partial      bool        `json:"partial"`
	Text         string      `json:"text,omitempty"`
	ToolCalls    []ToolCall  `json:"tool_calls,omitempty"`
	FinishReason string      `json:"finish_reason,omitempty"` // "stop", "length", "tool_calls", etc.
	Usage        *TokenUsage `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "mock", etc.
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface required by the turn loop to drive
// generation. Generate returns a response channel (closed on completion) and
// a terminal error channel (buffered size 1).
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// Collect drains a Generate invocation into the final accumulated response.
// Tool calls and finish reason come from the terminal chunk; when the
// terminal chunk carries no text, the concatenated partials are used instead.
// It is a convenience for non-streaming consumers.
func Collect(ctx context.Context, respCh <-chan Response, errCh <-chan error) (Response, error) {
	var final Response
	var partials string
	for {
		select {
		case <-ctx.Done():
			return final, ctx.Err()
		case resp, ok := <-respCh:
			if !ok {
				select {
				case err := <-errCh:
					if err != nil {
						return final, err
					}
				default:
				}
				if final.Text == "" {
					final.Text = partials
				}
				return final, nil
			}
			if resp.Partial {
				partials += resp.Text
				continue
			}
			final = resp
		case err := <-errCh:
			if err != nil {
				return final, err
			}
		}
	}
}
