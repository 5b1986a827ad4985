// Package tool implements the function calling subsystem that lets tasks
// expose structured capabilities (APIs, computations, side-effects) to a
// language model with schema validated arguments, consistent error handling
// and rich metadata for LLM guidance.
package tool

import (
	"context"
	"fmt"

	"github.com/hupe1980/voicemesh/internal/util"
	"github.com/hupe1980/voicemesh/logging"
)

// Tool defines the interface for extending a task's capabilities with
// callable functions.
//
// Tools are registered per task; only the tools of the currently active task
// are exposed to the model on each conversational turn.
//
// Tool implementations should:
//   - Provide clear, descriptive names and descriptions
//   - Define proper JSON schema for parameters
//   - Handle errors gracefully
//   - Be thread-safe if used concurrently
type Tool interface {
	// Name returns the unique identifier for this tool within its task.
	// Names should follow function naming conventions (snake_case recommended).
	Name() string

	// Description returns a human-readable description of what this tool does.
	// This description is provided to the LLM to help it understand when and
	// how to use the tool.
	Description() string

	// Parameters returns a JSON schema describing the expected input format.
	Parameters() map[string]any

	// Call executes the tool with structured arguments. Arguments are parsed
	// from the model's JSON and validated against the tool's schema.
	Call(toolCtx *Context, args map[string]any) (any, error)
}

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`              // Name of the tool that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Details any    `json:"details,omitempty"` // Additional error details
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{Tool: tool, Message: message, Code: code}
}

// Context provides a constrained, auditable surface for tool implementations
// invoked during a conversational turn. It carries the cancellation context
// owned by the orchestrator, the function call identifier correlating the
// model request with its execution, and the name of the task whose registry
// resolved the call.
type Context struct {
	ctx            context.Context
	functionCallID string
	taskName       string
	logger         logging.Logger
}

// NewContext constructs a tool context for one function call.
func NewContext(ctx context.Context, functionCallID, taskName string, logger logging.Logger) *Context {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Context{ctx: ctx, functionCallID: functionCallID, taskName: taskName, logger: logger}
}

// Context returns the cancellation context of the tool invocation. Tools
// performing external calls must respect its cancellation; the orchestrator
// owns and cancels it independently of the task.
func (tc *Context) Context() context.Context { return tc.ctx }

// FunctionCallID returns the function call ID associated with the invocation.
func (tc *Context) FunctionCallID() string { return tc.functionCallID }

// TaskName returns the name of the task that resolved this call.
func (tc *Context) TaskName() string { return tc.taskName }

// Logger returns the logger associated with the tool invocation.
func (tc *Context) Logger() logging.Logger { return tc.logger }
