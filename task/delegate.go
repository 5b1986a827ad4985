package task

import (
	"errors"
	"fmt"

	"github.com/hupe1980/voicemesh/tool"
)

// DelegateOptions configures a delegation tool.
type DelegateOptions struct {
	// Parameters is the JSON schema the model must satisfy when invoking
	// the delegation; arguments are handed to the build function. Defaults
	// to an empty object schema.
	Parameters map[string]any

	// InjectParentContext merges the parent task's history into the
	// sub-task before it runs, so the specialist sees the conversation so
	// far. Defaults to true.
	InjectParentContext bool

	// MergeBackContext merges the sub-task's history back into the parent
	// after completion, duplicate-safe. Defaults to true.
	MergeBackContext bool

	// ProactiveReply is forwarded to Run. Defaults to true.
	ProactiveReply bool
}

// WithDelegateParameters sets the delegation tool's argument schema.
func WithDelegateParameters(params map[string]any) func(o *DelegateOptions) {
	return func(o *DelegateOptions) { o.Parameters = params }
}

// WithoutParentContext disables merging the parent history into the sub-task.
func WithoutParentContext() func(o *DelegateOptions) {
	return func(o *DelegateOptions) { o.InjectParentContext = false }
}

// WithoutMergeBack disables merging the sub-task history back into the parent.
func WithoutMergeBack() func(o *DelegateOptions) {
	return func(o *DelegateOptions) { o.MergeBackContext = false }
}

// WithoutProactiveReply disables the sub-task's proactive reply on entry.
func WithoutProactiveReply() func(o *DelegateOptions) {
	return func(o *DelegateOptions) { o.ProactiveReply = false }
}

// NewDelegateTool builds the tool a parent task exposes to hand a
// conversation segment to an inline sub-task. When the model invokes it, the
// build function constructs (or looks up) the sub-task, Run executes it to
// completion while the turn loop keeps servicing user turns against the
// sub-task, and the terminal result becomes the tool response for the parent
// conversation.
//
// A TaskFailed terminal state is relayed as a structured tool response
// rather than an error so the parent model can pick the conversation back
// up; every other failure propagates.
func NewDelegateTool(
	name, description string,
	rt Runtime,
	build func(args map[string]any) *InlineTask,
	optFns ...func(o *DelegateOptions),
) tool.Tool {
	opts := DelegateOptions{
		Parameters:          map[string]any{"type": "object", "properties": map[string]any{}},
		InjectParentContext: true,
		MergeBackContext:    true,
		ProactiveReply:      true,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return tool.NewFunctionTool(name, description, opts.Parameters, func(tc *tool.Context, args map[string]any) (any, error) {
		parent := rt.CurrentTask()

		sub := build(args)
		if sub == nil {
			return nil, fmt.Errorf("delegate %q: build returned no task", name)
		}
		if opts.InjectParentContext && parent != nil {
			sub.InjectChatCtx(parent.Base().ChatCtx())
		}

		result, err := sub.Run(tc.Context(), rt, WithProactiveReply(opts.ProactiveReply))

		if opts.MergeBackContext && parent != nil {
			parent.Base().InjectChatCtx(sub.ChatCtx())
		}

		if err != nil {
			var failed *TaskFailed
			if errors.As(err, &failed) {
				return map[string]any{"status": "failed", "reason": failed.Reason}, nil
			}
			return nil, err
		}
		return map[string]any{"status": "completed", "result": result}, nil
	})
}
