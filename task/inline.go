package task

import (
	"context"
	"sync"

	"github.com/hupe1980/voicemesh/tool"
)

// Terminal tool names exposed to the model for an inline task only.
const (
	// ToolOnSuccess resolves the inline task successfully.
	ToolOnSuccess = "on_success"
	// ToolOnError resolves the inline task with a failure reason.
	ToolOnError = "on_error"
)

// completion is the single-assignment slot of an inline task. It transitions
// at most once from pending to a terminal state; later resolution attempts
// are no-ops and never overwrite the stored error.
type completion struct {
	once sync.Once
	done chan struct{}
	err  error
}

func newCompletion() *completion {
	return &completion{done: make(chan struct{})}
}

// resolve attempts the pending -> terminal transition. It reports whether
// this call won the transition.
func (c *completion) resolve(err error) bool {
	won := false
	c.once.Do(func() {
		c.err = err
		won = true
		close(c.done)
	})
	return won
}

func (c *completion) isDone() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// InlineOptions configures an InlineTask.
type InlineOptions struct {
	Options

	// PresetResult seeds the result value so on_success alone can resolve
	// the task without an explicit SetResult call.
	PresetResult any
}

// WithPresetResult seeds the inline task's result value.
func WithPresetResult(v any) func(o *InlineOptions) {
	return func(o *InlineOptions) { o.PresetResult = v }
}

// WithTaskOptions lifts base Task options into an InlineTask constructor call.
func WithTaskOptions(optFns ...func(o *Options)) func(o *InlineOptions) {
	return func(o *InlineOptions) {
		for _, fn := range optFns {
			fn(&o.Options)
		}
	}
}

// InlineTask specializes Task with a run-to-completion protocol: Run
// installs the task as current, optionally kicks off a proactive reply and
// suspends the caller until one of the two terminal tool operations resolves
// the completion slot. The parent task active at the moment Run was invoked
// is restored on every exit path.
type InlineTask struct {
	*Task

	completion *completion

	mu           sync.Mutex
	result       any
	parentTask   Tasker
	parentSpeech Speech
}

// NewInline constructs an InlineTask. The two terminal tools are registered
// on the task's own registry so they are exposed to the model only while
// this task is current.
func NewInline(optFns ...func(o *InlineOptions)) *InlineTask {
	var opts InlineOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	t := &InlineTask{
		completion: newCompletion(),
		result:     opts.PresetResult,
	}
	taskOpts := opts.Options
	taskOpts.Tools = append(taskOpts.Tools, t.successTool(), t.errorTool())
	t.Task = New(func(o *Options) { *o = taskOpts })
	return t
}

// Base implements Tasker.
func (t *InlineTask) Base() *Task { return t.Task }

// RunOptions configures a Run invocation.
type RunOptions struct {
	// ProactiveReply asks the runtime to begin generating a spoken reply
	// tied to this task's instructions and tools as soon as it becomes
	// current. Defaults to true.
	ProactiveReply bool
}

// WithProactiveReply toggles the proactive reply on entry.
func WithProactiveReply(enabled bool) func(o *RunOptions) {
	return func(o *RunOptions) { o.ProactiveReply = enabled }
}

// Run executes the inline task to completion inside the current turn:
//
//  1. captures the runtime's current task and in-flight speech as parents,
//  2. installs this task as current,
//  3. optionally starts a proactive reply (nested under the parent speech
//     when one is in flight),
//  4. suspends until a terminal tool resolves the completion slot or ctx is
//     cancelled,
//  5. returns the stored result, the stored failure, or ErrResultNotSet for
//     a success without payload.
//
// The previously current task is restored on every exit path, including
// cancellation and failure propagation.
func (t *InlineTask) Run(ctx context.Context, rt Runtime, optFns ...func(o *RunOptions)) (any, error) {
	opts := RunOptions{ProactiveReply: true}
	for _, fn := range optFns {
		fn(&opts)
	}

	parentTask := rt.CurrentTask()
	parentSpeech := rt.InFlightSpeech(ctx)

	t.mu.Lock()
	t.parentTask = parentTask
	t.parentSpeech = parentSpeech
	t.mu.Unlock()

	rt.SetCurrentTask(t)
	defer rt.SetCurrentTask(parentTask)

	logger := t.Logger()
	parentName := "<none>"
	if parentTask != nil {
		parentName = parentTask.Base().DisplayName()
	}
	logger.Debug("inline task running", "task", t.DisplayName(), "parent_task", parentName)

	if opts.ProactiveReply {
		rt.StartReply(ctx, t, parentSpeech)
	}

	select {
	case <-ctx.Done():
		// A resolution that landed before the cancellation still wins;
		// select picks arbitrarily when both channels are ready.
		if !t.completion.isDone() {
			logger.Warn("inline task cancelled", "task", t.DisplayName(), "error", ctx.Err())
			return nil, ctx.Err()
		}
	case <-t.completion.done:
	}

	if err := t.completion.err; err != nil {
		logger.Debug("inline task failed", "task", t.DisplayName(), "error", err)
		return nil, err
	}

	result := t.Result()
	if result == nil {
		return nil, ErrResultNotSet
	}
	logger.Debug("inline task completed", "task", t.DisplayName())
	return result, nil
}

// successTool builds the terminal success operation. It is guarded: the
// first terminal call wins and later calls are safe no-ops. The silent
// outcome keeps the turn loop from synthesizing a reply for this
// bookkeeping call.
func (t *InlineTask) successTool() tool.Tool {
	params := map[string]any{"type": "object", "properties": map[string]any{}}
	return tool.NewFunctionTool(
		ToolOnSuccess,
		"Call when the user confirms the information is correct and the job is done.",
		params,
		func(_ *tool.Context, _ map[string]any) (any, error) {
			t.completion.resolve(nil)
			return tool.Silent(t.Result()), nil
		},
	)
}

// errorTool builds the terminal failure operation carrying a free-text
// reason, guarded the same way as the success operation.
func (t *InlineTask) errorTool() tool.Tool {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"reason": map[string]any{
				"type":        "string",
				"description": "The reason for the error",
			},
		},
		"required": []string{"reason"},
	}
	return tool.NewFunctionTool(
		ToolOnError,
		"Call when the user wants to stop or refuses to provide the information.",
		params,
		func(_ *tool.Context, args map[string]any) (any, error) {
			reason, _ := args["reason"].(string)
			t.completion.resolve(&TaskFailed{Reason: reason})
			return tool.Silent(nil), nil
		},
	)
}

// Done reports whether the completion slot reached a terminal state.
func (t *InlineTask) Done() bool { return t.completion.isDone() }

// Err returns the stored failure once the task is terminal, else nil.
func (t *InlineTask) Err() error {
	if !t.completion.isDone() {
		return nil
	}
	return t.completion.err
}

// SetResult stores the success payload returned from Run. Tools of the task
// typically call this before the model invokes on_success.
func (t *InlineTask) SetResult(v any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.result = v
}

// Result returns the current result value, which may be nil while pending.
func (t *InlineTask) Result() any {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result
}

// ParentTask returns the task that was current when Run was invoked.
func (t *InlineTask) ParentTask() Tasker {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.parentTask
}

// ParentSpeech returns the speech unit that was in flight when Run was
// invoked, or nil.
func (t *InlineTask) ParentSpeech() Speech {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.parentSpeech
}
