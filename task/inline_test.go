package task_test

import (
	"context"
	"testing"
	"time"

	"github.com/hupe1980/voicemesh/core"
	"github.com/hupe1980/voicemesh/internal/testutil"
	"github.com/hupe1980/voicemesh/logging"
	"github.com/hupe1980/voicemesh/task"
	"github.com/hupe1980/voicemesh/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

// callTerminal invokes one of the inline task's terminal tools the way the
// turn loop would, through the task's own registry.
func callTerminal(t *testing.T, tk *task.InlineTask, name string, args map[string]any) any {
	t.Helper()
	tl, err := tk.Tools().Resolve(name)
	require.NoError(t, err)
	tc := tool.NewContext(context.Background(), core.NewID(), tk.DisplayName(), logging.NoOpLogger{})
	out, err := tl.Call(tc, args)
	require.NoError(t, err)
	return out
}

type runResult struct {
	value any
	err   error
}

func runAsync(tk *task.InlineTask, rt task.Runtime, optFns ...func(o *task.RunOptions)) <-chan runResult {
	ch := make(chan runResult, 1)
	go func() {
		v, err := tk.Run(context.Background(), rt, optFns...)
		ch <- runResult{value: v, err: err}
	}()
	return ch
}

func waitCurrent(t *testing.T, rt *testutil.FakeRuntime, want task.Tasker) {
	t.Helper()
	require.Eventually(t, func() bool { return rt.CurrentTask() == want }, waitFor, tick)
}

func TestInlineTask_TerminalToolsRegistered(t *testing.T) {
	tk := task.NewInline(task.WithTaskOptions(task.WithName("address_update")))

	_, err := tk.Tools().Resolve(task.ToolOnSuccess)
	require.NoError(t, err)
	_, err = tk.Tools().Resolve(task.ToolOnError)
	require.NoError(t, err)
	assert.False(t, tk.Done())
}

func TestInlineTask_RunSuccess(t *testing.T) {
	rt := testutil.NewFakeRuntime()
	parent := task.New(task.WithName("triage"))
	rt.SetCurrentTask(parent)

	tk := task.NewInline(task.WithTaskOptions(task.WithName("address_update")))
	done := runAsync(tk, rt, task.WithProactiveReply(false))

	waitCurrent(t, rt, tk)
	tk.SetResult("12 Main St")
	out := callTerminal(t, tk, task.ToolOnSuccess, map[string]any{})
	assert.True(t, tool.IsSilent(out))
	assert.Equal(t, "12 Main St", tool.Unwrap(out))

	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, "12 Main St", res.value)
	assert.Equal(t, task.Tasker(parent), rt.CurrentTask())
	assert.NoError(t, tk.Err())
}

func TestInlineTask_RunFailureRestoresParent(t *testing.T) {
	rt := testutil.NewFakeRuntime()
	parent := task.New(task.WithName("triage"))
	rt.SetCurrentTask(parent)

	tk := task.NewInline(task.WithTaskOptions(task.WithName("address_update")))
	done := runAsync(tk, rt, task.WithProactiveReply(false))

	waitCurrent(t, rt, tk)
	out := callTerminal(t, tk, task.ToolOnError, map[string]any{"reason": "user declined"})
	assert.True(t, tool.IsSilent(out))

	res := <-done
	var failed *task.TaskFailed
	require.ErrorAs(t, res.err, &failed)
	assert.Equal(t, "user declined", failed.Reason)
	assert.Nil(t, res.value)
	assert.Equal(t, task.Tasker(parent), rt.CurrentTask())
}

func TestInlineTask_SuccessWithoutResult(t *testing.T) {
	rt := testutil.NewFakeRuntime()
	parent := task.New(task.WithName("triage"))
	rt.SetCurrentTask(parent)

	tk := task.NewInline(task.WithTaskOptions(task.WithName("address_update")))
	done := runAsync(tk, rt, task.WithProactiveReply(false))

	waitCurrent(t, rt, tk)
	callTerminal(t, tk, task.ToolOnSuccess, map[string]any{})

	res := <-done
	assert.ErrorIs(t, res.err, task.ErrResultNotSet)
	assert.Equal(t, task.Tasker(parent), rt.CurrentTask())
}

func TestInlineTask_PresetResult(t *testing.T) {
	rt := testutil.NewFakeRuntime()
	tk := task.NewInline(
		task.WithTaskOptions(task.WithName("confirm_close")),
		task.WithPresetResult(true),
	)
	done := runAsync(tk, rt, task.WithProactiveReply(false))

	require.Eventually(t, func() bool { return rt.CurrentTask() == task.Tasker(tk) }, waitFor, tick)
	callTerminal(t, tk, task.ToolOnSuccess, map[string]any{})

	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, true, res.value)
}

func TestInlineTask_CancellationRestoresParent(t *testing.T) {
	rt := testutil.NewFakeRuntime()
	parent := task.New(task.WithName("triage"))
	rt.SetCurrentTask(parent)

	ctx, cancel := context.WithCancel(context.Background())
	tk := task.NewInline(task.WithTaskOptions(task.WithName("address_update")))

	done := make(chan runResult, 1)
	go func() {
		v, err := tk.Run(ctx, rt, task.WithProactiveReply(false))
		done <- runResult{value: v, err: err}
	}()

	waitCurrent(t, rt, tk)
	cancel()

	res := <-done
	assert.ErrorIs(t, res.err, context.Canceled)
	assert.Equal(t, task.Tasker(parent), rt.CurrentTask())
	// The slot is still pending: cancellation is not a terminal resolution.
	assert.False(t, tk.Done())
}

func TestInlineTask_ResolvedBeforeCancellationWins(t *testing.T) {
	// When the task resolves before the context is cancelled, Run must
	// report the resolution even though both select cases are ready.
	for i := 0; i < 20; i++ {
		rt := testutil.NewFakeRuntime()
		tk := task.NewInline(
			task.WithTaskOptions(task.WithName("confirm_close")),
			task.WithPresetResult("confirmed"),
		)
		callTerminal(t, tk, task.ToolOnSuccess, map[string]any{})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		v, err := tk.Run(ctx, rt, task.WithProactiveReply(false))
		require.NoError(t, err)
		assert.Equal(t, "confirmed", v)
	}
}

func TestInlineTask_FirstResolutionWins(t *testing.T) {
	tk := task.NewInline(task.WithTaskOptions(task.WithName("address_update")))
	tk.SetResult("12 Main St")

	callTerminal(t, tk, task.ToolOnError, map[string]any{"reason": "user declined"})
	// Late success must not overwrite the stored failure.
	callTerminal(t, tk, task.ToolOnSuccess, map[string]any{})

	require.True(t, tk.Done())
	var failed *task.TaskFailed
	require.ErrorAs(t, tk.Err(), &failed)
	assert.Equal(t, "user declined", failed.Reason)
}

func TestInlineTask_RepeatedSuccessIsNoOp(t *testing.T) {
	tk := task.NewInline(task.WithTaskOptions(task.WithName("address_update")))
	tk.SetResult("first")

	callTerminal(t, tk, task.ToolOnSuccess, map[string]any{})
	callTerminal(t, tk, task.ToolOnSuccess, map[string]any{})

	assert.True(t, tk.Done())
	assert.NoError(t, tk.Err())
	assert.Equal(t, "first", tk.Result())
}

func TestInlineTask_ProactiveReplyNestsUnderInFlightSpeech(t *testing.T) {
	rt := testutil.NewFakeRuntime()
	parent := task.New(task.WithName("triage"))
	rt.SetCurrentTask(parent)

	inFlight := testutil.NewFakeSpeech()
	rt.SetInFlightSpeech(inFlight)

	tk := task.NewInline(task.WithTaskOptions(task.WithName("address_update")))
	done := runAsync(tk, rt)

	waitCurrent(t, rt, tk)
	require.Eventually(t, func() bool { return len(rt.Replies()) == 1 }, waitFor, tick)

	rec := rt.Replies()[0]
	assert.Equal(t, task.Tasker(tk), rec.Task)
	assert.Equal(t, task.Speech(inFlight), rec.Parent)
	require.Len(t, inFlight.Nested(), 1)
	assert.Equal(t, rec.Speech, inFlight.Nested()[0])
	assert.Equal(t, task.Speech(inFlight), tk.ParentSpeech())

	tk.SetResult("done")
	callTerminal(t, tk, task.ToolOnSuccess, map[string]any{})
	<-done
}

func TestInlineTask_NestedRunsRestoreInStackOrder(t *testing.T) {
	rt := testutil.NewFakeRuntime()
	a := task.New(task.WithName("a"))
	rt.SetCurrentTask(a)

	b := task.NewInline(task.WithTaskOptions(task.WithName("b")), task.WithPresetResult("b-result"))
	c := task.NewInline(task.WithTaskOptions(task.WithName("c")), task.WithPresetResult("c-result"))

	bDone := runAsync(b, rt, task.WithProactiveReply(false))
	waitCurrent(t, rt, b)
	assert.Equal(t, task.Tasker(a), b.ParentTask())

	cDone := runAsync(c, rt, task.WithProactiveReply(false))
	waitCurrent(t, rt, c)
	assert.Equal(t, task.Tasker(b), c.ParentTask())

	callTerminal(t, c, task.ToolOnSuccess, map[string]any{})
	res := <-cDone
	require.NoError(t, res.err)
	assert.Equal(t, "c-result", res.value)
	waitCurrent(t, rt, b)

	callTerminal(t, b, task.ToolOnSuccess, map[string]any{})
	res = <-bDone
	require.NoError(t, res.err)
	assert.Equal(t, "b-result", res.value)
	waitCurrent(t, rt, a)

	assert.Equal(t, []task.Tasker{a, b, c, b, a}, rt.Swaps())
}

// -------------------- Delegation tool --------------------

func TestDelegateTool_CompletedRoundTrip(t *testing.T) {
	rt := testutil.NewFakeRuntime()
	parent := task.New(task.WithName("triage"), task.WithInstructions("You triage bank requests."))
	parent.ChatCtx().AppendText(core.RoleUser, "I moved, please update my address.")
	rt.SetCurrentTask(parent)

	var sub *task.InlineTask
	dt := task.NewDelegateTool(
		"update_address", "Collect and confirm the customer's new address.",
		rt,
		func(map[string]any) *task.InlineTask {
			sub = task.NewInline(task.WithTaskOptions(task.WithName("address_update")))
			return sub
		},
		task.WithoutProactiveReply(),
	)

	type callResult struct {
		out any
		err error
	}
	done := make(chan callResult, 1)
	go func() {
		tc := tool.NewContext(context.Background(), core.NewID(), "triage", logging.NoOpLogger{})
		out, err := dt.Call(tc, map[string]any{})
		done <- callResult{out: out, err: err}
	}()

	require.Eventually(t, func() bool {
		cur := rt.CurrentTask()
		return cur != nil && cur != task.Tasker(parent)
	}, waitFor, tick)

	// The specialist saw the conversation so far: parent system + user turn.
	assert.Equal(t, 2, sub.ChatCtx().Len())

	sub.ChatCtx().AppendText(core.RoleAssistant, "Your address is now 12 Main St.")
	sub.SetResult("12 Main St")
	callTerminal(t, sub, task.ToolOnSuccess, map[string]any{})

	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, map[string]any{"status": "completed", "result": "12 Main St"}, res.out)

	// Parent is current again and absorbed the sub-task's turns.
	assert.Equal(t, task.Tasker(parent), rt.CurrentTask())
	last, ok := parent.ChatCtx().LastMessage()
	require.True(t, ok)
	assert.Equal(t, "Your address is now 12 Main St.", last.Content)
}

func TestDelegateTool_FailureBecomesToolResponse(t *testing.T) {
	rt := testutil.NewFakeRuntime()
	parent := task.New(task.WithName("triage"))
	rt.SetCurrentTask(parent)

	var sub *task.InlineTask
	dt := task.NewDelegateTool(
		"update_address", "Collect and confirm the customer's new address.",
		rt,
		func(map[string]any) *task.InlineTask {
			sub = task.NewInline(task.WithTaskOptions(task.WithName("address_update")))
			return sub
		},
		task.WithoutProactiveReply(),
	)

	done := make(chan any, 1)
	go func() {
		tc := tool.NewContext(context.Background(), core.NewID(), "triage", logging.NoOpLogger{})
		out, err := dt.Call(tc, map[string]any{})
		require.NoError(t, err)
		done <- out
	}()

	require.Eventually(t, func() bool {
		cur := rt.CurrentTask()
		return cur != nil && cur != task.Tasker(parent)
	}, waitFor, tick)

	callTerminal(t, sub, task.ToolOnError, map[string]any{"reason": "user declined"})

	out := <-done
	assert.Equal(t, map[string]any{"status": "failed", "reason": "user declined"}, out)
	assert.Equal(t, task.Tasker(parent), rt.CurrentTask())
}

func TestDelegateTool_WithoutContextSharing(t *testing.T) {
	rt := testutil.NewFakeRuntime()
	parent := task.New(task.WithName("triage"))
	parent.ChatCtx().AppendText(core.RoleUser, "hello")
	rt.SetCurrentTask(parent)

	var sub *task.InlineTask
	dt := task.NewDelegateTool(
		"isolated", "Run without sharing history.",
		rt,
		func(map[string]any) *task.InlineTask {
			sub = task.NewInline(
				task.WithTaskOptions(task.WithName("isolated_sub")),
				task.WithPresetResult("ok"),
			)
			return sub
		},
		task.WithoutProactiveReply(),
		task.WithoutParentContext(),
		task.WithoutMergeBack(),
	)

	done := make(chan any, 1)
	go func() {
		tc := tool.NewContext(context.Background(), core.NewID(), "triage", logging.NoOpLogger{})
		out, err := dt.Call(tc, map[string]any{})
		require.NoError(t, err)
		done <- out
	}()

	require.Eventually(t, func() bool {
		cur := rt.CurrentTask()
		return cur != nil && cur != task.Tasker(parent)
	}, waitFor, tick)

	assert.Equal(t, 0, sub.ChatCtx().Len())
	sub.ChatCtx().AppendText(core.RoleAssistant, "internal only")
	callTerminal(t, sub, task.ToolOnSuccess, map[string]any{})

	<-done
	assert.Equal(t, 1, parent.ChatCtx().Len())
}
