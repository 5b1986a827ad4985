package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/voicemesh/core"
	"github.com/hupe1980/voicemesh/model"
	"github.com/hupe1980/voicemesh/speech"
	"github.com/hupe1980/voicemesh/task"
	"github.com/hupe1980/voicemesh/tool"
)

// synthesize runs the generate/execute loop for one reply: it asks the
// model for a response against the task's history and tools, executes any
// requested function calls and feeds the results back, repeating until the
// model produces plain text, every call in a round was silent, or the step
// bound is hit. The handle is finalized and queued on every exit path.
//
// A delegation call swaps the current task underneath the agent; this loop
// deliberately keeps generating against the task the reply belongs to, so
// the parent conversation resumes with the sub-task's outcome in hand.
func (a *Agent) synthesize(ctx context.Context, t task.Tasker, h *speech.Handle) {
	base := t.Base()

	var spoken []string
	defer func() {
		h.SetText(strings.Join(spoken, " "))
		h.MarkDone()
		a.queue.Push(h)
	}()

	m := base.Model()
	if m == nil {
		m = a.opts.Model
	}
	if m == nil {
		a.logger.Error("reply dropped", "task", base.DisplayName(), "error", ErrNoModel)
		return
	}

	for step := 0; step < a.opts.MaxToolSteps; step++ {
		if h.Interrupted() {
			return
		}

		genCtx, cancel := context.WithCancel(ctx)
		h.BindCancel(cancel)
		respCh, errCh := m.Generate(genCtx, model.Request{
			Messages: base.ChatCtx().Messages(),
			Tools:    base.ToolDefinitions(),
			Stream:   true,
		})
		resp, err := model.Collect(genCtx, respCh, errCh)
		cancel()
		if err != nil {
			if h.Interrupted() || errors.Is(err, context.Canceled) {
				return
			}
			a.logger.Error("model generation failed", "task", base.DisplayName(), "model", m.Info().Name, "error", err)
			return
		}

		if len(resp.ToolCalls) == 0 {
			if resp.Text != "" && !h.Interrupted() {
				spoken = append(spoken, resp.Text)
				if h.AddToChatCtx() {
					base.ChatCtx().Append(core.NewAssistantMessage(resp.Text))
				}
			}
			return
		}

		refs := make([]core.ToolCallRef, 0, len(resp.ToolCalls))
		for _, call := range resp.ToolCalls {
			refs = append(refs, core.ToolCallRef{ID: call.ID, Name: call.Name, Arguments: string(call.Arguments)})
		}
		base.ChatCtx().Append(core.NewToolCallMessage(resp.Text, refs...))

		allSilent := a.dispatchToolCalls(ctx, base, resp.ToolCalls)
		if allSilent {
			// Pure bookkeeping round (task resolution etc.); no follow-up
			// reply is owed to the user.
			return
		}
	}
	a.logger.Warn("tool step bound reached", "task", base.DisplayName(), "max_steps", a.opts.MaxToolSteps)
}

// toolExecution is the ordered outcome of one function call in a round.
type toolExecution struct {
	call   model.ToolCall
	value  any
	silent bool
	failed bool
}

// dispatchToolCalls executes a round of function calls concurrently and
// appends one tool-result message per call, in request order. Tool failures
// become structured tool responses the model can react to rather than
// aborting the reply. It reports whether the entire round was silent.
func (a *Agent) dispatchToolCalls(ctx context.Context, base *task.Task, calls []model.ToolCall) bool {
	results := make([]toolExecution, len(calls))

	g, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			results[i] = a.executeToolCall(gctx, base, call)
			return nil
		})
	}
	_ = g.Wait()

	allSilent := true
	for _, res := range results {
		if !res.silent || res.failed {
			allSilent = false
		}
		base.ChatCtx().Append(core.NewToolMessage(res.call.Name, res.call.ID, encodeToolResult(res)))
	}
	return allSilent
}

func (a *Agent) executeToolCall(ctx context.Context, base *task.Task, call model.ToolCall) toolExecution {
	res := toolExecution{call: call}

	tl, err := base.Tools().Resolve(call.Name)
	if err != nil {
		a.logger.Warn("unknown tool requested", "task", base.DisplayName(), "tool", call.Name)
		res.failed = true
		res.value = map[string]any{"error": err.Error()}
		return res
	}

	args, err := call.ParseArguments()
	if err != nil {
		res.failed = true
		res.value = map[string]any{"error": fmt.Sprintf("invalid arguments: %s", err)}
		return res
	}

	tc := tool.NewContext(ctx, call.ID, base.DisplayName(), base.Logger())
	out, err := tl.Call(tc, args)
	if err != nil {
		a.logger.Warn("tool call failed", "task", base.DisplayName(), "tool", call.Name, "error", err)
		res.failed = true
		res.value = map[string]any{"error": err.Error()}
		return res
	}

	res.silent = tool.IsSilent(out)
	res.value = tool.Unwrap(out)
	return res
}

// encodeToolResult renders a tool outcome as the JSON payload of its
// tool-result message.
func encodeToolResult(res toolExecution) string {
	if res.value == nil {
		return "null"
	}
	data, err := json.Marshal(res.value)
	if err != nil {
		return fmt.Sprintf("%v", res.value)
	}
	return string(data)
}
