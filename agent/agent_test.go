package agent_test

import (
	"context"
	"testing"
	"time"

	"github.com/hupe1980/voicemesh/agent"
	"github.com/hupe1980/voicemesh/core"
	"github.com/hupe1980/voicemesh/model"
	"github.com/hupe1980/voicemesh/task"
	"github.com/hupe1980/voicemesh/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 5 * time.Second

func emptySchema() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for reply")
	}
}

func nextUtterance(t *testing.T, ch <-chan agent.Utterance) agent.Utterance {
	t.Helper()
	select {
	case u := <-ch:
		return u
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for utterance")
		return agent.Utterance{}
	}
}

func TestAgent_PlainTextTurn(t *testing.T) {
	m := model.NewMockModel("test", "mock")
	m.EnqueueText("Hello! How can I help?")

	out := make(chan agent.Utterance, 8)
	root := task.New(task.WithName("assistant"), task.WithInstructions("Be helpful."))
	a := agent.New(root, agent.WithModel(m), agent.WithOutput(func(u agent.Utterance) { out <- u }))
	defer a.Close()

	h, err := a.ProcessTurn(context.Background(), "hi")
	require.NoError(t, err)
	waitDone(t, h.Done())

	assert.Equal(t, "Hello! How can I help?", h.Text())
	u := nextUtterance(t, out)
	assert.Equal(t, h.ID(), u.SpeechID)
	assert.False(t, u.Interrupted)

	// system + user + assistant
	msgs := root.ChatCtx().Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, core.RoleUser, msgs[1].Role)
	assert.Equal(t, "Hello! How can I help?", msgs[2].Content)
}

func TestAgent_ToolRound(t *testing.T) {
	m := model.NewMockModel("test", "mock")
	m.EnqueueToolCall("call-1", "get_balance", `{}`)
	m.EnqueueText("Your balance is 10 euros.")

	balanceTool := tool.NewFunctionTool("get_balance", "Fetch the account balance.", emptySchema(),
		func(_ *tool.Context, _ map[string]any) (any, error) {
			return map[string]any{"balance": 10}, nil
		})

	root := task.New(task.WithName("assistant"), task.WithTools(balanceTool))
	a := agent.New(root, agent.WithModel(m))
	defer a.Close()

	h, err := a.ProcessTurn(context.Background(), "what's my balance?")
	require.NoError(t, err)
	waitDone(t, h.Done())

	assert.Equal(t, "Your balance is 10 euros.", h.Text())

	msgs := root.ChatCtx().Messages()
	// user + assistant tool-call + tool result + final assistant
	require.Len(t, msgs, 4)
	assert.Equal(t, core.RoleAssistant, msgs[1].Role)
	require.Len(t, msgs[1].ToolCalls, 1)
	assert.Equal(t, "get_balance", msgs[1].ToolCalls[0].Name)
	assert.Equal(t, core.RoleTool, msgs[2].Role)
	assert.Equal(t, "call-1", msgs[2].ToolCallID)
	assert.JSONEq(t, `{"balance":10}`, msgs[2].Content)
}

func TestAgent_SilentRoundEndsReply(t *testing.T) {
	m := model.NewMockModel("test", "mock")
	m.EnqueueToolCall("call-1", "log_note", `{}`)

	noteTool := tool.NewFunctionTool("log_note", "Record a note.", emptySchema(),
		func(_ *tool.Context, _ map[string]any) (any, error) {
			return tool.Silent("noted"), nil
		})

	out := make(chan agent.Utterance, 8)
	root := task.New(task.WithName("assistant"), task.WithTools(noteTool))
	a := agent.New(root, agent.WithModel(m), agent.WithOutput(func(u agent.Utterance) { out <- u }))

	h, err := a.ProcessTurn(context.Background(), "note this down")
	require.NoError(t, err)
	waitDone(t, h.Done())
	a.Close()

	// A purely silent round produces no spoken output at all.
	assert.Empty(t, h.Text())
	select {
	case u := <-out:
		t.Fatalf("unexpected utterance: %q", u.Text)
	default:
	}
}

func TestAgent_ToolFailureBecomesToolMessage(t *testing.T) {
	m := model.NewMockModel("test", "mock")
	m.EnqueueToolCall("call-1", "flaky", `{}`)
	m.EnqueueText("Sorry, that didn't work.")

	flaky := tool.NewFunctionTool("flaky", "Always fails.", emptySchema(),
		func(_ *tool.Context, _ map[string]any) (any, error) {
			return nil, tool.NewToolError("flaky", "backend unavailable", "EXECUTION_ERROR")
		})

	root := task.New(task.WithName("assistant"), task.WithTools(flaky))
	a := agent.New(root, agent.WithModel(m))
	defer a.Close()

	h, err := a.ProcessTurn(context.Background(), "do the thing")
	require.NoError(t, err)
	waitDone(t, h.Done())

	assert.Equal(t, "Sorry, that didn't work.", h.Text())
	msgs := root.ChatCtx().Messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, core.RoleTool, msgs[2].Role)
	assert.Contains(t, msgs[2].Content, "backend unavailable")
}

func TestAgent_InterruptStopsFollowUp(t *testing.T) {
	m := model.NewMockModel("test", "mock")
	m.EnqueueToolCall("call-1", "slow", `{}`)
	m.EnqueueText("should not be spoken")

	release := make(chan struct{})
	slow := tool.NewFunctionTool("slow", "Takes a while.", emptySchema(),
		func(_ *tool.Context, _ map[string]any) (any, error) {
			<-release
			return "done", nil
		})

	root := task.New(task.WithName("assistant"), task.WithTools(slow))
	a := agent.New(root, agent.WithModel(m))
	defer a.Close()

	h, err := a.ProcessTurn(context.Background(), "start")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return a.Interrupt() }, waitFor, 5*time.Millisecond)
	close(release)
	waitDone(t, h.Done())

	assert.True(t, h.Interrupted())
	assert.Empty(t, h.Text())
}

func TestAgent_SayPlaysInOrder(t *testing.T) {
	out := make(chan agent.Utterance, 8)
	root := task.New(task.WithName("assistant"))
	a := agent.New(root, agent.WithModel(model.NewMockModel("test", "mock")), agent.WithOutput(func(u agent.Utterance) { out <- u }))

	a.Say("One moment please.")
	a.Say("Still working on it.")
	a.Close()

	assert.Equal(t, "One moment please.", nextUtterance(t, out).Text)
	assert.Equal(t, "Still working on it.", nextUtterance(t, out).Text)
	assert.Equal(t, 2, root.ChatCtx().Len())
}

func TestAgent_DelegateToRegisteredTask(t *testing.T) {
	m := model.NewMockModel("test", "mock")
	m.EnqueueToolCall("call-1", task.ToolOnSuccess, `{}`)

	sub := task.NewInline(
		task.WithTaskOptions(task.WithName("confirm_close")),
		task.WithPresetResult("confirmed"),
	)
	reg := task.NewRegistry()
	require.NoError(t, reg.Register(sub))

	root := task.New(task.WithName("assistant"))
	a := agent.New(root, agent.WithModel(m), agent.WithTasks(reg))
	defer a.Close()

	// The proactive reply immediately resolves the task via the scripted
	// on_success call.
	result, err := a.DelegateTo(context.Background(), "confirm_close")
	require.NoError(t, err)
	assert.Equal(t, "confirmed", result)
	assert.Equal(t, task.Tasker(root), a.CurrentTask())
}

// Full delegation round trip: the triage task hands the conversation to an
// address-update sub-task, the sub-task collects the address over its own
// turn and resolves, and the triage task confirms with the result merged
// back into its history.
func TestAgent_DelegationRoundTrip(t *testing.T) {
	m := model.NewMockModel("test", "mock")

	out := make(chan agent.Utterance, 8)

	var sub *task.InlineTask
	buildSub := func(map[string]any) *task.InlineTask {
		saveTool := tool.NewFunctionTool("save_address", "Persist the customer's new address.",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"address": map[string]any{"type": "string"},
				},
				"required": []string{"address"},
			},
			func(_ *tool.Context, args map[string]any) (any, error) {
				addr, _ := args["address"].(string)
				sub.SetResult(addr)
				return "saved", nil
			})
		sub = task.NewInline(task.WithTaskOptions(
			task.WithName("address_update"),
			task.WithInstructions("Collect and confirm the customer's new address."),
			task.WithTools(saveTool),
		))
		return sub
	}

	root := task.New(
		task.WithName("triage"),
		task.WithInstructions("You triage bank requests."),
	)
	a := agent.New(root,
		agent.WithModel(m),
		agent.WithOutput(func(u agent.Utterance) { out <- u }),
	)
	defer a.Close()

	delegate := task.NewDelegateTool("update_address", "Update the customer's address.", a, buildSub)
	require.NoError(t, root.Tools().Register(delegate))

	// Turn 1: triage delegates; the sub-task proactively asks for the
	// address.
	m.EnqueueToolCall("call-1", "update_address", `{}`)
	m.EnqueueText("What's your new address?")

	h1, err := a.ProcessTurn(context.Background(), "I moved, please update my address.")
	require.NoError(t, err)

	u := nextUtterance(t, out)
	assert.Equal(t, "What's your new address?", u.Text)
	assert.Equal(t, task.Tasker(sub), a.CurrentTask())

	// The delegating turn's handle stays pending until a later turn
	// resolves the sub-task; turn intake must never serialize on it.
	assert.False(t, h1.IsDone())

	// Turn 2 goes to the sub-task: it saves the address and resolves,
	// after which the suspended triage reply resumes and confirms.
	m.EnqueueToolCall("call-2", "save_address", `{"address":"12 Main St"}`)
	m.EnqueueToolCall("call-3", task.ToolOnSuccess, `{}`)
	m.EnqueueText("All set, your address is updated.")

	h2, err := a.ProcessTurn(context.Background(), "12 Main St")
	require.NoError(t, err)
	waitDone(t, h2.Done())
	waitDone(t, h1.Done())

	assert.Equal(t, "All set, your address is updated.", h1.Text())
	assert.Equal(t, "All set, your address is updated.", nextUtterance(t, out).Text)

	// The triage task is current again and absorbed the sub-task's turns.
	assert.Equal(t, task.Tasker(root), a.CurrentTask())
	assert.NoError(t, sub.Err())
	assert.Equal(t, "12 Main St", sub.Result())

	var sawAddressTurn bool
	for _, msg := range root.ChatCtx().Messages() {
		if msg.Role == core.RoleUser && msg.Content == "12 Main St" {
			sawAddressTurn = true
		}
	}
	assert.True(t, sawAddressTurn, "sub-task turns should be merged back into the parent history")
}
