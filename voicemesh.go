// Package voicemesh provides a high-level façade over the agent orchestrator
// and task abstractions (tasks, tools, speech & logging) enabling rapid
// construction of voice-style conversational systems. Most applications
// interact with this package by:
//  1. Creating a VoiceMesh via New() with a root task (optionally registering
//     named sub-tasks)
//  2. Feeding user turns asynchronously (ProcessTurn) or synchronously
//     (ProcessTurnSync)
//  3. Receiving finished utterances through the configured output sink
//
// The façade delegates orchestration to agent.Agent while keeping setup and
// usage ergonomics concise. All defaults are safe for local development and
// testing; production deployments typically supply a provider-backed model
// and a structured logger.
package voicemesh

import (
	"context"

	"github.com/hupe1980/voicemesh/agent"
	"github.com/hupe1980/voicemesh/logging"
	"github.com/hupe1980/voicemesh/model"
	"github.com/hupe1980/voicemesh/speech"
	"github.com/hupe1980/voicemesh/task"
)

// Options configures the VoiceMesh instance.
type Options struct {
	// Model is the default model used by tasks without a dedicated binding.
	Model model.Model

	// Tasks provides named sub-tasks for delegation (defaults to an empty
	// registry).
	Tasks *task.Registry

	// AllowInterruptions controls whether replies accept barge-in.
	AllowInterruptions bool

	// MaxToolSteps bounds the generate/execute iterations within one reply.
	MaxToolSteps int

	// Output receives each finished utterance; nil discards speech output.
	Output func(u agent.Utterance)

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// VoiceMesh is the high-level façade aggregating the underlying agent and
// task registry.
type VoiceMesh struct {
	opts  Options
	agent *agent.Agent
}

// New creates a new VoiceMesh instance around a root task with optional
// overrides.
func New(root task.Tasker, optFns ...func(o *Options)) *VoiceMesh {
	opts := Options{
		Tasks:              task.NewRegistry(),
		AllowInterruptions: true,
		Logger:             logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	a := agent.New(root, func(o *agent.Options) {
		o.Model = opts.Model
		o.Logger = opts.Logger
		o.Tasks = opts.Tasks
		o.AllowInterruptions = opts.AllowInterruptions
		if opts.MaxToolSteps > 0 {
			o.MaxToolSteps = opts.MaxToolSteps
		}
		o.Output = opts.Output
	})

	return &VoiceMesh{opts: opts, agent: a}
}

// Agent exposes the underlying orchestrator for advanced wiring (delegation
// tools need it as their runtime).
func (m *VoiceMesh) Agent() *agent.Agent { return m.agent }

// RegisterTask adds a task to the registry for named delegation.
func (m *VoiceMesh) RegisterTask(t task.Tasker, optFns ...func(o *task.RegisterOptions)) error {
	return m.opts.Tasks.Register(t, optFns...)
}

// ProcessTurn feeds one user turn to the current task and returns the speech
// handle of the started reply.
func (m *VoiceMesh) ProcessTurn(ctx context.Context, userText string) (*speech.Handle, error) {
	return m.agent.ProcessTurn(ctx, userText)
}

// ProcessTurnSync is a synchronous helper that waits for the reply to finish
// and returns its spoken text.
func (m *VoiceMesh) ProcessTurnSync(ctx context.Context, userText string) (string, error) {
	h, err := m.agent.ProcessTurn(ctx, userText)
	if err != nil {
		return "", err
	}
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-h.Done():
		return h.Text(), nil
	}
}

// Say plays a pre-formed utterance without involving the model.
func (m *VoiceMesh) Say(text string) *speech.Handle { return m.agent.Say(text) }

// Interrupt interrupts the most recently started reply, honoring its
// interruption policy.
func (m *VoiceMesh) Interrupt() bool { return m.agent.Interrupt() }

// Close drains in-flight replies and shuts the playout loop down.
func (m *VoiceMesh) Close() { m.agent.Close() }
