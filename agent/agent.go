package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/voicemesh/core"
	"github.com/hupe1980/voicemesh/logging"
	"github.com/hupe1980/voicemesh/model"
	"github.com/hupe1980/voicemesh/speech"
	"github.com/hupe1980/voicemesh/task"
)

var (
	// ErrNoCurrentTask is returned when a turn arrives while no task is
	// installed as current.
	ErrNoCurrentTask = fmt.Errorf("agent: no current task")

	// ErrNoModel is returned when neither the active task nor the agent
	// carries a model binding.
	ErrNoModel = fmt.Errorf("agent: no model configured")

	// ErrClosed is returned for operations on a closed agent.
	ErrClosed = fmt.Errorf("agent: closed")
)

// Utterance is one finished spoken reply handed to the output sink in
// playout order.
type Utterance struct {
	SpeechID    string
	Text        string
	Interrupted bool
}

// Options configures an Agent.
type Options struct {
	// Model is the default model used by tasks without a dedicated binding.
	Model model.Model

	// Logger defaults to NoOpLogger when nil.
	Logger logging.Logger

	// Tasks is an optional registry of named tasks available for
	// programmatic delegation via DelegateTo.
	Tasks *task.Registry

	// AllowInterruptions controls whether top-level replies accept barge-in.
	// Nested replies inherit interruption from their parent regardless.
	AllowInterruptions bool

	// MaxToolSteps bounds the generate/execute iterations within one reply.
	MaxToolSteps int

	// QueueSize is the playout queue capacity.
	QueueSize int

	// Output receives each finished utterance; nil discards speech output.
	Output func(u Utterance)
}

// WithModel sets the agent's default model.
func WithModel(m model.Model) func(o *Options) {
	return func(o *Options) { o.Model = m }
}

// WithLogger sets the agent logger.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// WithTasks attaches a task registry for named delegation.
func WithTasks(r *task.Registry) func(o *Options) {
	return func(o *Options) { o.Tasks = r }
}

// WithoutInterruptions makes top-level replies refuse barge-in.
func WithoutInterruptions() func(o *Options) {
	return func(o *Options) { o.AllowInterruptions = false }
}

// WithMaxToolSteps bounds tool iterations per reply.
func WithMaxToolSteps(n int) func(o *Options) {
	return func(o *Options) { o.MaxToolSteps = n }
}

// WithQueueSize sets the playout queue capacity.
func WithQueueSize(n int) func(o *Options) {
	return func(o *Options) { o.QueueSize = n }
}

// WithOutput sets the utterance sink.
func WithOutput(fn func(u Utterance)) func(o *Options) {
	return func(o *Options) { o.Output = fn }
}

// Agent is the conversational orchestrator: it owns the current-task slot,
// drives the generate/execute turn loop for each reply and plays finished
// speech out in completion order. It implements task.Runtime so inline
// tasks can install themselves and start proactive replies.
type Agent struct {
	opts   Options
	logger logging.Logger

	mu      sync.Mutex
	current task.Tasker
	last    *speech.Handle
	closed  bool

	queue     *speech.Queue
	synthWg   sync.WaitGroup
	playoutWg sync.WaitGroup
	closeOnce sync.Once
}

// New constructs an Agent with root installed as the current task and starts
// the playout loop.
func New(root task.Tasker, optFns ...func(o *Options)) *Agent {
	opts := Options{
		Logger:             logging.NoOpLogger{},
		AllowInterruptions: true,
		MaxToolSteps:       8,
		QueueSize:          16,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.MaxToolSteps <= 0 {
		opts.MaxToolSteps = 8
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 16
	}

	a := &Agent{
		opts:    opts,
		logger:  opts.Logger,
		current: root,
		queue:   speech.NewQueue(opts.QueueSize),
	}
	a.playoutWg.Add(1)
	go a.playout()
	return a
}

// speechKey carries the reply being synthesized through the call path so
// tools (and through them, inline task delegation) can discover the
// in-flight speech unit.
type speechKey struct{}

func withSpeech(ctx context.Context, h *speech.Handle) context.Context {
	return context.WithValue(ctx, speechKey{}, h)
}

// CurrentTask implements task.Runtime.
func (a *Agent) CurrentTask() task.Tasker {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

// SetCurrentTask implements task.Runtime. The slot swap is the only shared
// mutation of the delegation protocol; everything else flows through the
// tasks' own chat contexts.
func (a *Agent) SetCurrentTask(t task.Tasker) {
	a.mu.Lock()
	a.current = t
	a.mu.Unlock()

	name := "<none>"
	if t != nil {
		name = t.Base().DisplayName()
	}
	a.logger.Debug("current task swapped", "task", name)
}

// InFlightSpeech implements task.Runtime: it returns the reply being
// synthesized on this call path, or nil outside a reply.
func (a *Agent) InFlightSpeech(ctx context.Context) task.Speech {
	h, _ := ctx.Value(speechKey{}).(*speech.Handle)
	if h == nil {
		return nil
	}
	return h
}

// StartReply implements task.Runtime: it creates a speech unit for t,
// nests it under parent when one is in flight and synthesizes the reply on
// its own goroutine. The handle is pushed to playout once synthesis
// finishes.
func (a *Agent) StartReply(ctx context.Context, t task.Tasker, parent task.Speech) task.Speech {
	h := speech.NewHandle(a.opts.AllowInterruptions, true)
	if p, ok := parent.(*speech.Handle); ok && p != nil {
		p.AddNested(h)
	}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		h.MarkDone()
		return h
	}
	a.last = h
	a.synthWg.Add(1)
	a.mu.Unlock()

	go func() {
		defer a.synthWg.Done()
		a.synthesize(withSpeech(ctx, h), t, h)
	}()
	return h
}

// ProcessTurn feeds one user turn to the current task and starts the reply.
// The returned handle completes when the reply (including any tool rounds
// and delegated sub-tasks it triggers) has been synthesized.
func (a *Agent) ProcessTurn(ctx context.Context, userText string) (*speech.Handle, error) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil, ErrClosed
	}
	t := a.current
	a.mu.Unlock()
	if t == nil {
		return nil, ErrNoCurrentTask
	}

	t.Base().ChatCtx().Append(core.NewUserMessage(userText))
	h := a.StartReply(ctx, t, a.InFlightSpeech(ctx)).(*speech.Handle)
	return h, nil
}

// Say plays a pre-formed utterance without involving the model. The text is
// appended to the current task's history.
func (a *Agent) Say(text string) *speech.Handle {
	h := speech.NewHandle(a.opts.AllowInterruptions, true)
	h.SetText(text)
	if t := a.CurrentTask(); t != nil {
		t.Base().ChatCtx().Append(core.NewAssistantMessage(text))
	}
	h.MarkDone()
	a.queue.Push(h)
	return h
}

// Interrupt interrupts the most recently started reply, if any, honoring
// its interruption policy. It reports whether an interruption took effect.
func (a *Agent) Interrupt() bool {
	a.mu.Lock()
	h := a.last
	a.mu.Unlock()
	if h == nil {
		return false
	}
	return h.Interrupt()
}

// DelegateTo looks up a registered inline task by name and runs it to
// completion against this agent, returning its terminal result.
func (a *Agent) DelegateTo(ctx context.Context, name string, optFns ...func(o *task.RunOptions)) (any, error) {
	if a.opts.Tasks == nil {
		return nil, fmt.Errorf("agent: no task registry attached")
	}
	t, err := a.opts.Tasks.Get(name)
	if err != nil {
		return nil, err
	}
	inline, ok := t.(*task.InlineTask)
	if !ok {
		return nil, fmt.Errorf("agent: task %q is not an inline task", name)
	}
	return inline.Run(ctx, a, optFns...)
}

// Tasks returns the attached task registry, possibly nil.
func (a *Agent) Tasks() *task.Registry { return a.opts.Tasks }

// Close drains in-flight synthesis, closes the playout queue and waits for
// the playout loop to finish. The agent accepts no turns afterwards.
func (a *Agent) Close() {
	a.closeOnce.Do(func() {
		a.mu.Lock()
		a.closed = true
		a.mu.Unlock()

		a.synthWg.Wait()
		a.queue.Close()
		a.playoutWg.Wait()
	})
}

// playout emits finished utterances in completion order. Handles are pushed
// to the queue only once synthesis is done, so a still-running delegated
// reply never blocks the output of replies that finished before it.
func (a *Agent) playout() {
	defer a.playoutWg.Done()
	for h := range a.queue.Next() {
		<-h.Done()
		if a.opts.Output == nil || h.Text() == "" {
			continue
		}
		a.opts.Output(Utterance{
			SpeechID:    h.ID(),
			Text:        h.Text(),
			Interrupted: h.Interrupted(),
		})
	}
}
