package task

import (
	"github.com/hupe1980/voicemesh/core"
	"github.com/hupe1980/voicemesh/internal/util"
	"github.com/hupe1980/voicemesh/logging"
	"github.com/hupe1980/voicemesh/model"
	"github.com/hupe1980/voicemesh/tool"
)

// Tasker is implemented by *Task and by anything embedding it, letting
// specialized task types (including *InlineTask) flow through the registry
// and runtime uniformly.
type Tasker interface {
	// Base returns the underlying Task.
	Base() *Task
}

// Options configures a Task.
type Options struct {
	// Name is an optional identity used for registry keying and logging.
	Name string

	// Instructions seed the chat context as the first system message when
	// non-empty and are passed to the model on every turn of this task.
	Instructions string

	// Model optionally binds a dedicated model to this task; when nil the
	// orchestrator's default model is used.
	Model model.Model

	// Tools is the explicit, compile-time-checked tool list scoped to this
	// task. Duplicate names panic at construction.
	Tools []tool.Tool

	// Logger defaults to NoOpLogger when nil.
	Logger logging.Logger
}

// WithName sets the task name.
func WithName(name string) func(o *Options) {
	return func(o *Options) { o.Name = name }
}

// WithInstructions sets the task instructions.
func WithInstructions(instructions string) func(o *Options) {
	return func(o *Options) { o.Instructions = instructions }
}

// WithModel binds a dedicated model to the task.
func WithModel(m model.Model) func(o *Options) {
	return func(o *Options) { o.Model = m }
}

// WithTools appends tools to the task's scope.
func WithTools(tools ...tool.Tool) func(o *Options) {
	return func(o *Options) { o.Tools = append(o.Tools, tools...) }
}

// WithLogger sets the task logger.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// RenderInstructions expands template markers in an instruction string with
// the provided variables. Convenience for callers composing instructions
// before WithInstructions.
func RenderInstructions(text string, vars map[string]any) (string, error) {
	return util.RenderTemplate(text, vars)
}

// Task is a named bundle of instructions, conversation history and callable
// tools representing one conversational persona or specialization.
//
// The chat context is exclusively owned by the task; InjectChatCtx merges
// are the only cross-task write.
type Task struct {
	name         string
	instructions string
	chatCtx      *core.ChatContext
	llm          model.Model
	tools        *tool.Registry
	logger       logging.Logger
}

// New constructs a Task. When instructions are non-empty they become the
// first system message of the owned chat context.
func New(optFns ...func(o *Options)) *Task {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	t := &Task{
		name:         opts.Name,
		instructions: opts.Instructions,
		chatCtx:      core.NewChatContext(),
		llm:          opts.Model,
		tools:        tool.NewRegistry(opts.Tools...),
		logger:       opts.Logger,
	}
	if opts.Instructions != "" {
		t.chatCtx.Append(core.NewSystemMessage(opts.Instructions))
	}
	return t
}

// Base implements Tasker.
func (t *Task) Base() *Task { return t }

// Name returns the task name; empty for type-keyed tasks.
func (t *Task) Name() string { return t.name }

// Instructions returns the instruction string, possibly empty.
func (t *Task) Instructions() string { return t.instructions }

// ChatCtx returns the chat context owned by this task.
func (t *Task) ChatCtx() *core.ChatContext { return t.chatCtx }

// Model returns the task's dedicated model binding or nil.
func (t *Task) Model() model.Model { return t.llm }

// Tools returns the tool registry scoped to this task.
func (t *Task) Tools() *tool.Registry { return t.tools }

// Logger returns the task logger.
func (t *Task) Logger() logging.Logger { return t.logger }

// InjectChatCtx merges the incoming context into this task's history,
// skipping messages whose id is already present and preserving the source
// order of the remainder.
func (t *Task) InjectChatCtx(incoming *core.ChatContext) {
	t.chatCtx.MergeFrom(incoming)
}

// ToolDefinitions produces the ordered tool metadata exposed to a model's
// function-calling interface.
func (t *Task) ToolDefinitions() []model.ToolDefinition {
	tools := t.tools.All()
	defs := make([]model.ToolDefinition, 0, len(tools))
	for _, tl := range tools {
		defs = append(defs, model.ToolDefinition{
			Name:        tl.Name(),
			Description: tl.Description(),
			Parameters:  tl.Parameters(),
		})
	}
	return defs
}

// DisplayName returns the name or a placeholder for unnamed tasks, for use
// in logs.
func (t *Task) DisplayName() string {
	if t.name != "" {
		return t.name
	}
	return "<unnamed>"
}
