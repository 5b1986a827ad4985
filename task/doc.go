// Package task implements the delegation core of voicemesh: named or
// type-keyed Tasks bundling instructions, chat history, an optional model
// binding and a scoped tool registry; a monotonic Registry for process-wide
// lookup; and InlineTask, a task that runs to completion inside a parent
// conversational turn, suspending its caller until one of its two terminal
// tool operations resolves it.
//
// The surrounding conversational loop is reached through the narrow Runtime
// interface so the core stays independent of any concrete speech pipeline.
package task
