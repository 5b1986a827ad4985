package task

import "context"

// Speech is the opaque in-flight reply unit owned by the runtime. The core
// only needs identity and interruption state; synthesis and playout stay on
// the runtime side.
type Speech interface {
	ID() string
	Interrupted() bool
}

// Runtime is the surface of the conversational loop that the task layer
// drives. The orchestrator (see the agent package) implements it; tests use
// a fake.
//
// Implementations must serialize CurrentTask/SetCurrentTask with the turn
// loop so no two turns race to swap the active task.
type Runtime interface {
	// CurrentTask returns the task whose instructions and tools govern the
	// next conversational turn. May be nil before Start.
	CurrentTask() Tasker

	// SetCurrentTask installs t as the active task.
	SetCurrentTask(t Tasker)

	// InFlightSpeech returns the speech unit of the turn currently being
	// synthesized in ctx's call path, or nil when none is in flight.
	InFlightSpeech(ctx context.Context) Speech

	// StartReply begins generating a spoken reply driven by t's
	// instructions and tools. When parent is non-nil the reply is nested
	// under it, inheriting its interruption scope; otherwise it is queued
	// directly for playout. Returns the new reply's speech unit.
	StartReply(ctx context.Context, t Tasker, parent Speech) Speech
}
