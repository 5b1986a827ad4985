package testutil

import (
	"context"
	"sync"

	"github.com/hupe1980/voicemesh/core"
	"github.com/hupe1980/voicemesh/task"
)

// FakeSpeech is a minimal task.Speech recording nesting and interruption.
type FakeSpeech struct {
	id string

	mu          sync.Mutex
	nested      []*FakeSpeech
	interrupted bool
}

// NewFakeSpeech constructs a fake speech unit with a fresh id.
func NewFakeSpeech() *FakeSpeech { return &FakeSpeech{id: core.NewID()} }

// ID implements task.Speech.
func (s *FakeSpeech) ID() string { return s.id }

// Interrupted implements task.Speech.
func (s *FakeSpeech) Interrupted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interrupted
}

// Interrupt marks the speech and everything nested under it interrupted.
func (s *FakeSpeech) Interrupt() {
	s.mu.Lock()
	s.interrupted = true
	nested := make([]*FakeSpeech, len(s.nested))
	copy(nested, s.nested)
	s.mu.Unlock()
	for _, child := range nested {
		child.Interrupt()
	}
}

// AddNested registers a child speech unit.
func (s *FakeSpeech) AddNested(child *FakeSpeech) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nested = append(s.nested, child)
}

// Nested returns the children registered so far.
func (s *FakeSpeech) Nested() []*FakeSpeech {
	s.mu.Lock()
	defer s.mu.Unlock()
	nested := make([]*FakeSpeech, len(s.nested))
	copy(nested, s.nested)
	return nested
}

// ReplyRecord captures one StartReply invocation on the fake runtime.
type ReplyRecord struct {
	Task   task.Tasker
	Parent task.Speech
	Speech *FakeSpeech
}

// FakeRuntime is an in-memory task.Runtime for task-layer tests. The
// in-flight speech is set explicitly via SetInFlightSpeech rather than
// derived from a call path.
type FakeRuntime struct {
	mu       sync.Mutex
	current  task.Tasker
	inFlight task.Speech
	replies  []ReplyRecord
	swaps    []task.Tasker
}

// NewFakeRuntime constructs an empty fake runtime.
func NewFakeRuntime() *FakeRuntime { return &FakeRuntime{} }

// CurrentTask implements task.Runtime.
func (r *FakeRuntime) CurrentTask() task.Tasker {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// SetCurrentTask implements task.Runtime and records every swap.
func (r *FakeRuntime) SetCurrentTask(t task.Tasker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = t
	r.swaps = append(r.swaps, t)
}

// InFlightSpeech implements task.Runtime.
func (r *FakeRuntime) InFlightSpeech(context.Context) task.Speech {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inFlight
}

// SetInFlightSpeech pins the speech returned by InFlightSpeech.
func (r *FakeRuntime) SetInFlightSpeech(s task.Speech) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inFlight = s
}

// StartReply implements task.Runtime: it records the request and nests the
// new fake speech under the parent when one is given.
func (r *FakeRuntime) StartReply(_ context.Context, t task.Tasker, parent task.Speech) task.Speech {
	s := NewFakeSpeech()
	if p, ok := parent.(*FakeSpeech); ok && p != nil {
		p.AddNested(s)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replies = append(r.replies, ReplyRecord{Task: t, Parent: parent, Speech: s})
	return s
}

// Replies returns the StartReply records so far.
func (r *FakeRuntime) Replies() []ReplyRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	replies := make([]ReplyRecord, len(r.replies))
	copy(replies, r.replies)
	return replies
}

// Swaps returns every value passed to SetCurrentTask in order.
func (r *FakeRuntime) Swaps() []task.Tasker {
	r.mu.Lock()
	defer r.mu.Unlock()
	swaps := make([]task.Tasker, len(r.swaps))
	copy(swaps, r.swaps)
	return swaps
}
