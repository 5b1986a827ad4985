// Package speech models the spoken reply unit consumed by the task
// orchestration core: an opaque handle that can be created, nested under an
// in-flight parent reply and enqueued for playout. Interrupting a handle
// cascades to every reply nested under it. The package deliberately performs
// no audio work; playout delivers the synthesized text to a sink owned by
// the surrounding runtime.
package speech

import (
	"sync"

	"github.com/hupe1980/voicemesh/core"
)

// Handle represents one spoken assistant reply from synthesis scheduling to
// playout. It is safe for concurrent use.
type Handle struct {
	id                 string
	allowInterruptions bool
	addToChatCtx       bool

	mu          sync.Mutex
	nested      []*Handle
	text        string
	interrupted bool
	cancel      func()

	done     chan struct{}
	doneOnce sync.Once
}

// NewHandle constructs a speech handle.
//
// allowInterruptions controls whether the user may cut this reply off;
// addToChatCtx controls whether the played text is recorded in the owning
// task's chat context.
func NewHandle(allowInterruptions, addToChatCtx bool) *Handle {
	return &Handle{
		id:                 core.NewID(),
		allowInterruptions: allowInterruptions,
		addToChatCtx:       addToChatCtx,
		done:               make(chan struct{}),
	}
}

// ID returns the unique identifier of this speech unit.
func (h *Handle) ID() string { return h.id }

// AllowInterruptions reports whether the user may interrupt this reply.
func (h *Handle) AllowInterruptions() bool { return h.allowInterruptions }

// AddToChatCtx reports whether the played text should be recorded in the
// owning task's chat context.
func (h *Handle) AddToChatCtx() bool { return h.addToChatCtx }

// BindCancel attaches the cancel function of the synthesis work backing this
// handle so Interrupt can stop in-flight generation.
func (h *Handle) BindCancel(cancel func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cancel = cancel
}

// AddNested registers child under this handle. A nested reply inherits the
// interruption scope of its parent: interrupting the parent interrupts the
// child. If this handle is already interrupted the child is interrupted
// immediately.
func (h *Handle) AddNested(child *Handle) {
	h.mu.Lock()
	interrupted := h.interrupted
	h.nested = append(h.nested, child)
	h.mu.Unlock()

	if interrupted {
		child.interrupt()
	}
}

// Nested returns a copy of the replies registered under this handle.
func (h *Handle) Nested() []*Handle {
	h.mu.Lock()
	defer h.mu.Unlock()
	nested := make([]*Handle, len(h.nested))
	copy(nested, h.nested)
	return nested
}

// Interrupt stops this reply and cascades to every nested reply. It reports
// whether the handle was interrupted; a handle created with interruptions
// disallowed refuses and returns false.
func (h *Handle) Interrupt() bool {
	if !h.allowInterruptions {
		return false
	}
	h.interrupt()
	return true
}

// interrupt is the cascade path: nested replies are interrupted regardless
// of their own allowInterruptions flag, since they live inside the parent's
// interruption scope.
func (h *Handle) interrupt() {
	h.mu.Lock()
	if h.interrupted {
		h.mu.Unlock()
		return
	}
	h.interrupted = true
	cancel := h.cancel
	nested := make([]*Handle, len(h.nested))
	copy(nested, h.nested)
	h.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	for _, child := range nested {
		child.interrupt()
	}
	h.MarkDone()
}

// Interrupted reports whether this reply was interrupted.
func (h *Handle) Interrupted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.interrupted
}

// SetText records the synthesized assistant text for playout.
func (h *Handle) SetText(text string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.text = text
}

// Text returns the synthesized assistant text.
func (h *Handle) Text() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.text
}

// MarkDone signals that synthesis for this reply finished (or was abandoned).
// It is safe to call multiple times.
func (h *Handle) MarkDone() {
	h.doneOnce.Do(func() { close(h.done) })
}

// Done returns a channel closed once the reply reaches a terminal state.
func (h *Handle) Done() <-chan struct{} { return h.done }

// IsDone reports whether the reply reached a terminal state.
func (h *Handle) IsDone() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}
