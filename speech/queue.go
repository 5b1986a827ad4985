package speech

import "sync"

// Queue is the playout order of speech handles. Handles are enqueued once
// their synthesis completes and played strictly in enqueue order, so a
// still-running delegated reply never blocks replies that finished earlier.
type Queue struct {
	mu     sync.Mutex
	ch     chan *Handle
	closed bool
}

// NewQueue constructs a playout queue with the given buffer size.
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = 16
	}
	return &Queue{ch: make(chan *Handle, size)}
}

// Push enqueues a handle for playout. Pushing to a closed queue is a no-op;
// the handle is marked done so waiters are released.
func (q *Queue) Push(h *Handle) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		h.MarkDone()
		return
	}
	// Holding the lock during the send keeps Close from racing it; the
	// playout loop drains without taking the lock, so this cannot deadlock.
	q.ch <- h
}

// Next returns the channel of enqueued handles for the playout loop.
func (q *Queue) Next() <-chan *Handle { return q.ch }

// Close stops the queue. Pending handles remain readable until drained.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
}
