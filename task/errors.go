package task

import "fmt"

var (
	// ErrAlreadyRegistered is returned when registering a task under a key
	// (name or type) that is already taken. Registration is monotonic; there
	// is no update-in-place.
	ErrAlreadyRegistered = fmt.Errorf("task already registered")

	// ErrNotFound is returned when looking up a task key that was never
	// registered.
	ErrNotFound = fmt.Errorf("task not found")

	// ErrResultNotSet is returned from Run when an inline task resolved
	// successfully without ever setting a result value. Declaring success
	// with no payload is a programming error, not a valid outcome.
	ErrResultNotSet = fmt.Errorf("inline task result not set")
)

// TaskFailed carries the sub-task's own business failure (for example the
// user declined), surfaced from Run to the delegating caller, which is
// expected to relay it conversationally rather than crash.
type TaskFailed struct {
	Reason string
}

func (e *TaskFailed) Error() string {
	return fmt.Sprintf("task failed: %s", e.Reason)
}
