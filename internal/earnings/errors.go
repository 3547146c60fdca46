package earnings

import "fmt"

// PreconditionError aborts an action before any state is touched.
type PreconditionError struct {
	Op     string
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

func precondition(op, reason string) error {
	return &PreconditionError{Op: op, Reason: reason}
}

// PersistenceError wraps a failed store call. In-memory state is kept.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
