package graph

import "fmt"

// CorruptGraphError indicates malformed persisted state: the graph cannot be
// rebuilt and the session cannot start. Requires manual repair of the
// progress record.
type CorruptGraphError struct {
	Detail string
}

func (e *CorruptGraphError) Error() string {
	return fmt.Sprintf("corrupt graph: %s", e.Detail)
}

func corruptf(format string, args ...interface{}) error {
	return &CorruptGraphError{Detail: fmt.Sprintf(format, args...)}
}

// InvalidTransitionError indicates a status transition the graph forbids.
// This is a controller logic error, not a user-recoverable condition.
type InvalidTransitionError struct {
	ID     TaskID
	From   string
	To     string
	Reason string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition for task %s: %s -> %s: %s", e.ID, e.From, e.To, e.Reason)
}
