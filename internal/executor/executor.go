// Package executor defines the external task executor collaborator. The
// scheduler treats each task as an opaque unit of work: the executor is
// handed a task id and description and reports back a realized cost and a
// success or failure outcome.
package executor

import (
	"context"

	"github.com/thruflo/stride/internal/graph"
	"github.com/thruflo/stride/internal/state"
)

// Result is the executor's report for one task.
type Result struct {
	// Cost is the realized resource consumption.
	Cost state.Cost
	// Failure is non-empty when the task failed; it becomes the blocked
	// reason on the task.
	Failure string
}

// Failed reports whether the task failed.
func (r Result) Failed() bool {
	return r.Failure != ""
}

// Executor runs a single task to completion. The call may suspend for an
// unbounded duration; the session controller blocks on it. Implementations
// should honor ctx cancellation.
type Executor interface {
	ExecuteTask(ctx context.Context, task graph.Task) (Result, error)
}
