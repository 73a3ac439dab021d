package graph

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/thruflo/stride/internal/state"
)

// TaskID identifies a task by its (phase, session, task) triple. IDs are
// totally ordered; the authored ordering is the default execution order.
type TaskID struct {
	Phase   int
	Session int
	Task    int
}

// ParseTaskID parses the "P.S.T" string form of a task identifier.
func ParseTaskID(s string) (TaskID, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return TaskID{}, fmt.Errorf("malformed task id %q: want phase.session.task", s)
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n <= 0 {
			return TaskID{}, fmt.Errorf("malformed task id %q: component %q must be a positive integer", s, p)
		}
		nums[i] = n
	}
	return TaskID{Phase: nums[0], Session: nums[1], Task: nums[2]}, nil
}

// String returns the "P.S.T" form.
func (id TaskID) String() string {
	return fmt.Sprintf("%d.%d.%d", id.Phase, id.Session, id.Task)
}

// Compare returns -1, 0 or 1 ordering ids by (phase, session, task).
func (id TaskID) Compare(other TaskID) int {
	if id.Phase != other.Phase {
		return cmpInt(id.Phase, other.Phase)
	}
	if id.Session != other.Session {
		return cmpInt(id.Session, other.Session)
	}
	return cmpInt(id.Task, other.Task)
}

// Less reports whether id orders before other.
func (id TaskID) Less(other TaskID) bool {
	return id.Compare(other) < 0
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Task is a unit of work in the graph. The graph owns tasks exclusively;
// callers receive value copies.
type Task struct {
	ID            TaskID
	Description   string
	DependsOn     []TaskID
	Status        string
	Estimate      state.Cost
	BlockedReason string
	UpdatedAt     time.Time
}
