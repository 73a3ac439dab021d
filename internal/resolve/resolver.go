// Package resolve picks the next eligible task from the graph. An eligible
// task is a pending task whose dependencies are all complete; ties break to
// the lowest identifier, which enforces the authored phase/session/task
// ordering as the default execution order.
package resolve

import (
	"github.com/thruflo/stride/internal/graph"
	"github.com/thruflo/stride/internal/state"
)

// Outcome classifies a resolution attempt.
type Outcome int

const (
	// OutcomeEligible means a task was selected.
	OutcomeEligible Outcome = iota
	// OutcomeComplete means no pending, in-progress or blocked tasks remain.
	OutcomeComplete
	// OutcomeBlocked means unfinished tasks remain but every path forward
	// runs through a blocked task.
	OutcomeBlocked
	// OutcomeNoneYet means pending tasks exist, none are eligible and none
	// are blocked. With synchronous single-threaded updates this only
	// arises from an invalid graph; the controller retries once and then
	// treats it as blocked.
	OutcomeNoneYet
)

// String returns a short description of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeEligible:
		return "eligible"
	case OutcomeComplete:
		return "complete"
	case OutcomeBlocked:
		return "blocked"
	case OutcomeNoneYet:
		return "none-yet"
	default:
		return "unknown"
	}
}

// Next returns the pending task with the lowest identifier among those
// whose dependencies are all complete, or the outcome describing why no
// task could be selected. Tasks() is already in ascending identifier
// order, so the first eligible hit wins the tie-break.
func Next(g *graph.Graph) (graph.Task, Outcome) {
	var pending, blocked, inProgress int

	complete := make(map[graph.TaskID]bool)
	tasks := g.Tasks()
	for _, t := range tasks {
		if t.Status == state.StatusComplete {
			complete[t.ID] = true
		}
	}

	for _, t := range tasks {
		switch t.Status {
		case state.StatusBlocked:
			blocked++
		case state.StatusInProgress:
			inProgress++
		case state.StatusPending:
			pending++
			eligible := true
			for _, dep := range t.DependsOn {
				if !complete[dep] {
					eligible = false
					break
				}
			}
			if eligible {
				return t, OutcomeEligible
			}
		}
	}

	switch {
	case pending == 0 && blocked == 0 && inProgress == 0:
		return graph.Task{}, OutcomeComplete
	case blocked > 0:
		// Every stuck dependency chain bottoms out at a blocked task, so
		// remaining pending work is unreachable without operator action.
		return graph.Task{}, OutcomeBlocked
	default:
		return graph.Task{}, OutcomeNoneYet
	}
}
