// Package graph holds the phase/session/task hierarchy, its dependency
// edges and per-task status. It is the in-memory source of truth for one
// session, rebuilt from and snapshotted to the persisted progress record.
package graph

import (
	"fmt"
	"sort"
	"time"

	"github.com/thruflo/stride/internal/state"
)

// Graph is the task graph store. At most one task is in-progress at a time
// (single active worker model) and no task is complete unless all its
// dependencies are complete.
type Graph struct {
	tasks             map[TaskID]*Task
	ordered           []TaskID
	dependents        map[TaskID][]TaskID
	inProgress        *TaskID
	needsVerification bool
	now               func() time.Time
}

// Load rebuilds the in-memory graph from a persisted record. It fails with
// *CorruptGraphError if identifiers are malformed or duplicated, a
// dependency references a non-existent task, a dependency is not strictly
// lower than its dependent (forward or self reference), or statuses violate
// the graph invariants. Statuses are preserved exactly, so a snapshot
// reloads to an identical graph; recovering a task left in-progress by a
// crashed session is the session controller's call (ResetInterrupted).
func Load(rec *state.Record) (*Graph, error) {
	if rec == nil {
		return nil, corruptf("no progress record")
	}

	g := &Graph{
		tasks:      make(map[TaskID]*Task, len(rec.Tasks)),
		dependents: make(map[TaskID][]TaskID),
		now:        time.Now,
	}

	for _, tr := range rec.Tasks {
		id, err := ParseTaskID(tr.ID)
		if err != nil {
			return nil, corruptf("%v", err)
		}
		if _, exists := g.tasks[id]; exists {
			return nil, corruptf("duplicate task id %s", id)
		}
		if !state.ValidStatus(tr.Status) {
			return nil, corruptf("task %s has unknown status %q", id, tr.Status)
		}

		task := &Task{
			ID:            id,
			Description:   tr.Description,
			Status:        tr.Status,
			Estimate:      tr.Estimate,
			BlockedReason: tr.BlockedReason,
			UpdatedAt:     tr.UpdatedAt,
		}
		for _, dep := range tr.DependsOn {
			depID, err := ParseTaskID(dep)
			if err != nil {
				return nil, corruptf("task %s dependency: %v", id, err)
			}
			task.DependsOn = append(task.DependsOn, depID)
		}

		g.tasks[id] = task
		g.ordered = append(g.ordered, id)
	}

	sort.Slice(g.ordered, func(i, j int) bool {
		return g.ordered[i].Less(g.ordered[j])
	})

	for _, id := range g.ordered {
		task := g.tasks[id]
		for _, depID := range task.DependsOn {
			if _, ok := g.tasks[depID]; !ok {
				return nil, corruptf("task %s depends on non-existent task %s", id, depID)
			}
			if !depID.Less(id) {
				return nil, corruptf("task %s depends on %s, which does not precede it", id, depID)
			}
			g.dependents[depID] = append(g.dependents[depID], id)
		}
	}

	for _, id := range g.ordered {
		task := g.tasks[id]
		switch task.Status {
		case state.StatusInProgress:
			if g.inProgress != nil {
				return nil, corruptf("multiple in-progress tasks: %s and %s", *g.inProgress, id)
			}
			idCopy := id
			g.inProgress = &idCopy
		case state.StatusComplete:
			for _, depID := range task.DependsOn {
				if g.tasks[depID].Status != state.StatusComplete {
					return nil, corruptf("task %s is complete but dependency %s is %s",
						id, depID, g.tasks[depID].Status)
				}
			}
		}
	}

	g.needsVerification = rec.NeedsVerification
	return g, nil
}

// Tasks returns value copies of all tasks in ascending identifier order.
func (g *Graph) Tasks() []Task {
	out := make([]Task, 0, len(g.ordered))
	for _, id := range g.ordered {
		out = append(out, *g.tasks[id])
	}
	return out
}

// Task returns a value copy of the task with the given id.
func (g *Graph) Task(id TaskID) (Task, bool) {
	t, ok := g.tasks[id]
	if !ok {
		return Task{}, false
	}
	return *t, true
}

// InProgress returns the currently in-progress task id, if any.
func (g *Graph) InProgress() (TaskID, bool) {
	if g.inProgress == nil {
		return TaskID{}, false
	}
	return *g.inProgress, true
}

// NeedsVerification reports whether a previous session's checkpoint failed
// verification. While true the whole graph is blocked for scheduling.
func (g *Graph) NeedsVerification() bool {
	return g.needsVerification
}

// MarkInProgress transitions a pending task to in-progress. Fails with
// *InvalidTransitionError if another task is already in-progress or the
// task's dependencies are not all complete.
func (g *Graph) MarkInProgress(id TaskID) error {
	task, ok := g.tasks[id]
	if !ok {
		return &InvalidTransitionError{ID: id, To: state.StatusInProgress, Reason: "no such task"}
	}
	if g.inProgress != nil {
		return &InvalidTransitionError{
			ID: id, From: task.Status, To: state.StatusInProgress,
			Reason: fmt.Sprintf("task %s is already in-progress", *g.inProgress),
		}
	}
	if task.Status != state.StatusPending {
		return &InvalidTransitionError{
			ID: id, From: task.Status, To: state.StatusInProgress,
			Reason: "only pending tasks can start",
		}
	}
	for _, depID := range task.DependsOn {
		if g.tasks[depID].Status != state.StatusComplete {
			return &InvalidTransitionError{
				ID: id, From: task.Status, To: state.StatusInProgress,
				Reason: fmt.Sprintf("dependency %s is %s", depID, g.tasks[depID].Status),
			}
		}
	}

	task.Status = state.StatusInProgress
	task.UpdatedAt = g.now()
	g.inProgress = &id
	return nil
}

// MarkComplete transitions the in-progress task to complete.
func (g *Graph) MarkComplete(id TaskID) error {
	task, ok := g.tasks[id]
	if !ok {
		return &InvalidTransitionError{ID: id, To: state.StatusComplete, Reason: "no such task"}
	}
	if task.Status != state.StatusInProgress {
		return &InvalidTransitionError{
			ID: id, From: task.Status, To: state.StatusComplete,
			Reason: "only the in-progress task can complete",
		}
	}

	task.Status = state.StatusComplete
	task.UpdatedAt = g.now()
	g.inProgress = nil
	return nil
}

// MarkBlocked transitions a pending or in-progress task to blocked and
// propagates blocked status to every pending task that depends on it,
// directly or transitively, recording the originating reason.
func (g *Graph) MarkBlocked(id TaskID, reason string) error {
	task, ok := g.tasks[id]
	if !ok {
		return &InvalidTransitionError{ID: id, To: state.StatusBlocked, Reason: "no such task"}
	}
	if task.Status != state.StatusPending && task.Status != state.StatusInProgress {
		return &InvalidTransitionError{
			ID: id, From: task.Status, To: state.StatusBlocked,
			Reason: "only pending or in-progress tasks can block",
		}
	}

	if task.Status == state.StatusInProgress {
		g.inProgress = nil
	}
	task.Status = state.StatusBlocked
	task.BlockedReason = reason
	task.UpdatedAt = g.now()

	g.propagateBlocked(id, reason)
	return nil
}

// propagateBlocked walks the dependent closure of origin and blocks every
// pending task in it.
func (g *Graph) propagateBlocked(origin TaskID, reason string) {
	queue := append([]TaskID(nil), g.dependents[origin]...)
	seen := map[TaskID]bool{origin: true}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if seen[id] {
			continue
		}
		seen[id] = true

		task := g.tasks[id]
		if task.Status == state.StatusPending {
			task.Status = state.StatusBlocked
			task.BlockedReason = fmt.Sprintf("dependency %s blocked: %s", origin, reason)
			task.UpdatedAt = g.now()
		}
		queue = append(queue, g.dependents[id]...)
	}
}

// Unblock is an explicit operator graph edit, never taken by the scheduler
// itself. It resets a blocked task to pending, along with every blocked
// dependent in its transitive closure. Dependents that are still gated by
// another blocked task simply remain pending and never become eligible
// until that blockage is also resolved.
func (g *Graph) Unblock(id TaskID) error {
	task, ok := g.tasks[id]
	if !ok {
		return &InvalidTransitionError{ID: id, To: state.StatusPending, Reason: "no such task"}
	}
	if task.Status != state.StatusBlocked {
		return &InvalidTransitionError{
			ID: id, From: task.Status, To: state.StatusPending,
			Reason: "only blocked tasks can be unblocked",
		}
	}

	task.Status = state.StatusPending
	task.BlockedReason = ""
	task.UpdatedAt = g.now()

	queue := append([]TaskID(nil), g.dependents[id]...)
	seen := map[TaskID]bool{id: true}
	for len(queue) > 0 {
		depID := queue[0]
		queue = queue[1:]
		if seen[depID] {
			continue
		}
		seen[depID] = true

		dep := g.tasks[depID]
		if dep.Status == state.StatusBlocked {
			dep.Status = state.StatusPending
			dep.BlockedReason = ""
			dep.UpdatedAt = g.now()
		}
		queue = append(queue, g.dependents[depID]...)
	}
	return nil
}

// ResetInterrupted returns any task left in-progress by an interrupted
// session to pending so it can be re-run. Its outcome was never recorded,
// which is the "at most one in-flight task lost" resume guarantee. Returns
// the reset task id, if there was one.
func (g *Graph) ResetInterrupted() (TaskID, bool) {
	if g.inProgress == nil {
		return TaskID{}, false
	}
	id := *g.inProgress
	task := g.tasks[id]
	task.Status = state.StatusPending
	task.UpdatedAt = g.now()
	g.inProgress = nil
	return id, true
}

// SetNeedsVerification flags or clears the synthetic whole-graph block used
// when a checkpoint's verification fails.
func (g *Graph) SetNeedsVerification(v bool) {
	g.needsVerification = v
}

// Snapshot returns an immutable progress record reflecting current task
// statuses. It is persisted after every transition, not only at session
// end, so a crash mid-session loses at most one in-flight task. Session
// history is carried by the caller; Snapshot covers tasks only.
func (g *Graph) Snapshot() *state.Record {
	rec := &state.Record{
		Tasks:             make([]state.TaskRecord, 0, len(g.ordered)),
		NeedsVerification: g.needsVerification,
	}
	for _, id := range g.ordered {
		task := g.tasks[id]
		tr := state.TaskRecord{
			ID:            task.ID.String(),
			Description:   task.Description,
			Status:        task.Status,
			Estimate:      task.Estimate,
			BlockedReason: task.BlockedReason,
			UpdatedAt:     task.UpdatedAt,
		}
		for _, depID := range task.DependsOn {
			tr.DependsOn = append(tr.DependsOn, depID.String())
		}
		rec.Tasks = append(rec.Tasks, tr)
	}
	return rec
}
