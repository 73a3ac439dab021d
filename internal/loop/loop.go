package loop

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/thruflo/stride/internal/budget"
	"github.com/thruflo/stride/internal/checkpoint"
	"github.com/thruflo/stride/internal/config"
	"github.com/thruflo/stride/internal/executor"
	"github.com/thruflo/stride/internal/graph"
	"github.com/thruflo/stride/internal/logging"
	"github.com/thruflo/stride/internal/resolve"
	"github.com/thruflo/stride/internal/state"
)

// Phase is the controller's state machine position.
type Phase int

const (
	// PhaseIdle is the initial phase, before Run.
	PhaseIdle Phase = iota
	// PhaseRunning is the dispatch loop.
	PhaseRunning
	// PhaseStopping hands off to the checkpoint coordinator.
	PhaseStopping
	// PhaseAborted is terminal and requires external intervention (a plan
	// edit or unblock) before a new session can resume.
	PhaseAborted
)

// String returns a human-readable phase name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRunning:
		return "running"
	case PhaseStopping:
		return "stopping"
	case PhaseAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// StopReason indicates why a session stopped cleanly.
type StopReason int

const (
	StopUnknown StopReason = iota
	// StopGraphExhausted means no runnable work remains.
	StopGraphExhausted
	// StopBudgetExhausted means a budget threshold was reached.
	StopBudgetExhausted
	// StopManual means the operator requested a stop; the in-flight
	// dispatch was allowed to finish first.
	StopManual
)

// String returns the canonical termination reason, as persisted in the
// progress record's session history.
func (r StopReason) String() string {
	switch r {
	case StopGraphExhausted:
		return state.TerminationGraphExhausted
	case StopBudgetExhausted:
		return state.TerminationBudgetExhausted
	case StopManual:
		return state.TerminationManualStop
	default:
		return "unknown"
	}
}

// Result is the outcome of one session.
type Result struct {
	// Reason is set for clean stops; zero when Aborted.
	Reason StopReason
	// Aborted means the session ended without a checkpoint and needs
	// external intervention; Err carries the cause.
	Aborted bool
	// Completed lists tasks completed within this session, in order.
	Completed []graph.TaskID
	// Counters are the session's accumulated budget counters.
	Counters state.Cost
	// Checkpoint is the checkpoint outcome for clean stops.
	Checkpoint *checkpoint.Result
	// RecordPath is the location of the last persisted progress record.
	RecordPath string
	// InFlight is the id of the task in progress at the time of the stop,
	// if any.
	InFlight string
	// Err is the abort cause, or a checkpoint persistence failure.
	Err error
}

// Options configures a Loop. All fields except Logger are required.
type Options struct {
	Graph       *graph.Graph
	Store       *state.Store
	Executor    executor.Executor
	Coordinator *checkpoint.Coordinator
	Policy      config.Budget
	Logger      *logging.Logger
	// Sessions is the prior session history, carried through every
	// persisted snapshot.
	Sessions []state.SessionRecord
	// Ordinal is this session's ordinal.
	Ordinal int
}

// Loop is the session controller.
type Loop struct {
	graph     *graph.Graph
	store     *state.Store
	exec      executor.Executor
	coord     *checkpoint.Coordinator
	policy    config.Budget
	tracker   *budget.Tracker
	log       *logging.Logger
	sessions  []state.SessionRecord
	ordinal   int
	completed []graph.TaskID
	phase     Phase
	stopReq   atomic.Bool
}

// NewLoop creates a session controller from options.
func NewLoop(opts Options) *Loop {
	log := opts.Logger
	if log == nil {
		log = logging.New()
	}
	return &Loop{
		graph:    opts.Graph,
		store:    opts.Store,
		exec:     opts.Executor,
		coord:    opts.Coordinator,
		policy:   opts.Policy,
		tracker:  budget.NewTracker(opts.Policy.ContextWindowTokens),
		log:      log.With("session", opts.Ordinal),
		sessions: opts.Sessions,
		ordinal:  opts.Ordinal,
		phase:    PhaseIdle,
	}
}

// Phase returns the controller's current phase.
func (l *Loop) Phase() Phase {
	return l.phase
}

// RequestStop asks the session to stop cooperatively. The request is
// honored before the next dispatch; an in-flight task finishes first, so
// no task is left half-applied.
func (l *Loop) RequestStop() {
	l.stopReq.Store(true)
}

// Run executes the session until the graph is exhausted, a budget
// threshold is reached, a stop is requested, or the graph blocks.
func (l *Loop) Run(ctx context.Context) Result {
	l.phase = PhaseRunning

	if l.graph.NeedsVerification() {
		return l.abort(errors.New(
			"previous session's verification is unresolved; run `stride verify` before dispatching new tasks"))
	}

	if id, reset := l.graph.ResetInterrupted(); reset {
		l.log.Warn("re-running task interrupted by a previous session", "task", id)
		if err := l.persist(); err != nil {
			return l.abort(err)
		}
	}

	retriedNoneYet := false
	for {
		// Cooperative cancellation, checked at dispatch boundaries only.
		if l.stopReq.Load() || ctx.Err() != nil {
			return l.stop(ctx, StopManual)
		}

		task, outcome := resolve.Next(l.graph)
		switch outcome {
		case resolve.OutcomeComplete:
			return l.stop(ctx, StopGraphExhausted)

		case resolve.OutcomeBlocked:
			return l.abort(errors.New("graph blocked: every remaining task depends on blocked work"))

		case resolve.OutcomeNoneYet:
			if retriedNoneYet {
				return l.abort(errors.New("no eligible tasks and none blocked: the graph is invalid"))
			}
			retriedNoneYet = true
			continue
		}
		retriedNoneYet = false

		if err := l.graph.MarkInProgress(task.ID); err != nil {
			// A transition error here is a controller bug, not a data
			// condition; surface it immediately.
			return l.abort(err)
		}
		if err := l.persist(); err != nil {
			return l.abort(err)
		}

		l.log.Info("dispatching task", "task", task.ID, "description", task.Description)
		res, err := l.exec.ExecuteTask(ctx, task)
		if err != nil {
			if ctx.Err() != nil {
				// The dispatch was interrupted; the task stays
				// in-progress on disk and is re-run next session.
				return l.stop(ctx, StopManual)
			}
			// Executor infrastructure errors are absorbed like task
			// failures: they block this branch, not the session.
			res = executor.Result{Failure: err.Error()}
		}

		if res.Failed() {
			l.log.Warn("task failed", "task", task.ID, "failure", res.Failure)
			if err := l.graph.MarkBlocked(task.ID, res.Failure); err != nil {
				return l.abort(err)
			}
			if err := l.persist(); err != nil {
				return l.abort(err)
			}
			continue
		}

		if err := l.graph.MarkComplete(task.ID); err != nil {
			return l.abort(err)
		}
		l.tracker.Record(res.Cost)
		l.completed = append(l.completed, task.ID)
		if err := l.persist(); err != nil {
			return l.abort(err)
		}
		l.log.Info("task complete", "task", task.ID,
			"files", res.Cost.Files, "lines", res.Cost.Lines, "tokens", res.Cost.Tokens)

		if reason := l.tracker.Exceeded(l.policy); reason != budget.ReasonNone {
			l.log.Info("budget threshold reached", "reason", reason)
			return l.stop(ctx, StopBudgetExhausted)
		}
	}
}

// persist writes the graph snapshot plus carried session history.
func (l *Loop) persist() error {
	rec := l.graph.Snapshot()
	rec.Sessions = l.sessions
	return l.store.SaveRecord(rec)
}

// stop hands off to the checkpoint coordinator and ends the session.
func (l *Loop) stop(ctx context.Context, reason StopReason) Result {
	l.phase = PhaseStopping

	res := Result{
		Reason:     reason,
		Completed:  l.completed,
		Counters:   l.tracker.Totals(),
		RecordPath: l.store.RecordPath(),
	}
	if id, ok := l.graph.InProgress(); ok {
		res.InFlight = id.String()
	}

	sess := checkpoint.Session{
		Ordinal:     l.ordinal,
		Counters:    l.tracker.Totals(),
		Termination: reason.String(),
		Completed:   l.completed,
	}
	// Checkpoint must run even when the stop came from ctx cancellation.
	cp, err := l.coord.Checkpoint(context.WithoutCancel(ctx), l.graph, sess)
	if err != nil {
		res.Err = err
		return res
	}
	res.Checkpoint = &cp
	return res
}

// abort ends the session without a checkpoint. The last snapshot is
// persisted best-effort so the operator sees the blocking state.
func (l *Loop) abort(cause error) Result {
	l.phase = PhaseAborted

	res := Result{
		Aborted:    true,
		Err:        cause,
		Completed:  l.completed,
		Counters:   l.tracker.Totals(),
		RecordPath: l.store.RecordPath(),
	}
	if id, ok := l.graph.InProgress(); ok {
		res.InFlight = id.String()
	}
	if err := l.persist(); err != nil {
		l.log.Error("failed to persist record on abort", "error", err)
	}
	return res
}
