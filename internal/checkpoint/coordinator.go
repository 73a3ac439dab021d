// Package checkpoint performs the combined verify-then-commit action at
// session end. Completed work is always persisted, even when verification
// fails, so tasks are never re-run; only the commit is withheld.
package checkpoint

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/thruflo/stride/internal/graph"
	"github.com/thruflo/stride/internal/logging"
	"github.com/thruflo/stride/internal/state"
)

// Outcome classifies a checkpoint attempt.
type Outcome int

const (
	// OutcomeCommitted means verification passed and the work was committed.
	OutcomeCommitted Outcome = iota
	// OutcomeVerificationFailed means verification failed: progress was
	// persisted but the commit was skipped, and the graph is blocked until
	// the failure is addressed.
	OutcomeVerificationFailed
	// OutcomeCommitFailed means verification passed but the commit did
	// not. The progress record is still valid locally; the commit is
	// retried by the operator, not automatically.
	OutcomeCommitFailed
	// OutcomeNothingToCommit means the session completed no tasks, so
	// there was nothing to verify or commit.
	OutcomeNothingToCommit
)

// String returns a short description of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeCommitted:
		return "committed"
	case OutcomeVerificationFailed:
		return "verification-failed"
	case OutcomeCommitFailed:
		return "commit-failed"
	case OutcomeNothingToCommit:
		return "nothing-to-commit"
	default:
		return "unknown"
	}
}

// Verifier is the external verification collaborator, consumed as a
// boolean pass/fail signal only.
type Verifier interface {
	Verify(ctx context.Context) bool
}

// Committer is the external commit collaborator.
type Committer interface {
	Commit(ctx context.Context, message string, ids []graph.TaskID) (ref string, err error)
}

// CommitError indicates the external commit operation failed, for example
// on conflicting remote history. The session's progress record is still
// considered valid locally.
type CommitError struct {
	Message string
	Err     error
}

func (e *CommitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("commit failed: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("commit failed: %s", e.Message)
}

func (e *CommitError) Unwrap() error {
	return e.Err
}

// Session summarizes the finished session being checkpointed.
type Session struct {
	Ordinal     int
	Counters    state.Cost
	Termination string
	Completed   []graph.TaskID
}

// Result is the outcome of one checkpoint.
type Result struct {
	Outcome   Outcome
	CommitRef string
	// Err carries the commit error when Outcome is OutcomeCommitFailed.
	Err error
}

// Coordinator drives checkpointing against the progress store.
type Coordinator struct {
	verifier  Verifier
	committer Committer
	store     *state.Store
	log       *logging.Logger
	now       func() time.Time
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(v Verifier, c Committer, store *state.Store, log *logging.Logger) *Coordinator {
	if log == nil {
		log = logging.New()
	}
	return &Coordinator{
		verifier:  v,
		committer: c,
		store:     store,
		log:       log,
		now:       time.Now,
	}
}

// Checkpoint verifies the session's work and, on success, commits it tagged
// with the session ordinal and completed task identifiers, then persists
// the final progress record. On verification failure the record is
// persisted anyway with the needs-verification flag set, so the next
// session refuses to dispatch until `stride verify` resolves it. A
// returned error means the record could not be persisted.
func (c *Coordinator) Checkpoint(ctx context.Context, g *graph.Graph, sess Session) (Result, error) {
	entry := state.SessionRecord{
		Ordinal:     sess.Ordinal,
		Counters:    sess.Counters,
		Termination: sess.Termination,
		EndedAt:     c.now(),
	}
	for _, id := range sess.Completed {
		entry.Completed = append(entry.Completed, id.String())
	}

	if len(sess.Completed) == 0 {
		c.log.Info("checkpoint: no completed tasks", "session", sess.Ordinal)
		if err := c.persist(g, entry); err != nil {
			return Result{}, err
		}
		return Result{Outcome: OutcomeNothingToCommit}, nil
	}

	if !c.verifier.Verify(ctx) {
		c.log.Warn("checkpoint: verification failed", "session", sess.Ordinal)
		g.SetNeedsVerification(true)
		if err := c.persist(g, entry); err != nil {
			return Result{}, err
		}
		return Result{Outcome: OutcomeVerificationFailed}, nil
	}

	ref, err := c.committer.Commit(ctx, commitMessage(sess), sess.Completed)
	if err != nil {
		cerr := asCommitError(err)
		c.log.Warn("checkpoint: commit failed", "session", sess.Ordinal, "error", cerr)
		if perr := c.persist(g, entry); perr != nil {
			return Result{}, perr
		}
		return Result{Outcome: OutcomeCommitFailed, Err: cerr}, nil
	}

	entry.CommitRef = ref
	if err := c.persist(g, entry); err != nil {
		return Result{}, err
	}
	c.log.Info("checkpoint: committed", "session", sess.Ordinal, "ref", ref)
	return Result{Outcome: OutcomeCommitted, CommitRef: ref}, nil
}

// persist writes the graph snapshot plus the new session entry, preserving
// prior session history from the stored record.
func (c *Coordinator) persist(g *graph.Graph, entry state.SessionRecord) error {
	rec := g.Snapshot()

	prior, err := c.store.LoadRecord()
	if err != nil {
		return fmt.Errorf("failed to load prior record: %w", err)
	}
	if prior != nil {
		rec.Sessions = prior.Sessions
	}
	rec.Sessions = append(rec.Sessions, entry)

	if err := c.store.SaveRecord(rec); err != nil {
		return fmt.Errorf("failed to persist final record: %w", err)
	}
	return nil
}

// commitMessage builds the commit message tagged with the session ordinal
// and completed task identifiers.
func commitMessage(sess Session) string {
	ids := make([]string, 0, len(sess.Completed))
	for _, id := range sess.Completed {
		ids = append(ids, id.String())
	}
	return fmt.Sprintf("stride: session %d (%s): complete %s",
		sess.Ordinal, sess.Termination, strings.Join(ids, ", "))
}

func asCommitError(err error) *CommitError {
	if ce, ok := err.(*CommitError); ok {
		return ce
	}
	return &CommitError{Message: "commit operation failed", Err: err}
}
