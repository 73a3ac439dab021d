package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/thruflo/stride/internal/checkpoint"
	"github.com/thruflo/stride/internal/config"
	"github.com/thruflo/stride/internal/state"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Re-run verification and commit outstanding session work",
	Long: `Re-runs the verify command after a failed checkpoint. On success,
the verification hold on the graph is cleared and the outstanding work is
committed, so the next "stride run" can dispatch tasks again.

Use this after fixing whatever made the post-session verification fail,
or after resolving a git problem that made the commit itself fail.`,
	Args: cobra.NoArgs,
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	cfg, err := config.LoadConfig(cwd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	store := state.NewStore(cwd)
	lock, err := store.AcquireLock()
	if err != nil {
		return fmt.Errorf("failed to acquire session lock: %w", err)
	}
	defer func() {
		if err := lock.Release(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to release lock: %v\n", err)
		}
	}()

	rec, err := store.LoadRecord()
	if err != nil {
		return fmt.Errorf("failed to load progress record: %w", err)
	}
	if rec == nil {
		return fmt.Errorf("no progress record found; run 'stride plan import' first")
	}

	uncommitted := latestUncommittedSession(rec)
	if !rec.NeedsVerification && uncommitted < 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "nothing awaiting verification")
		return nil
	}

	verifier := checkpoint.NewCommandVerifier(cfg.Commands.Verify, cwd)
	fmt.Fprintf(cmd.OutOrStdout(), "running verify command: %s\n", cfg.Commands.Verify)
	if !verifier.Verify(ctx) {
		return fmt.Errorf("verification failed; the graph stays on hold")
	}

	rec.NeedsVerification = false

	// Commit the work the failed checkpoint left behind and record the
	// ref against its session entry.
	if uncommitted >= 0 {
		sess := &rec.Sessions[uncommitted]
		message := fmt.Sprintf("stride: session %d (%s): verified", sess.Ordinal, sess.Termination)
		ref, err := checkpoint.NewGitCommitter(cwd).Commit(ctx, message, nil)
		if err != nil {
			return fmt.Errorf("verification passed but commit failed: %w", err)
		}
		sess.CommitRef = ref
		fmt.Fprintf(cmd.OutOrStdout(), "committed %s as session %d\n", ref, sess.Ordinal)
	}

	if err := store.SaveRecord(rec); err != nil {
		return fmt.Errorf("failed to save progress record: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "verification passed; the next session can dispatch tasks")
	return nil
}

// latestUncommittedSession returns the index of the most recent session
// that completed work without getting a commit ref, or -1.
func latestUncommittedSession(rec *state.Record) int {
	for i := len(rec.Sessions) - 1; i >= 0; i-- {
		s := rec.Sessions[i]
		if s.CommitRef == "" && len(s.Completed) > 0 {
			return i
		}
	}
	return -1
}
