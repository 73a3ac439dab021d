package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/thruflo/stride/internal/graph"
	"github.com/thruflo/stride/internal/state"
)

var unblockCmd = &cobra.Command{
	Use:   "unblock <task-id>",
	Short: "Reset a blocked task to pending",
	Long: `Resets a blocked task to pending after its underlying problem has
been fixed outside stride (for example by amending the code or the plan).
Tasks that were blocked only because they depend on it are reset too.

A blocked task is never retried automatically; this command is the only
way to make it eligible again.`,
	Args: cobra.ExactArgs(1),
	RunE: runUnblock,
}

func init() {
	rootCmd.AddCommand(unblockCmd)
}

func runUnblock(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}
	return unblockTask(cwd, args[0], cmd.OutOrStdout())
}

func unblockTask(basePath, rawID string, out io.Writer) error {
	id, err := graph.ParseTaskID(rawID)
	if err != nil {
		return err
	}

	store := state.NewStore(basePath)
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

	g, err := graph.Load(rec)
	if err != nil {
		return fmt.Errorf("failed to load task graph: %w", err)
	}
	if err := g.Unblock(id); err != nil {
		return err
	}

	snap := g.Snapshot()
	snap.Sessions = rec.Sessions
	if err := store.SaveRecord(snap); err != nil {
		return fmt.Errorf("failed to save progress record: %w", err)
	}

	fmt.Fprintf(out, "unblocked %s; dependent tasks reset to pending\n", id)
	return nil
}
