package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/thruflo/stride/internal/state"
)

var statusFollow bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show task graph and session progress",
	Long: `Shows the progress record: per-task status, blocked reasons, and
the session history with termination reasons and commit refs.

With --follow, keeps watching the record and re-renders on every change,
which is useful in a second terminal while "stride run" is active.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVarP(&statusFollow, "follow", "f", false, "watch the record and re-render on change")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}
	store := state.NewStore(cwd)

	if err := showStatus(cmd.OutOrStdout(), store); err != nil {
		return err
	}
	if !statusFollow {
		return nil
	}
	return followStatus(cmd, store)
}

func showStatus(out io.Writer, store *state.Store) error {
	rec, err := store.LoadRecord()
	if err != nil {
		return fmt.Errorf("failed to load progress record: %w", err)
	}
	if rec == nil {
		fmt.Fprintln(out, "No progress record found. Run 'stride plan import' first.")
		return nil
	}
	renderStatus(out, rec)
	return nil
}

func renderStatus(out io.Writer, rec *state.Record) {
	counts := map[string]int{}
	idWidth := len("TASK")
	for _, task := range rec.Tasks {
		counts[task.Status]++
		if len(task.ID) > idWidth {
			idWidth = len(task.ID)
		}
	}

	fmt.Fprintf(out, "Tasks: %d total, %d complete, %d pending, %d blocked, %d in progress\n",
		len(rec.Tasks), counts[state.StatusComplete], counts[state.StatusPending],
		counts[state.StatusBlocked], counts[state.StatusInProgress])
	if rec.NeedsVerification {
		fmt.Fprintln(out, "Verification pending: run 'stride verify' before the next session.")
	}
	fmt.Fprintln(out)

	fmt.Fprintf(out, "%-*s  %-12s  %s\n", idWidth, "TASK", "STATUS", "DETAIL")
	fmt.Fprintf(out, "%s  %s  %s\n", strings.Repeat("-", idWidth), strings.Repeat("-", 12), strings.Repeat("-", 6))
	for _, task := range rec.Tasks {
		detail := task.Description
		if task.Status == state.StatusBlocked && task.BlockedReason != "" {
			detail = task.BlockedReason
		}
		fmt.Fprintf(out, "%-*s  %-12s  %s\n", idWidth, task.ID, task.Status, detail)
	}

	if len(rec.Sessions) == 0 {
		return
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Sessions:")
	for _, s := range rec.Sessions {
		ref := s.CommitRef
		if ref == "" {
			ref = "(no commit)"
		}
		fmt.Fprintf(out, "  %d: %s, %d tasks, files=%d lines=%d tests=%d tokens=%d, %s\n",
			s.Ordinal, s.Termination, len(s.Completed),
			s.Counters.Files, s.Counters.Lines, s.Counters.Tests, s.Counters.Tokens, ref)
	}
}

// followStatus re-renders on every write to the progress record until the
// command context is cancelled or the process is interrupted.
func followStatus(cmd *cobra.Command, store *state.Store) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory, not the file: the record is replaced by rename
	// on every save, which drops a watch on the file itself.
	if err := watcher.Add(filepath.Dir(store.RecordPath())); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(store.RecordPath()), err)
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	var debounce <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != store.RecordPath() {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			// Coalesce the write+rename burst from an atomic save.
			debounce = time.After(100 * time.Millisecond)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "Warning: watch error: %v\n", err)
		case <-debounce:
			debounce = nil
			fmt.Fprintf(out, "\n--- %s ---\n", time.Now().Format("15:04:05"))
			if err := showStatus(out, store); err != nil {
				return err
			}
		}
	}
}
