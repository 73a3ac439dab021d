package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/thruflo/stride/internal/checkpoint"
	"github.com/thruflo/stride/internal/config"
	"github.com/thruflo/stride/internal/executor"
	"github.com/thruflo/stride/internal/graph"
	"github.com/thruflo/stride/internal/logging"
	"github.com/thruflo/stride/internal/loop"
	"github.com/thruflo/stride/internal/state"
)

var runExecutorCmd string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one scheduling session",
	Long: `Runs a single bounded session over the progress record: eligible
tasks are dispatched to the executor command in dependency order until
the graph is exhausted, a budget threshold is reached, or the operator
interrupts.

Every stop ends with a checkpoint: the verify command is run and, when
it passes, the session's work is committed to git. Press Ctrl-C once to
stop cleanly after the in-flight task finishes.

The executor command is taken from commands.executor in config.yaml, or
from --executor. It runs once per task with STRIDE_TASK_ID and
STRIDE_TASK_DESC in the environment and must print a JSON result line
({"files": n, "lines": n, "tests": n, "tokens": n, "failure": "..."})
as its last line of output.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runExecutorCmd, "executor", "", "executor command (overrides config)")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
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

	executorCmd := runExecutorCmd
	if executorCmd == "" {
		executorCmd = cfg.Commands.Executor
	}
	if strings.TrimSpace(executorCmd) == "" {
		return fmt.Errorf("no executor command configured; set commands.executor in .stride/config.yaml or pass --executor")
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

	g, err := graph.Load(rec)
	if err != nil {
		return fmt.Errorf("failed to load task graph: %w", err)
	}

	log := logging.New()
	log.SetLevel(logging.LevelInfo)

	coord := checkpoint.NewCoordinator(
		checkpoint.NewCommandVerifier(cfg.Commands.Verify, cwd),
		checkpoint.NewGitCommitter(cwd),
		store,
		log,
	)

	l := loop.NewLoop(loop.Options{
		Graph:       g,
		Store:       store,
		Executor:    executor.NewCommandExecutor(executorCmd, cwd),
		Coordinator: coord,
		Policy:      cfg.Budget,
		Logger:      log,
		Sessions:    rec.Sessions,
		Ordinal:     rec.NextOrdinal(),
	})

	// First signal requests a clean stop; a second one kills the process
	// the usual way.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "stop requested; finishing in-flight task...")
		l.RequestStop()
		signal.Stop(sigCh)
	}()

	fmt.Printf("Starting session %d...\n", rec.NextOrdinal())
	result := l.Run(ctx)

	return reportResult(cmd, result)
}

func reportResult(cmd *cobra.Command, result loop.Result) error {
	out := cmd.OutOrStdout()

	if result.Aborted {
		fmt.Fprintf(out, "\nSession aborted: %v\n", result.Err)
		printSessionSummary(out, result)
		return fmt.Errorf("session aborted")
	}

	fmt.Fprintf(out, "\nSession stopped: %s\n", result.Reason)
	printSessionSummary(out, result)

	if cp := result.Checkpoint; cp != nil {
		switch cp.Outcome {
		case checkpoint.OutcomeCommitted:
			fmt.Fprintf(out, "Checkpoint: committed %s\n", cp.CommitRef)
		case checkpoint.OutcomeVerificationFailed:
			fmt.Fprintf(out, "Checkpoint: verification FAILED; run 'stride verify' before the next session\n")
		case checkpoint.OutcomeCommitFailed:
			fmt.Fprintf(out, "Checkpoint: commit failed: %v\n", cp.Err)
			fmt.Fprintf(out, "Resolve the git state and run 'stride verify' to retry the commit.\n")
		case checkpoint.OutcomeNothingToCommit:
			fmt.Fprintf(out, "Checkpoint: nothing to commit\n")
		}
	}
	if result.Err != nil {
		return result.Err
	}
	return nil
}

func printSessionSummary(out io.Writer, result loop.Result) {
	ids := make([]string, 0, len(result.Completed))
	for _, id := range result.Completed {
		ids = append(ids, id.String())
	}
	done := "none"
	if len(ids) > 0 {
		done = strings.Join(ids, ", ")
	}
	fmt.Fprintf(out, "Completed: %s\n", done)
	fmt.Fprintf(out, "Counters:  files=%d lines=%d tests=%d tokens=%d\n",
		result.Counters.Files, result.Counters.Lines, result.Counters.Tests, result.Counters.Tokens)
	if result.InFlight != "" {
		fmt.Fprintf(out, "In flight: %s (will re-run next session)\n", result.InFlight)
	}
	fmt.Fprintf(out, "Record:    %s\n", result.RecordPath)
}
