package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/thruflo/stride/internal/plan"
	"github.com/thruflo/stride/internal/state"
)

var planImportForce bool

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Work with the authored plan file",
}

var planImportCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Validate a plan and materialize a fresh progress record",
	Long: `Validates a plan file (format version, task ids, dependency
ordering) and writes a fresh progress record with every task pending.
Reads .stride/plan.yaml unless a file is given.

Importing refuses to overwrite an existing progress record; pass --force
to discard recorded progress and start over.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPlanImport,
}

func init() {
	planImportCmd.Flags().BoolVar(&planImportForce, "force", false, "discard an existing progress record")
	planCmd.AddCommand(planImportCmd)
	rootCmd.AddCommand(planCmd)
}

func runPlanImport(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	path := plan.PlanPath(cwd)
	if len(args) == 1 {
		path = args[0]
	}

	store := state.NewStore(cwd)
	p, err := plan.ImportFile(store, path, planImportForce)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "imported plan version %s: %d tasks, all pending\n",
		p.Version, len(p.Tasks))
	fmt.Fprintf(cmd.OutOrStdout(), "progress record: %s\n", store.RecordPath())
	return nil
}
