package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/thruflo/stride/internal/config"
	"github.com/thruflo/stride/internal/plan"
)

// examplePlan is written on init so the authored format is discoverable.
const examplePlan = `# Stride plan. Task ids are phase.session.task; dependencies must
# reference lower ids only. Run "stride plan import" after editing.
version: "1.0.0"
tasks:
  - id: "1.1.1"
    description: "example: replace with your first task"
    estimate:
      files: 1
      lines: 50
#  - id: "1.1.2"
#    description: "example: a task gated on 1.1.1"
#    depends_on: ["1.1.1"]
`

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a .stride workspace in the current directory",
	Long: `Creates the .stride/ directory with a default config.yaml and an
example plan.yaml. Existing files are left untouched.

After editing plan.yaml, run "stride plan import" to materialize the
progress record, then "stride run" to start a session.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}
	return initWorkspace(cwd, cmd.OutOrStdout())
}

func initWorkspace(basePath string, out io.Writer) error {
	configPath := filepath.Join(basePath, ".stride", "config.yaml")
	if _, err := os.Stat(configPath); err == nil {
		fmt.Fprintf(out, "config.yaml already exists, leaving it untouched\n")
	} else {
		if err := config.WriteDefaultConfig(basePath); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
		fmt.Fprintf(out, "wrote %s\n", configPath)
	}

	planPath := plan.PlanPath(basePath)
	if _, err := os.Stat(planPath); err == nil {
		fmt.Fprintf(out, "plan.yaml already exists, leaving it untouched\n")
		return nil
	}
	if err := os.WriteFile(planPath, []byte(examplePlan), 0o644); err != nil {
		return fmt.Errorf("failed to write example plan: %w", err)
	}
	fmt.Fprintf(out, "wrote %s\n", planPath)
	fmt.Fprintf(out, "edit the plan, then run: stride plan import\n")
	return nil
}
