package cli

import (
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "stride",
	Short: "Bounded-context task scheduler for dependency-ordered work",
	Long: `Stride walks a dependency-ordered task graph in bounded sessions.
Each session dispatches eligible tasks to a configured executor until a
resource budget is exhausted, verifies the result, and commits a durable
checkpoint. Progress survives across invocations in .stride/progress.yaml.`,
}

func init() {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("stride version {{.Version}}\n")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
