package checkpoint

import (
	"context"
	"os"
	"os/exec"
	"strings"
)

// CommandVerifier runs a configured shell command and reports pass/fail
// from its exit status.
type CommandVerifier struct {
	// Command is the shell command to run, e.g. "go test ./...".
	Command string
	// Dir is the working directory for the command.
	Dir string
}

// NewCommandVerifier creates a CommandVerifier running command in dir.
func NewCommandVerifier(command, dir string) *CommandVerifier {
	return &CommandVerifier{Command: command, Dir: dir}
}

// Verify runs the command. An empty command verifies trivially; a command
// that cannot run at all counts as a failure.
func (v *CommandVerifier) Verify(ctx context.Context) bool {
	if strings.TrimSpace(v.Command) == "" {
		return true
	}
	cmd := exec.CommandContext(ctx, "bash", "-c", v.Command)
	cmd.Dir = v.Dir
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	return cmd.Run() == nil
}
