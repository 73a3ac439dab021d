package checkpoint

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/thruflo/stride/internal/graph"
)

// GitCommitter commits session work with git. Failures are reported as
// *CommitError; they do not affect graph state and the commit is retried
// by the operator.
type GitCommitter struct {
	// Dir is the repository root.
	Dir string
}

// NewGitCommitter creates a GitCommitter for the repository at dir.
func NewGitCommitter(dir string) *GitCommitter {
	return &GitCommitter{Dir: dir}
}

// Commit stages everything and commits with the given message, returning
// the resulting commit hash.
func (g *GitCommitter) Commit(ctx context.Context, message string, ids []graph.TaskID) (string, error) {
	if _, err := g.git(ctx, "add", "-A"); err != nil {
		return "", &CommitError{Message: "git add", Err: err}
	}
	if _, err := g.git(ctx, "commit", "-m", message); err != nil {
		return "", &CommitError{Message: "git commit", Err: err}
	}
	ref, err := g.git(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", &CommitError{Message: "git rev-parse", Err: err}
	}
	return strings.TrimSpace(ref), nil
}

func (g *GitCommitter) git(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.Dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s: %v: %s", args[0], err, strings.TrimSpace(out.String()))
	}
	return out.String(), nil
}
