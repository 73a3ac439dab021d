package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/thruflo/stride/internal/graph"
	"github.com/thruflo/stride/internal/state"
)

// resultDoc is the JSON document the executor command prints as its last
// line of stdout.
type resultDoc struct {
	Files   int    `json:"files"`
	Lines   int    `json:"lines"`
	Tests   int    `json:"tests"`
	Tokens  int    `json:"tokens"`
	Failure string `json:"failure,omitempty"`
}

// CommandExecutor dispatches a task to a configured shell command. The task
// id and description are exposed as STRIDE_TASK_ID and STRIDE_TASK_DESC in
// the command's environment. The command reports its outcome as a single
// JSON object on the last non-empty line of stdout:
//
//	{"files": 2, "lines": 35, "tests": 1, "tokens": 8200}
//	{"files": 0, "lines": 0, "tests": 0, "tokens": 1100, "failure": "tests did not pass"}
//
// A non-zero exit with no parseable result is reported as a task failure,
// not an execution error, so one bad task does not abort the session.
type CommandExecutor struct {
	// Command is the shell command to run.
	Command string
	// Dir is the working directory for the command.
	Dir string
	// Stderr receives the command's stderr; defaults to os.Stderr.
	Stderr *os.File
}

// NewCommandExecutor creates a CommandExecutor running command in dir.
func NewCommandExecutor(command, dir string) *CommandExecutor {
	return &CommandExecutor{Command: command, Dir: dir}
}

// ExecuteTask runs the configured command for the given task and parses its
// result. An error is returned only for infrastructure problems (no command
// configured, context cancelled); task-level failures come back in Result.
func (e *CommandExecutor) ExecuteTask(ctx context.Context, task graph.Task) (Result, error) {
	if strings.TrimSpace(e.Command) == "" {
		return Result{}, fmt.Errorf("no executor command configured")
	}

	cmd := exec.CommandContext(ctx, "bash", "-c", e.Command)
	cmd.Dir = e.Dir
	cmd.Env = append(os.Environ(),
		"STRIDE_TASK_ID="+task.ID.String(),
		"STRIDE_TASK_DESC="+task.Description,
	)

	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if e.Stderr != nil {
		cmd.Stderr = e.Stderr
	} else {
		cmd.Stderr = os.Stderr
	}

	runErr := cmd.Run()
	if ctx.Err() != nil {
		return Result{}, ctx.Err()
	}

	doc, parseErr := parseResult(stdout.Bytes())
	if parseErr != nil {
		if runErr != nil {
			return Result{Failure: fmt.Sprintf("executor failed: %v", runErr)}, nil
		}
		return Result{Failure: fmt.Sprintf("executor produced no result: %v", parseErr)}, nil
	}

	res := Result{
		Cost: state.Cost{
			Files:  doc.Files,
			Lines:  doc.Lines,
			Tests:  doc.Tests,
			Tokens: doc.Tokens,
		},
		Failure: doc.Failure,
	}
	if runErr != nil && res.Failure == "" {
		res.Failure = fmt.Sprintf("executor exited with error: %v", runErr)
	}
	return res, nil
}

// parseResult extracts the result document from the last non-empty line of
// the command's stdout.
func parseResult(out []byte) (*resultDoc, error) {
	lines := strings.Split(string(out), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		var doc resultDoc
		if err := json.Unmarshal([]byte(line), &doc); err != nil {
			return nil, fmt.Errorf("last output line is not a result document: %w", err)
		}
		return &doc, nil
	}
	return nil, fmt.Errorf("empty output")
}
