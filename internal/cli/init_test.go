package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thruflo/stride/internal/plan"
)

func TestInitWorkspace(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	var buf bytes.Buffer
	require.NoError(t, initWorkspace(dir, &buf))

	assert.FileExists(t, filepath.Join(dir, ".stride", "config.yaml"))
	assert.FileExists(t, filepath.Join(dir, ".stride", "plan.yaml"))
	assert.Contains(t, buf.String(), "stride plan import")
}

func TestInitWorkspace_LeavesExistingFilesAlone(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".stride"), 0o755))
	custom := []byte("version: \"1.0.0\"\ntasks:\n  - id: \"9.9.9\"\n")
	require.NoError(t, os.WriteFile(plan.PlanPath(dir), custom, 0o644))

	var buf bytes.Buffer
	require.NoError(t, initWorkspace(dir, &buf))

	data, err := os.ReadFile(plan.PlanPath(dir))
	require.NoError(t, err)
	assert.Equal(t, custom, data)
	assert.Contains(t, buf.String(), "plan.yaml already exists")
}

func TestInitWorkspace_ExamplePlanImports(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	var buf bytes.Buffer
	require.NoError(t, initWorkspace(dir, &buf))

	// The scaffolded plan must pass its own validation.
	p, err := plan.Load(dir)
	require.NoError(t, err)
	assert.NotEmpty(t, p.Tasks)
}
