package plan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thruflo/stride/internal/state"
)

const samplePlan = `version: "1.0.0"
tasks:
  - id: "1.1.1"
    description: "scaffold the package"
    estimate:
      files: 2
      lines: 80
  - id: "1.1.2"
    description: "add the parser"
    depends_on: ["1.1.1"]
`

func writePlan(t *testing.T, dir, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".stride"), 0o755))
	path := PlanPath(dir)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writePlan(t, dir, samplePlan)

	p, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", p.Version)
	require.Len(t, p.Tasks, 2)
	assert.Equal(t, "1.1.1", p.Tasks[0].ID)
	assert.Equal(t, 2, p.Tasks[0].Estimate.Files)
	assert.Equal(t, []string{"1.1.1"}, p.Tasks[1].DependsOn)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read plan")
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		plan    Plan
		wantErr string
	}{
		{
			name: "valid",
			plan: Plan{Version: "1.2.0", Tasks: []TaskSpec{{ID: "1.1.1"}}},
		},
		{
			name:    "missing version",
			plan:    Plan{Tasks: []TaskSpec{{ID: "1.1.1"}}},
			wantErr: "missing a version",
		},
		{
			name:    "garbage version",
			plan:    Plan{Version: "latest", Tasks: []TaskSpec{{ID: "1.1.1"}}},
			wantErr: "invalid plan version",
		},
		{
			name:    "unsupported major",
			plan:    Plan{Version: "2.0.0", Tasks: []TaskSpec{{ID: "1.1.1"}}},
			wantErr: "unsupported plan version",
		},
		{
			name:    "no tasks",
			plan:    Plan{Version: "1.0.0"},
			wantErr: "no tasks",
		},
		{
			name: "unparseable id",
			plan: Plan{Version: "1.0.0", Tasks: []TaskSpec{{ID: "one.one.one"}}},
			wantErr: "invalid plan",
		},
		{
			name: "forward dependency",
			plan: Plan{Version: "1.0.0", Tasks: []TaskSpec{
				{ID: "1.1.1", DependsOn: []string{"1.1.2"}},
				{ID: "1.1.2"},
			}},
			wantErr: "invalid plan",
		},
		{
			name: "duplicate id",
			plan: Plan{Version: "1.0.0", Tasks: []TaskSpec{
				{ID: "1.1.1"},
				{ID: "1.1.1"},
			}},
			wantErr: "invalid plan",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.plan.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRecord(t *testing.T) {
	t.Parallel()

	p := Plan{Version: "1.0.0", Tasks: []TaskSpec{
		{ID: "1.1.1", Description: "first", Estimate: state.Cost{Files: 1}},
		{ID: "1.1.2", DependsOn: []string{"1.1.1"}},
	}}

	rec := p.Record()
	require.Len(t, rec.Tasks, 2)
	assert.Empty(t, rec.Sessions)
	for _, task := range rec.Tasks {
		assert.Equal(t, state.StatusPending, task.Status)
		assert.False(t, task.UpdatedAt.IsZero())
	}
	assert.Equal(t, "first", rec.Tasks[0].Description)
	assert.Equal(t, 1, rec.Tasks[0].Estimate.Files)
}

func TestImport(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writePlan(t, dir, samplePlan)
	store := state.NewStore(dir)

	p, err := Import(store, dir, false)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", p.Version)

	rec, err := store.LoadRecord()
	require.NoError(t, err)
	require.Len(t, rec.Tasks, 2)
	assert.Equal(t, state.StatusPending, rec.Tasks[0].Status)
}

func TestImportFile_ExplicitPath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "alternate-plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(samplePlan), 0o644))
	store := state.NewStore(dir)

	p, err := ImportFile(store, path, false)
	require.NoError(t, err)
	assert.Len(t, p.Tasks, 2)
	assert.True(t, store.RecordExists())
}

func TestImport_RefusesExistingRecord(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writePlan(t, dir, samplePlan)
	store := state.NewStore(dir)

	_, err := Import(store, dir, false)
	require.NoError(t, err)

	_, err = Import(store, dir, false)
	require.Error(t, err)
	var exists *ErrRecordExists
	assert.ErrorAs(t, err, &exists)
}

func TestImport_Force(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writePlan(t, dir, samplePlan)
	store := state.NewStore(dir)

	_, err := Import(store, dir, false)
	require.NoError(t, err)

	// Mark some progress, then force a re-import and check it is gone.
	rec, err := store.LoadRecord()
	require.NoError(t, err)
	rec.Tasks[0].Status = state.StatusComplete
	require.NoError(t, store.SaveRecord(rec))

	_, err = Import(store, dir, true)
	require.NoError(t, err)

	rec, err = store.LoadRecord()
	require.NoError(t, err)
	assert.Equal(t, state.StatusPending, rec.Tasks[0].Status)
}
