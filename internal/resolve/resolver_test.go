package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thruflo/stride/internal/graph"
	"github.com/thruflo/stride/internal/state"
)

func mustLoad(t *testing.T, tasks []state.TaskRecord) *graph.Graph {
	t.Helper()
	g, err := graph.Load(&state.Record{Tasks: tasks})
	require.NoError(t, err)
	return g
}

func TestNext_LowestEligibleWins(t *testing.T) {
	t.Parallel()

	g := mustLoad(t, []state.TaskRecord{
		{ID: "1.1.1", Status: state.StatusComplete},
		{ID: "1.1.2", DependsOn: []string{"1.1.1"}, Status: state.StatusPending},
		{ID: "1.2.1", Status: state.StatusPending},
		{ID: "2.1.1", Status: state.StatusPending},
	})

	task, outcome := Next(g)
	assert.Equal(t, OutcomeEligible, outcome)
	assert.Equal(t, "1.1.2", task.ID.String())
}

func TestNext_SkipsTasksWithIncompleteDeps(t *testing.T) {
	t.Parallel()

	g := mustLoad(t, []state.TaskRecord{
		{ID: "1.1.1", Status: state.StatusPending},
		{ID: "1.1.2", DependsOn: []string{"1.1.1"}, Status: state.StatusPending},
	})

	task, outcome := Next(g)
	assert.Equal(t, OutcomeEligible, outcome)
	assert.Equal(t, "1.1.1", task.ID.String())
}

func TestNext_GraphComplete(t *testing.T) {
	t.Parallel()

	g := mustLoad(t, []state.TaskRecord{
		{ID: "1.1.1", Status: state.StatusComplete},
		{ID: "1.1.2", DependsOn: []string{"1.1.1"}, Status: state.StatusComplete},
	})

	_, outcome := Next(g)
	assert.Equal(t, OutcomeComplete, outcome)
}

func TestNext_GraphBlocked(t *testing.T) {
	t.Parallel()

	g := mustLoad(t, []state.TaskRecord{
		{ID: "1.1.1", Status: state.StatusBlocked, BlockedReason: "tests failed"},
		{ID: "1.1.2", DependsOn: []string{"1.1.1"}, Status: state.StatusBlocked,
			BlockedReason: "dependency 1.1.1 blocked: tests failed"},
	})

	_, outcome := Next(g)
	assert.Equal(t, OutcomeBlocked, outcome)
}

func TestNext_BlockedBranchDoesNotHideEligibleWork(t *testing.T) {
	t.Parallel()

	g := mustLoad(t, []state.TaskRecord{
		{ID: "1.1.1", Status: state.StatusBlocked, BlockedReason: "broken"},
		{ID: "1.1.2", DependsOn: []string{"1.1.1"}, Status: state.StatusBlocked,
			BlockedReason: "dependency 1.1.1 blocked: broken"},
		{ID: "1.2.1", Status: state.StatusPending},
	})

	task, outcome := Next(g)
	assert.Equal(t, OutcomeEligible, outcome)
	assert.Equal(t, "1.2.1", task.ID.String())
}

func TestNext_PendingGatedOnlyByBlocked(t *testing.T) {
	t.Parallel()

	// 1.1.2 was unblocked back to pending but its dependency is still
	// blocked, so the graph reports blocked rather than none-yet.
	g := mustLoad(t, []state.TaskRecord{
		{ID: "1.1.1", Status: state.StatusBlocked, BlockedReason: "broken"},
		{ID: "1.1.2", DependsOn: []string{"1.1.1"}, Status: state.StatusPending},
	})

	_, outcome := Next(g)
	assert.Equal(t, OutcomeBlocked, outcome)
}

func TestNext_EventuallyComplete(t *testing.T) {
	t.Parallel()

	// Drive a small diamond graph to completion through the resolver,
	// mimicking an all-success executor.
	g := mustLoad(t, []state.TaskRecord{
		{ID: "1.1.1", Status: state.StatusPending},
		{ID: "1.1.2", DependsOn: []string{"1.1.1"}, Status: state.StatusPending},
		{ID: "1.1.3", DependsOn: []string{"1.1.1"}, Status: state.StatusPending},
		{ID: "1.2.1", DependsOn: []string{"1.1.2", "1.1.3"}, Status: state.StatusPending},
	})

	var order []string
	for {
		task, outcome := Next(g)
		if outcome == OutcomeComplete {
			break
		}
		require.Equal(t, OutcomeEligible, outcome)
		require.NoError(t, g.MarkInProgress(task.ID))
		require.NoError(t, g.MarkComplete(task.ID))
		order = append(order, task.ID.String())
		require.Less(t, len(order), 10, "resolver did not terminate")
	}

	assert.Equal(t, []string{"1.1.1", "1.1.2", "1.1.3", "1.2.1"}, order)
}

func TestOutcome_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "eligible", OutcomeEligible.String())
	assert.Equal(t, "complete", OutcomeComplete.String())
	assert.Equal(t, "blocked", OutcomeBlocked.String())
	assert.Equal(t, "none-yet", OutcomeNoneYet.String())
	assert.Equal(t, "unknown", Outcome(99).String())
}
