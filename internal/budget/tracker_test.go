package budget

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/thruflo/stride/internal/config"
	"github.com/thruflo/stride/internal/state"
)

func testPolicy() config.Budget {
	return config.Budget{
		MaxFilesPerSession:  5,
		MaxLinesPerSession:  100,
		MaxTestsPerSession:  10,
		MaxTokenFraction:    0.90,
		ContextWindowTokens: 1000,
	}
}

func TestTracker_RecordAccumulates(t *testing.T) {
	t.Parallel()

	tr := NewTracker(1000)
	tr.Record(state.Cost{Files: 1, Lines: 10, Tokens: 100})
	tr.Record(state.Cost{Files: 2, Lines: 5, Tests: 1, Tokens: 50})

	assert.Equal(t, state.Cost{Files: 3, Lines: 15, Tests: 1, Tokens: 150}, tr.Totals())
	assert.InDelta(t, 0.15, tr.TokenFraction(), 1e-9)
}

func TestTracker_Monotonic(t *testing.T) {
	t.Parallel()

	tr := NewTracker(1000)
	prev := tr.Totals()
	for i := 0; i < 5; i++ {
		tr.Record(state.Cost{Files: 1, Lines: 2, Tokens: 10})
		cur := tr.Totals()
		assert.GreaterOrEqual(t, cur.Files, prev.Files)
		assert.GreaterOrEqual(t, cur.Lines, prev.Lines)
		assert.GreaterOrEqual(t, cur.Tokens, prev.Tokens)
		prev = cur
	}
}

func TestTracker_Exceeded(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cost state.Cost
		want Reason
	}{
		{"under all limits", state.Cost{Files: 1, Lines: 10, Tokens: 100}, ReasonNone},
		{"files at max", state.Cost{Files: 5, Lines: 10, Tokens: 100}, ReasonHardLimit},
		{"lines at max", state.Cost{Files: 1, Lines: 100, Tokens: 100}, ReasonHardLimit},
		{"tests at max", state.Cost{Files: 1, Lines: 10, Tests: 10, Tokens: 100}, ReasonHardLimit},
		{"tokens critical", state.Cost{Files: 1, Lines: 10, Tokens: 900}, ReasonContextCritical},
		{"soft combined", state.Cost{Files: 5, Lines: 10, Tokens: 800}, ReasonSoftLimit},
		{"high tokens alone is not soft", state.Cost{Files: 1, Lines: 10, Tokens: 850}, ReasonNone},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tr := NewTracker(testPolicy().ContextWindowTokens)
			tr.Record(tt.cost)
			assert.Equal(t, tt.want, tr.Exceeded(testPolicy()))
		})
	}
}

func TestTracker_ContextCriticalTakesPrecedence(t *testing.T) {
	t.Parallel()

	// Every threshold breached at once: context-critical wins.
	tr := NewTracker(1000)
	tr.Record(state.Cost{Files: 50, Lines: 500, Tests: 50, Tokens: 950})
	assert.Equal(t, ReasonContextCritical, tr.Exceeded(testPolicy()))
}

func TestTracker_SoftLimitBeatsHardLimit(t *testing.T) {
	t.Parallel()

	// Files at max with tokens in the soft band reports the combined
	// soft limit, not the bare hard counter.
	tr := NewTracker(1000)
	tr.Record(state.Cost{Files: 5, Lines: 100, Tokens: 820})
	assert.Equal(t, ReasonSoftLimit, tr.Exceeded(testPolicy()))
}

func TestTracker_ZeroWindow(t *testing.T) {
	t.Parallel()

	tr := NewTracker(0)
	tr.Record(state.Cost{Tokens: 100000})
	assert.Zero(t, tr.TokenFraction())
}

func TestReason_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "none", ReasonNone.String())
	assert.Equal(t, "context-critical", ReasonContextCritical.String())
	assert.Equal(t, "soft-limit", ReasonSoftLimit.String())
	assert.Equal(t, "hard-limit", ReasonHardLimit.String())
	assert.Equal(t, "unknown", Reason(99).String())
}
