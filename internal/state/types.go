package state

import "time"

// Cost captures consumed (or estimated) resources for a task or session.
type Cost struct {
	Files  int `yaml:"files" json:"files"`
	Lines  int `yaml:"lines" json:"lines"`
	Tests  int `yaml:"tests" json:"tests"`
	Tokens int `yaml:"tokens,omitempty" json:"tokens,omitempty"`
}

// Add returns the element-wise sum of two costs.
func (c Cost) Add(other Cost) Cost {
	return Cost{
		Files:  c.Files + other.Files,
		Lines:  c.Lines + other.Lines,
		Tests:  c.Tests + other.Tests,
		Tokens: c.Tokens + other.Tokens,
	}
}

// TaskRecord is the persisted form of a single task in progress.yaml.
type TaskRecord struct {
	ID            string    `yaml:"id"`
	Description   string    `yaml:"description"`
	DependsOn     []string  `yaml:"depends_on,omitempty"`
	Status        string    `yaml:"status"`
	Estimate      Cost      `yaml:"estimate,omitempty"`
	BlockedReason string    `yaml:"blocked_reason,omitempty"`
	UpdatedAt     time.Time `yaml:"updated_at,omitempty"`
}

// SessionRecord summarizes one finished session in progress.yaml.
type SessionRecord struct {
	Ordinal     int       `yaml:"ordinal"`
	Counters    Cost      `yaml:"counters"`
	Termination string    `yaml:"termination"`
	Completed   []string  `yaml:"completed,omitempty"`
	CommitRef   string    `yaml:"commit_ref,omitempty"`
	EndedAt     time.Time `yaml:"ended_at,omitempty"`
}

// Record is the Progress Record: the only state that survives across
// sessions, and the sole input needed to resume in a later invocation.
type Record struct {
	Tasks    []TaskRecord    `yaml:"tasks"`
	Sessions []SessionRecord `yaml:"sessions,omitempty"`

	// NeedsVerification is set when the last session's checkpoint failed
	// verification. While set, the whole graph is treated as blocked: no
	// new tasks are dispatched until `stride verify` clears it.
	NeedsVerification bool `yaml:"needs_verification,omitempty"`
}

// NextOrdinal returns the ordinal for the next session.
func (r *Record) NextOrdinal() int {
	if len(r.Sessions) == 0 {
		return 1
	}
	return r.Sessions[len(r.Sessions)-1].Ordinal + 1
}

// Task status values for TaskRecord.Status.
const (
	StatusPending    = "pending"
	StatusInProgress = "in-progress"
	StatusComplete   = "complete"
	StatusBlocked    = "blocked"
)

// Session termination reasons for SessionRecord.Termination.
const (
	TerminationBudgetExhausted = "budget-exhausted"
	TerminationGraphExhausted  = "graph-exhausted"
	TerminationManualStop      = "manual-stop"
)

// ValidStatus reports whether s is a recognized task status.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusInProgress, StatusComplete, StatusBlocked:
		return true
	}
	return false
}
