// Package budget accumulates the resources a session has consumed and
// decides when a configured threshold has been reached. Counters never
// decrease within a session; a new session starts with a fresh tracker.
package budget

import (
	"github.com/thruflo/stride/internal/config"
	"github.com/thruflo/stride/internal/state"
)

// Reason identifies which threshold stopped the session.
type Reason int

const (
	// ReasonNone means no threshold has been reached.
	ReasonNone Reason = iota
	// ReasonContextCritical means the token budget is critically consumed.
	// This always takes precedence: overrunning the context budget is the
	// one unrecoverable failure mode, losing session state mid-task.
	ReasonContextCritical
	// ReasonSoftLimit means token consumption is high and the file budget
	// is spent, a combined early-stop signal.
	ReasonSoftLimit
	// ReasonHardLimit means a hard counter (files, lines or tests) reached
	// its configured maximum.
	ReasonHardLimit
)

// String returns a human-readable description of the reason.
func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonContextCritical:
		return "context-critical"
	case ReasonSoftLimit:
		return "soft-limit"
	case ReasonHardLimit:
		return "hard-limit"
	default:
		return "unknown"
	}
}

// softLimitFraction is the token fraction above which a spent file budget
// stops the session early.
const softLimitFraction = 0.80

// Tracker accumulates a session's consumed resources.
type Tracker struct {
	totals state.Cost
	window int
}

// NewTracker creates a Tracker measuring token consumption against the
// given total context window.
func NewTracker(contextWindowTokens int) *Tracker {
	return &Tracker{window: contextWindowTokens}
}

// Record adds a task's realized cost to the session's running totals.
func (t *Tracker) Record(c state.Cost) {
	t.totals = t.totals.Add(c)
}

// Totals returns the accumulated counters.
func (t *Tracker) Totals() state.Cost {
	return t.totals
}

// TokenFraction returns consumed tokens as a fraction of the context window.
func (t *Tracker) TokenFraction() float64 {
	if t.window <= 0 {
		return 0
	}
	return float64(t.totals.Tokens) / float64(t.window)
}

// Exceeded returns which threshold, if any, is at or beyond its configured
// limit. Checks run in strict priority order so simultaneous breaches
// resolve deterministically: context-critical, then the soft combined
// limit, then hard counters.
func (t *Tracker) Exceeded(policy config.Budget) Reason {
	fraction := t.TokenFraction()

	if fraction >= policy.MaxTokenFraction {
		return ReasonContextCritical
	}
	if fraction >= softLimitFraction && t.totals.Files >= policy.MaxFilesPerSession {
		return ReasonSoftLimit
	}
	if t.totals.Files >= policy.MaxFilesPerSession ||
		t.totals.Lines >= policy.MaxLinesPerSession ||
		t.totals.Tests >= policy.MaxTestsPerSession {
		return ReasonHardLimit
	}
	return ReasonNone
}
