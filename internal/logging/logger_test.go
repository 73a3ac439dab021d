package logging

import (
	"bytes"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestLogger() (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := New()
	l.SetOutput(log.New(&buf, "", 0))
	return l, &buf
}

func TestLogger_LevelFiltering(t *testing.T) {
	t.Parallel()

	l, buf := newTestLogger()
	l.SetLevel(LevelWarn)

	l.Debug("debug message")
	l.Info("info message")
	assert.Empty(t, buf.String())

	l.Warn("warn message")
	assert.Contains(t, buf.String(), "WARN: warn message")
}

func TestLogger_ContextFields(t *testing.T) {
	t.Parallel()

	l, buf := newTestLogger()
	l.SetLevel(LevelDebug)

	child := l.With("session", 3)
	child.Info("task complete", "task", "1.2.1")

	out := buf.String()
	assert.Contains(t, out, "INFO: task complete")
	assert.Contains(t, out, "session=3")
	assert.Contains(t, out, "task=1.2.1")
}

func TestLogger_FieldsSorted(t *testing.T) {
	t.Parallel()

	l, buf := newTestLogger()
	l.SetLevel(LevelDebug)

	l.Info("msg", "zeta", 1, "alpha", 2)
	out := buf.String()
	assert.Less(t, indexOf(out, "alpha"), indexOf(out, "zeta"))
}

func indexOf(s, sub string) int {
	return bytes.Index([]byte(s), []byte(sub))
}

func TestLogger_QuotesValuesWithSpaces(t *testing.T) {
	t.Parallel()

	l, buf := newTestLogger()
	l.SetLevel(LevelDebug)

	l.Error("failed", "reason", "tests did not pass")
	assert.Contains(t, buf.String(), `reason="tests did not pass"`)
}
