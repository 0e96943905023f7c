package auditlog

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgressGatedByVerbosity(t *testing.T) {
	var buf bytes.Buffer
	quiet := NewLoggerWithWriter(VerbosityQuiet, &buf)
	quiet.Progress("enumerating %d files", 3)
	assert.Empty(t, buf.String())

	buf.Reset()
	verbose := NewLoggerWithWriter(VerbosityVerbose, &buf)
	verbose.Progress("enumerating %d files", 3)
	assert.Contains(t, buf.String(), "enumerating 3 files")
}

func TestDebugOnlyPrintsAtDebugVerbosity(t *testing.T) {
	var buf bytes.Buffer
	verbose := NewLoggerWithWriter(VerbosityVerbose, &buf)
	verbose.Debug("graph built with %d nodes", 10)
	assert.Empty(t, buf.String())

	buf.Reset()
	debug := NewLoggerWithWriter(VerbosityDebug, &buf)
	debug.Debug("graph built with %d nodes", 10)
	assert.Contains(t, buf.String(), "graph built with 10 nodes")
}

func TestWarningAndErrorAlwaysPrint(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter(VerbosityQuiet, &buf)
	l.Warning("source url unreachable")
	l.Error("cannot read repo root")
	out := buf.String()
	assert.Contains(t, out, "warning: source url unreachable")
	assert.Contains(t, out, "error: cannot read repo root")
}

func TestIsTTYFalseForNonFileWriter(t *testing.T) {
	var buf bytes.Buffer
	assert.False(t, IsTTY(&buf))
}

func TestStageBarFallsBackToProgressLineOnNonTTY(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter(VerbosityVerbose, &buf)
	bar := l.StageBar()
	bar("parse", 10)
	assert.Contains(t, buf.String(), "parse... 10%")
}

func TestVerbosityHelpers(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter(VerbosityDebug, &buf)
	assert.True(t, l.IsVerbose())
	assert.True(t, l.IsDebug())
	assert.Equal(t, VerbosityDebug, l.Verbosity())
}

func TestPrintTimingSummarySuppressedBelowVerbose(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter(VerbosityDefault, &buf)
	stop := l.StartTiming("parse")
	stop()
	l.PrintTimingSummary()
	assert.Empty(t, buf.String())
}

func TestPrintTimingSummaryIncludesRecordedTimings(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter(VerbosityVerbose, &buf)
	stop := l.StartTiming("parse")
	stop()
	l.PrintTimingSummary()
	assert.Contains(t, buf.String(), "parse:")
}
