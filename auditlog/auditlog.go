// Package auditlog provides the scan CLI's structured logger: verbosity
// tiers, elapsed-time debug prefixes, and a TTY-aware progress bar driven
// by runner.ProgressFunc stage callbacks.
package auditlog

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

// VerbosityLevel controls how much a Logger prints.
type VerbosityLevel int

const (
	VerbosityQuiet VerbosityLevel = iota
	VerbosityDefault
	VerbosityVerbose
	VerbosityDebug
)

// Logger provides structured logging with verbosity control, writing to
// stderr so stdout stays clean for report output.
type Logger struct {
	verbosity    VerbosityLevel
	writer       io.Writer
	startTime    time.Time
	timings      map[string]time.Duration
	isTTY        bool
	progressBar  *progressbar.ProgressBar
	showProgress bool
}

// NewLogger creates a logger at the given verbosity, writing to stderr.
func NewLogger(verbosity VerbosityLevel) *Logger {
	return NewLoggerWithWriter(verbosity, os.Stderr)
}

// NewLoggerWithWriter creates a logger with a custom writer; NewLogger
// calls it with stderr, and tests use it to capture output.
func NewLoggerWithWriter(verbosity VerbosityLevel, w io.Writer) *Logger {
	isTTY := IsTTY(w)
	return &Logger{
		verbosity:    verbosity,
		writer:       w,
		startTime:    time.Now(),
		timings:      make(map[string]time.Duration),
		isTTY:        isTTY,
		showProgress: isTTY,
	}
}

// IsTTY reports whether w is connected to a terminal.
func IsTTY(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return term.IsTerminal(int(f.Fd()))
	}
	return false
}

// Progress logs a high-level progress line (verbose and debug only).
func (l *Logger) Progress(format string, args ...interface{}) {
	if l.verbosity >= VerbosityVerbose {
		fmt.Fprintf(l.writer, format+"\n", args...)
	}
}

// Statistic logs a count/metric line (verbose and debug only).
func (l *Logger) Statistic(format string, args ...interface{}) {
	if l.verbosity >= VerbosityVerbose {
		fmt.Fprintf(l.writer, format+"\n", args...)
	}
}

// Debug logs a debug line with an elapsed-time prefix (debug only).
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.verbosity >= VerbosityDebug {
		prefix := formatDuration(time.Since(l.startTime))
		fmt.Fprintf(l.writer, "[%s] %s\n", prefix, fmt.Sprintf(format, args...))
	}
}

// Warning always prints, regardless of verbosity.
func (l *Logger) Warning(format string, args ...interface{}) {
	fmt.Fprintf(l.writer, "warning: %s\n", fmt.Sprintf(format, args...))
}

// Error always prints, regardless of verbosity.
func (l *Logger) Error(format string, args ...interface{}) {
	fmt.Fprintf(l.writer, "error: %s\n", fmt.Sprintf(format, args...))
}

func formatDuration(d time.Duration) string {
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	millis := int(d.Milliseconds()) % 1000
	return fmt.Sprintf("%02d:%02d.%03d", minutes, seconds, millis)
}

func (l *Logger) Verbosity() VerbosityLevel { return l.verbosity }
func (l *Logger) IsVerbose() bool           { return l.verbosity >= VerbosityVerbose }
func (l *Logger) IsDebug() bool             { return l.verbosity >= VerbosityDebug }
func (l *Logger) GetWriter() io.Writer      { return l.writer }

// StageBar drives a determinate progress bar from runner.ProgressFunc
// stage callbacks: each call updates the bar to the given percentage and
// relabels it with the stage name.
func (l *Logger) StageBar() func(stage string, percent int) {
	if !l.showProgress || !l.isTTY {
		return func(stage string, percent int) {
			l.Progress("%s... %d%%", stage, percent)
		}
	}

	bar := progressbar.NewOptions(100,
		progressbar.OptionSetDescription("starting"),
		progressbar.OptionSetWriter(l.writer),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(l.writer) }),
		progressbar.OptionSetRenderBlankState(true),
	)
	l.progressBar = bar

	return func(stage string, percent int) {
		bar.Describe(stage)
		_ = bar.Set(percent)
		if percent >= 100 {
			_ = bar.Finish()
		}
	}
}

// StartTiming begins timing a named operation; call the returned func when
// it completes.
func (l *Logger) StartTiming(name string) func() {
	start := time.Now()
	return func() {
		l.timings[name] = time.Since(start)
	}
}

// PrintTimingSummary prints all recorded timings (verbose mode only).
func (l *Logger) PrintTimingSummary() {
	if l.verbosity < VerbosityVerbose {
		return
	}
	fmt.Fprintln(l.writer, "\ntiming summary:")
	for name, d := range l.timings {
		fmt.Fprintf(l.writer, "  %s: %s\n", name, d.Round(time.Millisecond))
	}
}
