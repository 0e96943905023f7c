package cmd

import (
	"fmt"
	"strings"

	"github.com/solaudit/sentry/factgraph"
	"github.com/solaudit/sentry/gradefilter"
)

// exitCode mirrors the teacher's output/exit_code.go precedence: errors
// first, then a --fail-on severity match, then success.
type exitCode int

const (
	exitSuccess exitCode = 0
	exitFindings exitCode = 1
	exitError    exitCode = 2
)

type invalidSeverityError struct {
	severity string
}

func (e *invalidSeverityError) Error() string {
	return fmt.Sprintf("invalid severity %q, must be one of: critical, high, medium, low, info", e.severity)
}

var validSeverities = map[string]bool{
	"critical": true, "high": true, "medium": true, "low": true, "info": true,
}

// parseFailOn splits the comma-separated --fail-on flag into severities.
func parseFailOn(value string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func validateSeverities(severities []string) error {
	for _, s := range severities {
		if !validSeverities[strings.ToLower(s)] {
			return &invalidSeverityError{severity: s}
		}
	}
	return nil
}

// determineExitCode implements the precedence rule: errors outrank
// findings, findings outrank plain success.
func determineExitCode(findings []gradefilter.ActionableFinding, failOn []string, hadErrors bool) exitCode {
	if hadErrors {
		return exitError
	}
	if len(failOn) == 0 {
		return exitSuccess
	}

	want := map[factgraph.Severity]bool{}
	for _, s := range failOn {
		want[factgraph.Severity(strings.ToUpper(s))] = true
	}
	for _, f := range findings {
		if want[f.Severity] {
			return exitFindings
		}
	}
	return exitSuccess
}
