package cmd

import (
	"testing"

	"github.com/solaudit/sentry/factgraph"
	"github.com/solaudit/sentry/gradefilter"
	"github.com/stretchr/testify/assert"
)

func TestDetermineExitCode(t *testing.T) {
	tests := []struct {
		name      string
		findings  []gradefilter.ActionableFinding
		failOn    []string
		hadErrors bool
		expected  exitCode
	}{
		{
			name:     "no findings, no fail-on",
			findings: nil,
			failOn:   nil,
			expected: exitSuccess,
		},
		{
			name:     "findings present, no fail-on",
			findings: []gradefilter.ActionableFinding{{Severity: factgraph.SeverityCritical}},
			failOn:   nil,
			expected: exitSuccess,
		},
		{
			name:     "critical finding matches fail-on critical",
			findings: []gradefilter.ActionableFinding{{Severity: factgraph.SeverityCritical}},
			failOn:   []string{"critical"},
			expected: exitFindings,
		},
		{
			name:     "low finding does not match fail-on critical",
			findings: []gradefilter.ActionableFinding{{Severity: factgraph.SeverityLow}},
			failOn:   []string{"critical"},
			expected: exitSuccess,
		},
		{
			name:      "errors outrank findings",
			findings:  []gradefilter.ActionableFinding{{Severity: factgraph.SeverityCritical}},
			failOn:    []string{"critical"},
			hadErrors: true,
			expected:  exitError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := determineExitCode(tt.findings, tt.failOn, tt.hadErrors)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestParseFailOn(t *testing.T) {
	assert.Nil(t, parseFailOn(""))
	assert.Equal(t, []string{"critical", "high"}, parseFailOn("critical, high"))
}

func TestValidateSeverities(t *testing.T) {
	assert.NoError(t, validateSeverities([]string{"critical", "low"}))
	assert.Error(t, validateSeverities([]string{"urgent"}))
}
