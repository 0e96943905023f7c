package report

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/solaudit/sentry/factgraph"
	"github.com/solaudit/sentry/gradefilter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport() *Report {
	g := buildReportTestGraph()
	findings := []gradefilter.ActionableFinding{
		{
			ID: "cand-0001", VulnClass: "missing_signer", Severity: factgraph.SeverityCritical,
			Grade: gradefilter.GradeA, Instruction: "withdraw", InstructionID: "vault::withdraw",
			Span:   factgraph.AstSpan{File: "programs/vault/src/lib.rs", StartLine: 42},
			Reason: "no signer-checked authority guards this sink",
		},
	}
	return Build(g, findings, "/repos/vault")
}

func TestWriteJSONRoundTrips(t *testing.T) {
	r := sampleReport()
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, r))

	var out jsonOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	require.Len(t, out.Results, 1)
	assert.Equal(t, "missing_signer", out.Results[0].VulnClass)
	assert.Equal(t, "CRITICAL", out.Results[0].Severity)
	require.Len(t, out.Summary, 1)
	assert.False(t, out.Summary[0].ShipReady)
}

func TestWriteSARIFProducesRule(t *testing.T) {
	r := sampleReport()
	var buf bytes.Buffer
	require.NoError(t, WriteSARIF(&buf, r))
	assert.Contains(t, buf.String(), "missing_signer")
	assert.Contains(t, buf.String(), "\"version\": \"2.1.0\"")
}

func TestWriteTextGroupsBySeverity(t *testing.T) {
	r := sampleReport()
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, r))
	out := buf.String()
	assert.Contains(t, out, "CRITICAL Issues (1):")
	assert.Contains(t, out, "vault")
	assert.Contains(t, out, "ship ready: NO")
}

func TestWriteTextNoFindings(t *testing.T) {
	g := buildReportTestGraph()
	r := Build(g, nil, "/repos/vault")
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, r))
	assert.Contains(t, buf.String(), "No security issues found.")
}

func TestWriteMarkdownIncludesTableAndArtifacts(t *testing.T) {
	r := sampleReport()
	var buf bytes.Buffer
	require.NoError(t, WriteMarkdown(&buf, r))
	out := buf.String()
	assert.Contains(t, out, "| Program | Findings | Ship ready |")
	assert.Contains(t, out, "authority-flow")
	assert.Contains(t, out, "pda-graph")
}
