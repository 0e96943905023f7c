package report

import (
	"testing"

	"github.com/solaudit/sentry/factgraph"
	"github.com/solaudit/sentry/generator"
	"github.com/solaudit/sentry/gradefilter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildReportTestGraph() *factgraph.Graph {
	g := factgraph.NewGraph()
	prog := &factgraph.Program{ID: "prog::vault", Name: "vault", Framework: factgraph.FrameworkAnchor}
	g.AddProgram(prog)

	inst := &factgraph.Instruction{ID: "vault::withdraw", Name: "withdraw", ProgramID: prog.ID, AccountsTypeName: "Withdraw"}
	authority := &factgraph.Account{ID: "vault::withdraw::authority", Name: "authority", InstructionID: inst.ID}
	inst.AccountIDs = []factgraph.StableId{authority.ID}

	sink := &factgraph.Sink{
		ID: "vault::withdraw::sink0", Kind: factgraph.SinkTokenTransfer, InstructionID: inst.ID,
		InvolvedAccounts: []string{"authority"},
	}
	inst.SinkIDs = []factgraph.StableId{sink.ID}

	g.AddInstruction(inst)
	g.AddAccount(authority)
	g.AddSink(sink)
	return g
}

func TestBuildAssemblesEvidenceAndSummaries(t *testing.T) {
	g := buildReportTestGraph()
	findings := []gradefilter.ActionableFinding{
		{
			ID: "cand-0001", VulnClass: "missing_signer", Severity: factgraph.SeverityCritical,
			Grade: gradefilter.GradeA, Instruction: "withdraw", InstructionID: "vault::withdraw",
			InvolvedAccounts: []generator.InvolvedAccount{{Name: "authority"}},
			Reason:           "sink reachable without a signer-checked authority",
		},
	}

	r := Build(g, findings, "/repos/vault")
	require.Len(t, r.Findings, 1)

	f := r.Findings[0]
	assert.Contains(t, f.Evidence.SensitiveSink, "token_transfer")
	assert.Contains(t, f.Evidence.AttackerControl, "authority")
	assert.Equal(t, "sink reachable without a signer-checked authority", f.Evidence.MissingGuardProof)
	assert.Contains(t, f.Evidence.BypassPath, "withdraw")

	require.Len(t, r.Summaries, 1)
	assert.Equal(t, "vault", r.Summaries[0].ProgramName)
	assert.False(t, r.Summaries[0].ShipReady)
	assert.Equal(t, 1, r.Summaries[0].BySeverity[factgraph.SeverityCritical])

	assert.Len(t, r.Artifacts, 4)
}

func TestBuildShipReadyWithNoFindings(t *testing.T) {
	g := buildReportTestGraph()
	r := Build(g, nil, "/repos/vault")
	require.Len(t, r.Summaries, 1)
	assert.True(t, r.Summaries[0].ShipReady)
	assert.Equal(t, 0, r.Summaries[0].Total)
}
