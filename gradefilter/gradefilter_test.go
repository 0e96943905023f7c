package gradefilter

import (
	"testing"

	"github.com/solaudit/sentry/factgraph"
	"github.com/solaudit/sentry/generator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssignGradeProvenPoCIsGradeA(t *testing.T) {
	g := factgraph.NewGraph()
	c := generator.VulnCandidate{PoCVerdict: generator.PoCProven}
	assert.Equal(t, GradeA, assignGrade(g, c))
}

func TestAssignGradeConfirmedWithStructuralEvidenceIsGradeB(t *testing.T) {
	g := factgraph.NewGraph()
	c := generator.VulnCandidate{
		SinkID:            "sink-1",
		ConfirmVerdict:    generator.ConfirmConfirmed,
		ConfirmConfidence: 0.85,
	}
	assert.Equal(t, GradeB, assignGrade(g, c))
}

func TestAssignGradeConfirmedBelowThresholdFallsBackToC(t *testing.T) {
	g := factgraph.NewGraph()
	c := generator.VulnCandidate{
		SinkID:            "sink-1",
		ConfirmVerdict:    generator.ConfirmConfirmed,
		ConfirmConfidence: 0.79,
	}
	assert.Equal(t, GradeC, assignGrade(g, c))
}

func TestAssignGradeStructuralEvidenceAloneIsGradeC(t *testing.T) {
	g := factgraph.NewGraph()
	c := generator.VulnCandidate{
		InvolvedAccounts: []generator.InvolvedAccount{{Name: "authority"}},
	}
	assert.Equal(t, GradeC, assignGrade(g, c))
}

func TestAssignGradeUncertainAboveThresholdIsGradeC(t *testing.T) {
	g := factgraph.NewGraph()
	c := generator.VulnCandidate{
		ConfirmVerdict:    generator.ConfirmUncertain,
		ConfirmConfidence: 0.5,
	}
	assert.Equal(t, GradeC, assignGrade(g, c))
}

func TestAssignGradeNoEvidenceIsGradeD(t *testing.T) {
	g := factgraph.NewGraph()
	c := generator.VulnCandidate{VulnClass: "stale_post_cpi"}
	assert.Equal(t, GradeD, assignGrade(g, c))
}

func TestCapSeverity(t *testing.T) {
	assert.Equal(t, factgraph.SeverityCritical, capSeverity(factgraph.SeverityCritical, GradeA))
	assert.Equal(t, factgraph.SeverityHigh, capSeverity(factgraph.SeverityCritical, GradeC))
	assert.Equal(t, factgraph.SeverityMedium, capSeverity(factgraph.SeverityHigh, GradeD))
	assert.Equal(t, factgraph.SeverityLow, capSeverity(factgraph.SeverityLow, GradeD))
}

func TestFilterDropsBelowMedium(t *testing.T) {
	g := factgraph.NewGraph()
	candidates := []generator.VulnCandidate{
		{ID: "cand-0001", VulnClass: "stale_post_cpi", Severity: factgraph.SeverityLow, Confidence: 0.2, Instruction: "sweep"},
	}
	findings := Filter(g, candidates)
	assert.Empty(t, findings)
}

// TestFilterScenarioMissingSigner reproduces spec.md §8 scenario 1: an
// Anchor Withdraw context with an AccountInfo authority and a token
// transfer sink. With no PoC/LLM collaborator configured, the generator's
// CRITICAL/0.75-confidence missing_signer candidate has only structural
// evidence (a named involved account, a linked sink) behind it, so it
// grades C and its severity is enforced down to HIGH.
func TestFilterScenarioMissingSigner(t *testing.T) {
	g := factgraph.NewGraph()
	candidates := []generator.VulnCandidate{
		{
			ID:               "cand-0001",
			VulnClass:        "missing_signer",
			Severity:         factgraph.SeverityCritical,
			Confidence:       0.75,
			Instruction:      "withdraw",
			SinkID:           "sink-withdraw-1",
			InvolvedAccounts: []generator.InvolvedAccount{{Name: "authority"}},
		},
	}
	findings := Filter(g, candidates)
	require.Len(t, findings, 1)
	assert.Equal(t, GradeC, findings[0].Grade)
	assert.Equal(t, factgraph.SeverityHigh, findings[0].Severity)
	assert.Equal(t, "authority", findings[0].InvolvedAccounts[0].Name)
}

// TestFilterScenarioMissingSignerWithPoCIsGradeA mirrors the same
// candidate once a PoC collaborator has proven it lands, which spec.md
// §4.6 allows to report at the uncapped CRITICAL severity.
func TestFilterScenarioMissingSignerWithPoCIsGradeA(t *testing.T) {
	g := factgraph.NewGraph()
	candidates := []generator.VulnCandidate{
		{
			ID:               "cand-0001",
			VulnClass:        "missing_signer",
			Severity:         factgraph.SeverityCritical,
			Confidence:       0.75,
			Instruction:      "withdraw",
			SinkID:           "sink-withdraw-1",
			InvolvedAccounts: []generator.InvolvedAccount{{Name: "authority"}},
			PoCVerdict:       generator.PoCProven,
		},
	}
	findings := Filter(g, candidates)
	require.Len(t, findings, 1)
	assert.Equal(t, GradeA, findings[0].Grade)
	assert.Equal(t, factgraph.SeverityCritical, findings[0].Severity)
}

func TestFilterKeepsAndGradesSurvivors(t *testing.T) {
	g := factgraph.NewGraph()
	candidates := []generator.VulnCandidate{
		{ID: "cand-0001", VulnClass: "missing_signer", Severity: factgraph.SeverityCritical, Confidence: 0.8, Instruction: "withdraw", SinkID: "sink-1"},
		{ID: "cand-0002", VulnClass: "oracle_validation", Severity: factgraph.SeverityCritical, Confidence: 0.55, Instruction: "read_price", FromDetector: true},
	}
	findings := Filter(g, candidates)
	require.Len(t, findings, 2)

	assert.Equal(t, GradeC, findings[0].Grade)
	assert.Equal(t, factgraph.SeverityHigh, findings[0].Severity) // capped down from CRITICAL

	assert.Equal(t, GradeC, findings[1].Grade)
	assert.Equal(t, factgraph.SeverityHigh, findings[1].Severity) // capped down from CRITICAL
}

func TestFilterAttachesDispatchAliases(t *testing.T) {
	g := factgraph.NewGraph()
	g.AddInstruction(&factgraph.Instruction{ID: "native::handle_withdraw", Name: "handle_withdraw", DispatchAliases: []string{"Withdraw"}})

	candidates := []generator.VulnCandidate{
		{ID: "cand-0001", VulnClass: "missing_signer", Severity: factgraph.SeverityCritical, Confidence: 0.9, Instruction: "handle_withdraw", SinkID: "sink-1"},
	}
	findings := Filter(g, candidates)
	require.Len(t, findings, 1)
	assert.Equal(t, []string{"Withdraw"}, findings[0].InstructionAliases)
}
