package generator

import (
	"testing"

	"github.com/solaudit/sentry/factgraph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// missingSignerGraph builds a single-instruction graph where a
// token_transfer sink is reachable through a non-signer "authority" field,
// mirroring the fix-missing-signer fixture scenario.
func missingSignerGraph() *factgraph.Graph {
	g := factgraph.NewGraph()
	prog := &factgraph.Program{ID: "prog::vault", Name: "vault", Framework: factgraph.FrameworkAnchor}
	g.AddProgram(prog)

	inst := &factgraph.Instruction{
		ID:               "vault::withdraw",
		Name:             "withdraw",
		ProgramID:        prog.ID,
		AccountsTypeName: "Withdraw",
	}

	authority := &factgraph.Account{
		ID: "vault::withdraw::authority", Name: "authority", InstructionID: inst.ID,
		Wrapper: factgraph.WrapperUncheckedAccount,
	}
	vaultAcc := &factgraph.Account{
		ID: "vault::withdraw::vault", Name: "vault", InstructionID: inst.ID,
		Wrapper: factgraph.WrapperAccount, InnerType: "TokenAccount",
	}
	inst.AccountIDs = []factgraph.StableId{authority.ID, vaultAcc.ID}

	sink := &factgraph.Sink{
		ID: "vault::withdraw::sink0", Kind: factgraph.SinkTokenTransfer, InstructionID: inst.ID,
		InvolvedAccounts: []string{"vault", "authority"},
		Span:             factgraph.AstSpan{File: "programs/vault/src/lib.rs", StartLine: 42},
	}
	inst.SinkIDs = []factgraph.StableId{sink.ID}

	g.AddInstruction(inst)
	g.AddAccount(authority)
	g.AddAccount(vaultAcc)
	g.AddSink(sink)
	g.IndexField("Withdraw", "authority", authority)
	g.IndexField("Withdraw", "vault", vaultAcc)
	g.RegisterStructField("Withdraw", authority)
	g.RegisterStructField("Withdraw", vaultAcc)
	g.BuildSinkNeighborhoods(factgraph.ExpectedGuardMap())

	return g
}

func TestScanSinksMissingSigner(t *testing.T) {
	g := missingSignerGraph()
	candidates := scanSinks(g)

	var found bool
	for _, c := range candidates {
		if c.VulnClass == "missing_signer" {
			found = true
			assert.Equal(t, factgraph.SeverityCritical, c.Severity)
			assert.Equal(t, "withdraw", c.Instruction)
		}
	}
	assert.True(t, found, "expected a missing_signer candidate")
}

func TestGenerateDedupsAndSorts(t *testing.T) {
	g := missingSignerGraph()
	candidates := Generate(g)
	require.NotEmpty(t, candidates)

	for i := 1; i < len(candidates); i++ {
		wi := factgraph.SeverityWeight[candidates[i-1].Severity] * candidates[i-1].Confidence
		wj := factgraph.SeverityWeight[candidates[i].Severity] * candidates[i].Confidence
		assert.GreaterOrEqual(t, wi, wj)
	}

	seen := map[string]bool{}
	for _, c := range candidates {
		assert.False(t, seen[c.Fingerprint], "duplicate fingerprint %s", c.Fingerprint)
		seen[c.Fingerprint] = true
	}
}

func TestRenumberAssignsSequentialIDs(t *testing.T) {
	candidates := []VulnCandidate{{Fingerprint: "a"}, {Fingerprint: "b"}}
	out := Renumber(candidates)
	assert.Equal(t, "cand-0001", out[0].ID)
	assert.Equal(t, "cand-0002", out[1].ID)
}

func TestDedupKeepsHighestConfidence(t *testing.T) {
	candidates := []VulnCandidate{
		{Fingerprint: "x", Confidence: 0.5},
		{Fingerprint: "x", Confidence: 0.9},
	}
	out := Dedup(candidates)
	require.Len(t, out, 1)
	assert.Equal(t, 0.9, out[0].Confidence)
}
