package factgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTestGraph() *Graph {
	g := NewGraph()
	prog := &Program{ID: "prog::amm", Name: "amm", Framework: FrameworkAnchor}
	g.AddProgram(prog)

	inst := &Instruction{
		ID:               "amm::withdraw",
		Name:             "withdraw",
		ProgramID:        prog.ID,
		AccountsTypeName: "Withdraw",
	}

	authority := &Account{ID: "amm::withdraw::authority", Name: "authority", InstructionID: inst.ID, Wrapper: WrapperSigner, IsSigner: true}
	vault := &Account{ID: "amm::withdraw::vault", Name: "vault", InstructionID: inst.ID, Wrapper: WrapperAccount, InnerType: "TokenAccount"}
	inst.AccountIDs = []StableId{authority.ID, vault.ID}

	sink := &Sink{ID: "amm::withdraw::sink0", Kind: SinkTokenTransfer, InstructionID: inst.ID, InvolvedAccounts: []string{"vault", "authority"}}
	inst.SinkIDs = []StableId{sink.ID}

	g.AddInstruction(inst)
	g.AddAccount(authority)
	g.AddAccount(vault)
	g.AddSink(sink)
	g.IndexField("Withdraw", "authority", authority)
	g.IndexField("Withdraw", "vault", vault)
	g.RegisterStructField("Withdraw", authority)
	g.RegisterStructField("Withdraw", vault)

	return g
}

func TestGraphCheckInvariants(t *testing.T) {
	g := buildTestGraph()
	assert.NoError(t, g.CheckInvariants())
}

func TestGraphCheckInvariantsDetectsDanglingSink(t *testing.T) {
	g := NewGraph()
	g.AddSink(&Sink{ID: "orphan", Kind: SinkTokenTransfer, InstructionID: "missing"})
	err := g.CheckInvariants()
	require.Error(t, err)
}

func TestIsSignerAndOwnerValidation(t *testing.T) {
	g := buildTestGraph()
	assert.True(t, g.IsSigner("amm::withdraw::authority"))
	assert.False(t, g.IsSigner("amm::withdraw::vault"))
	assert.False(t, g.HasOwnerValidation("amm::withdraw::vault"))
}

func TestAccountsOfAndFindField(t *testing.T) {
	g := buildTestGraph()
	accounts := g.AccountsOf("amm::withdraw")
	assert.Len(t, accounts, 2)

	a, ok := g.FindField("Withdraw", "vault")
	require.True(t, ok)
	assert.Equal(t, "vault", a.Name)

	_, ok = g.FindField("Withdraw", "nonexistent")
	assert.False(t, ok)
}

func TestBuildSinkNeighborhoods(t *testing.T) {
	g := buildTestGraph()
	g.BuildSinkNeighborhoods(ExpectedGuardMap())

	n, ok := g.SinkNeighborhood("amm::withdraw::sink0")
	require.True(t, ok)
	assert.Len(t, n.Accounts, 2)
	assert.Contains(t, n.MissingGuards, string(ConstraintHasOne))
}
