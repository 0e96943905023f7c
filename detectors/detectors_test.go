package detectors

import (
	"testing"

	"github.com/solaudit/sentry/factgraph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func oracleGraph(body string) *factgraph.Graph {
	g := factgraph.NewGraph()
	prog := &factgraph.Program{ID: "prog::oracle", Name: "oracle", Framework: factgraph.FrameworkAnchor}
	g.AddProgram(prog)

	inst := &factgraph.Instruction{
		ID: "oracle::read_price", Name: "read_price", ProgramID: prog.ID,
		AccountsTypeName: "ReadPrice", BodyExcerpt: body,
		Span: factgraph.AstSpan{File: "programs/oracle/src/lib.rs", StartLine: 1},
	}
	sink := &factgraph.Sink{
		ID: "oracle::read_price::sink0", Kind: factgraph.SinkOracleRead, InstructionID: inst.ID,
		InvolvedAccounts: []string{"price_feed"},
		Span:             factgraph.AstSpan{File: "programs/oracle/src/lib.rs", StartLine: 10},
	}
	inst.SinkIDs = []factgraph.StableId{sink.ID}
	g.AddInstruction(inst)
	g.AddSink(sink)
	return g
}

func TestOracleValidationFlagsFullyUncheckedRead(t *testing.T) {
	g := oracleGraph("let price = feed.get_price()?;")
	candidates := oracleValidation(g)
	require.Len(t, candidates, 1)
	assert.Equal(t, factgraph.SeverityCritical, candidates[0].Severity)
	assert.Contains(t, candidates[0].Reason, "staleness check")
}

func TestOracleValidationPassesWhenAllSignalsPresent(t *testing.T) {
	g := oracleGraph(`
		require!(price > 0, ErrorCode::InvalidPrice);
		let deviation = compute_deviation();
		let stale = now - feed.last_update > MAX_AGE;
	`)
	candidates := oracleValidation(g)
	assert.Empty(t, candidates)
}

func TestOracleValidationCapsPerProgram(t *testing.T) {
	g := factgraph.NewGraph()
	prog := &factgraph.Program{ID: "prog::oracle", Name: "oracle", Framework: factgraph.FrameworkAnchor}
	g.AddProgram(prog)
	for i := 0; i < 8; i++ {
		instID := factgraph.StableId("oracle::read" + string(rune('a'+i)))
		inst := &factgraph.Instruction{ID: instID, Name: "read", ProgramID: prog.ID, AccountsTypeName: "Read"}
		sink := &factgraph.Sink{
			ID:   factgraph.StableId(string(instID) + "::sink"),
			Kind: factgraph.SinkOracleRead, InstructionID: instID,
			Span: factgraph.AstSpan{File: "lib.rs", StartLine: i + 1},
		}
		inst.SinkIDs = []factgraph.StableId{sink.ID}
		g.AddInstruction(inst)
		g.AddSink(sink)
	}
	candidates := oracleValidation(g)
	assert.LessOrEqual(t, len(candidates), maxPerProgram)
}

func TestStalePostCPIDetectsUnreloadedRead(t *testing.T) {
	g := factgraph.NewGraph()
	prog := &factgraph.Program{ID: "prog::vault", Name: "vault", Framework: factgraph.FrameworkAnchor}
	g.AddProgram(prog)

	body := "line0\nline1\ninvoke(&ix, &accounts)?;\nlet bal = vault.amount;\nline5"
	inst := &factgraph.Instruction{
		ID: "vault::sweep", Name: "sweep", ProgramID: prog.ID, AccountsTypeName: "Sweep",
		BodyExcerpt: body, Span: factgraph.AstSpan{File: "lib.rs", StartLine: 0},
	}
	vaultAcc := &factgraph.Account{ID: "vault::sweep::vault", Name: "vault", InstructionID: inst.ID}
	inst.AccountIDs = []factgraph.StableId{vaultAcc.ID}
	g.AddInstruction(inst)
	g.AddAccount(vaultAcc)
	g.AddCPI(&factgraph.CPI{
		ID: "vault::sweep::cpi0", InstructionID: inst.ID, TargetProgram: "token_program",
		ProgramValidated: false, Span: factgraph.AstSpan{File: "lib.rs", StartLine: 2},
	})

	candidates := stalePostCPI(g)
	require.Len(t, candidates, 1)
	assert.Equal(t, "stale_post_cpi", candidates[0].VulnClass)
}

func TestNativeInstructionAliases(t *testing.T) {
	g := factgraph.NewGraph()
	inst := &factgraph.Instruction{ID: "native::handle_withdraw", Name: "handle_withdraw", DispatchAliases: []string{"Withdraw", "WithdrawAll"}}
	g.AddInstruction(inst)

	aliases := NativeInstructionAliases(g)
	assert.ElementsMatch(t, []string{"Withdraw", "WithdrawAll"}, aliases["handle_withdraw"])
}
