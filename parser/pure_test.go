package parser

import (
	"testing"

	"github.com/solaudit/sentry/factgraph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitTopLevelIgnoresNestedCommas(t *testing.T) {
	parts := splitTopLevel(`mut, seeds = [b"vault", owner.key().as_ref()], bump`)
	require.Len(t, parts, 3)
	assert.Equal(t, "mut", parts[0])
	assert.Contains(t, parts[1], "seeds")
	assert.Equal(t, " bump", parts[2])
}

func TestInnerOfExtractsBalancedParens(t *testing.T) {
	inner := innerOf(`#[account(mut, has_one = authority)]`, "account")
	assert.Equal(t, "mut, has_one = authority", inner)
}

func TestParseAccountConstraintsParsesClauses(t *testing.T) {
	span := factgraph.AstSpan{File: "lib.rs", StartLine: 1}
	constraints := parseAccountConstraints(`#[account(mut, has_one = authority, seeds = [b"vault", owner.key().as_ref()], bump)]`, span)
	require.Len(t, constraints, 4)

	var kinds []factgraph.ConstraintKind
	for _, c := range constraints {
		kinds = append(kinds, c.Kind)
	}
	assert.Contains(t, kinds, factgraph.ConstraintMut)
	assert.Contains(t, kinds, factgraph.ConstraintHasOne)
	assert.Contains(t, kinds, factgraph.ConstraintSeeds)
	assert.Contains(t, kinds, factgraph.ConstraintBump)
}

func TestClassifyConstraintKindKnownAndDefault(t *testing.T) {
	assert.Equal(t, factgraph.ConstraintSigner, classifyConstraintKind("signer"))
	assert.Equal(t, factgraph.ConstraintTokenMint, classifyConstraintKind("token::mint"))
	assert.Equal(t, factgraph.ConstraintAssociatedToken, classifyConstraintKind("associated_token::wallet"))
	assert.Equal(t, factgraph.ConstraintExpr, classifyConstraintKind("something_unrecognized"))
}

func TestIsAttackerControlledSeed(t *testing.T) {
	assert.False(t, isAttackerControlledSeed(`b"vault"`))
	assert.False(t, isAttackerControlledSeed(`authority.key()`))
	assert.True(t, isAttackerControlledSeed(`owner.key().as_ref()`))
}

func TestClassifyBumpSource(t *testing.T) {
	assert.Equal(t, factgraph.BumpCanonical, classifyBumpSource(""))
	assert.Equal(t, factgraph.BumpStored, classifyBumpSource("ctx.bumps.vault"))
	assert.Equal(t, factgraph.BumpUserProvided, classifyBumpSource("bump"))
}

func TestExtractFieldRefsFindsAccountsAccessAndDedupes(t *testing.T) {
	refs := extractFieldRefs("let a = vault.key(); let b = vault.amount; ctx.accounts.authority.key();")
	assert.Contains(t, refs, "vault")
	assert.NotContains(t, refs, "ctx")
}

func TestExtractFieldRefsFallsBackToAccountsAccessor(t *testing.T) {
	refs := extractFieldRefs("ctx.accounts.vault.data")
	assert.Contains(t, refs, "vault")
}

func TestExtractContextType(t *testing.T) {
	assert.Equal(t, "Withdraw", extractContextType("ctx: Context<Withdraw>"))
	assert.Equal(t, "", extractContextType("amount: u64"))
}

// TestParseInlinePDALineHandlesNestedBumpSeed reproduces spec.md §8
// scenario 3: a create_program_address call whose seeds list ends in its
// own nested array for the bump byte. The seed list must split into three
// entries without losing the trailing bracket, and the bump must be
// classified as user-provided rather than stored.
func TestParseInlinePDALineHandlesNestedBumpSeed(t *testing.T) {
	line := `let addr = Pubkey::create_program_address(&[b"vault", owner.key.as_ref(), &[bump]], program_id)?;`
	seeds, bumpSource, ok := parseInlinePDALine(line)
	require.True(t, ok)
	require.Len(t, seeds, 3)
	assert.Equal(t, `b"vault"`, seeds[0].Expr)
	assert.Equal(t, "owner.key.as_ref()", seeds[1].Expr)
	assert.Equal(t, "&[bump]", seeds[2].Expr)
	assert.Equal(t, factgraph.BumpUserProvided, bumpSource)
}

func TestParseInlinePDALineIgnoresNonMatchingLine(t *testing.T) {
	_, _, ok := parseInlinePDALine(`let x = 1;`)
	assert.False(t, ok)
}

func TestClassifyWrapperSplitsInnerType(t *testing.T) {
	w, inner := classifyWrapper(`Account<'info, TokenAccount>`)
	assert.Equal(t, factgraph.WrapperAccount, w)
	assert.Equal(t, "TokenAccount", inner)

	w2, _ := classifyWrapper(`Signer<'info>`)
	assert.Equal(t, factgraph.WrapperSigner, w2)

	w3, _ := classifyWrapper(`u64`)
	assert.Equal(t, factgraph.WrapperUnknown, w3)
}
