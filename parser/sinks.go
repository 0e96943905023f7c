package parser

import (
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/solaudit/sentry/factgraph"
)

var (
	tokenTransferRe = regexp.MustCompile(`token::transfer\b|Transfer\s*\{`)
	tokenMintRe     = regexp.MustCompile(`token::mint_to\b`)
	tokenBurnRe     = regexp.MustCompile(`token::burn\b`)
	tokenApproveRe  = regexp.MustCompile(`token::approve\b`)
	tokenRevokeRe   = regexp.MustCompile(`token::revoke\b`)
	tokenSetAuthRe  = regexp.MustCompile(`token::set_authority\b`)
	tokenCloseRe    = regexp.MustCompile(`token::close_account\b`)
	systemTransferRe = regexp.MustCompile(`system_program::transfer\b`)
	lamportMutRe    = regexp.MustCompile(`try_borrow_mut_lamports\s*\(\s*\)\s*\?\s*[+-]=`)
	invokeSignedRe  = regexp.MustCompile(`\binvoke_signed\s*\(`)
	invokeRe        = regexp.MustCompile(`\binvoke\s*\(`)
	sysvarIxRe      = regexp.MustCompile(`sysvar::instructions|Instructions::`)
	oracleCallRe    = regexp.MustCompile(`get_price\w*\s*\(`)
	oracleFieldRe   = regexp.MustCompile(`(?i)\.(oracle|price|pyth|switchboard|feed|aggregator)\b`)

	requireRe  = regexp.MustCompile(`require!\s*\(\s*([^,()]+(?:\([^()]*\))?[^,()]*)`)
	assertRe   = regexp.MustCompile(`assert!\s*\(\s*([^,()]+(?:\([^()]*\))?[^,()]*)`)
	ifCondRe   = regexp.MustCompile(`if\s+([^\{]+)\{`)
)

// sinkLineSpec ties a regex to the kind it emits, in priority order.
type sinkLineSpec struct {
	re   *regexp.Regexp
	kind factgraph.SinkKind
}

var sinkSpecs = []sinkLineSpec{
	{tokenTransferRe, factgraph.SinkTokenTransfer},
	{tokenMintRe, factgraph.SinkTokenMintTo},
	{tokenBurnRe, factgraph.SinkTokenBurn},
	{tokenApproveRe, factgraph.SinkTokenApprove},
	{tokenRevokeRe, factgraph.SinkTokenRevoke},
	{tokenSetAuthRe, factgraph.SinkTokenSetAuthority},
	{tokenCloseRe, factgraph.SinkTokenCloseAccount},
	{systemTransferRe, factgraph.SinkSystemTransfer},
	{lamportMutRe, factgraph.SinkLamportMutation},
	{invokeSignedRe, factgraph.SinkInvokeSigned},
	{invokeRe, factgraph.SinkInvoke},
	{sysvarIxRe, factgraph.SinkSysvarInstructions},
	{oracleCallRe, factgraph.SinkOracleRead},
}

var fieldRefRe = regexp.MustCompile(`\b([a-z_][a-z0-9_]*)\s*\.\s*(?:key\(\)|to_account_info\(\)|amount|lamports)`)

// extractSinksAndGuards scans the instruction body line by line for sink
// patterns (§4.2 "Sink extraction") and also collects every body-level guard
// (require!/assert!/if), attaching each guard to the first account its
// condition references, or to the instruction when it references none.
func extractSinksAndGuards(body *sitter.Node, src []byte, file string, instID factgraph.StableId, bodyText string, g *factgraph.Graph) {
	lines := strings.Split(bodyText, "\n")
	bodyStartLine := int(body.StartPoint().Row) + 1

	sinkOrdinal := map[factgraph.SinkKind]int{}
	guardOrdinal := 0

	inst, _ := g.Instruction(instID)

	for i, line := range lines {
		absLine := bodyStartLine + i

		// oracle field access, lower priority than explicit sink matches
		isOracleField := oracleFieldRe.MatchString(line)

		matchedSink := false
		for _, spec := range sinkSpecs {
			if spec.re.MatchString(line) {
				matchedSink = true
				ord := sinkOrdinal[spec.kind]
				sinkOrdinal[spec.kind] = ord + 1
				sinkID := factgraph.SinkID(instID, spec.kind, ord)
				sink := &factgraph.Sink{
					ID:               sinkID,
					Kind:             spec.kind,
					InstructionID:    instID,
					InvolvedAccounts: extractFieldRefs(line),
					Excerpt:          strings.TrimSpace(line),
					Span:             factgraph.AstSpan{File: file, StartLine: absLine, EndLine: absLine},
				}
				g.AddSink(sink)
				if inst != nil {
					inst.SinkIDs = append(inst.SinkIDs, sinkID)
				}
			}
		}
		if !matchedSink && isOracleField {
			ord := sinkOrdinal[factgraph.SinkOracleRead]
			sinkOrdinal[factgraph.SinkOracleRead] = ord + 1
			sinkID := factgraph.SinkID(instID, factgraph.SinkOracleRead, ord)
			sink := &factgraph.Sink{
				ID:               sinkID,
				Kind:             factgraph.SinkOracleRead,
				InstructionID:    instID,
				InvolvedAccounts: extractFieldRefs(line),
				Excerpt:          strings.TrimSpace(line),
				Span:             factgraph.AstSpan{File: file, StartLine: absLine, EndLine: absLine},
			}
			g.AddSink(sink)
			if inst != nil {
				inst.SinkIDs = append(inst.SinkIDs, sinkID)
			}
		}

		for _, gre := range []*regexp.Regexp{requireRe, assertRe, ifCondRe} {
			m := gre.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			expr := strings.TrimSpace(m[1])
			kind := factgraph.GuardRequire
			switch gre {
			case assertRe:
				kind = factgraph.GuardAssert
			case ifCondRe:
				kind = factgraph.GuardIf
			}
			refs := extractFieldRefs(expr)
			protects := instID
			if len(refs) > 0 {
				protects = factgraph.AccountID(instID, refs[0])
			}
			guardID := factgraph.GuardID(protects, guardOrdinal)
			guardOrdinal++
			g.AddGuard(&factgraph.Guard{
				ID:         guardID,
				Kind:       string(kind),
				ProtectsID: protects,
				Expr:       expr,
				Span:       factgraph.AstSpan{File: file, StartLine: absLine, EndLine: absLine},
			})
			if inst != nil {
				inst.GuardIDs = append(inst.GuardIDs, guardID)
			}
		}
	}
}

// extractFieldRefs pulls lowercase identifier.field-style account field
// references out of a line/expression, used to populate a sink's or
// guard's InvolvedAccounts / account binding.
func extractFieldRefs(text string) []string {
	var out []string
	seen := map[string]bool{}
	for _, m := range fieldRefRe.FindAllStringSubmatch(text, -1) {
		name := m[1]
		if name == "ctx" || name == "self" {
			continue
		}
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	if len(out) == 0 {
		// fall back to bare identifiers preceding ".key()" or similar that
		// the stricter regex above missed (e.g. "ctx.accounts.vault.amount")
		m := regexp.MustCompile(`ctx\.accounts\.([a-z_][a-z0-9_]*)`).FindAllStringSubmatch(text, -1)
		for _, g := range m {
			if !seen[g[1]] {
				seen[g[1]] = true
				out = append(out, g[1])
			}
		}
	}
	return out
}
