package parser

import (
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/solaudit/sentry/factgraph"
)

var (
	invokeCallRe  = regexp.MustCompile(`\b(invoke_signed|invoke)\s*\(\s*&?([a-z_][a-zA-Z0-9_]*)\s*,\s*&\[([^\]]*)\]`)
	keyEqConstRe  = regexp.MustCompile(`([a-z_][a-zA-Z0-9_.]*)\.key\(\)\s*==\s*([A-Za-z0-9_:]+)`)
	programIDEqRe = regexp.MustCompile(`([a-z_][a-zA-Z0-9_.]*)\.key\(\)\s*==\s*\*?program_id`)
)

// extractCPIs implements §4.2 CPI extraction: each invoke/invoke_signed is
// a CPI node. TargetProgram is recorded as the best-effort account
// identifier found in the call's account-infos slice (or "dynamic" if
// none); ProgramValidated is set here for the lexical case (a key check
// against a constant appears nearby) and refined later in
// resolveCPIValidation once accounts are bound to typed fields.
func extractCPIs(body *sitter.Node, src []byte, file string, instID factgraph.StableId, g *factgraph.Graph) {
	bodyText := body.Content(src)
	bodyStartLine := int(body.StartPoint().Row) + 1
	lines := strings.Split(bodyText, "\n")

	ordinal := 0
	for i, line := range lines {
		m := invokeCallRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		kind := m[1]
		metas := extractFieldRefs(m[3])

		target := "dynamic"
		if len(metas) > 0 {
			target = metas[len(metas)-1]
		}

		window := strings.Join(lines[max(0, i-3):min(len(lines), i+3)], "\n")
		validated := false
		for _, km := range keyEqConstRe.FindAllStringSubmatch(window, -1) {
			if strings.Contains(km[1], target) {
				validated = true
			}
			// A check against a recognized well-known program id (by
			// conventional constant path or literal base58 address)
			// validates the target regardless of the checked variable's
			// name, since the source may alias it.
			if isValidatedProgramConstant(km[2]) {
				validated = true
			}
		}
		if programIDEqRe.MatchString(window) {
			validated = true
		}

		var signerSeeds []string
		if kind == "invoke_signed" {
			if idx := strings.Index(line, "&[&["); idx >= 0 {
				signerSeeds = splitTopLevel(line[idx+2:])
			}
		}

		cpiID := factgraph.CPIID(instID, ordinal)
		ordinal++
		g.AddCPI(&factgraph.CPI{
			ID:               cpiID,
			InstructionID:    instID,
			TargetProgram:    target,
			Signed:           kind == "invoke_signed",
			SignerSeeds:      signerSeeds,
			AccountMetas:     metas,
			ProgramValidated: validated,
			Span:             factgraph.AstSpan{File: file, StartLine: bodyStartLine + i, EndLine: bodyStartLine + i},
		})
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// resolveCPIValidation implements option (a) of §4.2's programValidated
// rule: the target account is typed Program<'info, T> for a known T. Runs
// after accounts are bound to instructions.
func resolveCPIValidation(g *factgraph.Graph) {
	for _, c := range g.CPIs() {
		if c.ProgramValidated || c.TargetProgram == "dynamic" {
			continue
		}
		inst, ok := g.Instruction(c.InstructionID)
		if !ok || inst.AccountsTypeName == "" {
			continue
		}
		if acc, ok := g.FindField(inst.AccountsTypeName, c.TargetProgram); ok {
			if acc.Wrapper == factgraph.WrapperProgram {
				c.ProgramValidated = true
			}
		}
	}
}
