package parser

import (
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/solaudit/sentry/factgraph"
)

// inlinePdaCallRe locates a Pubkey::find_program_address/
// create_program_address call by its name only; the argument list itself
// is extracted with a bracket-depth-aware scan (via innerOf/splitTopLevel)
// since the seeds slice can itself contain a nested array (e.g. the
// trailing bump byte as "&[bump]"), which a single non-nesting character
// class can't capture.
var inlinePdaCallRe = regexp.MustCompile(`(?:Pubkey::)?(find_program_address|create_program_address)\s*\(`)

// extractPDAs implements the inline half of §4.2 PDA extraction: the
// constraint-derived half runs later in resolveAccountsAcrossFiles once
// accounts are bound to their instruction.
func extractPDAs(body *sitter.Node, src []byte, file string, instID factgraph.StableId, g *factgraph.Graph) {
	bodyText := body.Content(src)
	bodyStartLine := int(body.StartPoint().Row) + 1
	lines := strings.Split(bodyText, "\n")

	ordinal := 0
	for i, line := range lines {
		seeds, bumpSource, ok := parseInlinePDALine(line)
		if !ok {
			continue
		}
		pdaID := factgraph.PDAID(instID, ordinal)
		ordinal++
		g.AddPDA(&factgraph.PDA{
			ID:            pdaID,
			InstructionID: instID,
			Seeds:         seeds,
			BumpSource:    bumpSource,
			Source:        factgraph.PDASourceInline,
			Span:          factgraph.AstSpan{File: file, StartLine: bodyStartLine + i, EndLine: bodyStartLine + i},
		})
	}
}

// parseInlinePDALine finds an inline find_program_address/
// create_program_address call on a single line of source and extracts its
// seed list and bump source. The argument list is pulled out with a
// bracket-depth-aware scan (innerOf/splitTopLevel) rather than a single
// non-nesting regex character class, since the seeds slice can itself
// contain a nested array (the trailing bump byte, typically "&[bump]").
func parseInlinePDALine(line string) ([]factgraph.SeedExpr, factgraph.BumpSource, bool) {
	loc := inlinePdaCallRe.FindStringSubmatchIndex(line)
	if loc == nil {
		return nil, factgraph.BumpUnknown, false
	}
	kind := line[loc[2]:loc[3]]
	args := innerOf(line[loc[0]:], kind)
	if args == "" {
		return nil, factgraph.BumpUnknown, false
	}
	topArgs := splitTopLevel(args)
	if len(topArgs) == 0 {
		return nil, factgraph.BumpUnknown, false
	}

	seedsArg := strings.TrimSpace(topArgs[0])
	seedsArg = strings.TrimPrefix(seedsArg, "&")
	if strings.HasPrefix(seedsArg, "[") && strings.HasSuffix(seedsArg, "]") {
		seedsArg = seedsArg[1 : len(seedsArg)-1]
	}
	rawSeeds := splitTopLevel(seedsArg)
	seeds := make([]factgraph.SeedExpr, 0, len(rawSeeds))
	for _, s := range rawSeeds {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		seeds = append(seeds, factgraph.SeedExpr{Expr: s, AttackerControlled: isAttackerControlledSeed(s)})
	}

	bumpSource := factgraph.BumpUnknown
	if kind == "create_program_address" {
		// The second argument to create_program_address is the program
		// id, not the bump: the bump lives inside the seeds slice as its
		// own nested array, typically "&[bump]".
		bumpSource = factgraph.BumpUserProvided
		for _, s := range seeds {
			if strings.Contains(s.Expr, "bump") {
				bumpSource = classifyBumpSource(bumpSeedInner(s.Expr))
			}
		}
	}
	return seeds, bumpSource, true
}

// bumpSeedInner unwraps a seed expression like "&[bump]" down to the inner
// identifier "bump" the bump byte is read from, so classifyBumpSource sees
// the actual source expression rather than the wrapping nested array.
func bumpSeedInner(expr string) string {
	e := strings.TrimSpace(expr)
	e = strings.TrimPrefix(e, "&")
	if strings.HasPrefix(e, "[") && strings.HasSuffix(e, "]") {
		return strings.TrimSpace(e[1 : len(e)-1])
	}
	return e
}
