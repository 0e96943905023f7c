package parser

import (
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/solaudit/sentry/factgraph"
)

// financialRootRe matches identifiers with a financial root, per §4.2
// "Arithmetic ops": amount|balance|lamports|price|fee|rate|supply|reserve.
var financialRootRe = regexp.MustCompile(`(?i)\b([a-z_][a-z0-9_]*(?:amount|balance|lamports|price|fee|rate|supply|reserve)[a-z0-9_]*)\b`)
var arithOperatorRe = regexp.MustCompile(`[a-zA-Z0-9_)\]]\s*([+\-*/])\s*[a-zA-Z0-9_(]`)
var checkedOpRe = regexp.MustCompile(`\b(checked_[a-z]+|saturating_[a-z]+|overflowing_[a-z]+|try_[a-z]+)\s*\(`)

// extractArithmetic implements §4.2's arithmetic-op extraction: one record
// per line containing a +,-,*,/ adjacent to a financial-root identifier,
// marked checked iff the line also uses a checked_*/saturating_*/
// overflowing_*/try_* call.
func extractArithmetic(body *sitter.Node, src []byte, file string, instID factgraph.StableId, g *factgraph.Graph) {
	bodyText := body.Content(src)
	bodyStartLine := int(body.StartPoint().Row) + 1
	lines := strings.Split(bodyText, "\n")

	for i, line := range lines {
		idents := financialRootRe.FindAllString(line, -1)
		if len(idents) == 0 {
			continue
		}
		opMatch := arithOperatorRe.FindStringSubmatch(line)
		if opMatch == nil {
			continue
		}
		checked := checkedOpRe.MatchString(line)

		g.AddArithmeticOp(&factgraph.ArithmeticOp{
			InstructionID: instID,
			Identifier:    idents[0],
			Operator:      opMatch[1],
			Checked:       checked,
			Span:          factgraph.AstSpan{File: file, StartLine: bodyStartLine + i, EndLine: bodyStartLine + i},
		})
	}
}
