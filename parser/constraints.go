package parser

import (
	"strings"

	"github.com/solaudit/sentry/factgraph"
)

// parseAccountConstraints parses the text inside #[account(...)] into a
// list of Constraints, preserving each clause's expression text verbatim
// (§4.2 "preserve expression text"). Splitting is bracket-aware so seeds
// lists ("seeds = [b\"vault\", owner.key().as_ref()]") are not split on
// their internal commas.
func parseAccountConstraints(attrText string, span factgraph.AstSpan) []factgraph.Constraint {
	inner := innerOf(attrText, "account")
	if inner == "" {
		return nil
	}
	clauses := splitTopLevel(inner)

	var out []factgraph.Constraint
	for _, clause := range clauses {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			continue
		}
		out = append(out, parseClause(clause, span))
	}
	return out
}

// innerOf extracts the text between the first "(" after macroName and its
// matching ")".
func innerOf(text, macroName string) string {
	idx := strings.Index(text, macroName+"(")
	if idx < 0 {
		// also accept bare "(...)" (e.g. when macroName already consumed)
		idx = strings.Index(text, "(")
		if idx < 0 {
			return ""
		}
	} else {
		idx += len(macroName)
	}
	depth := 0
	start := -1
	for i := idx; i < len(text); i++ {
		switch text[i] {
		case '(':
			if depth == 0 {
				start = i + 1
			}
			depth++
		case ')':
			depth--
			if depth == 0 && start >= 0 {
				return text[start:i]
			}
		}
	}
	return ""
}

// splitTopLevel splits s on commas that are not nested inside (), [], or "".
func splitTopLevel(s string) []string {
	var parts []string
	depth := 0
	inStr := false
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"' && (i == 0 || s[i-1] != '\\'):
			inStr = !inStr
		case inStr:
			continue
		case c == '(' || c == '[':
			depth++
		case c == ')' || c == ']':
			depth--
		case c == ',' && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	parts = append(parts, s[start:])
	return parts
}

// parseClause parses one constraint clause like "mut", "signer",
// "has_one = authority", "seeds = [b\"vault\"]", "token::authority = authority".
func parseClause(clause string, span factgraph.AstSpan) factgraph.Constraint {
	key := clause
	val := ""
	if eq := strings.Index(clause, "="); eq >= 0 {
		key = strings.TrimSpace(clause[:eq])
		val = strings.TrimSpace(clause[eq+1:])
	}
	key = strings.TrimSpace(key)

	kind := classifyConstraintKind(key)
	c := factgraph.Constraint{Kind: kind, Expr: val, Span: span}

	switch kind {
	case factgraph.ConstraintSeeds:
		c.Seeds = splitTopLevel(strings.Trim(val, "[]"))
		for i := range c.Seeds {
			c.Seeds[i] = strings.TrimSpace(c.Seeds[i])
		}
	case factgraph.ConstraintBump:
		c.BumpExpr = val
	}
	if val == "" && key != clause {
		c.Expr = clause
	}
	return c
}

func classifyConstraintKind(key string) factgraph.ConstraintKind {
	switch {
	case key == "mut":
		return factgraph.ConstraintMut
	case key == "signer":
		return factgraph.ConstraintSigner
	case key == "owner":
		return factgraph.ConstraintOwner
	case key == "has_one":
		return factgraph.ConstraintHasOne
	case key == "constraint":
		return factgraph.ConstraintExpr
	case key == "address":
		return factgraph.ConstraintAddress
	case key == "seeds":
		return factgraph.ConstraintSeeds
	case key == "bump":
		return factgraph.ConstraintBump
	case key == "init_if_needed":
		return factgraph.ConstraintInitIfNeeded
	case key == "init":
		return factgraph.ConstraintInit
	case key == "close":
		return factgraph.ConstraintClose
	case key == "realloc" || strings.HasPrefix(key, "realloc::"):
		return factgraph.ConstraintRealloc
	case key == "token::mint" || key == "associated_token::mint":
		return factgraph.ConstraintTokenMint
	case key == "token::authority" || key == "associated_token::authority":
		return factgraph.ConstraintTokenAuthority
	case key == "token::token_program":
		return factgraph.ConstraintTokenProgram
	case strings.HasPrefix(key, "associated_token::"):
		return factgraph.ConstraintAssociatedToken
	default:
		return factgraph.ConstraintExpr
	}
}
