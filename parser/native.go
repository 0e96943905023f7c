package parser

import (
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/solaudit/sentry/factgraph"
)

// liftNativeFile implements the native path (§4.2): every top-level
// function_item becomes a candidate Instruction (account structs are
// frequently absent in native programs); the dispatch function
// (conventionally process_instruction) is additionally scanned for a
// match over a decoded instruction enum, recording each arm's variant name
// as an alias of its target function for scorer matching (§4.7).
func liftNativeFile(root *sitter.Node, src []byte, file string, g *factgraph.Graph, programID factgraph.StableId) {
	walkChildren(root, func(n *sitter.Node) {
		if n.Type() != "function_item" {
			return
		}
		nameNode := n.ChildByFieldName("name")
		if nameNode == nil {
			return
		}
		name := nameNode.Content(src)

		instID := factgraph.InstructionID(file, name)
		inst := &factgraph.Instruction{
			ID:         instID,
			Name:       name,
			ProgramID:  programID,
			Visibility: "gated",
			Span:       spanOf(n, file),
		}

		body := n.ChildByFieldName("body")
		var bodyText string
		if body != nil {
			bodyText = body.Content(src)
			inst.BodyExcerpt = excerpt(bodyText, 40)
			inst.CalledFunctions = extractCalledFunctions(body, src)
			extractSinksAndGuards(body, src, file, instID, bodyText, g)
			extractPDAs(body, src, file, instID, g)
			extractCPIs(body, src, file, instID, g)
			extractArithmetic(body, src, file, instID, g)

			if isDispatchFunction(name, bodyText) {
				for variant, target := range extractMatchDispatch(body, src) {
					g.RegisterDispatchAlias(target, strings.ToLower(variant))
				}
			}
			extractNativeAccountRefs(bodyText, instID, g)
		}

		g.AddInstruction(inst)
	})
}

func isDispatchFunction(name, body string) bool {
	return name == "process_instruction" || strings.Contains(body, "match instruction") || strings.Contains(body, "match Self::unpack")
}

// extractMatchDispatch finds a match expression whose arms are
// `Variant(...) => target_function(...)` or `Variant => target_function`
// and returns variant -> target function name.
func extractMatchDispatch(body *sitter.Node, src []byte) map[string]string {
	out := map[string]string{}
	walkAll(body, func(n *sitter.Node) {
		if n.Type() != "match_expression" {
			return
		}
		armsBlock := n.ChildByFieldName("body")
		if armsBlock == nil {
			return
		}
		for i := 0; i < int(armsBlock.NamedChildCount()); i++ {
			arm := armsBlock.NamedChild(i)
			if arm.Type() != "match_arm" {
				continue
			}
			patNode := arm.ChildByFieldName("pattern")
			valNode := arm.ChildByFieldName("value")
			if patNode == nil || valNode == nil {
				continue
			}
			pattern := patNode.Content(src)
			variant := pattern
			if idx := strings.IndexAny(variant, "({"); idx >= 0 {
				variant = variant[:idx]
			}
			if idx := strings.LastIndex(variant, "::"); idx >= 0 {
				variant = variant[idx+2:]
			}
			variant = strings.TrimSpace(variant)

			valText := valNode.Content(src)
			target := valText
			if idx := strings.Index(target, "("); idx >= 0 {
				target = target[:idx]
			}
			target = strings.TrimSpace(target)
			if variant != "" && target != "" {
				out[variant] = target
			}
		}
	})
	return out
}

// resolveNativeDispatch attaches accumulated dispatch-variant aliases to
// their target instructions once every program has been lifted. The
// pending store is keyed by handler name alone and is not cleared, so every
// instruction with that name receives the aliases.
func resolveNativeDispatch(g *factgraph.Graph) {
	for _, inst := range g.Instructions() {
		if aliases := g.DispatchAliasesFor(inst.Name); len(aliases) > 0 {
			inst.DispatchAliases = append(inst.DispatchAliases, aliases...)
		}
	}
}

// unpackCallRe matches "<Something>::unpack(" / "try_from_slice(" style
// account deserialization call sites (§4.2 native path: "account
// information is recovered from Account::unpack/try_from_slice call sites
// and their surrounding context").
var unpackCallRe = regexp.MustCompile(`([a-z_][a-zA-Z0-9_]*)\s*=\s*[A-Za-z0-9_:]*(?:unpack|unpack_unchecked|try_from_slice)\s*\(`)

// extractNativeAccountRefs synthesizes lightweight Account nodes for
// identifiers bound from account-deserialization call sites, since native
// programs rarely declare an Accounts struct. These are best-effort and
// only populate Name/InstructionID; wrapper/constraint fields stay zero.
func extractNativeAccountRefs(body string, instID factgraph.StableId, g *factgraph.Graph) {
	for _, m := range unpackCallRe.FindAllStringSubmatch(body, -1) {
		name := m[1]
		accID := factgraph.AccountID(instID, name)
		g.AddAccount(&factgraph.Account{
			ID:            accID,
			Name:          name,
			InstructionID: instID,
			Wrapper:       factgraph.WrapperAccountInfo,
		})
		if inst, ok := g.Instruction(instID); ok {
			inst.AccountIDs = append(inst.AccountIDs, accID)
		}
	}
}
