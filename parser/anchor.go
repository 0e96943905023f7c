package parser

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/solaudit/sentry/factgraph"
)

// liftAnchorFile implements the Anchor path (§4.2): for each #[program]
// module, each pub fn becomes an Instruction; the first Context<T> parameter
// names an accounts struct resolved by a later pass; for each
// #[derive(Accounts)] struct, every field is lifted into an Account with its
// wrapper type, inner type, signer/mut flags, and constraints.
func liftAnchorFile(root *sitter.Node, src []byte, file string, g *factgraph.Graph, programID factgraph.StableId) {
	walkAll(root, func(n *sitter.Node) {
		switch n.Type() {
		case "mod_item":
			attrs := precedingAttributes(n, src)
			if hasAttrNamed(attrs, "#[program]") {
				liftProgramModule(n, src, file, g, programID)
			}
		case "struct_item":
			attrs := precedingAttributes(n, src)
			if hasAttrNamed(attrs, "#[derive(Accounts)]") {
				liftAccountsStruct(n, src, file, g)
			}
		}
	})
}

// liftProgramModule walks the body of a #[program] mod, lifting each pub fn
// into an Instruction.
func liftProgramModule(modNode *sitter.Node, src []byte, file string, g *factgraph.Graph, programID factgraph.StableId) {
	body := modNode.ChildByFieldName("body")
	if body == nil {
		return
	}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		item := body.NamedChild(i)
		if item.Type() != "function_item" {
			continue
		}
		liftInstructionFunction(item, src, file, g, programID)
	}
}

// liftInstructionFunction lifts one Anchor instruction function. programID
// is the owning program's StableId assigned by the caller; if empty the
// file path is used as a stand-in program key so later binding can still
// locate it.
func liftInstructionFunction(fn *sitter.Node, src []byte, file string, g *factgraph.Graph, programID factgraph.StableId) {
	nameNode := fn.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nameNode.Content(src)

	vis := "gated"
	for i := 0; i < int(fn.ChildCount()); i++ {
		c := fn.Child(i)
		if c.Type() == "visibility_modifier" {
			vis = "public"
			break
		}
	}

	var params []string
	accountsTypeName := ""
	paramsNode := fn.ChildByFieldName("parameters")
	if paramsNode != nil {
		for i := 0; i < int(paramsNode.NamedChildCount()); i++ {
			p := paramsNode.NamedChild(i)
			text := p.Content(src)
			params = append(params, text)
			if accountsTypeName == "" {
				if t := extractContextType(text); t != "" {
					accountsTypeName = t
				}
			}
		}
	}

	instID := factgraph.InstructionID(file, name)
	inst := &factgraph.Instruction{
		ID:               instID,
		Name:             name,
		ProgramID:        programID,
		AccountsTypeName: accountsTypeName,
		Visibility:       vis,
		Parameters:       params,
		Span:             spanOf(fn, file),
	}

	body := fn.ChildByFieldName("body")
	var bodyText string
	if body != nil {
		bodyText = body.Content(src)
		inst.BodyExcerpt = excerpt(bodyText, 40)
		inst.CalledFunctions = extractCalledFunctions(body, src)
		extractSinksAndGuards(body, src, file, instID, bodyText, g)
		extractPDAs(body, src, file, instID, g)
		extractCPIs(body, src, file, instID, g)
		extractArithmetic(body, src, file, instID, g)
	}

	g.AddInstruction(inst)
}

// extractContextType returns T from a "ctx: Context<T>" parameter, or "".
func extractContextType(paramText string) string {
	idx := strings.Index(paramText, "Context<")
	if idx < 0 {
		return ""
	}
	rest := paramText[idx+len("Context<"):]
	end := strings.IndexAny(rest, ">,")
	if end < 0 {
		return strings.TrimSpace(rest)
	}
	return strings.TrimSpace(rest[:end])
}

// liftAccountsStruct lifts one #[derive(Accounts)] struct's fields into
// Account nodes. Because the owning instruction may not yet be known (the
// struct can be declared before or after the instruction function, and in
// another file), fields are indexed under the struct's own name and bound
// to an instruction by the later resolution pass.
func liftAccountsStruct(structNode *sitter.Node, src []byte, file string, g *factgraph.Graph) {
	nameNode := structNode.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	structName := nameNode.Content(src)

	body := structNode.ChildByFieldName("body")
	if body == nil {
		return // zero-field struct, or non-struct body: no candidate emitted (boundary behavior)
	}

	placeholderInstID := factgraph.StableId(file + "::accounts::" + structName)

	for i := 0; i < int(body.NamedChildCount()); i++ {
		field := body.NamedChild(i)
		if field.Type() != "field_declaration" {
			continue
		}
		fNameNode := field.ChildByFieldName("name")
		fTypeNode := field.ChildByFieldName("type")
		if fNameNode == nil || fTypeNode == nil {
			continue
		}
		fieldName := fNameNode.Content(src)
		rawType := fTypeNode.Content(src)
		wrapper, inner := classifyWrapper(rawType)

		attrs := precedingAttributes(field, src)
		var constraints []factgraph.Constraint
		isMut := false
		isSigner := wrapper == factgraph.WrapperSigner
		if attrText, ok := attrContaining(attrs, "#[account("); ok {
			constraints = parseAccountConstraints(attrText, spanOf(field, file))
			for _, c := range constraints {
				if c.Kind == factgraph.ConstraintMut {
					isMut = true
				}
				if c.Kind == factgraph.ConstraintSigner {
					isSigner = true
				}
			}
		}

		accID := factgraph.AccountID(placeholderInstID, fieldName)
		acc := &factgraph.Account{
			ID:            accID,
			Name:          fieldName,
			InstructionID: placeholderInstID,
			Wrapper:       wrapper,
			InnerType:     inner,
			RawType:       rawType,
			IsSigner:      isSigner,
			IsMut:         isMut,
			Constraints:   constraints,
			Span:          spanOf(field, file),
		}
		g.RegisterStructField(structName, acc)
	}
}

// classifyWrapper splits a raw Anchor field type like "Account<'info,
// TokenAccount>" into its wrapper and inner type.
func classifyWrapper(rawType string) (factgraph.AccountWrapper, string) {
	known := []factgraph.AccountWrapper{
		factgraph.WrapperSigner, factgraph.WrapperAccount, factgraph.WrapperProgram,
		factgraph.WrapperUncheckedAccount, factgraph.WrapperAccountInfo, factgraph.WrapperInterfaceAccount,
	}
	for _, w := range known {
		if strings.HasPrefix(rawType, string(w)) {
			inner := ""
			if lt := strings.Index(rawType, "<"); lt >= 0 {
				inside := rawType[lt+1 : max(0, strings.LastIndex(rawType, ">"))]
				parts := strings.Split(inside, ",")
				if len(parts) > 1 {
					inner = strings.TrimSpace(parts[len(parts)-1])
				}
			}
			return w, inner
		}
	}
	return factgraph.WrapperUnknown, ""
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// excerpt bounds a body text to at most maxLines lines, per §3 Instruction
// "body excerpt (bounded)".
func excerpt(body string, maxLines int) string {
	lines := strings.Split(body, "\n")
	if len(lines) <= maxLines {
		return body
	}
	return strings.Join(lines[:maxLines], "\n") + "\n..."
}

func extractCalledFunctions(body *sitter.Node, src []byte) []string {
	var calls []string
	seen := map[string]bool{}
	walkAll(body, func(n *sitter.Node) {
		if n.Type() != "call_expression" {
			return
		}
		fn := n.ChildByFieldName("function")
		if fn == nil {
			return
		}
		name := fn.Content(src)
		if !seen[name] {
			seen[name] = true
			calls = append(calls, name)
		}
	})
	return calls
}
