package parser

import (
	"strings"

	"github.com/solaudit/sentry/factgraph"
)

// resolveAccountsAcrossFiles implements the two-pass cross-file reference
// scheme from §9: every #[derive(Accounts)] struct was already indexed by
// name during lift (RegisterStructField); this pass binds each instruction
// to its struct by copying the indexed fields onto the instruction's own
// StableId-rooted Account nodes and records any PDA constraints found on
// them. Instructions whose AccountsTypeName didn't resolve (re-exports,
// generics) keep a null accountsTypeName and are left out of structural
// checks that require it, per §9.
func resolveAccountsAcrossFiles(g *factgraph.Graph) {
	for _, inst := range g.Instructions() {
		if inst.AccountsTypeName == "" {
			continue
		}
		fields := g.FieldsOfStruct(inst.AccountsTypeName)
		if len(fields) == 0 {
			inst.AccountsTypeName = ""
			continue
		}
		pdaOrdinal := 0
		for _, f := range fields {
			accID := factgraph.AccountID(inst.ID, f.Name)
			acc := &factgraph.Account{
				ID:            accID,
				Name:          f.Name,
				InstructionID: inst.ID,
				Wrapper:       f.Wrapper,
				InnerType:     f.InnerType,
				RawType:       f.RawType,
				IsSigner:      f.IsSigner,
				IsMut:         f.IsMut,
				Constraints:   f.Constraints,
				Span:          f.Span,
			}

			for _, c := range acc.Constraints {
				if c.Kind == factgraph.ConstraintSeeds {
					pdaID := factgraph.PDAID(inst.ID, pdaOrdinal)
					pdaOrdinal++
					seeds := make([]factgraph.SeedExpr, 0, len(c.Seeds))
					for _, s := range c.Seeds {
						seeds = append(seeds, factgraph.SeedExpr{
							Expr:               s,
							AttackerControlled: isAttackerControlledSeed(s),
						})
					}
					bumpSource := factgraph.BumpCanonical
					for _, c2 := range acc.Constraints {
						if c2.Kind == factgraph.ConstraintBump && c2.BumpExpr != "" {
							bumpSource = classifyBumpSource(c2.BumpExpr)
						}
					}
					g.AddPDA(&factgraph.PDA{
						ID:            pdaID,
						InstructionID: inst.ID,
						Seeds:         seeds,
						BumpSource:    bumpSource,
						Source:        factgraph.PDASourceConstraint,
						Span:          acc.Span,
					})
					acc.LinkedPDAID = pdaID
				}
			}

			g.AddAccount(acc)
			g.IndexField(inst.AccountsTypeName, f.Name, acc)
			inst.AccountIDs = append(inst.AccountIDs, accID)
			if acc.IsSigner {
				inst.RequiredSigners = append(inst.RequiredSigners, f.Name)
			}
		}
	}
}

// isAttackerControlledSeed flags a seed expression as attacker-controlled
// when it references a non-program-derived runtime input: a function
// parameter or an account field other than a constant literal or program
// id, and not itself wrapped by a signer check textually.
func isAttackerControlledSeed(seedExpr string) bool {
	trimmed := strings.TrimSpace(seedExpr)
	if strings.HasPrefix(trimmed, "b\"") || strings.HasPrefix(trimmed, "\"") {
		return false // literal byte-string seed
	}
	if strings.Contains(trimmed, "signer") || strings.Contains(trimmed, "authority.key()") {
		return false
	}
	return true
}

func classifyBumpSource(bumpExpr string) factgraph.BumpSource {
	trimmed := strings.TrimSpace(bumpExpr)
	if trimmed == "" {
		return factgraph.BumpCanonical
	}
	if strings.Contains(trimmed, "bump") && (strings.Contains(trimmed, ".") || strings.Contains(trimmed, "[")) {
		return factgraph.BumpStored
	}
	return factgraph.BumpUserProvided
}
