package generator

import (
	"strings"

	"github.com/solaudit/sentry/factgraph"
)

// scanMissingSignerInstructionLevel catches instructions that reach a
// dangerous sink (per factgraph.DangerousSinks) where NOT ONE account on the
// whole instruction carries a signer check, independent of whether the
// sink's own neighborhood resolved an authority-named field. This is a
// coarser net than the per-sink scan in sinks.go and fires at the
// instruction span rather than the sink span.
func scanMissingSignerInstructionLevel(g *factgraph.Graph) []VulnCandidate {
	var out []VulnCandidate
	for _, inst := range g.Instructions() {
		dangerous := false
		for _, sid := range inst.SinkIDs {
			if s, ok := g.Sink(sid); ok && factgraph.DangerousSinks[s.Kind] {
				dangerous = true
				break
			}
		}
		if !dangerous {
			continue
		}
		accounts := g.AccountsOf(inst.ID)
		anySigner := false
		for _, a := range accounts {
			if g.IsSigner(a.ID) {
				anySigner = true
				break
			}
		}
		if anySigner {
			continue
		}
		names := make([]string, 0, len(accounts))
		for _, a := range accounts {
			names = append(names, a.Name)
		}
		fp := fingerprint("missing_signer", inst.Name, inst.Span.File, inst.Span.StartLine, names)
		out = append(out, VulnCandidate{
			VulnClass:        "missing_signer",
			Severity:         factgraph.SeverityCritical,
			Confidence:       0.9,
			Instruction:      inst.Name,
			InstructionID:    inst.ID,
			Span:             inst.Span,
			InvolvedAccounts: involvedFromNames(g, inst.AccountsTypeName, names),
			Reason:           "no account in the instruction carries a signer check despite a dangerous sink",
			Fingerprint:      fp,
			Excerpt:          inst.BodyExcerpt,
		})
	}
	return out
}

// scanMissingOwner flags UncheckedAccount/AccountInfo fields that carry
// neither an owner/address constraint nor a body-level owner check, per
// §4.4's "Authority check present" heuristic applied to ownership instead
// of signing.
func scanMissingOwner(g *factgraph.Graph) []VulnCandidate {
	var out []VulnCandidate
	for _, inst := range g.Instructions() {
		for _, a := range g.AccountsOf(inst.ID) {
			if a.Wrapper != factgraph.WrapperUncheckedAccount && a.Wrapper != factgraph.WrapperAccountInfo {
				continue
			}
			if g.HasOwnerValidation(a.ID) {
				continue
			}
			if strings.Contains(inst.BodyExcerpt, a.Name+".owner") {
				continue
			}
			fp := fingerprint("missing_owner", inst.Name, a.Span.File, a.Span.StartLine, []string{a.Name})
			out = append(out, VulnCandidate{
				VulnClass:        "missing_owner",
				Severity:         factgraph.SeverityHigh,
				Confidence:       0.55,
				Instruction:      inst.Name,
				InstructionID:    inst.ID,
				Span:             a.Span,
				InvolvedAccounts: involvedFromNames(g, inst.AccountsTypeName, []string{a.Name}),
				Reason:           "account " + a.Name + " is an unchecked/raw AccountInfo with no owner or address constraint",
				Fingerprint:      fp,
				Excerpt:          inst.BodyExcerpt,
			})
		}
	}
	return out
}

// scanReinit flags init_if_needed fields in a struct carrying no has_one
// constraint anywhere, so a second call to the instruction can re-seed the
// account's state and take over an existing authority.
func scanReinit(g *factgraph.Graph) []VulnCandidate {
	var out []VulnCandidate
	for _, inst := range g.Instructions() {
		accounts := g.AccountsOf(inst.ID)
		structHasOne := false
		for _, a := range accounts {
			for _, c := range a.Constraints {
				if c.Kind == factgraph.ConstraintHasOne {
					structHasOne = true
				}
			}
		}
		if structHasOne {
			continue
		}
		for _, a := range accounts {
			initIfNeeded := false
			for _, c := range a.Constraints {
				if c.Kind == factgraph.ConstraintInitIfNeeded {
					initIfNeeded = true
				}
			}
			if !initIfNeeded {
				continue
			}
			fp := fingerprint("reinit_attack", inst.Name, a.Span.File, a.Span.StartLine, []string{a.Name})
			out = append(out, VulnCandidate{
				VulnClass:        "reinit_attack",
				Severity:         factgraph.SeverityHigh,
				Confidence:       0.55,
				Instruction:      inst.Name,
				InstructionID:    inst.ID,
				Span:             a.Span,
				InvolvedAccounts: involvedFromNames(g, inst.AccountsTypeName, []string{a.Name}),
				Reason:           "init_if_needed account " + a.Name + " has no has_one anywhere in its struct to block re-initialization by a new authority",
				Fingerprint:      fp,
				Excerpt:          inst.BodyExcerpt,
			})
		}
	}
	return out
}

// scanPDADerivation flags PDA derivations with an attacker-controlled seed
// and/or a user-provided (unverified) bump, per §4.2's BumpSource taxonomy.
func scanPDADerivation(g *factgraph.Graph) []VulnCandidate {
	var out []VulnCandidate
	for _, p := range g.PDAs() {
		inst, ok := g.Instruction(p.InstructionID)
		if !ok {
			continue
		}
		attackerSeed := false
		var seedExprs []string
		for _, s := range p.Seeds {
			seedExprs = append(seedExprs, s.Expr)
			if s.AttackerControlled {
				attackerSeed = true
			}
		}
		userBump := p.BumpSource == factgraph.BumpUserProvided
		if !attackerSeed && !userBump {
			continue
		}
		sev := factgraph.SeverityHigh
		conf := 0.5
		if attackerSeed && userBump {
			sev = factgraph.SeverityCritical
			conf = 0.75
		} else if userBump {
			conf = 0.6
		}
		fp := fingerprint("pda_derivation", inst.Name, p.Span.File, p.Span.StartLine, seedExprs)
		out = append(out, VulnCandidate{
			VulnClass:        "pda_derivation",
			Severity:         sev,
			Confidence:       conf,
			Instruction:      inst.Name,
			InstructionID:    inst.ID,
			Span:             p.Span,
			InvolvedAccounts: nil,
			Reason:           "PDA derivation uses an attacker-controlled seed and/or an unverified user-provided bump",
			Fingerprint:      fp,
			Excerpt:          strings.Join(seedExprs, ", "),
		})
	}
	return out
}

// financialSinkRoots marks identifiers whose overflow has direct monetary
// consequence, for the integer_overflow severity split.
var financialSinkRoots = []string{"lamports", "balance", "supply", "reserve", "amount", "price", "fee", "rate"}

// scanIntegerOverflow flags unchecked arithmetic over a financial-root
// identifier, per §4.2's ArithmeticOp extraction.
func scanIntegerOverflow(g *factgraph.Graph) []VulnCandidate {
	var out []VulnCandidate
	for _, op := range g.ArithmeticOps() {
		if op.Checked {
			continue
		}
		inst, ok := g.Instruction(op.InstructionID)
		if !ok {
			continue
		}
		sev := factgraph.SeverityMedium
		conf := 0.45
		if containsAny(strings.ToLower(op.Identifier), financialSinkRoots) {
			sev = factgraph.SeverityHigh
			conf = 0.55
		}
		fp := fingerprint("integer_overflow", inst.Name, op.Span.File, op.Span.StartLine, []string{op.Identifier})
		out = append(out, VulnCandidate{
			VulnClass:        "integer_overflow",
			Severity:         sev,
			Confidence:       conf,
			Instruction:      inst.Name,
			InstructionID:    inst.ID,
			Span:             op.Span,
			InvolvedAccounts: nil,
			Reason:           "unchecked " + op.Operator + " over " + op.Identifier + " has no checked_/saturating_/overflowing_/try_ guard",
			Fingerprint:      fp,
			Excerpt:          op.Identifier + " " + op.Operator + " ...",
		})
	}
	return out
}
