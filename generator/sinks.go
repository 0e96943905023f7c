package generator

import (
	"strings"

	"github.com/solaudit/sentry/factgraph"
)

var signingTransferSinks = map[factgraph.SinkKind]bool{
	factgraph.SinkTokenTransfer:  true,
	factgraph.SinkSystemTransfer: true,
	factgraph.SinkTokenMintTo:    true,
	factgraph.SinkTokenBurn:      true,
}

var staleRe = []string{"timestamp", "stale", "max_age", "slot_diff", "last_update"}
var confidenceRe = []string{"confidence", "deviation", "twap"}
var sanityRe = []string{"price > 0", "price>0"}

// scanSinks implements the §4.4 sink-first scanner table.
func scanSinks(g *factgraph.Graph) []VulnCandidate {
	var out []VulnCandidate
	for _, sink := range g.Sinks() {
		inst, ok := g.Instruction(sink.InstructionID)
		if !ok {
			continue
		}
		n, _ := g.SinkNeighborhood(sink.ID)

		switch {
		case signingTransferSinks[sink.Kind]:
			if c, ok := missingSignerForSink(g, inst, sink, n); ok {
				out = append(out, c)
			}
			if sink.Kind == factgraph.SinkTokenTransfer || sink.Kind == factgraph.SinkTokenMintTo || sink.Kind == factgraph.SinkTokenBurn {
				out = append(out, tokenAuthorityMismatch(g, inst, sink, n)...)
			}
		case sink.Kind == factgraph.SinkTokenSetAuthority:
			if c, ok := setAuthorityMissingSigner(g, inst, sink, n); ok {
				out = append(out, c)
			}
		case sink.Kind == factgraph.SinkLamportMutation:
			if c, ok := manualCloseRevive(g, inst, sink, n); ok {
				out = append(out, c)
			}
		case sink.Kind == factgraph.SinkOracleRead:
			if c, ok := oracleValidationBaseline(g, inst, sink, n); ok {
				out = append(out, c)
			}
		case sink.Kind == factgraph.SinkInvoke || sink.Kind == factgraph.SinkInvokeSigned:
			if c, ok := arbitraryCPI(g, inst, sink); ok {
				out = append(out, c)
			}
		}
	}
	return out
}

// hasAuthoritySigner reports whether the sink's involved accounts include
// a signer-checked authority-named field, or a PDA-signing CPI context
// (invoke_signed / CpiContext::new_with_signer) protects the sink.
func hasAuthoritySigner(g *factgraph.Graph, inst *factgraph.Instruction, n *factgraph.SinkNeighborhood) (hasAuthorityField, signerOK bool) {
	if n == nil {
		return false, false
	}
	for _, a := range n.Accounts {
		if isAuthorityNamed(a) {
			hasAuthorityField = true
			if g.IsSigner(a.ID) || authorityCheckPresent(g, a, inst.BodyExcerpt) {
				signerOK = true
			}
		}
	}
	if !signerOK {
		if strings.Contains(inst.BodyExcerpt, "invoke_signed") || strings.Contains(inst.BodyExcerpt, "CpiContext::new_with_signer") {
			signerOK = true
		}
	}
	return hasAuthorityField, signerOK
}

func missingSignerForSink(g *factgraph.Graph, inst *factgraph.Instruction, sink *factgraph.Sink, n *factgraph.SinkNeighborhood) (VulnCandidate, bool) {
	hasAuth, signerOK := hasAuthoritySigner(g, inst, n)
	if signerOK {
		return VulnCandidate{}, false
	}
	sev := factgraph.SeverityHigh
	conf := 0.6
	if hasAuth {
		sev = factgraph.SeverityCritical
		conf = 0.75
	}
	names := sink.InvolvedAccounts
	fp := fingerprint("missing_signer", inst.Name, sink.Span.File, sink.Span.StartLine, names)
	return VulnCandidate{
		VulnClass:        "missing_signer",
		Severity:         sev,
		Confidence:       conf,
		Instruction:      inst.Name,
		InstructionID:    inst.ID,
		Span:             sink.Span,
		InvolvedAccounts: involvedFromNames(g, inst.AccountsTypeName, names),
		Reason:           "sink " + string(sink.Kind) + " reachable without a signer-checked authority or PDA signing context",
		SinkID:           sink.ID,
		Fingerprint:      fp,
		Excerpt:          sink.Excerpt,
	}, true
}

func tokenAuthorityMismatch(g *factgraph.Graph, inst *factgraph.Instruction, sink *factgraph.Sink, n *factgraph.SinkNeighborhood) []VulnCandidate {
	if n == nil {
		return nil
	}
	var out []VulnCandidate
	for _, a := range n.Accounts {
		if a.InnerType != "TokenAccount" {
			continue
		}
		hasAuthConstraint := false
		for _, c := range a.Constraints {
			if c.Kind == factgraph.ConstraintTokenAuthority {
				hasAuthConstraint = true
			}
		}
		if hasAuthConstraint {
			continue
		}
		fp := fingerprint("token_authority_mismatch", inst.Name, sink.Span.File, sink.Span.StartLine, []string{a.Name})
		out = append(out, VulnCandidate{
			VulnClass:        "token_authority_mismatch",
			Severity:         factgraph.SeverityHigh,
			Confidence:       0.6,
			Instruction:      inst.Name,
			InstructionID:    inst.ID,
			Span:             sink.Span,
			InvolvedAccounts: involvedFromNames(g, inst.AccountsTypeName, []string{a.Name}),
			Reason:           "TokenAccount " + a.Name + " lacks a token::authority constraint at a token sink",
			SinkID:           sink.ID,
			Fingerprint:      fp,
			Excerpt:          sink.Excerpt,
		})
	}
	return out
}

func setAuthorityMissingSigner(g *factgraph.Graph, inst *factgraph.Instruction, sink *factgraph.Sink, n *factgraph.SinkNeighborhood) (VulnCandidate, bool) {
	_, signerOK := hasAuthoritySigner(g, inst, n)
	if signerOK {
		return VulnCandidate{}, false
	}
	fp := fingerprint("missing_signer", inst.Name, sink.Span.File, sink.Span.StartLine, sink.InvolvedAccounts)
	return VulnCandidate{
		VulnClass:        "missing_signer",
		Severity:         factgraph.SeverityCritical,
		Confidence:       0.8,
		Instruction:      inst.Name,
		InstructionID:    inst.ID,
		Span:             sink.Span,
		InvolvedAccounts: involvedFromNames(g, inst.AccountsTypeName, sink.InvolvedAccounts),
		Reason:           "set_authority sink reachable without a signer check on the current authority",
		SinkID:           sink.ID,
		Fingerprint:      fp,
		Excerpt:          sink.Excerpt,
	}, true
}

func manualCloseRevive(g *factgraph.Graph, inst *factgraph.Instruction, sink *factgraph.Sink, n *factgraph.SinkNeighborhood) (VulnCandidate, bool) {
	_, signerOK := hasAuthoritySigner(g, inst, n)
	if signerOK {
		return VulnCandidate{}, false
	}
	fp := fingerprint("close_revive", inst.Name, sink.Span.File, sink.Span.StartLine, sink.InvolvedAccounts)
	return VulnCandidate{
		VulnClass:        "close_revive",
		Severity:         factgraph.SeverityCritical,
		Confidence:       0.7,
		Instruction:      inst.Name,
		InstructionID:    inst.ID,
		Span:             sink.Span,
		InvolvedAccounts: involvedFromNames(g, inst.AccountsTypeName, sink.InvolvedAccounts),
		Reason:           "manual lamport-drain close reachable without a signer check on the authority",
		SinkID:           sink.ID,
		Fingerprint:      fp,
		Excerpt:          sink.Excerpt,
	}, true
}

func oracleValidationBaseline(g *factgraph.Graph, inst *factgraph.Instruction, sink *factgraph.Sink, n *factgraph.SinkNeighborhood) (VulnCandidate, bool) {
	body := inst.BodyExcerpt
	hasOwnerCheck := false
	if n != nil {
		for _, a := range n.Accounts {
			if g.HasOwnerValidation(a.ID) {
				hasOwnerCheck = true
			}
		}
	}
	hasStale := containsAny(body, staleRe)
	if hasOwnerCheck && hasStale {
		return VulnCandidate{}, false
	}
	sev := factgraph.SeverityHigh
	conf := 0.6
	if !hasOwnerCheck {
		sev = factgraph.SeverityCritical
		conf = 0.7
	}
	fp := fingerprint("oracle_validation", inst.Name, sink.Span.File, sink.Span.StartLine, sink.InvolvedAccounts)
	return VulnCandidate{
		VulnClass:        "oracle_validation",
		Severity:         sev,
		Confidence:       conf,
		Instruction:      inst.Name,
		InstructionID:    inst.ID,
		Span:             sink.Span,
		InvolvedAccounts: involvedFromNames(g, inst.AccountsTypeName, sink.InvolvedAccounts),
		Reason:           "oracle read lacks owner validation and/or a staleness check",
		SinkID:           sink.ID,
		Fingerprint:      fp,
		Excerpt:          sink.Excerpt,
	}, true
}

func arbitraryCPI(g *factgraph.Graph, inst *factgraph.Instruction, sink *factgraph.Sink) (VulnCandidate, bool) {
	for _, cpi := range g.CpisOf(inst.ID) {
		if cpi.Span.StartLine == sink.Span.StartLine && !cpi.ProgramValidated {
			fp := fingerprint("arbitrary_cpi", inst.Name, sink.Span.File, sink.Span.StartLine, []string{cpi.TargetProgram})
			return VulnCandidate{
				VulnClass:        "arbitrary_cpi",
				Severity:         factgraph.SeverityCritical,
				Confidence:       0.75,
				Instruction:      inst.Name,
				InstructionID:    inst.ID,
				Span:             sink.Span,
				InvolvedAccounts: involvedFromNames(g, inst.AccountsTypeName, []string{cpi.TargetProgram}),
				Reason:           "invoke target program is not validated against a typed Program<T> or a constant key check",
				SinkID:           sink.ID,
				Fingerprint:      fp,
				Excerpt:          sink.Excerpt,
			}, true
		}
	}
	return VulnCandidate{}, false
}

func containsAny(text string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}
