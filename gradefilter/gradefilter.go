// Package gradefilter implements the Trust Grade Filter (C6): it assigns
// each VulnCandidate a trust grade from its supporting evidence (PoC
// verdict, LLM confirmation, structural signals), caps severity by that
// grade, drops anything that lands below MEDIUM after the cap, and
// converts survivors into ActionableFindings — the report-ready unit every
// downstream consumer (Report Builder, Scorer) works with.
package gradefilter

import (
	"github.com/solaudit/sentry/detectors"
	"github.com/solaudit/sentry/factgraph"
	"github.com/solaudit/sentry/generator"
)

// Grade is the trust tier assigned to a candidate based on how direct its
// supporting evidence is.
type Grade string

const (
	GradeA Grade = "A" // proven: a PoC execution record landed
	GradeB Grade = "B" // verified reasoning: LLM-confirmed >=80% plus structural evidence
	GradeC Grade = "C" // suspicious: structural evidence, or LLM-uncertain >=50%
	GradeD Grade = "D" // informational: none of the above
)

// severityCap is the maximum severity a grade is allowed to report at,
// per §4.6: A and B can reach CRITICAL, C caps at HIGH, D caps at MEDIUM.
var severityCap = map[Grade]factgraph.Severity{
	GradeA: factgraph.SeverityCritical,
	GradeB: factgraph.SeverityCritical,
	GradeC: factgraph.SeverityHigh,
	GradeD: factgraph.SeverityMedium,
}

// ActionableFinding is the grade-filtered, report-ready unit.
type ActionableFinding struct {
	ID                 string
	VulnClass          string
	Severity           factgraph.Severity
	Grade              Grade
	Confidence         float64
	Instruction        string
	InstructionID      factgraph.StableId
	InstructionAliases []string
	Span               factgraph.AstSpan
	InvolvedAccounts   []generator.InvolvedAccount
	Reason             string
	Excerpt            string
	Fingerprint        string
}

// hasStructuralEvidence implements §4.6 grade C's "structural evidence"
// test: at least one of named involved accounts, a linked sink, an
// analyzed accounts struct, a narrow (<=20 line) span, or detector
// provenance. A zero-value span (no line information at all) never counts.
func hasStructuralEvidence(g *factgraph.Graph, c generator.VulnCandidate) bool {
	if len(c.InvolvedAccounts) > 0 {
		return true
	}
	if c.SinkID != "" {
		return true
	}
	if inst, ok := g.Instruction(c.InstructionID); ok && inst.AccountsTypeName != "" {
		return true
	}
	if c.Span.StartLine > 0 && c.Span.EndLine-c.Span.StartLine <= 20 {
		return true
	}
	if c.FromDetector {
		return true
	}
	return false
}

// assignGrade implements §4.6's evidence-based grading. A — a PoC execution
// record with a proven verdict. B — an LLM confirmation with a confirmed
// verdict at >=80% confidence, plus concrete structural evidence. C —
// structural evidence alone, or an LLM uncertain verdict at >=50%
// confidence. D — none of the above.
func assignGrade(g *factgraph.Graph, c generator.VulnCandidate) Grade {
	if c.PoCVerdict == generator.PoCProven {
		return GradeA
	}
	structural := hasStructuralEvidence(g, c)
	if c.ConfirmVerdict == generator.ConfirmConfirmed && c.ConfirmConfidence >= 0.8 && structural {
		return GradeB
	}
	if structural {
		return GradeC
	}
	if c.ConfirmVerdict == generator.ConfirmUncertain && c.ConfirmConfidence >= 0.5 {
		return GradeC
	}
	return GradeD
}

func capSeverity(sev factgraph.Severity, grade Grade) factgraph.Severity {
	cap := severityCap[grade]
	if sev.AtLeast(cap) {
		// sev is as severe as, or more severe than, what this grade may
		// report at; clamp down to the cap.
		return cap
	}
	return sev
}

// Filter converts generator+detector candidates into graded, capped
// ActionableFindings. Candidates below MEDIUM severity after capping are
// dropped outright, per §4.6. Native instructions get their dispatch-alias
// list attached so the scorer can match findings against either the
// handler name or any match-arm variant that routes to it.
func Filter(g *factgraph.Graph, candidates []generator.VulnCandidate) []ActionableFinding {
	aliases := detectors.NativeInstructionAliases(g)

	out := make([]ActionableFinding, 0, len(candidates))
	for _, c := range candidates {
		grade := assignGrade(g, c)
		sev := capSeverity(c.Severity, grade)
		if !sev.AtLeast(factgraph.SeverityMedium) {
			continue
		}
		out = append(out, ActionableFinding{
			ID:                 c.ID,
			VulnClass:          c.VulnClass,
			Severity:           sev,
			Grade:              grade,
			Confidence:         c.Confidence,
			Instruction:        c.Instruction,
			InstructionID:      c.InstructionID,
			InstructionAliases: aliases[c.Instruction],
			Span:               c.Span,
			InvolvedAccounts:   c.InvolvedAccounts,
			Reason:             c.Reason,
			Excerpt:            c.Excerpt,
			Fingerprint:        c.Fingerprint,
		})
	}
	return out
}
