// Package generator implements the Candidate Generator (C4): sink-first
// structural queries over the Fact Graph that emit deduplicated,
// severity-sorted VulnCandidates. It is purely deterministic and has no
// side effects.
package generator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/solaudit/sentry/factgraph"
)

// VulnCandidate is the generator's (and every detector's) output unit,
// per spec.md §3.
type VulnCandidate struct {
	ID               string
	VulnClass        string
	Severity         factgraph.Severity
	Confidence       float64
	Instruction      string // instruction name, for scorer matching
	InstructionID    factgraph.StableId
	Span             factgraph.AstSpan
	InvolvedAccounts []InvolvedAccount
	Reason           string
	SinkID           factgraph.StableId // optional
	Fingerprint      string
	Excerpt          string

	// FromDetector marks a candidate produced by a Class Detector (C5)
	// rather than the sink-first/structural generator (C4) — one of the
	// Trust Grade Filter's grade-C structural evidence signals (§4.6).
	FromDetector bool

	// ConfirmVerdict/ConfirmConfidence/PoCVerdict are populated after
	// generation by the runner's optional ConfirmCollaborator/
	// PoCCollaborator (PROVE/FIXPLAN modes); zero-valued in SCAN mode.
	ConfirmVerdict    string // "", ConfirmConfirmed, ConfirmUncertain, ConfirmRejected
	ConfirmConfidence float64
	PoCVerdict        string // "", PoCProven, PoCDisproven, PoCError
}

// Confirmation/PoC verdict vocabulary, per spec.md §4.6.
const (
	ConfirmConfirmed = "confirmed"
	ConfirmUncertain = "uncertain"
	ConfirmRejected  = "rejected"

	PoCProven    = "proven"
	PoCDisproven = "disproven"
	PoCError     = "error"
)

// InvolvedAccount names an account and the constraint kinds found on it,
// per spec.md §3 VulnCandidate.involvedAccounts.
type InvolvedAccount struct {
	Name        string
	Constraints []string
}

var authorityNameRe = []string{"authority", "owner", "admin", "payer", "signer"}

func isAuthorityNamed(a *factgraph.Account) bool {
	if a == nil {
		return false
	}
	if a.Wrapper == factgraph.WrapperSigner {
		return true
	}
	lower := strings.ToLower(a.Name)
	for _, root := range authorityNameRe {
		if strings.Contains(lower, root) {
			return true
		}
	}
	return false
}

// authorityCheckPresent implements §4.4's "Authority check present"
// heuristic for a single account field.
func authorityCheckPresent(g *factgraph.Graph, a *factgraph.Account, body string) bool {
	for _, c := range a.Constraints {
		if c.Kind == factgraph.ConstraintHasOne {
			return true
		}
		if c.Kind == factgraph.ConstraintExpr && strings.Contains(c.Expr, a.Name+".key()") {
			return true
		}
	}
	if strings.Contains(body, a.Name+".key()") || strings.Contains(body, a.Name+".is_signer") {
		return true
	}
	return false
}

func fingerprint(class, instruction, file string, startLine int, accountNames []string) string {
	sorted := append([]string(nil), accountNames...)
	sort.Strings(sorted)
	return fmt.Sprintf("%s:%s:%s:%d:%s", class, instruction, file, startLine, strings.Join(sorted, ","))
}

// Fingerprint exposes fingerprint for detector packages (C5) that must emit
// VulnCandidates in the same dedup space as the generator.
func Fingerprint(class, instruction, file string, startLine int, accountNames []string) string {
	return fingerprint(class, instruction, file, startLine, accountNames)
}

// InvolvedFromNames exposes involvedFromNames for detector packages.
func InvolvedFromNames(g *factgraph.Graph, accountsTypeName string, names []string) []InvolvedAccount {
	return involvedFromNames(g, accountsTypeName, names)
}

func involvedFromNames(g *factgraph.Graph, accountsTypeName string, names []string) []InvolvedAccount {
	out := make([]InvolvedAccount, 0, len(names))
	for _, n := range names {
		ia := InvolvedAccount{Name: n}
		if a, ok := g.FindField(accountsTypeName, n); ok {
			for _, c := range a.Constraints {
				ia.Constraints = append(ia.Constraints, string(c.Kind))
			}
		}
		out = append(out, ia)
	}
	return out
}

// Generate produces the deduplicated, severity-sorted candidate list for
// the whole graph: sink-first scanners (§4.4 table) plus the structural
// scanners (missing_signer instruction-level, missing_owner, reinit,
// pda_derivation, integer_overflow).
func Generate(g *factgraph.Graph) []VulnCandidate {
	var all []VulnCandidate
	all = append(all, scanSinks(g)...)
	all = append(all, scanMissingSignerInstructionLevel(g)...)
	all = append(all, scanMissingOwner(g)...)
	all = append(all, scanReinit(g)...)
	all = append(all, scanPDADerivation(g)...)
	all = append(all, scanIntegerOverflow(g)...)

	deduped := Dedup(all)
	Sort(deduped)
	return Renumber(deduped)
}

// Dedup groups by fingerprint and keeps the highest-confidence candidate
// (invariant 3).
func Dedup(candidates []VulnCandidate) []VulnCandidate {
	best := map[string]VulnCandidate{}
	order := []string{}
	for _, c := range candidates {
		if existing, ok := best[c.Fingerprint]; !ok {
			best[c.Fingerprint] = c
			order = append(order, c.Fingerprint)
		} else if c.Confidence > existing.Confidence {
			best[c.Fingerprint] = c
		}
	}
	out := make([]VulnCandidate, 0, len(order))
	for _, fp := range order {
		out = append(out, best[fp])
	}
	return out
}

// Sort orders candidates by severityWeight x confidence, descending.
func Sort(candidates []VulnCandidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		wi := factgraph.SeverityWeight[candidates[i].Severity] * candidates[i].Confidence
		wj := factgraph.SeverityWeight[candidates[j].Severity] * candidates[j].Confidence
		return wi > wj
	})
}

// Renumber assigns fresh sequential IDs post-sort.
func Renumber(candidates []VulnCandidate) []VulnCandidate {
	for i := range candidates {
		candidates[i].ID = fmt.Sprintf("cand-%04d", i+1)
	}
	return candidates
}
