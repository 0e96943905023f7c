// Package detectors implements the Class Detectors (C5): focused,
// higher-confidence scanners that run alongside the Candidate Generator
// for vulnerability classes that need more context than a single sink or
// constraint (oracle staleness, native-program ownership, state read back
// after an unvalidated CPI). Detector output shares the generator's
// VulnCandidate shape but lives in a disjoint ID range so the two stages
// can be merged without collision.
package detectors

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/solaudit/sentry/factgraph"
	"github.com/solaudit/sentry/generator"
)

const maxPerProgram = 5

// oracleStaleRe, oracleConfidenceRe and oracleSanityRe are the three regex
// families the oracle detector checks for near an oracle_read sink. A missing
// confidence band lowers the detector's confidence from 0.82 to 0.65; a
// missing staleness check only changes severity (CRITICAL when the
// confidence band is missing too), and a missing price-sanity bound only
// adds to the reason text.
var (
	oracleStaleRe      = regexp.MustCompile(`(?i)(timestamp|stale|max_age|slot_diff|last_update|published_time)`)
	oracleConfidenceRe = regexp.MustCompile(`(?i)(confidence|deviation|twap|conf\b)`)
	oracleSanityRe     = regexp.MustCompile(`(?i)(price\s*>\s*0|price\s*!=\s*0|require!\([^)]*price)`)
)

// RunAll executes every class detector over g and returns the merged,
// ID-renumbered candidate list (disjoint from generator.Generate's
// "cand-" prefix).
func RunAll(g *factgraph.Graph) []generator.VulnCandidate {
	var all []generator.VulnCandidate
	all = append(all, oracleValidation(g)...)
	all = append(all, nativeMissingOwner(g)...)
	all = append(all, stalePostCPI(g)...)

	deduped := generator.Dedup(all)
	generator.Sort(deduped)
	for i := range deduped {
		deduped[i].ID = fmt.Sprintf("det-%04d", i+1)
	}
	return deduped
}

// oracleValidation refines the generator's baseline oracle_validation
// candidate with a three-signal confidence score (staleness, confidence/
// deviation band, price-sanity), capped at 5 findings per program so a
// single bad oracle-reading helper doesn't flood the report.
func oracleValidation(g *factgraph.Graph) []generator.VulnCandidate {
	counted := map[factgraph.StableId]int{}
	var out []generator.VulnCandidate

	for _, sink := range g.Sinks() {
		if sink.Kind != factgraph.SinkOracleRead {
			continue
		}
		inst, ok := g.Instruction(sink.InstructionID)
		if !ok {
			continue
		}
		if counted[inst.ProgramID] >= maxPerProgram {
			continue
		}

		body := inst.BodyExcerpt
		hasStale := oracleStaleRe.MatchString(body)
		hasConfidence := oracleConfidenceRe.MatchString(body)
		hasSanity := oracleSanityRe.MatchString(body)

		if hasStale && hasConfidence && hasSanity {
			continue
		}

		conf := 0.82
		missing := []string{}
		if !hasStale {
			missing = append(missing, "staleness check")
		}
		if !hasConfidence {
			missing = append(missing, "confidence/deviation band")
			conf = 0.65
		}
		if !hasSanity {
			missing = append(missing, "price-sanity bound")
		}

		sev := factgraph.SeverityHigh
		if !hasStale && !hasConfidence {
			sev = factgraph.SeverityCritical
		}

		fp := generator.Fingerprint("oracle_validation", inst.Name, sink.Span.File, sink.Span.StartLine, sink.InvolvedAccounts)
		out = append(out, generator.VulnCandidate{
			VulnClass:        "oracle_validation",
			Severity:         sev,
			Confidence:       conf,
			Instruction:      inst.Name,
			InstructionID:    inst.ID,
			Span:             sink.Span,
			InvolvedAccounts: generator.InvolvedFromNames(g, inst.AccountsTypeName, sink.InvolvedAccounts),
			Reason:           "oracle read missing: " + strings.Join(missing, ", "),
			SinkID:           sink.ID,
			Fingerprint:      fp,
			Excerpt:          sink.Excerpt,
			FromDetector:     true,
		})
		counted[inst.ProgramID]++
	}
	return out
}

// nativeMissingOwner targets native (non-Anchor) programs: for instructions
// with no more than 5 deserialized account references, it widens its search
// from a tight +/-15-line window around each reference out to the full
// instruction body before concluding an owner check is truly absent.
func nativeMissingOwner(g *factgraph.Graph) []generator.VulnCandidate {
	var out []generator.VulnCandidate
	for _, prog := range g.Programs() {
		if prog.Framework != factgraph.FrameworkNative {
			continue
		}
		for _, inst := range g.InstructionsOf(prog.ID) {
			accounts := g.AccountsOf(inst.ID)
			if len(accounts) == 0 || len(accounts) > maxPerProgram {
				continue
			}
			bodyLines := strings.Split(inst.BodyExcerpt, "\n")
			seen := map[string]bool{}
			for _, a := range accounts {
				if seen[a.Name] {
					continue
				}
				seen[a.Name] = true
				if g.HasOwnerValidation(a.ID) {
					continue
				}
				if ownerCheckNear(bodyLines, a.Name, 15) {
					continue
				}
				if strings.Contains(inst.BodyExcerpt, a.Name+".owner") {
					continue
				}
				fp := generator.Fingerprint("missing_owner", inst.Name, a.Span.File, a.Span.StartLine, []string{a.Name})
				out = append(out, generator.VulnCandidate{
					VulnClass:        "missing_owner",
					Severity:         factgraph.SeverityHigh,
					Confidence:       0.72,
					Instruction:      inst.Name,
					InstructionID:    inst.ID,
					Span:             a.Span,
					InvolvedAccounts: generator.InvolvedFromNames(g, inst.AccountsTypeName, []string{a.Name}),
					Reason:           "native account " + a.Name + " deserialized with no owner check in window or full body",
					Fingerprint:      fp,
					Excerpt:          inst.BodyExcerpt,
					FromDetector:     true,
				})
			}
		}
	}
	return out
}

func ownerCheckNear(lines []string, fieldName string, window int) bool {
	for i, line := range lines {
		if !strings.Contains(line, fieldName) {
			continue
		}
		lo, hi := i-window, i+window+1
		if lo < 0 {
			lo = 0
		}
		if hi > len(lines) {
			hi = len(lines)
		}
		slab := strings.Join(lines[lo:hi], "\n")
		if strings.Contains(slab, fieldName+".owner") || strings.Contains(slab, "check_owner") {
			return true
		}
	}
	return false
}

// stalePostCPI flags an instruction where an account is read again within
// 30 lines after an unvalidated CPI call, without a preceding reload() —
// the account's in-memory state may be stale relative to what the CPI's
// target program actually wrote.
func stalePostCPI(g *factgraph.Graph) []generator.VulnCandidate {
	var out []generator.VulnCandidate
	for _, inst := range g.Instructions() {
		cpis := g.CpisOf(inst.ID)
		if len(cpis) == 0 {
			continue
		}
		bodyLines := strings.Split(inst.BodyExcerpt, "\n")
		bodyStart := inst.Span.StartLine

		emitted := false
		for _, cpi := range cpis {
			if cpi.ProgramValidated {
				continue
			}
			cpiLine := cpi.Span.StartLine - bodyStart
			if cpiLine < 0 || cpiLine >= len(bodyLines) {
				continue
			}
			hi := cpiLine + 31
			if hi > len(bodyLines) {
				hi = len(bodyLines)
			}
			after := strings.Join(bodyLines[cpiLine+1:hi], "\n")
			if after == "" {
				continue
			}
			if strings.Contains(after, ".reload()") {
				continue
			}
			accessesState := false
			for _, a := range g.AccountsOf(inst.ID) {
				if strings.Contains(after, a.Name+".") {
					accessesState = true
					break
				}
			}
			if !accessesState || emitted {
				continue
			}
			emitted = true

			fp := generator.Fingerprint("stale_post_cpi", inst.Name, cpi.Span.File, cpi.Span.StartLine, []string{cpi.TargetProgram})
			out = append(out, generator.VulnCandidate{
				VulnClass:        "stale_post_cpi",
				Severity:         factgraph.SeverityMedium,
				Confidence:       0.68,
				Instruction:      inst.Name,
				InstructionID:    inst.ID,
				Span:             cpi.Span,
				InvolvedAccounts: nil,
				Reason:           "account state read within 30 lines after an unvalidated CPI with no reload()",
				SinkID:           "",
				Fingerprint:      fp,
				Excerpt:          inst.BodyExcerpt,
				FromDetector:     true,
			})
		}
	}
	return out
}

// NativeInstructionAliases exposes the dispatch-alias mapping the parser
// already attached to each native Instruction (handler function name ->
// lowercase match-arm variant names), for the scorer's instruction-identity matching and
// the Grade Filter's instructionAliases field.
func NativeInstructionAliases(g *factgraph.Graph) map[string][]string {
	out := map[string][]string{}
	for _, inst := range g.Instructions() {
		if len(inst.DispatchAliases) == 0 {
			continue
		}
		out[inst.Name] = append(out[inst.Name], inst.DispatchAliases...)
	}
	return out
}
