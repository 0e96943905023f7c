// Package report implements the Report Builder (C8): assembling each
// ActionableFinding's five-part evidence chain and the four graph
// artifacts, rolling per-program summaries, and rendering the result to
// JSON, SARIF 2.1.0, plain text, or Markdown.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/solaudit/sentry/factgraph"
	"github.com/solaudit/sentry/gradefilter"
)

// EvidenceChain is the five-part proof a finding must carry before it is
// reportable: the claim itself, the sensitive sink it reaches, how an
// attacker controls the path to that sink, a proof the expected guard is
// absent, and a concrete bypass walkthrough.
type EvidenceChain struct {
	Claim             string
	SensitiveSink     string
	AttackerControl   string
	MissingGuardProof string
	BypassPath        string
}

// Finding wraps a graded ActionableFinding with its rendered evidence
// chain, the unit the formatters below consume.
type Finding struct {
	gradefilter.ActionableFinding
	Evidence EvidenceChain
}

// ProgramSummary rolls one program's findings into a ship/no-ship signal.
type ProgramSummary struct {
	ProgramName string
	Total       int
	BySeverity  map[factgraph.Severity]int
	ShipReady   bool
}

// GraphArtifact is one of the four rendered relationship graphs, encoded
// as Graphviz DOT text so any downstream tool can render it without this
// package depending on a rendering library.
type GraphArtifact struct {
	Kind string // "authority-flow" | "token-flow" | "state-machine" | "pda-graph"
	DOT  string
}

// Report is the Report Builder's full output: graded findings with
// evidence, the four graph artifacts, and per-program summaries.
type Report struct {
	Target    string
	Findings  []Finding
	Artifacts []GraphArtifact
	Summaries []ProgramSummary
}

// Build assembles a Report from a scan's graph and graded findings.
func Build(g *factgraph.Graph, findings []gradefilter.ActionableFinding, target string) *Report {
	r := &Report{Target: target}

	for _, f := range findings {
		r.Findings = append(r.Findings, Finding{
			ActionableFinding: f,
			Evidence:          buildEvidence(g, f),
		})
	}
	sort.SliceStable(r.Findings, func(i, j int) bool {
		return factgraph.SeverityWeight[r.Findings[i].Severity] > factgraph.SeverityWeight[r.Findings[j].Severity]
	})

	r.Artifacts = []GraphArtifact{
		authorityFlowGraph(g),
		tokenFlowGraph(g),
		stateMachineGraph(g),
		pdaGraph(g),
	}
	r.Summaries = buildSummaries(g, findings)

	return r
}

// buildEvidence fills the five-part chain for one finding from the graph
// context around its sink/instruction.
func buildEvidence(g *factgraph.Graph, f gradefilter.ActionableFinding) EvidenceChain {
	ec := EvidenceChain{
		Claim: fmt.Sprintf("%s in instruction %s (%s)", f.VulnClass, f.Instruction, f.Severity),
	}

	inst, ok := g.Instruction(f.InstructionID)
	if !ok {
		ec.SensitiveSink = "unresolved"
		return ec
	}

	var sinkKinds []string
	for _, sid := range inst.SinkIDs {
		if s, ok := g.Sink(sid); ok {
			sinkKinds = append(sinkKinds, string(s.Kind))
		}
	}
	if len(sinkKinds) > 0 {
		ec.SensitiveSink = strings.Join(sinkKinds, ", ")
	} else {
		ec.SensitiveSink = f.VulnClass
	}

	var names []string
	for _, ia := range f.InvolvedAccounts {
		names = append(names, ia.Name)
	}
	if len(names) > 0 {
		ec.AttackerControl = "caller-supplied account(s): " + strings.Join(names, ", ")
	} else {
		ec.AttackerControl = "caller-supplied instruction arguments"
	}

	ec.MissingGuardProof = f.Reason

	ec.BypassPath = fmt.Sprintf(
		"invoke %s with %s substituted for an attacker-controlled account; no guard in %s blocks execution before the %s sink",
		f.Instruction, firstOr(names, "the unvalidated account"), f.Instruction, f.VulnClass)

	return ec
}

func firstOr(xs []string, fallback string) string {
	if len(xs) == 0 {
		return fallback
	}
	return xs[0]
}

// authorityFlowGraph renders signer/authority accounts and the
// instructions that consume them.
func authorityFlowGraph(g *factgraph.Graph) GraphArtifact {
	var b strings.Builder
	b.WriteString("digraph authority_flow {\n")
	for _, inst := range g.Instructions() {
		for _, a := range g.AccountsOf(inst.ID) {
			if g.IsSigner(a.ID) {
				fmt.Fprintf(&b, "  %q -> %q [label=\"signs\"];\n", a.Name, inst.Name)
			}
		}
	}
	b.WriteString("}\n")
	return GraphArtifact{Kind: "authority-flow", DOT: b.String()}
}

// tokenFlowGraph renders token-sink edges between instructions and the
// token accounts they move value through.
func tokenFlowGraph(g *factgraph.Graph) GraphArtifact {
	var b strings.Builder
	b.WriteString("digraph token_flow {\n")
	for _, s := range g.Sinks() {
		switch s.Kind {
		case factgraph.SinkTokenTransfer, factgraph.SinkTokenMintTo, factgraph.SinkTokenBurn:
			inst, ok := g.Instruction(s.InstructionID)
			if !ok {
				continue
			}
			for _, name := range s.InvolvedAccounts {
				fmt.Fprintf(&b, "  %q -> %q [label=%q];\n", inst.Name, name, s.Kind)
			}
		}
	}
	b.WriteString("}\n")
	return GraphArtifact{Kind: "token-flow", DOT: b.String()}
}

// stateMachineGraph renders one edge per native dispatch alias, from the
// match-arm variant name to the handler instruction it dispatches to.
func stateMachineGraph(g *factgraph.Graph) GraphArtifact {
	var b strings.Builder
	b.WriteString("digraph state_machine {\n")
	for _, inst := range g.Instructions() {
		for _, alias := range inst.DispatchAliases {
			fmt.Fprintf(&b, "  %q -> %q [label=\"dispatch\"];\n", alias, inst.Name)
		}
	}
	b.WriteString("}\n")
	return GraphArtifact{Kind: "state-machine", DOT: b.String()}
}

// pdaGraph renders each PDA's seed accounts to the instruction that
// derives it.
func pdaGraph(g *factgraph.Graph) GraphArtifact {
	var b strings.Builder
	b.WriteString("digraph pda_graph {\n")
	for _, p := range g.PDAs() {
		inst, ok := g.Instruction(p.InstructionID)
		if !ok {
			continue
		}
		for _, seed := range p.Seeds {
			label := seed.Expr
			if seed.AttackerControlled {
				label += " (attacker-controlled)"
			}
			fmt.Fprintf(&b, "  %q -> %q [label=%q];\n", label, inst.Name, string(p.BumpSource))
		}
	}
	b.WriteString("}\n")
	return GraphArtifact{Kind: "pda-graph", DOT: b.String()}
}

// buildSummaries groups findings by program and computes shipReady: a
// program ships only when it carries no CRITICAL or HIGH finding.
func buildSummaries(g *factgraph.Graph, findings []gradefilter.ActionableFinding) []ProgramSummary {
	instToProgram := map[factgraph.StableId]string{}
	for _, prog := range g.Programs() {
		for _, inst := range g.InstructionsOf(prog.ID) {
			instToProgram[inst.ID] = prog.Name
		}
	}

	byProgram := map[string]*ProgramSummary{}
	order := []string{}
	for _, prog := range g.Programs() {
		byProgram[prog.Name] = &ProgramSummary{ProgramName: prog.Name, BySeverity: map[factgraph.Severity]int{}, ShipReady: true}
		order = append(order, prog.Name)
	}

	for _, f := range findings {
		name, ok := instToProgram[f.InstructionID]
		if !ok {
			continue
		}
		s := byProgram[name]
		s.Total++
		s.BySeverity[f.Severity]++
		if f.Severity == factgraph.SeverityCritical || f.Severity == factgraph.SeverityHigh {
			s.ShipReady = false
		}
	}

	out := make([]ProgramSummary, 0, len(order))
	for _, name := range order {
		out = append(out, *byProgram[name])
	}
	return out
}
