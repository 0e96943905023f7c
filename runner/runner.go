// Package runner implements the scan driver: ingest -> parse -> generate ->
// detect -> merge -> grade -> score/report, with a staged progress callback
// matching the teacher's progress-bar stage model.
package runner

import (
	"context"

	"github.com/solaudit/sentry/auditerr"
	"github.com/solaudit/sentry/detectors"
	"github.com/solaudit/sentry/factgraph"
	"github.com/solaudit/sentry/generator"
	"github.com/solaudit/sentry/gradefilter"
	"github.com/solaudit/sentry/ingest"
	"github.com/solaudit/sentry/parser"
	"github.com/solaudit/sentry/report"
)

// Mode selects how deep the scan runs: SCAN stops after grading, PROVE
// additionally runs the confirmation collaborator, and FIXPLAN runs both the
// confirmation and proof-of-concept collaborators, each only when configured.
type Mode string

const (
	ModeScan    Mode = "scan"
	ModeProve   Mode = "prove"
	ModeFixPlan Mode = "fix-plan"
)

// ProgressFunc receives (stageName, percentComplete) updates as the scan
// advances through its fixed stage budget.
type ProgressFunc func(stage string, percent int)

// Options configures one scan run.
type Options struct {
	RepoPath       string
	ProgramDirHint string
	Mode           Mode
	OnProgress     ProgressFunc
	Confirm        ConfirmCollaborator // optional, nil unless --llm-confirm
	PoC            PoCCollaborator     // optional, nil unless --poc-runner
}

// Result is the scan's full output: the populated graph (for callers that
// want to inspect it directly, e.g. the eval harness), the graded findings,
// and the rendered report.
type Result struct {
	Graph    *factgraph.Graph
	Findings []gradefilter.ActionableFinding
	Report   *report.Report
	Warnings []string
}

func emit(fn ProgressFunc, stage string, pct int) {
	if fn != nil {
		fn(stage, pct)
	}
}

// RunScan executes one full scan per spec.md §6's runScan entry point.
func RunScan(ctx context.Context, opts Options) (*Result, error) {
	emit(opts.OnProgress, "parse", 5)

	ingested, err := ingest.Ingest(opts.RepoPath, opts.ProgramDirHint)
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	emit(opts.OnProgress, "parse", 15)

	p := parser.New()
	programName := opts.ProgramDirHint
	if programName == "" {
		programName = opts.RepoPath
	}
	parseResult := p.Parse(programName, ingested.Files)
	g := parseResult.Graph

	var warnings []string
	for _, w := range ingested.Warnings {
		warnings = append(warnings, w.Error())
	}
	for _, w := range parseResult.Warnings {
		warnings = append(warnings, w.Error())
	}

	emit(opts.OnProgress, "build_graph", 30)

	if err := g.CheckInvariants(); err != nil {
		return nil, auditerr.NewGraphInvariantViolation("runner", opts.RepoPath, err.Error())
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	emit(opts.OnProgress, "candidates", 45)
	candidates := generator.Generate(g)

	emit(opts.OnProgress, "detectors", 55)
	detectorCandidates := detectors.RunAll(g)
	allCandidates := append(candidates, detectorCandidates...)
	allCandidates = generator.Dedup(allCandidates)
	generator.Sort(allCandidates)
	allCandidates = generator.Renumber(allCandidates)

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	if opts.Mode != ModeScan {
		emit(opts.OnProgress, "confirm", 60)
		allCandidates = runConfirmation(ctx, opts, allCandidates)
	}
	if opts.Mode == ModeFixPlan {
		emit(opts.OnProgress, "poc", 65)
		allCandidates = runPoC(ctx, opts, allCandidates)
	}
	emit(opts.OnProgress, "confirm", 70)

	emit(opts.OnProgress, "grade", 75)
	findings := gradefilter.Filter(g, allCandidates)
	emit(opts.OnProgress, "grade", 80)

	emit(opts.OnProgress, "report", 85)
	rpt := report.Build(g, findings, opts.RepoPath)
	emit(opts.OnProgress, "report", 100)

	return &Result{Graph: g, Findings: findings, Report: rpt, Warnings: warnings}, nil
}

// runConfirmation invokes the LLM confirmation collaborator if configured,
// recording its verdict/confidence onto each candidate for the Trust Grade
// Filter (§4.6) to consume; otherwise candidates pass through unchanged,
// per spec.md §6 "external collaborators are optional, never required for
// a SCAN-mode result". A rejected verdict drops the candidate outright; a
// confirmed or uncertain verdict (or a collaborator error) keeps it.
func runConfirmation(ctx context.Context, opts Options, candidates []generator.VulnCandidate) []generator.VulnCandidate {
	if opts.Confirm == nil {
		return candidates
	}
	out := make([]generator.VulnCandidate, 0, len(candidates))
	for _, c := range candidates {
		verdict, err := opts.Confirm.Confirm(ctx, c)
		if err != nil {
			out = append(out, c)
			continue
		}
		if verdict.Verdict == generator.ConfirmRejected {
			continue
		}
		c.ConfirmVerdict = verdict.Verdict
		c.ConfirmConfidence = verdict.Confidence
		out = append(out, c)
	}
	return out
}

// runPoC invokes the proof-of-concept execution collaborator if configured
// (FIXPLAN mode only), recording a proven/disproven verdict onto each
// candidate; a disproven PoC drops the candidate, a collaborator error
// leaves it untouched for grading on whatever evidence it already has.
func runPoC(ctx context.Context, opts Options, candidates []generator.VulnCandidate) []generator.VulnCandidate {
	if opts.PoC == nil {
		return candidates
	}
	out := make([]generator.VulnCandidate, 0, len(candidates))
	for _, c := range candidates {
		result, err := opts.PoC.Execute(ctx, c)
		if err != nil {
			out = append(out, c)
			continue
		}
		if result.Verdict == generator.PoCDisproven {
			continue
		}
		c.PoCVerdict = result.Verdict
		out = append(out, c)
	}
	return out
}
