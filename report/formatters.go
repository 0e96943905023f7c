package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	sarif "github.com/owenrumney/go-sarif/v2/sarif"

	"github.com/solaudit/sentry/factgraph"
)

// jsonOutput is the Finding JSON schema's top-level shape, grounded on the
// teacher's JSONOutput/JSONResult split between tool/scan metadata and a
// flat result list.
type jsonOutput struct {
	Tool    jsonTool     `json:"tool"`
	Target  string       `json:"target"`
	Results []jsonResult `json:"results"`
	Summary []jsonRepoSummary `json:"summary"`
}

type jsonTool struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type jsonResult struct {
	ID            string          `json:"id"`
	VulnClass     string          `json:"vuln_class"`
	Severity      string          `json:"severity"`
	Grade         string          `json:"grade"`
	Confidence    float64         `json:"confidence"`
	Instruction   string          `json:"instruction"`
	Aliases       []string        `json:"instruction_aliases,omitempty"`
	File          string          `json:"file"`
	StartLine     int             `json:"start_line"`
	EndLine       int             `json:"end_line"`
	Evidence      jsonEvidence    `json:"evidence"`
}

type jsonEvidence struct {
	Claim             string `json:"claim"`
	SensitiveSink     string `json:"sensitive_sink"`
	AttackerControl   string `json:"attacker_control"`
	MissingGuardProof string `json:"missing_guard_proof"`
	BypassPath        string `json:"bypass_path"`
}

type jsonRepoSummary struct {
	Program    string                     `json:"program"`
	Total      int                        `json:"total"`
	BySeverity map[factgraph.Severity]int `json:"by_severity"`
	ShipReady  bool                       `json:"ship_ready"`
}

// WriteJSON renders r as the Finding JSON schema.
func WriteJSON(w io.Writer, r *Report) error {
	out := jsonOutput{
		Tool:   jsonTool{Name: "sentry", Version: "0.1.0"},
		Target: r.Target,
	}
	for _, f := range r.Findings {
		out.Results = append(out.Results, jsonResult{
			ID:          f.ID,
			VulnClass:   f.VulnClass,
			Severity:    string(f.Severity),
			Grade:       string(f.Grade),
			Confidence:  f.Confidence,
			Instruction: f.Instruction,
			Aliases:     f.InstructionAliases,
			File:        f.Span.File,
			StartLine:   f.Span.StartLine,
			EndLine:     f.Span.EndLine,
			Evidence: jsonEvidence{
				Claim:             f.Evidence.Claim,
				SensitiveSink:     f.Evidence.SensitiveSink,
				AttackerControl:   f.Evidence.AttackerControl,
				MissingGuardProof: f.Evidence.MissingGuardProof,
				BypassPath:        f.Evidence.BypassPath,
			},
		})
	}
	for _, s := range r.Summaries {
		out.Summary = append(out.Summary, jsonRepoSummary{
			Program:    s.ProgramName,
			Total:      s.Total,
			BySeverity: s.BySeverity,
			ShipReady:  s.ShipReady,
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// WriteSARIF renders r as a SARIF 2.1.0 log: one rule per vuln class, one
// result per actionable finding, with grade/evidence packed into result
// properties.
func WriteSARIF(w io.Writer, r *Report) error {
	log, err := sarif.New(sarif.Version210)
	if err != nil {
		return err
	}
	run := sarif.NewRunWithInformationURI("sentry", "https://github.com/solaudit/sentry")

	seen := map[string]bool{}
	for _, f := range r.Findings {
		if seen[f.VulnClass] {
			continue
		}
		seen[f.VulnClass] = true
		run.AddRule(f.VulnClass).
			WithName(f.VulnClass).
			WithDescription(f.Evidence.Claim).
			WithDefaultConfiguration(sarif.NewReportingConfiguration().WithLevel(severityToLevel(f.Severity)))
	}

	for _, f := range r.Findings {
		result := run.CreateResultForRule(f.VulnClass).
			WithMessage(sarif.NewTextMessage(f.Evidence.BypassPath))
		region := sarif.NewRegion().WithStartLine(f.Span.StartLine)
		if f.Span.EndLine > f.Span.StartLine {
			region.WithEndLine(f.Span.EndLine)
		}
		location := sarif.NewLocation().WithPhysicalLocation(
			sarif.NewPhysicalLocation().
				WithArtifactLocation(sarif.NewArtifactLocation().WithUri(f.Span.File)).
				WithRegion(region),
		)
		result.AddLocation(location)
		result.WithProperties(map[string]interface{}{
			"grade":               string(f.Grade),
			"confidence":          f.Confidence,
			"instruction":         f.Instruction,
			"sensitive_sink":      f.Evidence.SensitiveSink,
			"attacker_control":    f.Evidence.AttackerControl,
			"missing_guard_proof": f.Evidence.MissingGuardProof,
		})
	}

	log.AddRun(run)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(log)
}

func severityToLevel(sev factgraph.Severity) string {
	switch sev {
	case factgraph.SeverityCritical, factgraph.SeverityHigh:
		return "error"
	case factgraph.SeverityMedium:
		return "warning"
	default:
		return "note"
	}
}

var severityOrder = []factgraph.Severity{
	factgraph.SeverityCritical, factgraph.SeverityHigh, factgraph.SeverityMedium,
	factgraph.SeverityLow, factgraph.SeverityInfo,
}

// WriteText renders r as human-readable terminal text, severity-grouped,
// with full evidence for CRITICAL/HIGH and an abbreviated line otherwise —
// mirroring the teacher's detailed-vs-abbreviated split.
func WriteText(w io.Writer, r *Report) error {
	if len(r.Findings) == 0 {
		fmt.Fprintln(w, "sentry security scan")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "No security issues found.")
		return nil
	}

	fmt.Fprintln(w, "sentry security scan")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Results:")
	fmt.Fprintln(w)

	grouped := map[factgraph.Severity][]Finding{}
	for _, f := range r.Findings {
		grouped[f.Severity] = append(grouped[f.Severity], f)
	}

	for _, sev := range severityOrder {
		findings := grouped[sev]
		if len(findings) == 0 {
			continue
		}
		fmt.Fprintf(w, "%s Issues (%d):\n\n", sev, len(findings))
		detailed := sev == factgraph.SeverityCritical || sev == factgraph.SeverityHigh
		for _, f := range findings {
			if detailed {
				fmt.Fprintf(w, "  [%s] grade %s %s: %s\n", f.Severity, f.Grade, f.ID, f.VulnClass)
				fmt.Fprintf(w, "    instruction: %s (%s:%d)\n", f.Instruction, f.Span.File, f.Span.StartLine)
				fmt.Fprintf(w, "    claim:   %s\n", f.Evidence.Claim)
				fmt.Fprintf(w, "    sink:    %s\n", f.Evidence.SensitiveSink)
				fmt.Fprintf(w, "    control: %s\n", f.Evidence.AttackerControl)
				fmt.Fprintf(w, "    missing: %s\n", f.Evidence.MissingGuardProof)
				fmt.Fprintf(w, "    bypass:  %s\n\n", f.Evidence.BypassPath)
			} else {
				fmt.Fprintf(w, "  [%s] %s: %s (%s:%d)\n", f.Severity, f.ID, f.VulnClass, f.Span.File, f.Span.StartLine)
			}
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "Program summary:")
	for _, s := range r.Summaries {
		ready := "NO"
		if s.ShipReady {
			ready = "yes"
		}
		fmt.Fprintf(w, "  %s: %d findings, ship ready: %s\n", s.ProgramName, s.Total, ready)
	}
	return nil
}

// WriteMarkdown renders r to Markdown, structurally mirroring WriteText's
// severity-grouped sections and evidence blocks.
func WriteMarkdown(w io.Writer, r *Report) error {
	fmt.Fprintf(w, "# sentry security scan\n\n**Target:** %s\n\n", r.Target)

	if len(r.Findings) == 0 {
		fmt.Fprintln(w, "No security issues found.")
		return nil
	}

	grouped := map[factgraph.Severity][]Finding{}
	for _, f := range r.Findings {
		grouped[f.Severity] = append(grouped[f.Severity], f)
	}

	for _, sev := range severityOrder {
		findings := grouped[sev]
		if len(findings) == 0 {
			continue
		}
		fmt.Fprintf(w, "## %s (%d)\n\n", sev, len(findings))
		for _, f := range findings {
			fmt.Fprintf(w, "### %s: %s\n\n", f.ID, f.VulnClass)
			fmt.Fprintf(w, "- **Instruction:** `%s` (%s:%d)\n", f.Instruction, f.Span.File, f.Span.StartLine)
			fmt.Fprintf(w, "- **Grade:** %s (confidence %.2f)\n", f.Grade, f.Confidence)
			fmt.Fprintf(w, "- **Claim:** %s\n", f.Evidence.Claim)
			fmt.Fprintf(w, "- **Sensitive sink:** %s\n", f.Evidence.SensitiveSink)
			fmt.Fprintf(w, "- **Attacker control:** %s\n", f.Evidence.AttackerControl)
			fmt.Fprintf(w, "- **Missing guard:** %s\n", f.Evidence.MissingGuardProof)
			fmt.Fprintf(w, "- **Bypass path:** %s\n\n", f.Evidence.BypassPath)
		}
	}

	fmt.Fprintln(w, "## Program summary")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "| Program | Findings | Ship ready |")
	fmt.Fprintln(w, "|---|---|---|")
	for _, s := range r.Summaries {
		ready := "no"
		if s.ShipReady {
			ready = "yes"
		}
		fmt.Fprintf(w, "| %s | %d | %s |\n", s.ProgramName, s.Total, ready)
	}

	var artifactNames []string
	for _, a := range r.Artifacts {
		artifactNames = append(artifactNames, a.Kind)
	}
	fmt.Fprintf(w, "\nGraph artifacts generated: %s\n", strings.Join(artifactNames, ", "))
	return nil
}
