package cmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/solaudit/sentry/analytics"
	"github.com/solaudit/sentry/auditlog"
	"github.com/solaudit/sentry/report"
	"github.com/solaudit/sentry/runner"
	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Audit a Solana/Anchor program for vulnerabilities",
	Long: `Scan a Solana/Anchor program's Rust source, build its fact graph, and
render actionable findings with evidence.

Examples:
  # Scan a repo and print the text report
  sentry scan --repo /path/to/program

  # JSON output to a file, fail the build on critical/high findings
  sentry scan --repo . --output json --output-file findings.json --fail-on critical,high

  # SARIF for CI/CD integration
  sentry scan --repo . --output sarif --output-file findings.sarif`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		repoPath, _ := cmd.Flags().GetString("repo")
		programDir, _ := cmd.Flags().GetString("program-dir")
		mode, _ := cmd.Flags().GetString("mode")
		outputFormat, _ := cmd.Flags().GetString("output")
		outputFile, _ := cmd.Flags().GetString("output-file")
		failOnStr, _ := cmd.Flags().GetString("fail-on")
		verbose, _ := cmd.Flags().GetBool("verbose")
		debug, _ := cmd.Flags().GetBool("debug")
		noBanner, _ := cmd.Flags().GetBool("no-banner")
		llmConfirm, _ := cmd.Flags().GetBool("llm-confirm")
		pocRunner, _ := cmd.Flags().GetString("poc-runner")

		if repoPath == "" {
			return fmt.Errorf("--repo flag is required")
		}

		var confirmCollaborator runner.ConfirmCollaborator
		if llmConfirm {
			if _, err := exec.LookPath(runner.ConfirmCollaboratorBinary()); err != nil {
				return fmt.Errorf("--llm-confirm requires %q on PATH: %w", runner.ConfirmCollaboratorBinary(), err)
			}
			confirmCollaborator = runner.NewExecConfirmCollaborator()
		}

		var pocCollaborator runner.PoCCollaborator
		if pocRunner != "" {
			if _, err := exec.LookPath(pocRunner); err != nil {
				return fmt.Errorf("--poc-runner %q not executable: %w", pocRunner, err)
			}
			pocCollaborator = runner.ExecPoCRunner{BinaryPath: pocRunner}
		}

		var runMode runner.Mode
		switch mode {
		case "", "scan":
			runMode = runner.ModeScan
		case "prove":
			runMode = runner.ModeProve
		case "fix-plan":
			runMode = runner.ModeFixPlan
		default:
			return fmt.Errorf("--mode must be 'scan', 'prove', or 'fix-plan'")
		}

		switch outputFormat {
		case "", "text", "json", "sarif", "markdown":
		default:
			return fmt.Errorf("--output must be 'text', 'json', 'sarif', or 'markdown'")
		}

		failOn := parseFailOn(failOnStr)
		if err := validateSeverities(failOn); err != nil {
			return err
		}

		verbosity := auditlog.VerbosityDefault
		if debug {
			verbosity = auditlog.VerbosityDebug
		} else if verbose {
			verbosity = auditlog.VerbosityVerbose
		}
		logger := auditlog.NewLogger(verbosity)

		if auditlog.ShouldShowBanner(auditlog.IsTTY(logger.GetWriter()), noBanner) {
			auditlog.PrintBanner(logger.GetWriter(), Version, auditlog.DefaultBannerOptions())
		}

		analytics.ReportEventWithProperties(analytics.ScanStarted, map[string]interface{}{
			"mode":          string(runMode),
			"output_format": outputFormat,
		})

		onProgress := logger.StageBar()
		result, err := runner.RunScan(context.Background(), runner.Options{
			RepoPath:       repoPath,
			ProgramDirHint: programDir,
			Mode:           runMode,
			OnProgress:     onProgress,
			Confirm:        confirmCollaborator,
			PoC:            pocCollaborator,
		})
		if err != nil {
			analytics.ReportEventWithProperties(analytics.ScanFailed, map[string]interface{}{
				"error_type": "scan",
			})
			return fmt.Errorf("scan failed: %w", err)
		}

		for _, w := range result.Warnings {
			logger.Warning("%s", w)
		}

		out := os.Stdout
		if outputFile != "" {
			f, err := os.Create(outputFile)
			if err != nil {
				return fmt.Errorf("cannot create output file: %w", err)
			}
			defer f.Close()
			out = f
		}

		if err := writeReport(out, outputFormat, result.Report); err != nil {
			return fmt.Errorf("failed to render report: %w", err)
		}

		analytics.ReportEventWithProperties(analytics.ScanCompleted, map[string]interface{}{
			"finding_count": len(result.Findings),
		})

		code := determineExitCode(result.Findings, failOn, false)
		if code != exitSuccess {
			os.Exit(int(code))
		}
		return nil
	},
}

func writeReport(out *os.File, format string, rpt *report.Report) error {
	switch format {
	case "json":
		return report.WriteJSON(out, rpt)
	case "sarif":
		return report.WriteSARIF(out, rpt)
	case "markdown":
		return report.WriteMarkdown(out, rpt)
	default:
		return report.WriteText(out, rpt)
	}
}

func init() {
	scanCmd.Flags().String("repo", "", "Path to the repo to scan (required)")
	scanCmd.Flags().String("program-dir", "", "Scan only this program subdirectory instead of auto-detecting")
	scanCmd.Flags().String("mode", "scan", "Scan depth: scan, prove, or fix-plan")
	scanCmd.Flags().String("output", "text", "Output format: text, json, sarif, or markdown")
	scanCmd.Flags().String("output-file", "", "Write the report to this file instead of stdout")
	scanCmd.Flags().String("fail-on", "", "Comma-separated severities that cause a non-zero exit")
	scanCmd.Flags().Bool("verbose", false, "Verbose output")
	scanCmd.Flags().Bool("debug", false, "Debug output")
	scanCmd.Flags().Bool("llm-confirm", false, "Confirm candidates with an external LLM collaborator (prove/fix-plan modes)")
	scanCmd.Flags().String("poc-runner", "", "Path to an executable that attempts proof-of-concept execution (fix-plan mode)")
	rootCmd.AddCommand(scanCmd)
}
