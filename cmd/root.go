package cmd

import (
	"fmt"
	"os"

	"github.com/solaudit/sentry/analytics"
	"github.com/solaudit/sentry/auditlog"
	"github.com/spf13/cobra"
)

var (
	Version   = "0.1.0"
	GitCommit = "HEAD"
)

var rootCmd = &cobra.Command{
	Use:   "sentry",
	Short: "Static vulnerability audit engine for Solana/Anchor programs",
	Long: `sentry - static vulnerability audit engine for Solana/Anchor programs.

Parses Rust/Anchor program source into a fact graph of accounts, constraints,
sinks, PDAs and CPIs, generates vulnerability candidates against that graph,
grades them by trust level, and renders actionable findings with evidence.

Learn more: https://github.com/solaudit/sentry`,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		disableMetrics, _ := cmd.Flags().GetBool("disable-metrics")
		analytics.LoadEnvFile()
		analytics.Init(disableMetrics)
		analytics.SetVersion(Version)

		if cmd.Name() == "help" || (len(os.Args) == 1 || (len(os.Args) == 2 && (os.Args[1] == "--help" || os.Args[1] == "-h"))) {
			noBanner, _ := cmd.Flags().GetBool("no-banner")
			logger := auditlog.NewLogger(auditlog.VerbosityDefault)
			if auditlog.ShouldShowBanner(auditlog.IsTTY(logger.GetWriter()), noBanner) {
				auditlog.PrintBanner(logger.GetWriter(), Version, auditlog.DefaultBannerOptions())
			} else {
				fmt.Fprintf(os.Stderr, "sentry v%s\n\n", Version)
			}
		}
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().Bool("disable-metrics", false, "Disable metrics collection")
	rootCmd.PersistentFlags().Bool("no-banner", false, "Disable startup banner")
}
