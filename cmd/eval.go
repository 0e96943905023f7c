package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/solaudit/sentry/analytics"
	"github.com/solaudit/sentry/goldensuite"
	"github.com/solaudit/sentry/gradefilter"
	"github.com/solaudit/sentry/runner"
	"github.com/solaudit/sentry/scorer"
	"github.com/spf13/cobra"
)

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Run the golden-repo evaluation harness",
}

var evalRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Scan every golden repo in the suite and print aggregate precision/recall/F1",
	RunE: func(cmd *cobra.Command, _ []string) error {
		manifestPath, _ := cmd.Flags().GetString("manifest")
		cacheDir, _ := cmd.Flags().GetString("cache-dir")
		snapshotOut, _ := cmd.Flags().GetString("snapshot-out")

		analytics.ReportEvent(analytics.EvalRunStarted)

		suite, err := loadSuite(manifestPath, cacheDir)
		if err != nil {
			analytics.ReportEvent(analytics.EvalRunFailed)
			return err
		}

		findingsByRepo, err := scanSuite(suite)
		if err != nil {
			analytics.ReportEvent(analytics.EvalRunFailed)
			return err
		}

		result := scorer.ScoreSuite(suite, findingsByRepo)
		printSuiteReport(result)

		if snapshotOut != "" {
			if err := writeSnapshot(snapshotOut, result); err != nil {
				return err
			}
		}

		analytics.ReportEventWithProperties(analytics.EvalRunCompleted, map[string]interface{}{
			"repo_count": len(suite),
			"f1":         result.F1,
		})
		return nil
	},
}

var evalRunSingleCmd = &cobra.Command{
	Use:   "run-single",
	Short: "Scan one golden repo by ID and print its precision/recall/F1",
	RunE: func(cmd *cobra.Command, _ []string) error {
		manifestPath, _ := cmd.Flags().GetString("manifest")
		cacheDir, _ := cmd.Flags().GetString("cache-dir")
		repoID, _ := cmd.Flags().GetString("repo")
		if repoID == "" {
			return fmt.Errorf("--repo is required")
		}

		suite, err := loadSuite(manifestPath, cacheDir)
		if err != nil {
			return err
		}

		for _, repo := range suite {
			if repo.ID != repoID {
				continue
			}
			findings, err := scanRepo(repo)
			if err != nil {
				return err
			}
			result := scorer.ScoreRepo(repo, findings)
			printRepoReport(result)
			return nil
		}
		return fmt.Errorf("no golden repo with id %q in manifest", repoID)
	},
}

var evalFixturesCmd = &cobra.Command{
	Use:   "fixtures",
	Short: "List the fixture repos declared in the golden-suite manifest",
	RunE: func(cmd *cobra.Command, _ []string) error {
		manifestPath, _ := cmd.Flags().GetString("manifest")
		cacheDir, _ := cmd.Flags().GetString("cache-dir")
		suite, err := loadSuite(manifestPath, cacheDir)
		if err != nil {
			return err
		}
		for _, repo := range suite {
			fmt.Printf("%s\t%s\t%d expected findings\n", repo.ID, repo.RepoPath, len(repo.ExpectedFindings))
		}
		return nil
	},
}

var evalListCmd = &cobra.Command{
	Use:   "list",
	Short: "Alias for 'eval fixtures'",
	RunE:  evalFixturesCmd.RunE,
}

// snapshot is the on-disk shape written by --snapshot-out and read back by
// 'eval compare', capturing one run's suite-wide and per-repo metrics.
type snapshot struct {
	Precision float64            `json:"precision"`
	Recall    float64            `json:"recall"`
	F1        float64            `json:"f1"`
	ByRepo    map[string]float64 `json:"by_repo_f1"`
}

var evalCompareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare two eval-run snapshots and fail on regression",
	Long: `Compares a baseline snapshot against a current snapshot and exits
non-zero if the suite-wide precision, recall, or F1 dropped by 5 percentage
points or more, or if any single repo's F1 dropped by 10 points or more.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		baselinePath, _ := cmd.Flags().GetString("baseline")
		currentPath, _ := cmd.Flags().GetString("current")
		if baselinePath == "" || currentPath == "" {
			return fmt.Errorf("--baseline and --current are both required")
		}

		baseline, err := readSnapshot(baselinePath)
		if err != nil {
			return err
		}
		current, err := readSnapshot(currentPath)
		if err != nil {
			return err
		}

		analytics.ReportEvent(analytics.EvalCompareRun)

		regressed := false
		if baseline.Precision-current.Precision >= 0.05 {
			fmt.Printf("REGRESSION: suite precision dropped %.1fpp (%.1f%% -> %.1f%%)\n",
				(baseline.Precision-current.Precision)*100, baseline.Precision*100, current.Precision*100)
			regressed = true
		}
		if baseline.Recall-current.Recall >= 0.05 {
			fmt.Printf("REGRESSION: suite recall dropped %.1fpp (%.1f%% -> %.1f%%)\n",
				(baseline.Recall-current.Recall)*100, baseline.Recall*100, current.Recall*100)
			regressed = true
		}
		if baseline.F1-current.F1 >= 0.05 {
			fmt.Printf("REGRESSION: suite F1 dropped %.1fpp (%.1f%% -> %.1f%%)\n",
				(baseline.F1-current.F1)*100, baseline.F1*100, current.F1*100)
			regressed = true
		}
		for repoID, baseF1 := range baseline.ByRepo {
			curF1, ok := current.ByRepo[repoID]
			if !ok {
				continue
			}
			if baseF1-curF1 >= 0.10 {
				fmt.Printf("REGRESSION: repo %s F1 dropped %.1fpp (%.1f%% -> %.1f%%)\n",
					repoID, (baseF1-curF1)*100, baseF1*100, curF1*100)
				regressed = true
			}
		}

		if regressed {
			os.Exit(int(exitFindings))
		}
		fmt.Println("no regression detected")
		return nil
	},
}

func loadSuite(manifestPath, cacheDir string) ([]scorer.GoldenRepo, error) {
	loader := goldensuite.NewLoader(manifestPath, cacheDir)
	suite, warnings, err := loader.LoadAll()
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}
	return suite, nil
}

func scanSuite(suite []scorer.GoldenRepo) (map[string][]gradefilter.ActionableFinding, error) {
	byRepo := map[string][]gradefilter.ActionableFinding{}
	for _, repo := range suite {
		findings, err := scanRepo(repo)
		if err != nil {
			return nil, err
		}
		byRepo[repo.ID] = findings
	}
	return byRepo, nil
}

func scanRepo(repo scorer.GoldenRepo) ([]gradefilter.ActionableFinding, error) {
	result, err := runner.RunScan(context.Background(), runner.Options{RepoPath: repo.RepoPath})
	if err != nil {
		return nil, fmt.Errorf("scanning golden repo %s: %w", repo.ID, err)
	}
	return result.Findings, nil
}

func printSuiteReport(result scorer.SuiteResult) {
	fmt.Println("===============================================================================")
	fmt.Println("                      SENTRY GOLDEN-SUITE EVALUATION")
	fmt.Println("===============================================================================")
	fmt.Println()
	fmt.Printf("Repos evaluated:  %d\n", len(result.Repos))
	fmt.Printf("Precision:        %.1f%% (%d / %d)\n", result.Precision*100, result.TotalTP, result.TotalTP+result.TotalFP)
	fmt.Printf("Recall:           %.1f%% (%d / %d)\n", result.Recall*100, result.TotalTP, result.TotalTP+result.TotalFN)
	fmt.Printf("F1:               %.1f%%\n", result.F1*100)
	fmt.Println()
	fmt.Println("Per-repo breakdown:")
	for _, r := range result.Repos {
		fmt.Printf("  %-20s P=%.1f%% R=%.1f%% F1=%.1f%% (TP=%d FP=%d FN=%d trap_hits=%d)\n",
			r.RepoID, r.Precision*100, r.Recall*100, r.F1*100,
			len(r.TruePositives), len(r.FalsePositives), len(r.FalseNegatives), len(r.TrapHits))
	}
}

func printRepoReport(r scorer.RepoResult) {
	fmt.Printf("repo:      %s\n", r.RepoID)
	fmt.Printf("precision: %.1f%%\n", r.Precision*100)
	fmt.Printf("recall:    %.1f%%\n", r.Recall*100)
	fmt.Printf("f1:        %.1f%%\n", r.F1*100)
	fmt.Printf("tp=%d fp=%d fn=%d trap_hits=%d\n", len(r.TruePositives), len(r.FalsePositives), len(r.FalseNegatives), len(r.TrapHits))
	for class, cm := range r.ByClass {
		fmt.Printf("  %-30s P=%.1f%% R=%.1f%% F1=%.1f%%\n", class, cm.Precision*100, cm.Recall*100, cm.F1*100)
	}
}

func writeSnapshot(path string, result scorer.SuiteResult) error {
	snap := snapshot{
		Precision: result.Precision,
		Recall:    result.Recall,
		F1:        result.F1,
		ByRepo:    map[string]float64{},
	}
	for _, r := range result.Repos {
		snap.ByRepo[r.RepoID] = r.F1
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil && filepath.Dir(path) != "." {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func readSnapshot(path string) (snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return snapshot{}, fmt.Errorf("cannot read snapshot %s: %w", path, err)
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return snapshot{}, fmt.Errorf("cannot parse snapshot %s: %w", path, err)
	}
	return snap, nil
}

func init() {
	evalRunCmd.Flags().String("manifest", "testdata/goldensuite/manifest.yaml", "Path to the golden-suite manifest")
	evalRunCmd.Flags().String("cache-dir", filepath.Join(os.TempDir(), "sentry-goldensuite-cache"), "TTL cache dir for source-URL reachability checks")
	evalRunCmd.Flags().String("snapshot-out", "", "Write a JSON metrics snapshot for later 'eval compare'")

	evalRunSingleCmd.Flags().String("manifest", "testdata/goldensuite/manifest.yaml", "Path to the golden-suite manifest")
	evalRunSingleCmd.Flags().String("cache-dir", filepath.Join(os.TempDir(), "sentry-goldensuite-cache"), "TTL cache dir for source-URL reachability checks")
	evalRunSingleCmd.Flags().String("repo", "", "Golden repo ID to scan (required)")

	evalFixturesCmd.Flags().String("manifest", "testdata/goldensuite/manifest.yaml", "Path to the golden-suite manifest")
	evalFixturesCmd.Flags().String("cache-dir", filepath.Join(os.TempDir(), "sentry-goldensuite-cache"), "TTL cache dir for source-URL reachability checks")
	evalListCmd.Flags().AddFlagSet(evalFixturesCmd.Flags())

	evalCompareCmd.Flags().String("baseline", "", "Baseline snapshot JSON (required)")
	evalCompareCmd.Flags().String("current", "", "Current snapshot JSON (required)")

	evalCmd.AddCommand(evalRunCmd, evalRunSingleCmd, evalFixturesCmd, evalListCmd, evalCompareCmd)
	rootCmd.AddCommand(evalCmd)
}
