// Package goldensuite loads the evaluation harness's GoldenRepo fixtures
// from a YAML manifest, verifies each fixture's declared source URL is
// still reachable, and TTL-caches that reachability check so `eval run`
// doesn't re-probe the network on every invocation.
package goldensuite

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/solaudit/sentry/auditerr"
	"github.com/solaudit/sentry/factgraph"
	"github.com/solaudit/sentry/scorer"
)

// reachabilityTTL is how long a successful HEAD check is trusted before
// the next `eval run` re-probes the source URL.
const reachabilityTTL = 24 * time.Hour

// Manifest is the on-disk YAML shape for a suite of golden repos.
type Manifest struct {
	Repos []RepoEntry `yaml:"repos"`
}

// RepoEntry is one fixture repo's manifest entry: where its source lives
// (for provenance, checked but not re-downloaded), where its checked-out
// copy sits on disk, and where its expected-findings file is.
type RepoEntry struct {
	ID               string `yaml:"id"`
	SourceURL        string `yaml:"source_url"`
	RepoPath         string `yaml:"repo_path"`
	ExpectedFindings string `yaml:"expected_findings"`
}

// expectedFindingsFile is the on-disk shape of an ExpectedFindings file.
type expectedFindingsFile struct {
	Findings []struct {
		ID             string   `yaml:"id"`
		Description    string   `yaml:"description"`
		VulnClass      string   `yaml:"vuln_class"`
		AltVulnClasses []string `yaml:"alt_vuln_classes"`
		Instruction    string   `yaml:"instruction"`
		AccountNames   []string `yaml:"account_names"`
		File           string   `yaml:"file"`
		MinSeverity    string   `yaml:"min_severity"`
		IsTrap         bool     `yaml:"is_trap"`
	} `yaml:"findings"`
}

// reachabilityEntry is one cached URL-reachability result.
type reachabilityEntry struct {
	URL        string    `json:"url"`
	Reachable  bool      `json:"reachable"`
	CheckedAt  time.Time `json:"checked_at"`
}

// Loader reads a golden-suite manifest and its per-repo expected-findings
// files, with a TTL cache for source-URL reachability checks.
type Loader struct {
	manifestPath string
	cacheDir     string
	httpClient   *http.Client
}

// NewLoader returns a Loader rooted at manifestPath, caching reachability
// results under cacheDir.
func NewLoader(manifestPath, cacheDir string) *Loader {
	return &Loader{
		manifestPath: manifestPath,
		cacheDir:     cacheDir,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
	}
}

// LoadAll parses the manifest, loads every repo's expected findings, and
// verifies (with TTL caching) that each repo's source URL is reachable.
// An unreachable source URL fails the load with a ScorerConfigError naming
// the repo; a repo with no source URL is not probed.
func (l *Loader) LoadAll() ([]scorer.GoldenRepo, []string, error) {
	data, err := os.ReadFile(l.manifestPath)
	if err != nil {
		return nil, nil, auditerr.NewScorerConfigError("<manifest>", fmt.Sprintf("cannot read manifest: %v", err))
	}

	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, nil, auditerr.NewScorerConfigError("<manifest>", fmt.Sprintf("cannot parse manifest: %v", err))
	}

	var repos []scorer.GoldenRepo
	var warnings []string
	manifestDir := filepath.Dir(l.manifestPath)

	for _, entry := range manifest.Repos {
		if entry.SourceURL != "" && !l.reachable(entry.SourceURL) {
			return nil, warnings, auditerr.NewScorerConfigError(entry.ID, fmt.Sprintf("source url %s unreachable", entry.SourceURL))
		}

		findings, err := l.loadExpectedFindings(filepath.Join(manifestDir, entry.ExpectedFindings))
		if err != nil {
			return nil, warnings, auditerr.NewScorerConfigError(entry.ID, err.Error())
		}

		repos = append(repos, scorer.GoldenRepo{
			ID:               entry.ID,
			RepoPath:         filepath.Join(manifestDir, entry.RepoPath),
			ExpectedFindings: findings,
		})
	}

	return repos, warnings, nil
}

func (l *Loader) loadExpectedFindings(path string) ([]scorer.ExpectedFinding, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read expected findings %s: %w", path, err)
	}

	var file expectedFindingsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("cannot parse expected findings %s: %w", path, err)
	}

	out := make([]scorer.ExpectedFinding, 0, len(file.Findings))
	for _, f := range file.Findings {
		out = append(out, scorer.ExpectedFinding{
			ID:          f.ID,
			Description: f.Description,
			IsTrap:      f.IsTrap,
			Criteria: scorer.MatchCriteria{
				VulnClass:      f.VulnClass,
				AltVulnClasses: f.AltVulnClasses,
				Instruction:    f.Instruction,
				AccountNames:   f.AccountNames,
				File:           f.File,
				MinSeverity:    factgraph.Severity(f.MinSeverity),
			},
		})
	}
	return out, nil
}

// reachable reports whether url answers a HEAD request, consulting and
// updating the TTL-cached result first.
func (l *Loader) reachable(url string) bool {
	if entry, ok := l.cacheGet(url); ok {
		return entry.Reachable
	}

	ok := l.probe(url)
	l.cacheSet(url, ok)
	return ok
}

func (l *Loader) probe(url string) bool {
	resp, err := l.httpClient.Head(url)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 400
}

func (l *Loader) cachePath(url string) string {
	return filepath.Join(l.cacheDir, urlCacheKey(url)+".json")
}

func (l *Loader) cacheGet(url string) (reachabilityEntry, bool) {
	data, err := os.ReadFile(l.cachePath(url))
	if err != nil {
		return reachabilityEntry{}, false
	}
	var entry reachabilityEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return reachabilityEntry{}, false
	}
	if time.Since(entry.CheckedAt) > reachabilityTTL {
		return reachabilityEntry{}, false
	}
	return entry, true
}

func (l *Loader) cacheSet(url string, reachableResult bool) {
	if err := os.MkdirAll(l.cacheDir, 0o755); err != nil {
		return
	}
	entry := reachabilityEntry{URL: url, Reachable: reachableResult, CheckedAt: time.Now()}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	_ = os.WriteFile(l.cachePath(url), data, 0o644)
}

func urlCacheKey(url string) string {
	out := make([]byte, 0, len(url))
	for _, r := range url {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			out = append(out, byte(r))
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
