package goldensuite

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/solaudit/sentry/factgraph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUrlCacheKeySanitizesToAlphanumeric(t *testing.T) {
	key := urlCacheKey("https://github.com/solana-labs/vault.git")
	assert.Regexp(t, `^[A-Za-z0-9_]+$`, key)
	assert.NotContains(t, key, "/")
	assert.NotContains(t, key, ":")
}

func TestUrlCacheKeyIsDeterministic(t *testing.T) {
	a := urlCacheKey("https://example.com/repo")
	b := urlCacheKey("https://example.com/repo")
	assert.Equal(t, a, b)
}

func TestLoadAllWithNoSourceURLSkipsNetworkProbe(t *testing.T) {
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "manifest.yaml")
	findingsPath := filepath.Join(dir, "fix-missing-signer.yaml")

	require.NoError(t, os.WriteFile(manifestPath, []byte(`
repos:
  - id: fix-missing-signer
    source_url: ""
    repo_path: ./fix-missing-signer
    expected_findings: fix-missing-signer.yaml
`), 0o644))

	require.NoError(t, os.WriteFile(findingsPath, []byte(`
findings:
  - id: exp-1
    description: vault withdraw lacks a signer-checked authority
    vuln_class: missing_signer
    instruction: withdraw
    account_names: ["authority"]
    file: lib.rs
    min_severity: HIGH
`), 0o644))

	loader := NewLoader(manifestPath, filepath.Join(dir, "cache"))
	repos, warnings, err := loader.LoadAll()
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, repos, 1)
	assert.Equal(t, "fix-missing-signer", repos[0].ID)
	require.Len(t, repos[0].ExpectedFindings, 1)
	assert.Equal(t, "missing_signer", repos[0].ExpectedFindings[0].Criteria.VulnClass)
	assert.Equal(t, factgraph.SeverityHigh, repos[0].ExpectedFindings[0].Criteria.MinSeverity)
}

func TestLoadAllMissingManifestErrors(t *testing.T) {
	loader := NewLoader("/nonexistent/manifest.yaml", t.TempDir())
	_, _, err := loader.LoadAll()
	assert.Error(t, err)
}
