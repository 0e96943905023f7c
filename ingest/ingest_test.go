package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestIngestDetectsProgramDirByCargoDep(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "programs/vault/Cargo.toml"), "[dependencies]\nanchor-lang = \"0.29\"\n")
	writeFile(t, filepath.Join(root, "programs/vault/src/lib.rs"), "pub fn withdraw() {}\n")
	writeFile(t, filepath.Join(root, "scripts/deploy.rs"), "fn main() {}\n")

	res, err := Ingest(root, "")
	require.NoError(t, err)
	require.Len(t, res.Files, 1)
	assert.Contains(t, res.Files[0].Path, "programs/vault/src/lib.rs")
	assert.NotEmpty(t, res.Files[0].ContentHash)
	assert.Equal(t, []string{"pub fn withdraw() {}", ""}, res.Files[0].Lines)
}

func TestIngestHonorsProgramDirHint(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "programs/vault/src/lib.rs"), "fn a() {}\n")
	writeFile(t, filepath.Join(root, "programs/amm/src/lib.rs"), "fn b() {}\n")

	res, err := Ingest(root, "programs/amm")
	require.NoError(t, err)
	require.Len(t, res.Files, 1)
	assert.Contains(t, res.Files[0].Path, "amm")
}

func TestIngestSkipsExcludedDirs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "programs/vault/Cargo.toml"), "anchor-lang = \"0.29\"\n")
	writeFile(t, filepath.Join(root, "programs/vault/src/lib.rs"), "fn a() {}\n")
	writeFile(t, filepath.Join(root, "programs/vault/target/debug/build.rs"), "fn generated() {}\n")

	res, err := Ingest(root, "")
	require.NoError(t, err)
	for _, f := range res.Files {
		assert.NotContains(t, f.Path, "/target/")
	}
}

func TestIngestMissingRepoRootErrors(t *testing.T) {
	_, err := Ingest("/nonexistent/path/xyz", "")
	assert.Error(t, err)
}

func TestIngestEmptyResultWhenNoRustFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "README.md"), "nothing here")

	res, err := Ingest(root, "")
	require.NoError(t, err)
	assert.Empty(t, res.Files)
}
