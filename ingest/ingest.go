// Package ingest implements Source Ingest (C1): enumerating Rust source
// files under a repo root, filtering to program directories, and producing
// stable per-file identifiers (path, content, line array, content hash).
package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/solaudit/sentry/auditerr"
	"github.com/solaudit/sentry/factgraph"
)

// excludedDirs are never descended into: build output and vendored/test
// fixture trees that are not part of the program's own logic.
var excludedDirs = map[string]bool{
	"target":       true,
	".git":         true,
	"node_modules": true,
	"test-fixtures": true,
	"tests":        true,
	".anchor":      true,
}

// manifestDeps are the dependency names whose presence in Cargo.toml marks
// a directory as a Solana/Anchor program when no explicit hint is given.
var manifestDeps = []string{"anchor-lang", "anchor-spl", "solana-program", "solana-sdk"}

// Result is the ordered list of ingested source files for one scan, plus
// any non-fatal warnings encountered while reading.
type Result struct {
	Files    []factgraph.SourceFile
	Warnings []*auditerr.ParseWarning
}

// Ingest enumerates Rust source under repoRoot. If programDirHint is
// non-empty, only that subdirectory is scanned; otherwise every directory
// containing a Cargo.toml that declares a Solana/Anchor dependency is
// treated as a program root and scanned recursively.
func Ingest(repoRoot, programDirHint string) (*Result, error) {
	info, err := os.Stat(repoRoot)
	if err != nil || !info.IsDir() {
		return nil, auditerr.NewIngestError(repoRoot, "repo root not found", err)
	}

	var roots []string
	if programDirHint != "" {
		roots = []string{filepath.Join(repoRoot, programDirHint)}
	} else {
		roots, err = detectProgramDirs(repoRoot)
		if err != nil {
			return nil, auditerr.NewIngestError(repoRoot, "failed to detect program directories", err)
		}
	}
	if len(roots) == 0 {
		roots = []string{repoRoot}
	}

	var rsFiles []string
	seen := map[string]bool{}
	for _, root := range roots {
		found, err := collectRustFiles(root)
		if err != nil {
			continue
		}
		for _, f := range found {
			if !seen[f] {
				seen[f] = true
				rsFiles = append(rsFiles, f)
			}
		}
	}
	sort.Strings(rsFiles)

	if len(rsFiles) == 0 {
		return &Result{}, nil
	}

	return readAll(rsFiles), nil
}

// detectProgramDirs walks repoRoot for Cargo.toml files declaring a
// Solana/Anchor dependency, returning the directories that contain them.
func detectProgramDirs(repoRoot string) ([]string, error) {
	var dirs []string
	err := filepath.Walk(repoRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if excludedDirs[info.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Base(path) != "Cargo.toml" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		text := string(data)
		for _, dep := range manifestDeps {
			if strings.Contains(text, dep) {
				dirs = append(dirs, filepath.Dir(path))
				break
			}
		}
		return nil
	})
	return dirs, err
}

func collectRustFiles(root string) ([]string, error) {
	var out []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if excludedDirs[info.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(path, ".rs") {
			out = append(out, path)
		}
		return nil
	})
	return out, err
}

// readAll reads every file concurrently (a worker pool, bounded at 8
// workers) and hashes its content, preserving the caller's file order in
// the returned slice.
func readAll(paths []string) *Result {
	type indexed struct {
		idx  int
		file factgraph.SourceFile
		warn *auditerr.ParseWarning
	}

	numWorkers := 8
	if len(paths) < numWorkers {
		numWorkers = len(paths)
	}
	pathChan := make(chan int, len(paths))
	resultChan := make(chan indexed, len(paths))
	var wg sync.WaitGroup

	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range pathChan {
				p := paths[i]
				data, err := os.ReadFile(p)
				if err != nil {
					resultChan <- indexed{idx: i, warn: auditerr.NewParseWarning(p, 0, "unreadable file", err)}
					continue
				}
				content := string(data)
				sum := sha256.Sum256(data)
				resultChan <- indexed{idx: i, file: factgraph.SourceFile{
					Path:        p,
					Content:     content,
					Lines:       strings.Split(content, "\n"),
					ContentHash: hex.EncodeToString(sum[:]),
				}}
			}
		}()
	}

	for i := range paths {
		pathChan <- i
	}
	close(pathChan)
	wg.Wait()
	close(resultChan)

	ordered := make([]*indexed, len(paths))
	for r := range resultChan {
		cp := r
		ordered[r.idx] = &cp
	}

	res := &Result{}
	for _, r := range ordered {
		if r == nil {
			continue
		}
		if r.warn != nil {
			res.Warnings = append(res.Warnings, r.warn)
			continue
		}
		res.Files = append(res.Files, r.file)
	}
	return res
}
