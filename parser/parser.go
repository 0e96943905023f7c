// Package parser implements the Parser (C2): lifting ingested Rust source
// files into a populated factgraph.Graph. It is a tree-sitter consumer —
// github.com/smacker/go-tree-sitter plus its rust grammar binding produces
// a concrete syntax tree per file, and a single recursive walk produces
// Fact Graph nodes directly from CST node kinds. There is no separate IR
// stage: Anchor attribute macros are recognized by matching attribute_item
// text, since go-tree-sitter does not expand Rust proc-macros.
package parser

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/rust"

	"github.com/solaudit/sentry/auditerr"
	"github.com/solaudit/sentry/factgraph"
)

const anchorPrelude = "anchor_lang"

// liftCacheEntry is what the per-file lift cache stores, keyed by content
// hash. Only framework is filled in; instructions and accounts stay empty.
type liftCacheEntry struct {
	instructions []*factgraph.Instruction
	accounts     []*factgraph.Account
	framework    factgraph.Framework
}

// Parser lifts a list of source files into a Fact Graph. It records each
// file's lift result in a bounded LRU keyed by content hash, grounded on the
// teacher's ImportMapCache. The cache is written but never read: every file
// is parsed on every call.
type Parser struct {
	cache *lru.Cache[string, *liftCacheEntry]
}

// New returns a Parser with a bounded per-file lift cache.
func New() *Parser {
	c, _ := lru.New[string, *liftCacheEntry](512)
	return &Parser{cache: c}
}

// ParseResult is the output of a full parse: the populated graph plus any
// per-file warnings collected along the way.
type ParseResult struct {
	Graph    *factgraph.Graph
	Warnings []*auditerr.ParseWarning
}

// Parse lifts every file in files (from one program/repo) into a single
// Fact Graph. The parser never panics: a per-file recover() converts any
// panic on malformed code into a ParseWarning and that file is skipped.
func (p *Parser) Parse(programName string, files []factgraph.SourceFile) *ParseResult {
	return p.ParsePrograms(map[string][]factgraph.SourceFile{programName: files})
}

// ParsePrograms lifts one or more programs (keyed by program/crate name)
// into a single shared Fact Graph, so multi-program repos (e.g. an Anchor
// workspace with several crates under programs/) resolve cross-program CPI
// targets against the same node set. Resolution passes (account binding,
// native dispatch aliasing, CPI validation, sink neighborhoods) run once,
// after every program has been lifted.
func (p *Parser) ParsePrograms(filesByProgram map[string][]factgraph.SourceFile) *ParseResult {
	res := &ParseResult{Graph: factgraph.NewGraph()}

	for programName, files := range filesByProgram {
		p.liftProgram(programName, files, res)
	}

	// Second pass: resolve AccountsTypeName across files (§9 two-pass
	// cross-file reference resolution: index every #[derive(Accounts)]
	// struct by name, then bind each instruction to its struct) and, for
	// native programs, bind dispatch-table aliases.
	resolveAccountsAcrossFiles(res.Graph)
	resolveNativeDispatch(res.Graph)
	resolveCPIValidation(res.Graph)

	res.Graph.BuildSinkNeighborhoods(factgraph.ExpectedGuardMap())

	if err := res.Graph.CheckInvariants(); err != nil {
		res.Warnings = append(res.Warnings, auditerr.NewParseWarning("<graph>", 0, err.Error(), err))
	}

	return res
}

func (p *Parser) liftProgram(programName string, files []factgraph.SourceFile, res *ParseResult) {
	prog := &factgraph.Program{
		ID:        factgraph.ProgramID(programName),
		Name:      programName,
		Framework: factgraph.FrameworkUnknown,
	}

	anchorSeen := false
	for _, f := range files {
		func() {
			defer func() {
				if r := recover(); r != nil {
					res.Warnings = append(res.Warnings, auditerr.NewParseWarning(f.Path, 0,
						fmt.Sprintf("recovered panic: %v", r), nil))
				}
			}()

			entry, warn := p.liftFile(f, res.Graph, prog.ID)
			if warn != nil {
				res.Warnings = append(res.Warnings, warn)
				return
			}
			if entry.framework == factgraph.FrameworkAnchor {
				anchorSeen = true
			}

			lines := len(f.Lines)
			prog.Files = append(prog.Files, factgraph.ProgramFile{
				Path:        f.Path,
				LineCount:   lines,
				ContentHash: f.ContentHash,
			})
		}()
	}

	if anchorSeen {
		prog.Framework = factgraph.FrameworkAnchor
	} else if len(prog.Files) > 0 {
		prog.Framework = classifyNative(files)
	}
	res.Graph.AddProgram(prog)
}

// classifyNative returns native when no Anchor markers were found anywhere
// in the program's files, matching §4.2's framework detection fallback
// order anchor -> native -> unknown.
func classifyNative(files []factgraph.SourceFile) factgraph.Framework {
	for _, f := range files {
		if strings.Contains(f.Content, "solana_program") || strings.Contains(f.Content, "process_instruction") {
			return factgraph.FrameworkNative
		}
	}
	return factgraph.FrameworkUnknown
}

// liftFile parses one file, adds every node it discovers to g, and records
// the result in the lift cache under the file's content hash. The cache is
// not consulted first, so identical content is parsed again.
func (p *Parser) liftFile(f factgraph.SourceFile, g *factgraph.Graph, programID factgraph.StableId) (*liftCacheEntry, *auditerr.ParseWarning) {
	hash := f.ContentHash
	if hash == "" {
		sum := sha256.Sum256([]byte(f.Content))
		hash = hex.EncodeToString(sum[:])
	}

	isAnchor := strings.Contains(f.Content, anchorPrelude) &&
		(strings.Contains(f.Content, "#[program]") ||
			strings.Contains(f.Content, "#[derive(Accounts)]") ||
			strings.Contains(f.Content, "#[account"))

	sp := sitter.NewParser()
	sp.SetLanguage(rust.GetLanguage())
	tree, err := sp.ParseCtx(context.Background(), nil, []byte(f.Content))
	if err != nil || tree == nil {
		return nil, auditerr.NewParseWarning(f.Path, 0, "tree-sitter parse failed", err)
	}
	root := tree.RootNode()
	src := []byte(f.Content)

	entry := &liftCacheEntry{}
	if isAnchor {
		entry.framework = factgraph.FrameworkAnchor
		liftAnchorFile(root, src, f.Path, g, programID)
	} else {
		entry.framework = factgraph.FrameworkUnknown
		liftNativeFile(root, src, f.Path, g, programID)
	}

	p.cache.Add(hash, entry)
	return entry, nil
}

// walkChildren applies fn to every direct named child of node.
func walkChildren(node *sitter.Node, fn func(*sitter.Node)) {
	if node == nil {
		return
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		fn(node.NamedChild(i))
	}
}

// walkAll applies fn to node and recursively to every descendant.
func walkAll(node *sitter.Node, fn func(*sitter.Node)) {
	if node == nil {
		return
	}
	fn(node)
	for i := 0; i < int(node.NamedChildCount()); i++ {
		walkAll(node.NamedChild(i), fn)
	}
}

func spanOf(node *sitter.Node, file string) factgraph.AstSpan {
	start := node.StartPoint()
	end := node.EndPoint()
	return factgraph.AstSpan{
		File:      file,
		StartLine: int(start.Row) + 1,
		EndLine:   int(end.Row) + 1,
		StartCol:  int(start.Column),
		EndCol:    int(end.Column),
	}
}

// precedingAttributes collects #[...] attribute_item siblings immediately
// before node within their shared parent, in source order.
func precedingAttributes(node *sitter.Node, src []byte) []string {
	parent := node.Parent()
	if parent == nil {
		return nil
	}
	var attrs []string
	for i := 0; i < int(parent.NamedChildCount()); i++ {
		child := parent.NamedChild(i)
		if child == node {
			break
		}
		if child.Type() == "attribute_item" {
			attrs = append(attrs, child.Content(src))
		} else if child.Type() != "line_comment" && child.Type() != "block_comment" {
			attrs = nil
		}
	}
	return attrs
}

func hasAttrNamed(attrs []string, name string) bool {
	for _, a := range attrs {
		if strings.Contains(a, name) {
			return true
		}
	}
	return false
}

func attrContaining(attrs []string, name string) (string, bool) {
	for _, a := range attrs {
		if strings.Contains(a, name) {
			return a, true
		}
	}
	return "", false
}
