// Package parser extracts code symbols and structural relations from source
// files using tree-sitter grammars. Unlike the LLM extractors it is exact and
// free, so the ingestion pipeline runs it on every code document and keeps
// the LLM for prose.
package parser

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	sittergo "github.com/tree-sitter/tree-sitter-go/bindings/go"
	sitterpython "github.com/tree-sitter/tree-sitter-python/bindings/go"
	sitterts "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	"github.com/tracewire/inventorygraph/log"
)

// Supported language names.
const (
	LangGo         = "go"
	LangPython     = "python"
	LangTypeScript = "typescript"
)

// Symbol is one named declaration found in a source file. Type is a taxonomy
// entity type (class, function, method, interface, struct, enum).
type Symbol struct {
	Name      string
	Type      string
	Parent    string
	Exported  bool
	LineStart int
	LineEnd   int
}

// Relation is a structural edge between symbol names. Imports use the file
// path as source because the importing side is the file itself.
type Relation struct {
	Source string
	Target string
	Type   string
}

// Result holds everything extracted from one file.
type Result struct {
	FilePath  string
	Language  string
	Symbols   []Symbol
	Relations []Relation
}

// extractor walks a parsed syntax tree and collects symbols and relations.
type extractor interface {
	Extract(root *sitter.Node, source []byte, filePath string) ([]Symbol, []Relation)
}

// CodeParser parses source files with tree-sitter. A fresh tree-sitter
// parser is created per Parse call, so concurrent Parse calls are safe.
type CodeParser struct {
	languages  map[string]*sitter.Language
	extractors map[string]extractor
	logger     log.Logger
}

// Option configures a CodeParser.
type Option func(*CodeParser)

// WithLogger sets the logger.
func WithLogger(logger log.Logger) Option {
	return func(p *CodeParser) { p.logger = logger }
}

// New creates a CodeParser with the Go, Python and TypeScript grammars
// registered.
func New(opts ...Option) *CodeParser {
	p := &CodeParser{
		languages: map[string]*sitter.Language{
			LangGo:         sitter.NewLanguage(sittergo.Language()),
			LangPython:     sitter.NewLanguage(sitterpython.Language()),
			LangTypeScript: sitter.NewLanguage(sitterts.LanguageTypescript()),
		},
		extractors: map[string]extractor{
			LangGo:         &goExtractor{},
			LangPython:     &pythonExtractor{},
			LangTypeScript: &typescriptExtractor{},
		},
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// extensionLanguages maps file extensions to registered languages.
var extensionLanguages = map[string]string{
	".go":  LangGo,
	".py":  LangPython,
	".ts":  LangTypeScript,
	".tsx": LangTypeScript,
}

// Language returns the registered language for a file path, or "" when the
// extension is not supported.
func Language(path string) string {
	return extensionLanguages[strings.ToLower(filepath.Ext(path))]
}

// Supports reports whether Parse can handle the file.
func (p *CodeParser) Supports(path string) bool {
	return Language(path) != ""
}

// Parse extracts symbols and relations from one source file.
func (p *CodeParser) Parse(_ context.Context, path string, source []byte) (*Result, error) {
	lang := Language(path)
	if lang == "" {
		return nil, fmt.Errorf("unsupported file type: %s", path)
	}

	parser := sitter.NewParser()
	defer parser.Close()

	if err := parser.SetLanguage(p.languages[lang]); err != nil {
		return nil, fmt.Errorf("set language %s: %w", lang, err)
	}

	tree := parser.Parse(source, nil)
	if tree == nil {
		return nil, fmt.Errorf("parse produced no tree for %s", path)
	}
	defer tree.Close()

	symbols, relations := p.extractors[lang].Extract(tree.RootNode(), source, path)
	p.logger.Debug("parsed %s: %d symbols, %d relations", path, len(symbols), len(relations))

	return &Result{
		FilePath:  path,
		Language:  lang,
		Symbols:   symbols,
		Relations: dedupRelations(relations),
	}, nil
}

// dedupRelations drops repeated (source, target, type) triples while keeping
// first-seen order. Call sites repeat; one edge is enough.
func dedupRelations(relations []Relation) []Relation {
	seen := make(map[Relation]bool, len(relations))
	out := relations[:0]
	for _, r := range relations {
		if seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	return out
}

func lineSpan(node *sitter.Node) (int, int) {
	return int(node.StartPosition().Row) + 1, int(node.EndPosition().Row) + 1
}
