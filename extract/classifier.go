package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tracewire/inventorygraph/log"
	"github.com/tracewire/inventorygraph/source"
)

// Document kinds used to pick an extraction strategy.
const (
	KindCode          = "code"
	KindDocumentation = "documentation"
	KindTicket        = "ticket"
	KindConfiguration = "configuration"
	KindData          = "data"
	KindUnknown       = "unknown"
)

// extensionKinds resolves well-known file extensions without an LLM call.
var extensionKinds = map[string]string{
	".go":   KindCode,
	".py":   KindCode,
	".js":   KindCode,
	".ts":   KindCode,
	".tsx":  KindCode,
	".java": KindCode,
	".rb":   KindCode,
	".rs":   KindCode,
	".c":    KindCode,
	".cpp":  KindCode,
	".md":   KindDocumentation,
	".rst":  KindDocumentation,
	".txt":  KindDocumentation,
	".html": KindDocumentation,
	".yaml": KindConfiguration,
	".yml":  KindConfiguration,
	".toml": KindConfiguration,
	".ini":  KindConfiguration,
	".env":  KindConfiguration,
	".json": KindData,
	".csv":  KindData,
	".sql":  KindData,
}

// DocumentClassifier labels documents by source kind. File extensions decide
// the common cases; the LLM is only consulted for paths that resolve to
// unknown.
type DocumentClassifier struct {
	llm        LLM
	guardrails Guardrails
	logger     log.Logger
}

// NewDocumentClassifier creates a classifier. A nil llm disables the
// fallback and unknown extensions stay unknown.
func NewDocumentClassifier(llm LLM, guardrails Guardrails, logger log.Logger) *DocumentClassifier {
	if logger == nil {
		logger = log.Default()
	}
	return &DocumentClassifier{llm: llm, guardrails: guardrails, logger: logger}
}

type classifyResponse struct {
	Kind       string  `json:"kind"`
	Confidence float64 `json:"confidence"`
}

// Classify returns the document kind.
func (c *DocumentClassifier) Classify(ctx context.Context, doc source.Document) (string, error) {
	if kind, ok := extensionKinds[strings.ToLower(filepath.Ext(doc.FilePath))]; ok {
		return kind, nil
	}
	if looksLikeTicket(doc.FilePath) {
		return KindTicket, nil
	}
	if c.llm == nil {
		return KindUnknown, nil
	}

	sample := c.guardrails.Prepare(doc.Content)
	if len(sample) > 2000 {
		sample = sample[:2000]
	}
	prompt := fmt.Sprintf(classifyPrompt, doc.FilePath, sample)
	response, err := c.guardrails.generate(ctx, c.llm, prompt, c.logger)
	if err != nil {
		return KindUnknown, err
	}

	var parsed classifyResponse
	if err := json.Unmarshal(ExtractJSON(response), &parsed); err != nil {
		return KindUnknown, fmt.Errorf("failed to parse classification for %s: %w", doc.FilePath, err)
	}
	switch parsed.Kind {
	case KindCode, KindDocumentation, KindTicket, KindConfiguration, KindData:
		return parsed.Kind, nil
	default:
		return KindUnknown, nil
	}
}

// looksLikeTicket matches issue-tracker style keys such as PROJ-123.
func looksLikeTicket(path string) bool {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	dash := strings.LastIndexByte(base, '-')
	if dash <= 0 || dash == len(base)-1 {
		return false
	}
	for _, r := range base[:dash] {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	for _, r := range base[dash+1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
