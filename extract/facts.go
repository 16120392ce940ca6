package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tracewire/inventorygraph/log"
	"github.com/tracewire/inventorygraph/source"
)

// ExtractedFact is a standalone statement worth remembering, attached to the
// knowledge layer as a "fact" entity.
type ExtractedFact struct {
	Statement  string  `json:"statement"`
	Subject    string  `json:"subject,omitempty"`
	Confidence float64 `json:"confidence"`
}

type factResponse struct {
	Facts []ExtractedFact `json:"facts"`
}

// FactExtractor pulls factual statements from prose-heavy documents.
type FactExtractor struct {
	llm        LLM
	guardrails Guardrails
	logger     log.Logger
}

// NewFactExtractor creates a FactExtractor.
func NewFactExtractor(llm LLM, guardrails Guardrails, logger log.Logger) *FactExtractor {
	if logger == nil {
		logger = log.Default()
	}
	return &FactExtractor{llm: llm, guardrails: guardrails, logger: logger}
}

// Extract returns filtered fact candidates for a document.
func (f *FactExtractor) Extract(ctx context.Context, doc source.Document) ([]ExtractedFact, error) {
	text := f.guardrails.Prepare(doc.Content)
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	prompt := fmt.Sprintf(factPrompt, doc.FilePath, text)
	response, err := f.guardrails.generate(ctx, f.llm, prompt, f.logger)
	if err != nil {
		return nil, err
	}

	var parsed factResponse
	if err := json.Unmarshal(ExtractJSON(response), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse fact extraction for %s: %w", doc.FilePath, err)
	}

	var kept []ExtractedFact
	for _, fact := range parsed.Facts {
		fact.Statement = strings.TrimSpace(fact.Statement)
		if fact.Statement == "" {
			continue
		}
		if fact.Confidence > 0 && fact.Confidence < f.guardrails.EntityConfidenceThreshold {
			continue
		}
		kept = append(kept, fact)
		if f.guardrails.MaxEntitiesPerDocument > 0 && len(kept) >= f.guardrails.MaxEntitiesPerDocument {
			break
		}
	}
	return kept, nil
}
