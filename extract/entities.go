package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/tracewire/inventorygraph/log"
	"github.com/tracewire/inventorygraph/source"
	"github.com/tracewire/inventorygraph/taxonomy"
)

// ExtractedEntity is one entity candidate returned by the LLM.
type ExtractedEntity struct {
	Name        string         `json:"name"`
	Type        string         `json:"type"`
	Description string         `json:"description,omitempty"`
	Confidence  float64        `json:"confidence"`
	LineStart   int            `json:"line_start,omitempty"`
	LineEnd     int            `json:"line_end,omitempty"`
	Properties  map[string]any `json:"properties,omitempty"`
}

type entityResponse struct {
	Entities []ExtractedEntity `json:"entities"`
}

// EntityExtractor turns document text into validated entity candidates.
// Extraction is idempotent per document content: the same text yields the
// same candidates (modulo LLM nondeterminism), and the pipeline derives
// stable ids from (name, type, file) so re-runs merge citations rather than
// duplicating nodes.
type EntityExtractor struct {
	llm        LLM
	policy     taxonomy.Policy
	guardrails Guardrails
	logger     log.Logger
}

// NewEntityExtractor creates an EntityExtractor.
func NewEntityExtractor(llm LLM, policy taxonomy.Policy, guardrails Guardrails, logger log.Logger) *EntityExtractor {
	if logger == nil {
		logger = log.Default()
	}
	return &EntityExtractor{llm: llm, policy: policy, guardrails: guardrails, logger: logger}
}

// Extract returns the guardrail-filtered entity candidates for a document.
func (e *EntityExtractor) Extract(ctx context.Context, doc source.Document) ([]ExtractedEntity, error) {
	text := e.guardrails.Prepare(doc.Content)
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	prompt := fmt.Sprintf(entityPrompt, strings.Join(sortedTypes(e.policy.EntityLayers), ", "), doc.FilePath, text)
	response, err := e.guardrails.generate(ctx, e.llm, prompt, e.logger)
	if err != nil {
		return nil, err
	}

	var parsed entityResponse
	if err := json.Unmarshal(ExtractJSON(response), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse entity extraction for %s: %w", doc.FilePath, err)
	}

	return e.filter(parsed.Entities, doc.FilePath), nil
}

func (e *EntityExtractor) filter(candidates []ExtractedEntity, filePath string) []ExtractedEntity {
	var kept []ExtractedEntity
	for _, c := range candidates {
		c.Name = strings.TrimSpace(c.Name)
		c.Type = taxonomy.Normalize(c.Type)
		if c.Name == "" || c.Type == "" {
			continue
		}
		if e.guardrails.ValidateEntityTypes && !e.policy.IsEntityType(c.Type) {
			e.logger.Debug("dropping entity %q from %s: type %q outside taxonomy", c.Name, filePath, c.Type)
			continue
		}
		if c.Confidence > 0 && c.Confidence < e.guardrails.EntityConfidenceThreshold {
			continue
		}
		kept = append(kept, c)
		if e.guardrails.MaxEntitiesPerDocument > 0 && len(kept) >= e.guardrails.MaxEntitiesPerDocument {
			e.logger.Warn("entity cap reached for %s (%d)", filePath, len(kept))
			break
		}
	}
	return kept
}

// ExtractJSON locates the JSON object inside an LLM response, tolerating
// markdown code fences and surrounding prose.
func ExtractJSON(response string) []byte {
	s := strings.TrimSpace(response)
	if idx := strings.Index(s, "```"); idx >= 0 {
		s = s[idx+3:]
		s = strings.TrimPrefix(s, "json")
		if end := strings.Index(s, "```"); end >= 0 {
			s = s[:end]
		}
	}
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start >= 0 && end > start {
		s = s[start : end+1]
	}
	return []byte(strings.TrimSpace(s))
}

func sortedTypes(m map[string]string) []string {
	types := make([]string, 0, len(m))
	for t := range m {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
