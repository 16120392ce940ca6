package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tracewire/inventorygraph/log"
	"github.com/tracewire/inventorygraph/source"
	"github.com/tracewire/inventorygraph/taxonomy"
)

// ExtractedRelation is one relation candidate between named entities.
type ExtractedRelation struct {
	Source     string         `json:"source"`
	Target     string         `json:"target"`
	Type       string         `json:"type"`
	Confidence float64        `json:"confidence"`
	Properties map[string]any `json:"properties,omitempty"`
}

type relationResponse struct {
	Relations []ExtractedRelation `json:"relations"`
}

// RelationExtractor discovers relations between already-extracted entities.
type RelationExtractor struct {
	llm        LLM
	policy     taxonomy.Policy
	guardrails Guardrails
	logger     log.Logger
}

// NewRelationExtractor creates a RelationExtractor.
func NewRelationExtractor(llm LLM, policy taxonomy.Policy, guardrails Guardrails, logger log.Logger) *RelationExtractor {
	if logger == nil {
		logger = log.Default()
	}
	return &RelationExtractor{llm: llm, policy: policy, guardrails: guardrails, logger: logger}
}

// Extract returns validated relation candidates among the given entities.
// Fewer than two entities cannot relate; that case short-circuits without an
// LLM call.
func (r *RelationExtractor) Extract(ctx context.Context, doc source.Document, entities []ExtractedEntity) ([]ExtractedRelation, error) {
	if len(entities) < 2 {
		return nil, nil
	}

	names := make([]string, len(entities))
	for i, e := range entities {
		names[i] = fmt.Sprintf("%s (%s)", e.Name, e.Type)
	}

	text := r.guardrails.Prepare(doc.Content)
	prompt := fmt.Sprintf(relationPrompt,
		strings.Join(sortedTypes(r.policy.RelationCategories), ", "),
		strings.Join(names, ", "),
		text)

	response, err := r.guardrails.generate(ctx, r.llm, prompt, r.logger)
	if err != nil {
		return nil, err
	}

	var parsed relationResponse
	if err := json.Unmarshal(ExtractJSON(response), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse relation extraction for %s: %w", doc.FilePath, err)
	}

	known := make(map[string]bool, len(entities))
	for _, e := range entities {
		known[strings.ToLower(e.Name)] = true
	}

	var kept []ExtractedRelation
	for _, c := range parsed.Relations {
		c.Source = strings.TrimSpace(c.Source)
		c.Target = strings.TrimSpace(c.Target)
		c.Type = taxonomy.Normalize(c.Type)
		if c.Source == "" || c.Target == "" || c.Source == c.Target {
			continue
		}
		if !known[strings.ToLower(c.Source)] || !known[strings.ToLower(c.Target)] {
			r.logger.Debug("dropping relation %s->%s from %s: endpoint not among extracted entities", c.Source, c.Target, doc.FilePath)
			continue
		}
		if r.guardrails.ValidateRelationTypes && !r.policy.IsRelationType(c.Type) {
			r.logger.Debug("dropping relation %s->%s from %s: type %q outside taxonomy", c.Source, c.Target, doc.FilePath, c.Type)
			continue
		}
		if c.Confidence > 0 && c.Confidence < r.guardrails.RelationConfidenceThreshold {
			continue
		}
		kept = append(kept, c)
		if r.guardrails.MaxRelationsPerDocument > 0 && len(kept) >= r.guardrails.MaxRelationsPerDocument {
			r.logger.Warn("relation cap reached for %s (%d)", doc.FilePath, len(kept))
			break
		}
	}
	return kept, nil
}
