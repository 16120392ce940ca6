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

// SchemaType is one project-specific entity type proposed by schema
// discovery.
type SchemaType struct {
	Type        string `json:"type"`
	Layer       string `json:"layer"`
	Description string `json:"description,omitempty"`
}

type schemaResponse struct {
	AdditionalEntityTypes []SchemaType `json:"additional_entity_types"`
}

// SchemaDiscoverer infers a project-specific taxonomy extension from a
// sample of documents before bulk extraction.
type SchemaDiscoverer struct {
	llm        LLM
	policy     taxonomy.Policy
	guardrails Guardrails
	logger     log.Logger
	maxTypes   int
}

// NewSchemaDiscoverer creates a SchemaDiscoverer proposing at most maxTypes
// new types (default 10 when <= 0).
func NewSchemaDiscoverer(llm LLM, policy taxonomy.Policy, guardrails Guardrails, logger log.Logger, maxTypes int) *SchemaDiscoverer {
	if logger == nil {
		logger = log.Default()
	}
	if maxTypes <= 0 {
		maxTypes = 10
	}
	return &SchemaDiscoverer{llm: llm, policy: policy, guardrails: guardrails, logger: logger, maxTypes: maxTypes}
}

// Discover proposes additional entity types from document samples. Proposals
// colliding with curated types or carrying unknown layers are dropped.
func (s *SchemaDiscoverer) Discover(ctx context.Context, samples []source.Document) ([]SchemaType, error) {
	if len(samples) == 0 {
		return nil, nil
	}

	var b strings.Builder
	for i, doc := range samples {
		if i >= 5 {
			break
		}
		text := s.guardrails.Prepare(doc.Content)
		if len(text) > 1500 {
			text = text[:1500]
		}
		fmt.Fprintf(&b, "--- %s ---\n%s\n", doc.FilePath, text)
	}

	layers := []string{
		taxonomy.LayerProduct, taxonomy.LayerDomain, taxonomy.LayerService,
		taxonomy.LayerCode, taxonomy.LayerData, taxonomy.LayerTesting,
		taxonomy.LayerDelivery, taxonomy.LayerOrganization,
	}
	prompt := fmt.Sprintf(schemaPrompt,
		s.maxTypes,
		strings.Join(sortedTypes(s.policy.EntityLayers), ", "),
		strings.Join(layers, ", "),
		b.String())

	response, err := s.guardrails.generate(ctx, s.llm, prompt, s.logger)
	if err != nil {
		return nil, err
	}

	var parsed schemaResponse
	if err := json.Unmarshal(ExtractJSON(response), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse schema discovery: %w", err)
	}

	validLayers := make(map[string]bool, len(layers))
	for _, l := range layers {
		validLayers[l] = true
	}

	var kept []SchemaType
	for _, st := range parsed.AdditionalEntityTypes {
		st.Type = taxonomy.Normalize(st.Type)
		st.Layer = taxonomy.Normalize(st.Layer)
		if st.Type == "" || s.policy.IsEntityType(st.Type) || !validLayers[st.Layer] {
			continue
		}
		kept = append(kept, st)
		if len(kept) >= s.maxTypes {
			break
		}
	}
	return kept, nil
}

// ExtendPolicy returns a copy of the policy with the discovered types added
// to their layers.
func ExtendPolicy(policy taxonomy.Policy, types []SchemaType) taxonomy.Policy {
	if len(types) == 0 {
		return policy
	}
	layers := make(map[string]string, len(policy.EntityLayers)+len(types))
	for k, v := range policy.EntityLayers {
		layers[k] = v
	}
	for _, st := range types {
		layers[st.Type] = st.Layer
	}
	policy.EntityLayers = layers
	return policy
}
