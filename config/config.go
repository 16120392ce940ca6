// Package config loads the YAML ingestion configuration and turns it into
// pipeline options. Parse errors are structural failures: they abort a run
// instead of being recorded per document.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tracewire/inventorygraph/extract"
	"github.com/tracewire/inventorygraph/ingest"
	"github.com/tracewire/inventorygraph/source"
)

// Guardrails is the YAML form of extract.Guardrails. Retry delay is given in
// whole seconds rather than a duration literal.
type Guardrails struct {
	ValidateEntityTypes         bool    `yaml:"validate_entity_types"`
	ValidateRelationTypes       bool    `yaml:"validate_relation_types"`
	EntityConfidenceThreshold   float64 `yaml:"entity_confidence_threshold"`
	RelationConfidenceThreshold float64 `yaml:"relation_confidence_threshold"`
	MaxEntitiesPerDocument      int     `yaml:"max_entities_per_document"`
	MaxRelationsPerDocument     int     `yaml:"max_relations_per_document"`
	MaxDocumentChars            int     `yaml:"max_document_chars"`
	FilterSecrets               bool    `yaml:"filter_secrets"`
	MaxRetries                  int     `yaml:"max_retries"`
	RetryDelaySeconds           int     `yaml:"retry_delay_seconds"`
	SkipOnError                 bool    `yaml:"skip_on_error"`
}

// ToExtract converts to the extraction-layer representation.
func (g Guardrails) ToExtract() extract.Guardrails {
	return extract.Guardrails{
		ValidateEntityTypes:         g.ValidateEntityTypes,
		ValidateRelationTypes:       g.ValidateRelationTypes,
		EntityConfidenceThreshold:   g.EntityConfidenceThreshold,
		RelationConfidenceThreshold: g.RelationConfidenceThreshold,
		MaxEntitiesPerDocument:      g.MaxEntitiesPerDocument,
		MaxRelationsPerDocument:     g.MaxRelationsPerDocument,
		MaxDocumentChars:            g.MaxDocumentChars,
		FilterSecrets:               g.FilterSecrets,
		MaxRetries:                  g.MaxRetries,
		RetryDelay:                  time.Duration(g.RetryDelaySeconds) * time.Second,
		SkipOnError:                 g.SkipOnError,
	}
}

// Config is the ingestion configuration file.
type Config struct {
	LLMModel                 string     `yaml:"llm_model"`
	Temperature              float64    `yaml:"temperature"`
	EmbeddingModel           string     `yaml:"embedding_model"`
	Guardrails               Guardrails `yaml:"guardrails"`
	GraphPath                string     `yaml:"graph_path"`
	AutoSave                 bool       `yaml:"auto_save"`
	ExtractRelations         bool       `yaml:"extract_relations"`
	ExtractFacts             bool       `yaml:"extract_facts"`
	ChunkSize                int        `yaml:"chunk_size"`
	ChunkOverlap             int        `yaml:"chunk_overlap"`
	MaxConcurrentExtractions int        `yaml:"max_concurrent_extractions"`
	MaxAttempts              int        `yaml:"max_attempts"`
	CheckpointDir            string     `yaml:"checkpoint_dir"`
}

// Default returns the configuration used when no file is given. Fields absent
// from a loaded file keep these values.
func Default() Config {
	g := extract.DefaultGuardrails()
	return Config{
		LLMModel:    "gpt-4o-mini",
		Temperature: 0.1,
		Guardrails: Guardrails{
			ValidateEntityTypes:         g.ValidateEntityTypes,
			ValidateRelationTypes:       g.ValidateRelationTypes,
			EntityConfidenceThreshold:   g.EntityConfidenceThreshold,
			RelationConfidenceThreshold: g.RelationConfidenceThreshold,
			MaxEntitiesPerDocument:      g.MaxEntitiesPerDocument,
			MaxRelationsPerDocument:     g.MaxRelationsPerDocument,
			MaxDocumentChars:            g.MaxDocumentChars,
			FilterSecrets:               g.FilterSecrets,
			MaxRetries:                  g.MaxRetries,
			RetryDelaySeconds:           int(g.RetryDelay / time.Second),
			SkipOnError:                 g.SkipOnError,
		},
		GraphPath:                "knowledge-graph.json",
		AutoSave:                 true,
		ExtractRelations:         true,
		ExtractFacts:             true,
		ChunkSize:                4000,
		ChunkOverlap:             200,
		MaxConcurrentExtractions: 1,
		MaxAttempts:              3,
	}
}

// Load reads and validates a YAML config file. Absent fields fall back to
// Default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects structurally invalid configurations.
func (c *Config) Validate() error {
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature %v out of range [0, 2]", c.Temperature)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("chunk_overlap %d must be in [0, chunk_size)", c.ChunkOverlap)
	}
	if c.MaxConcurrentExtractions <= 0 {
		return fmt.Errorf("max_concurrent_extractions must be positive, got %d", c.MaxConcurrentExtractions)
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max_attempts must be positive, got %d", c.MaxAttempts)
	}
	if t := c.Guardrails.EntityConfidenceThreshold; t < 0 || t > 1 {
		return fmt.Errorf("entity_confidence_threshold %v out of range [0, 1]", t)
	}
	if t := c.Guardrails.RelationConfidenceThreshold; t < 0 || t > 1 {
		return fmt.Errorf("relation_confidence_threshold %v out of range [0, 1]", t)
	}
	if c.Guardrails.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative, got %d", c.Guardrails.MaxRetries)
	}
	return nil
}

// PipelineOptions translates the config into ingestion pipeline options.
// The checkpoint store is wired separately since it may be file, sqlite,
// redis or postgres backed.
func (c *Config) PipelineOptions() []ingest.Option {
	opts := []ingest.Option{
		ingest.WithGuardrails(c.Guardrails.ToExtract()),
		ingest.WithRelationExtraction(c.ExtractRelations),
		ingest.WithFactExtraction(c.ExtractFacts),
		ingest.WithMaxConcurrentExtractions(c.MaxConcurrentExtractions),
		ingest.WithMaxAttempts(c.MaxAttempts),
		ingest.WithChunker(source.NewChunker(
			source.WithChunkSize(c.ChunkSize),
			source.WithChunkOverlap(c.ChunkOverlap),
		)),
	}
	if c.AutoSave && c.GraphPath != "" {
		opts = append(opts, ingest.WithGraphPath(c.GraphPath))
	}
	return opts
}
