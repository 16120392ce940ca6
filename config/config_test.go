package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte("llm_model: gpt-4o\n"))
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o", cfg.LLMModel)
	assert.Equal(t, 4000, cfg.ChunkSize)
	assert.True(t, cfg.AutoSave)
	assert.True(t, cfg.ExtractRelations)
	assert.Equal(t, 3, cfg.MaxAttempts)
	// Extraction is sequential unless the file opts in to concurrency.
	assert.Equal(t, 1, cfg.MaxConcurrentExtractions)
	assert.Equal(t, 0.5, cfg.Guardrails.EntityConfidenceThreshold)
}

func TestParsePartialGuardrailsKeepsDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
guardrails:
  entity_confidence_threshold: 0.8
  retry_delay_seconds: 5
`))
	require.NoError(t, err)

	assert.Equal(t, 0.8, cfg.Guardrails.EntityConfidenceThreshold)
	assert.Equal(t, 5, cfg.Guardrails.RetryDelaySeconds)
	// Untouched fields stay at their defaults.
	assert.Equal(t, 50, cfg.Guardrails.MaxEntitiesPerDocument)
	assert.True(t, cfg.Guardrails.FilterSecrets)

	g := cfg.Guardrails.ToExtract()
	assert.Equal(t, 5*time.Second, g.RetryDelay)
}

func TestParseExplicitFalseOverridesDefault(t *testing.T) {
	cfg, err := Parse([]byte("auto_save: false\nextract_relations: false\n"))
	require.NoError(t, err)
	assert.False(t, cfg.AutoSave)
	assert.False(t, cfg.ExtractRelations)
}

func TestParseRejectsMalformedYAML(t *testing.T) {
	_, err := Parse([]byte("llm_model: [unclosed"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{"temperature", "temperature: 3.5", "temperature"},
		{"chunk size", "chunk_size: 0", "chunk_size"},
		{"overlap", "chunk_size: 100\nchunk_overlap: 100", "chunk_overlap"},
		{"concurrency", "max_concurrent_extractions: -1", "max_concurrent_extractions"},
		{"attempts", "max_attempts: 0", "max_attempts"},
		{"threshold", "guardrails:\n  entity_confidence_threshold: 1.5", "entity_confidence_threshold"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ingestion.yaml")
	content := `
llm_model: gpt-4o
graph_path: out/graph.json
chunk_size: 1000
chunk_overlap: 100
max_concurrent_extractions: 2
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "out/graph.json", cfg.GraphPath)
	assert.Equal(t, 2, cfg.MaxConcurrentExtractions)
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestPipelineOptionsCount(t *testing.T) {
	cfg := Default()
	assert.Len(t, cfg.PipelineOptions(), 7)

	cfg.AutoSave = false
	assert.Len(t, cfg.PipelineOptions(), 6)
}
