package extract

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/tracewire/inventorygraph/log"
)

// Guardrails bounds what extraction may consume and emit: document size
// caps, per-document entity/relation caps, confidence thresholds, taxonomy
// validation, secret redaction and LLM retry policy.
type Guardrails struct {
	ValidateEntityTypes         bool          `json:"validate_entity_types" yaml:"validate_entity_types"`
	ValidateRelationTypes       bool          `json:"validate_relation_types" yaml:"validate_relation_types"`
	EntityConfidenceThreshold   float64       `json:"entity_confidence_threshold" yaml:"entity_confidence_threshold"`
	RelationConfidenceThreshold float64       `json:"relation_confidence_threshold" yaml:"relation_confidence_threshold"`
	MaxEntitiesPerDocument      int           `json:"max_entities_per_document" yaml:"max_entities_per_document"`
	MaxRelationsPerDocument     int           `json:"max_relations_per_document" yaml:"max_relations_per_document"`
	MaxDocumentChars            int           `json:"max_document_chars" yaml:"max_document_chars"`
	FilterSecrets               bool          `json:"filter_secrets" yaml:"filter_secrets"`
	MaxRetries                  int           `json:"max_retries" yaml:"max_retries"`
	RetryDelay                  time.Duration `json:"retry_delay_seconds" yaml:"retry_delay_seconds"`
	SkipOnError                 bool          `json:"skip_on_error" yaml:"skip_on_error"`
}

// DefaultGuardrails returns the default limits.
func DefaultGuardrails() Guardrails {
	return Guardrails{
		ValidateEntityTypes:         true,
		ValidateRelationTypes:       true,
		EntityConfidenceThreshold:   0.5,
		RelationConfidenceThreshold: 0.5,
		MaxEntitiesPerDocument:      50,
		MaxRelationsPerDocument:     100,
		MaxDocumentChars:            24000,
		FilterSecrets:               true,
		MaxRetries:                  2,
		RetryDelay:                  2 * time.Second,
		SkipOnError:                 true,
	}
}

// secretPatterns match credential material that must never reach the LLM.
var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(api[_-]?key|secret|token|password|passwd)\s*[:=]\s*['"]?[A-Za-z0-9+/_\-\.]{8,}['"]?`),
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
	regexp.MustCompile(`gh[pousr]_[A-Za-z0-9]{36,}`),
	regexp.MustCompile(`-----BEGIN [A-Z ]*PRIVATE KEY-----[\s\S]*?-----END [A-Z ]*PRIVATE KEY-----`),
	regexp.MustCompile(`eyJ[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}`),
}

// piiPatterns match personally identifying strings redacted alongside
// secrets.
var piiPatterns = []*regexp.Regexp{
	regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`),
	regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
}

// Redact replaces secret and PII matches with the [REDACTED] marker.
func Redact(text string) string {
	for _, re := range secretPatterns {
		text = re.ReplaceAllString(text, "[REDACTED]")
	}
	for _, re := range piiPatterns {
		text = re.ReplaceAllString(text, "[REDACTED]")
	}
	return text
}

// Prepare applies the guardrails' content filtering and size cap to document
// text before it reaches a prompt.
func (g Guardrails) Prepare(text string) string {
	if g.FilterSecrets {
		text = Redact(text)
	}
	if g.MaxDocumentChars > 0 && len(text) > g.MaxDocumentChars {
		text = text[:g.MaxDocumentChars]
	}
	return text
}

// generate calls the LLM with retry-and-backoff per the guardrails. The
// delay is a blocking sleep that honors context cancellation.
func (g Guardrails) generate(ctx context.Context, llm LLM, prompt string, logger log.Logger) (string, error) {
	var lastErr error
	attempts := g.MaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 1; attempt <= attempts; attempt++ {
		response, err := llm.Generate(ctx, prompt)
		if err == nil {
			return response, nil
		}
		lastErr = err
		if attempt < attempts {
			logger.Warn("llm call failed (attempt %d/%d): %v", attempt, attempts, err)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(g.RetryDelay):
			}
		}
	}
	return "", fmt.Errorf("llm call failed after %d attempts: %w", attempts, lastErr)
}
