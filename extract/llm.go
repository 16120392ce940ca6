// Package extract converts document text into structured entity, relation
// and fact candidates using LLM completions constrained to the taxonomy.
package extract

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"github.com/tmc/langchaingo/llms"
)

// LLM is the completion interface consumed by the extractors: one prompt in,
// one raw completion out. Retry and backoff are applied by the callers per
// the guardrails configuration, not by implementations.
type LLM interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ModelLLM adapts a langchaingo llms.Model to the LLM interface.
type ModelLLM struct {
	model       llms.Model
	temperature float64
}

// NewModelLLM wraps a langchaingo model.
func NewModelLLM(model llms.Model, temperature float64) *ModelLLM {
	return &ModelLLM{model: model, temperature: temperature}
}

// Generate runs a single-prompt completion.
func (m *ModelLLM) Generate(ctx context.Context, prompt string) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m.model, prompt,
		llms.WithTemperature(m.temperature))
}

// OpenAILLM adapts the OpenAI chat completion API to the LLM interface.
type OpenAILLM struct {
	client      *openai.Client
	model       string
	temperature float32
}

// OpenAIOption configures an OpenAILLM.
type OpenAIOption func(*OpenAILLM)

// WithOpenAIModel sets the model name (default gpt-4o-mini).
func WithOpenAIModel(model string) OpenAIOption {
	return func(o *OpenAILLM) {
		o.model = model
	}
}

// WithOpenAITemperature sets the sampling temperature.
func WithOpenAITemperature(temperature float32) OpenAIOption {
	return func(o *OpenAILLM) {
		o.temperature = temperature
	}
}

// NewOpenAILLM creates an adapter over an OpenAI client.
func NewOpenAILLM(client *openai.Client, opts ...OpenAIOption) *OpenAILLM {
	o := &OpenAILLM{
		client: client,
		model:  openai.GPT4oMini,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Generate runs a single-turn chat completion.
func (o *OpenAILLM) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: o.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
