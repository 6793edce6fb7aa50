package advisor

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// GitHubModelsBaseURL is the OpenAI-compatible GitHub Models endpoint.
const GitHubModelsBaseURL = "https://models.inference.ai.azure.com"

// LLMAdvisor asks any langchaingo model for suggestions.
type LLMAdvisor struct {
	name        string
	model       llms.Model
	temperature float64
	maxTokens   int
}

// NewLLMAdvisor wraps model. name is used in logs, metrics and Suggestion.Source.
func NewLLMAdvisor(name string, model llms.Model, temperature float64, maxTokens int) *LLMAdvisor {
	return &LLMAdvisor{name: name, model: model, temperature: temperature, maxTokens: maxTokens}
}

// NewOpenAI creates an advisor on the OpenAI API, or on any compatible
// endpoint when baseURL is set.
func NewOpenAI(name, token, model, baseURL string, temperature float64, maxTokens int) (*LLMAdvisor, error) {
	if token == "" {
		return nil, fmt.Errorf("advisor: %s: an API key is required", name)
	}
	opts := []openai.Option{
		openai.WithToken(token),
		openai.WithModel(model),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("advisor: failed to create %s client: %w", name, err)
	}
	return NewLLMAdvisor(name, client, temperature, maxTokens), nil
}

// NewOllama creates an advisor on a local Ollama server.
func NewOllama(model, serverURL string, temperature float64, maxTokens int) (*LLMAdvisor, error) {
	opts := []ollama.Option{ollama.WithModel(model)}
	if serverURL != "" {
		opts = append(opts, ollama.WithServerURL(serverURL))
	}

	client, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("advisor: failed to create ollama client: %w", err)
	}
	return NewLLMAdvisor("ollama", client, temperature, maxTokens), nil
}

// Name returns the backend name
func (a *LLMAdvisor) Name() string {
	return a.name
}

// Suggest implements Advisor
func (a *LLMAdvisor) Suggest(ctx context.Context, req Request) (*Suggestion, error) {
	if len(req.Ingredients) == 0 {
		return nil, ErrNoIngredients
	}

	response, err := a.model.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, buildPrompt(req)),
	},
		llms.WithTemperature(a.temperature),
		llms.WithMaxTokens(a.maxTokens),
	)
	if err != nil {
		return nil, fmt.Errorf("advisor: %s: failed to generate suggestion: %w", a.name, err)
	}
	if response == nil || len(response.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty response from %s", ErrInvalidResponse, a.name)
	}

	s, err := parseSuggestion(response.Choices[0].Content)
	if err != nil {
		return nil, err
	}
	s.Source = a.name
	return s, nil
}
