package advisor

import (
	"fmt"
	"os"

	"mise/internal/config"
)

// NewBackend creates the configured primary backend. It returns nil for the
// "none" backend, leaving every suggestion to the fallback generator.
func NewBackend(cfg config.AdvisorConfig) (Advisor, error) {
	switch cfg.Backend {
	case config.AdvisorNone, "":
		return nil, nil
	case config.AdvisorOpenAI:
		return NewOpenAI("openai", apiKey(cfg, "OPENAI_API_KEY"), cfg.Model, cfg.BaseURL, cfg.Temperature, cfg.MaxTokens)
	case config.AdvisorGitHub:
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = GitHubModelsBaseURL
		}
		return NewOpenAI("github_models", apiKey(cfg, "GITHUB_TOKEN"), cfg.Model, baseURL, cfg.Temperature, cfg.MaxTokens)
	case config.AdvisorOllama:
		return NewOllama(cfg.Model, cfg.BaseURL, cfg.Temperature, cfg.MaxTokens)
	case config.AdvisorAzure:
		return NewAzureAdvisor(cfg.Azure.Endpoint, cfg.Azure.APIKey, cfg.Azure.Deployment, cfg.Temperature, cfg.MaxTokens)
	default:
		return nil, fmt.Errorf("advisor: unsupported backend %q", cfg.Backend)
	}
}

// apiKey prefers the configured key over the provider's usual variable.
func apiKey(cfg config.AdvisorConfig, envVar string) string {
	if cfg.APIKey != "" {
		return cfg.APIKey
	}
	return os.Getenv(envVar)
}
