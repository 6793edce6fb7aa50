package advisor

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/ai/azopenai"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
)

// chatCompleter is the part of *azopenai.Client the advisor uses.
type chatCompleter interface {
	GetChatCompletions(ctx context.Context, body azopenai.ChatCompletionsOptions, options *azopenai.GetChatCompletionsOptions) (azopenai.GetChatCompletionsResponse, error)
}

// AzureAdvisor asks an Azure OpenAI deployment for suggestions.
type AzureAdvisor struct {
	client         chatCompleter
	deploymentName string
	temperature    float32
	maxTokens      int32
}

// NewAzureAdvisor creates an advisor for one Azure OpenAI deployment.
func NewAzureAdvisor(endpoint, apiKey, deploymentName string, temperature float64, maxTokens int) (*AzureAdvisor, error) {
	if endpoint == "" || apiKey == "" || deploymentName == "" {
		return nil, fmt.Errorf("advisor: azure configuration missing: endpoint, api key and deployment name are required")
	}

	keyCredential := azcore.NewKeyCredential(apiKey)
	client, err := azopenai.NewClientWithKeyCredential(endpoint, keyCredential, nil)
	if err != nil {
		return nil, fmt.Errorf("advisor: failed to create Azure OpenAI client: %w", err)
	}

	return &AzureAdvisor{
		client:         client,
		deploymentName: deploymentName,
		temperature:    float32(temperature),
		maxTokens:      int32(maxTokens),
	}, nil
}

// Name returns the backend name
func (a *AzureAdvisor) Name() string {
	return "azure"
}

// Suggest implements Advisor
func (a *AzureAdvisor) Suggest(ctx context.Context, req Request) (*Suggestion, error) {
	if len(req.Ingredients) == 0 {
		return nil, ErrNoIngredients
	}

	resp, err := a.client.GetChatCompletions(ctx, azopenai.ChatCompletionsOptions{
		Messages: []azopenai.ChatRequestMessageClassification{
			&azopenai.ChatRequestSystemMessage{
				Content: azopenai.NewChatRequestSystemMessageContent(systemPrompt),
			},
			&azopenai.ChatRequestUserMessage{
				Content: azopenai.NewChatRequestUserMessageContent(buildPrompt(req)),
			},
		},
		MaxTokens:      to.Ptr(a.maxTokens),
		Temperature:    to.Ptr(a.temperature),
		DeploymentName: to.Ptr(a.deploymentName),
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("advisor: Azure OpenAI completion failed: %w", err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message == nil || resp.Choices[0].Message.Content == nil {
		return nil, fmt.Errorf("%w: empty response from Azure OpenAI", ErrInvalidResponse)
	}

	s, err := parseSuggestion(*resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	s.Source = a.Name()
	return s, nil
}
