package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"

	domain "github.com/entra-mcp/entra-mcp/internal/server-plugins/registration/domain"
	"github.com/entra-mcp/entra-mcp/pkg/config"
	"github.com/sashabaranov/go-openai"
)

// OpenAIInterpreter calls an Azure OpenAI chat deployment.
type OpenAIInterpreter struct {
	client     *openai.Client
	deployment string
}

func NewOpenAIInterpreter(cfg config.InterpreterConfig, httpClient *http.Client) *OpenAIInterpreter {
	clientConfig := openai.DefaultAzureConfig(cfg.APIKey, cfg.Endpoint)
	if cfg.APIVersion != "" {
		clientConfig.APIVersion = cfg.APIVersion
	}
	deployment := cfg.Deployment
	clientConfig.AzureModelMapperFunc = func(string) string { return deployment }
	if httpClient != nil {
		clientConfig.HTTPClient = httpClient
	}
	return &OpenAIInterpreter{
		client:     openai.NewClientWithConfig(clientConfig),
		deployment: deployment,
	}
}

func (i *OpenAIInterpreter) Interpret(ctx context.Context, prompt domain.PromptContext, rawText string) (string, error) {
	temperature := prompt.Temperature
	if temperature <= 0 {
		// a zero temperature is dropped from the request by the client library
		temperature = math.SmallestNonzeroFloat32
	}

	resp, err := i.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: i.deployment,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: rawText},
		},
		Temperature: temperature,
		MaxTokens:   prompt.MaxTokens,
		N:           1,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("chat completion rejected with status %d: %w", apiErr.HTTPStatusCode, err)
		}
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}
