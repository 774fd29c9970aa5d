package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/lemara98/post-automation/internal/logger"
	"github.com/sashabaranov/go-openai"
)

// OpenAIProvider implements the Provider interface for OpenAI and Azure OpenAI
type OpenAIProvider struct {
	client *openai.Client
	model  string
	name   string
}

func httpClient(opts Options) *http.Client {
	if opts.HTTPClient != nil {
		return opts.HTTPClient
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(opts Options) *OpenAIProvider {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	cfg.HTTPClient = httpClient(opts)
	return &OpenAIProvider{
		client: openai.NewClientWithConfig(cfg),
		model:  opts.Model,
		name:   "openai",
	}
}

// NewAzureProvider routes every request to the configured deployment.
func NewAzureProvider(opts Options) *OpenAIProvider {
	cfg := openai.DefaultAzureConfig(opts.APIKey, opts.AzureEndpoint)
	if opts.APIVersion != "" {
		cfg.APIVersion = opts.APIVersion
	}
	deployment := opts.AzureDeployment
	cfg.AzureModelMapperFunc = func(string) string { return deployment }
	cfg.HTTPClient = httpClient(opts)
	model := opts.Model
	if model == "" {
		model = deployment
	}
	return &OpenAIProvider{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		name:   "azure",
	}
}

// Chat sends messages to OpenAI and returns the response
func (p *OpenAIProvider) Chat(ctx context.Context, req Request) (string, error) {
	chatMessages := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, msg := range req.Messages {
		chatMessages[i] = openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	logger.Debug("llm request",
		"provider", p.name,
		"model", p.model,
		"num_messages", len(req.Messages))

	start := time.Now()

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    chatMessages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})

	duration := time.Since(start)

	if err != nil {
		logger.Warn("llm call failed",
			"provider", p.name,
			"error", err,
			"duration", duration,
			"model", p.model)
		return "", fmt.Errorf("%s chat completion: %w", p.name, err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s chat completion: no choices returned", p.name)
	}

	response := resp.Choices[0].Message.Content

	logger.Debug("llm response",
		"provider", p.name,
		"model", p.model,
		"duration", duration,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"response_length", len(response))

	return response, nil
}

// Name returns the provider name
func (p *OpenAIProvider) Name() string {
	return p.name
}
