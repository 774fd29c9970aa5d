// Package llm is the chat-completion boundary used by content generation.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Provider defines the interface for LLM providers
type Provider interface {
	// Chat sends a request and returns the first completion's text.
	Chat(ctx context.Context, req Request) (string, error)

	// Name returns the provider name
	Name() string
}

// Message represents a chat message
type Message struct {
	Role    string // "system", "user", "assistant"
	Content string
}

// Request is a single completion call. Zero Temperature and MaxTokens leave
// the provider defaults in place.
type Request struct {
	Messages    []Message
	Temperature float32
	MaxTokens   int
}

// System and User build the common two-message prompt.
func System(content string) Message { return Message{Role: "system", Content: content} }
func User(content string) Message   { return Message{Role: "user", Content: content} }

// Options configures a provider built by New.
type Options struct {
	Provider        string // openai, azure or scripted
	APIKey          string
	Model           string
	BaseURL         string
	AzureEndpoint   string
	AzureDeployment string
	APIVersion      string
	Timeout         time.Duration
	HTTPClient      *http.Client
}

// New creates a provider from options. A missing key for a real provider is
// an error.
func New(opts Options) (Provider, error) {
	switch opts.Provider {
	case "", "openai":
		if opts.APIKey == "" {
			return nil, fmt.Errorf("openai: api key is required")
		}
		return NewOpenAIProvider(opts), nil
	case "azure":
		if opts.APIKey == "" || opts.AzureEndpoint == "" || opts.AzureDeployment == "" {
			return nil, fmt.Errorf("azure: api key, endpoint and deployment are required")
		}
		return NewAzureProvider(opts), nil
	case "scripted":
		return NewScripted(), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", opts.Provider)
	}
}
