// Package openai provides an OpenAI-compatible LLM provider implementation.
//
// Example usage:
//
//	provider, err := openai.NewProvider(
//	    os.Getenv("OPENAI_API_KEY"),
//	    openai.WithModel("gpt-4o-mini"),
//	)
//	if err != nil {
//	    panic(err)
//	}
//
//	reply, err := provider.Complete(context.Background(), []*types.Message{
//	    types.NewUserMessage("Hello!"),
//	})
package openai

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/AutoByteus/autobyteus-sub006/pkg/llm"
	"github.com/AutoByteus/autobyteus-sub006/pkg/types"
)

const (
	// DefaultBaseURL is the default OpenAI API base URL
	DefaultBaseURL = "https://api.openai.com/v1"

	// DefaultModel is used when WithModel is not given.
	DefaultModel = "gpt-4o-mini"
)

// Provider implements llm.Provider for OpenAI-compatible chat completion APIs.
type Provider struct {
	client     openai.Client
	httpClient *http.Client
	apiKey     string
	baseURL    string
	model      string
	maxRetries int
	modelInfo  *types.ModelInfo
}

// ProviderOption is a function that configures a Provider.
type ProviderOption func(*Provider)

// WithModel sets the model to use for completions.
func WithModel(model string) ProviderOption {
	return func(p *Provider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithBaseURL sets a custom base URL for OpenAI-compatible APIs.
// This enables using Azure OpenAI, local models, or other compatible services.
func WithBaseURL(baseURL string) ProviderOption {
	return func(p *Provider) {
		if baseURL != "" {
			p.baseURL = baseURL
		}
	}
}

// WithHTTPClient replaces the HTTP client used for requests.
func WithHTTPClient(c *http.Client) ProviderOption {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// WithMaxRetries sets how often a failed request is retried.
func WithMaxRetries(n int) ProviderOption {
	return func(p *Provider) {
		p.maxRetries = n
	}
}

// WithModelInfo overrides the built-in context window table.
func WithModelInfo(info *types.ModelInfo) ProviderOption {
	return func(p *Provider) {
		p.modelInfo = info
	}
}

// NewProvider creates a new OpenAI provider with the given API key.
//
// If apiKey is empty, it will attempt to read from the OPENAI_API_KEY environment variable.
// If baseURL is not provided via WithBaseURL option, it will check OPENAI_BASE_URL environment variable.
func NewProvider(apiKey string, opts ...ProviderOption) (*Provider, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required (provide via parameter or OPENAI_API_KEY environment variable)")
	}

	p := &Provider{
		model:      DefaultModel,
		apiKey:     apiKey,
		httpClient: http.DefaultClient,
		baseURL:    DefaultBaseURL,
		maxRetries: 2,
	}
	for _, opt := range opts {
		opt(p)
	}

	// If baseURL wasn't set by options, check environment variable
	if p.baseURL == DefaultBaseURL {
		if envBaseURL := os.Getenv("OPENAI_BASE_URL"); envBaseURL != "" {
			p.baseURL = envBaseURL
		}
	}

	if p.modelInfo == nil {
		p.modelInfo = LookupModelInfo(p.model)
	}
	p.client = openai.NewClient(
		option.WithAPIKey(p.apiKey),
		option.WithBaseURL(p.baseURL),
		option.WithHTTPClient(p.httpClient),
		option.WithMaxRetries(p.maxRetries),
	)
	return p, nil
}

// CloneWithModel returns a shallow copy of p configured to use the given model.
// The clone shares the same client, API key, and base URL as the original.
// It implements llm.ModelCloner.
func (p *Provider) CloneWithModel(model string) llm.Provider {
	clone := *p
	clone.model = model
	clone.modelInfo = LookupModelInfo(model)
	return &clone
}

// Complete sends messages to the chat completions endpoint and returns the
// assistant reply. Prompt and completion token usage are recorded in the
// reply metadata.
func (p *Provider) Complete(ctx context.Context, messages []*types.Message) (*types.Message, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("openai: no messages to send")
	}
	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(p.model),
		Messages: ConvertMessages(messages),
	})
	if err != nil {
		return nil, fmt.Errorf("openai: chat completion (%s): %w", p.model, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: chat completion (%s) returned no choices", p.model)
	}

	reply := types.NewAssistantMessage(resp.Choices[0].Message.Content)
	reply.WithMetadata(llm.MetadataPromptTokens, int(resp.Usage.PromptTokens)).
		WithMetadata(llm.MetadataCompletionTokens, int(resp.Usage.CompletionTokens))
	return reply, nil
}

// GetModelInfo returns information about the OpenAI model being used.
func (p *Provider) GetModelInfo() *types.ModelInfo {
	return p.modelInfo
}

// GetModel returns the model name being used.
func (p *Provider) GetModel() string {
	return p.model
}

// GetBaseURL returns the base URL being used.
func (p *Provider) GetBaseURL() string {
	return p.baseURL
}

// ConvertMessages renders provider-neutral messages as OpenAI chat params.
// Tool-role messages are sent as user content since memory snapshots never
// carry live tool call ids.
func ConvertMessages(messages []*types.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		if msg == nil {
			continue
		}
		switch msg.Role {
		case types.RoleSystem:
			out = append(out, openai.SystemMessage(msg.Content))
		case types.RoleAssistant:
			out = append(out, openai.AssistantMessage(msg.Content))
		default:
			out = append(out, openai.UserMessage(msg.Content))
		}
	}
	return out
}
