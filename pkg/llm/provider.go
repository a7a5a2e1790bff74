// Package llm provides abstractions for LLM provider integration.
//
// Memory compaction only needs a single blocking completion per window, so
// the interface is deliberately narrow:
//
//	provider, err := openai.NewProvider(
//	    os.Getenv("OPENAI_API_KEY"),
//	    openai.WithModel("gpt-4o-mini"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	reply, err := provider.Complete(ctx, []*types.Message{
//	    types.NewUserMessage("Hello!"),
//	})
package llm

import (
	"context"

	"github.com/AutoByteus/autobyteus-sub006/pkg/types"
)

// Metadata keys providers set on completion messages.
const (
	MetadataPromptTokens     = "prompt_tokens"
	MetadataCompletionTokens = "completion_tokens"
)

// ModelCloner is an optional interface that LLM providers can implement to
// support lightweight per-call model overrides without constructing a full
// second provider. The returned provider shares credentials and transport with
// the original but directs calls to the given model.
type ModelCloner interface {
	CloneWithModel(model string) Provider
}

// Provider defines the interface for LLM integrations.
type Provider interface {
	// Complete sends messages to the LLM and returns the full response.
	// Providers that know the billed usage record it in the message
	// metadata under MetadataPromptTokens and MetadataCompletionTokens.
	Complete(ctx context.Context, messages []*types.Message) (*types.Message, error)

	// GetModelInfo returns information about the LLM model being used.
	GetModelInfo() *types.ModelInfo

	// GetModel returns the model name being used.
	GetModel() string
}

// ForModel returns p retargeted at model when p supports it and model is set,
// otherwise p itself.
func ForModel(p Provider, model string) Provider {
	if model == "" || model == p.GetModel() {
		return p
	}
	if cloner, ok := p.(ModelCloner); ok {
		return cloner.CloneWithModel(model)
	}
	return p
}

// PromptTokens reads the provider-reported prompt size from a completion.
func PromptTokens(msg *types.Message) (int, bool) {
	if msg == nil || msg.Metadata == nil {
		return 0, false
	}
	switch v := msg.Metadata[MetadataPromptTokens].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}
