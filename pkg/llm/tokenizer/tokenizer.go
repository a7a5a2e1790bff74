// Package tokenizer estimates prompt sizes for the compaction policy.
package tokenizer

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"

	"github.com/AutoByteus/autobyteus-sub006/pkg/types"
)

// DefaultEncoding is used for every model; it matches the GPT-4 family.
const DefaultEncoding = "cl100k_base"

const (
	tokensPerMessage = 3
	replyPriming     = 3
)

// Estimator reports the token size of a message list.
type Estimator interface {
	EstimateMessages(messages []*types.Message) int
}

// Tokenizer counts tokens with a tiktoken BPE encoding.
type Tokenizer struct {
	enc *tiktoken.Tiktoken
}

// New loads the default encoding.
func New() (*Tokenizer, error) {
	return NewWithEncoding(DefaultEncoding)
}

// NewWithEncoding loads a named tiktoken encoding.
func NewWithEncoding(name string) (*Tokenizer, error) {
	enc, err := tiktoken.GetEncoding(name)
	if err != nil {
		return nil, fmt.Errorf("tokenizer: load encoding %s: %w", name, err)
	}
	return &Tokenizer{enc: enc}, nil
}

// CountTokens returns the number of tokens in text.
func (t *Tokenizer) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	return len(t.enc.Encode(text, nil, nil))
}

// CountMessagesTokens counts a chat message list the way chat completion
// endpoints bill it: per-message framing, role and content, plus the reply
// priming tokens.
func (t *Tokenizer) CountMessagesTokens(messages []*types.Message) int {
	total := 0
	for _, msg := range messages {
		if msg == nil {
			continue
		}
		total += tokensPerMessage
		total += t.CountTokens(string(msg.Role))
		total += t.CountTokens(msg.Content)
	}
	return total + replyPriming
}

// EstimateMessages implements Estimator.
func (t *Tokenizer) EstimateMessages(messages []*types.Message) int {
	return t.CountMessagesTokens(messages)
}

// NewEstimator returns a tiktoken-backed estimator, or a CharEstimator when
// the encoding cannot be loaded (tiktoken fetches BPE ranks on first use).
func NewEstimator() Estimator {
	tok, err := New()
	if err != nil {
		return NewCharEstimator()
	}
	return tok
}
