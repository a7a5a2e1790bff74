package tokenizer

import (
	"math"
	"sync"

	"github.com/AutoByteus/autobyteus-sub006/pkg/types"
)

const (
	defaultCharactersPerToken = 4.0
	defaultSmoothingFactor    = 0.3
)

// CharEstimator approximates tokens from character counts. It needs no
// vocabulary and can be calibrated with real usage numbers reported by the
// provider.
type CharEstimator struct {
	mu                 sync.Mutex
	charactersPerToken float64
	smoothingFactor    float64
	observationCount   int
}

// NewCharEstimator starts at 4 characters per token.
func NewCharEstimator() *CharEstimator {
	return &CharEstimator{
		charactersPerToken: defaultCharactersPerToken,
		smoothingFactor:    defaultSmoothingFactor,
	}
}

// EstimateMessages implements Estimator. It always rounds up.
func (e *CharEstimator) EstimateMessages(messages []*types.Message) int {
	e.mu.Lock()
	ratio := e.charactersPerToken
	e.mu.Unlock()

	tokens := float64(messagesCharCount(messages)) / ratio
	return int(math.Ceil(tokens))
}

// RecordUsage recalibrates the ratio from the provider's prompt token count.
// The first observation replaces the default; later ones are blended with an
// exponential moving average.
func (e *CharEstimator) RecordUsage(messages []*types.Message, actualInputTokens int64) {
	if actualInputTokens <= 0 {
		return
	}
	characters := messagesCharCount(messages)
	if characters == 0 {
		return
	}
	observed := float64(characters) / float64(actualInputTokens)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.observationCount++
	if e.observationCount == 1 {
		e.charactersPerToken = observed
		return
	}
	e.charactersPerToken = e.smoothingFactor*observed + (1.0-e.smoothingFactor)*e.charactersPerToken
}

// CharactersPerToken returns the current ratio.
func (e *CharEstimator) CharactersPerToken() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.charactersPerToken
}

func messagesCharCount(messages []*types.Message) int {
	total := 0
	for _, msg := range messages {
		if msg == nil {
			continue
		}
		total += len(msg.Role) + len(msg.Content)
	}
	return total
}
