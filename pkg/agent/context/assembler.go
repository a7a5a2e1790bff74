package context

import (
	"context"
	"fmt"
	"math"

	"github.com/AutoByteus/autobyteus-sub006/pkg/agent/memory"
	"github.com/AutoByteus/autobyteus-sub006/pkg/agent/prompts"
	"github.com/AutoByteus/autobyteus-sub006/pkg/llm"
	"github.com/AutoByteus/autobyteus-sub006/pkg/observability"
	"github.com/AutoByteus/autobyteus-sub006/pkg/types"
)

// TokenEstimator sizes a message list in tokens.
type TokenEstimator interface {
	EstimateMessages(messages []*types.Message) int
}

// usageRecorder is implemented by estimators that calibrate against
// provider-reported usage.
type usageRecorder interface {
	RecordUsage(messages []*types.Message, actualInputTokens int64)
}

// Request is an assembled LLM request.
type Request struct {
	// Messages is [system prompt, memory snapshot, current user message].
	Messages []*types.Message

	// DidCompact is true when compaction ran and succeeded for this request.
	DidCompact bool

	// PromptTokens is the estimated size of Messages.
	PromptTokens int

	// CompactionErr is set when compaction was attempted and failed. The
	// request is still usable; the pending compaction request stays set.
	CompactionErr error
}

// Assembler prepares each turn's request from memory.
type Assembler struct {
	manager     *memory.Manager
	compactor   *Compactor
	retriever   *memory.Retriever
	estimator   TokenEstimator
	inputBudget int
	maxEpisodic int
	maxSemantic int
	recentTurns int
	metrics     *observability.Metrics
}

// AssemblerOption configures an Assembler.
type AssemblerOption func(*Assembler)

// WithMemoryLimits bounds how many episodic and semantic items the snapshot
// carries. Zero or less means all.
func WithMemoryLimits(maxEpisodic, maxSemantic int) AssemblerOption {
	return func(a *Assembler) {
		a.maxEpisodic = maxEpisodic
		a.maxSemantic = maxSemantic
	}
}

// WithRecentTurns limits the verbatim turns in the snapshot. By default every
// turn still in the raw store is shown, since compaction is what bounds it.
func WithRecentTurns(n int) AssemblerOption {
	return func(a *Assembler) {
		a.recentTurns = n
	}
}

// WithAssemblerMetrics records prompt sizes.
func WithAssemblerMetrics(m *observability.Metrics) AssemblerOption {
	return func(a *Assembler) {
		a.metrics = m
	}
}

// NewAssembler wires the collaborators of request assembly. inputBudget is
// the prompt token budget the policy is evaluated against.
func NewAssembler(manager *memory.Manager, compactor *Compactor, retriever *memory.Retriever, estimator TokenEstimator, inputBudget int, opts ...AssemblerOption) *Assembler {
	a := &Assembler{
		manager:     manager,
		compactor:   compactor,
		retriever:   retriever,
		estimator:   estimator,
		inputBudget: inputBudget,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// InputBudget returns the prompt token budget.
func (a *Assembler) InputBudget() int {
	return a.inputBudget
}

// PrepareRequest builds the request for currentTurnID. When a compaction
// request is pending and the uncompacted prompt trips the policy, the
// compaction window is summarized first. A failed compaction is reported in
// Request.CompactionErr and never fails the call; store read errors do.
func (a *Assembler) PrepareRequest(ctx context.Context, processedUserInput, currentTurnID, systemPrompt string) (*Request, error) {
	req := &Request{}

	if a.manager.CompactionRequested() {
		messages, err := a.buildMessages(ctx, processedUserInput, currentTurnID, systemPrompt)
		if err != nil {
			return nil, err
		}
		tokens := a.estimator.EstimateMessages(messages)
		policy := a.compactor.Policy()

		if !policy.ShouldCompact(tokens, a.inputBudget) {
			debugLog.Debugf("Compaction requested but prompt is %d/%d tokens, skipping", tokens, a.inputBudget)
			a.metrics.ObserveCompaction(observability.ResultSkipped, 0, 0, 0)
			a.compactor.emit(ctx, types.NewCompactionSkippedEvent(tokens, a.inputBudget))
			a.manager.ClearCompactionRequest()
		} else {
			window, err := a.compactor.SelectCompactionWindow(ctx)
			if err != nil {
				return nil, err
			}
			if len(window) == 0 {
				// Everything is still inside the protected tail; try again
				// once more turns exist.
				debugLog.Debugf("Prompt is %d/%d tokens but no turns are outside the raw tail", tokens, a.inputBudget)
				a.metrics.ObserveCompaction(observability.ResultEmpty, 0, 0, 0)
			} else if _, err := a.compactor.Compact(ctx, window); err != nil {
				debugLog.Warnf("Compaction failed, sending uncompacted prompt: %v", err)
				req.CompactionErr = err
			} else {
				req.DidCompact = true
				a.manager.ClearCompactionRequest()
			}
		}
	}

	messages, err := a.buildMessages(ctx, processedUserInput, currentTurnID, systemPrompt)
	if err != nil {
		return nil, err
	}
	req.Messages = messages
	req.PromptTokens = a.estimator.EstimateMessages(messages)
	a.metrics.ObservePromptTokens(req.PromptTokens)
	return req, nil
}

// RecordUsage feeds a completion's reported prompt size back: estimators that
// calibrate are updated, and a compaction request is raised when the real
// prompt already tripped the policy.
func (a *Assembler) RecordUsage(req *Request, reply *types.Message) {
	if req == nil {
		return
	}
	promptTokens, ok := llm.PromptTokens(reply)
	if !ok {
		promptTokens = req.PromptTokens
	} else if rec, ok := a.estimator.(usageRecorder); ok {
		rec.RecordUsage(req.Messages, int64(promptTokens))
	}
	if a.compactor.Policy().ShouldCompact(promptTokens, a.inputBudget) {
		debugLog.Printf("Prompt used %d/%d tokens, requesting compaction", promptTokens, a.inputBudget)
		a.manager.RequestCompaction()
	}
}

func (a *Assembler) buildMessages(ctx context.Context, userInput, currentTurnID, systemPrompt string) ([]*types.Message, error) {
	bundle, err := a.retriever.Retrieve(ctx, a.maxEpisodic, a.maxSemantic)
	if err != nil {
		return nil, err
	}
	recent := a.recentTurns
	if recent <= 0 {
		recent = math.MaxInt32
	}
	tail, err := a.manager.GetRawTail(ctx, recent, currentTurnID)
	if err != nil {
		return nil, fmt.Errorf("context: build snapshot: %w", err)
	}

	snapshot := prompts.NewSnapshotBuilder().
		WithBundle(bundle).
		WithRecentTurns(tail).
		Build()
	return prompts.BuildMessages(systemPrompt, snapshot, userInput), nil
}
