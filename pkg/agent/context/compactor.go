package context

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/AutoByteus/autobyteus-sub006/pkg/agent/memory"
	"github.com/AutoByteus/autobyteus-sub006/pkg/logging"
	"github.com/AutoByteus/autobyteus-sub006/pkg/observability"
	"github.com/AutoByteus/autobyteus-sub006/pkg/types"
)

var debugLog *logging.Logger

func init() {
	var err error
	debugLog, err = logging.NewLogger("context")
	if err != nil {
		// Logger fell back to stderr due to initialization failure
		debugLog.Warnf("Failed to initialize context logger, using stderr fallback: %v", err)
	}
}

const defaultEpisodicSalience = 1.0

// Compactor summarizes the oldest raw turns into durable memory and archives
// their traces.
type Compactor struct {
	store        memory.Store
	summarizer   Summarizer
	policy       *Policy
	now          func() time.Time
	newID        memory.IDGenerator
	metrics      *observability.Metrics
	eventChannel chan<- *types.MemoryEvent
}

// CompactorOption configures a Compactor.
type CompactorOption func(*Compactor)

// WithCompactorClock overrides the timestamp source for written items.
func WithCompactorClock(now func() time.Time) CompactorOption {
	return func(c *Compactor) {
		if now != nil {
			c.now = now
		}
	}
}

// WithCompactorIDGenerator overrides item id generation.
func WithCompactorIDGenerator(gen memory.IDGenerator) CompactorOption {
	return func(c *Compactor) {
		if gen != nil {
			c.newID = gen
		}
	}
}

// WithMetrics records compaction outcomes.
func WithMetrics(m *observability.Metrics) CompactorOption {
	return func(c *Compactor) {
		c.metrics = m
	}
}

// NewCompactor returns a compactor over store. A nil policy uses the
// defaults.
func NewCompactor(store memory.Store, summarizer Summarizer, policy *Policy, opts ...CompactorOption) *Compactor {
	if policy == nil {
		policy = NewPolicy(DefaultTriggerRatio, 0)
	}
	c := &Compactor{
		store:      store,
		summarizer: summarizer,
		policy:     policy,
		now:        time.Now,
		newID:      memory.NewItemID,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Policy returns the compaction policy in effect.
func (c *Compactor) Policy() *Policy {
	return c.policy
}

// SetEventChannel sets the channel compaction events are sent to. Sends
// block until received or the compaction's context is done.
func (c *Compactor) SetEventChannel(ch chan<- *types.MemoryEvent) {
	c.eventChannel = ch
}

// SelectCompactionWindow returns the turn ids present in the raw store in
// ascending order, minus the most recent RawTailTurns turns. It is empty when
// there are no more turns than the reservation.
func (c *Compactor) SelectCompactionWindow(ctx context.Context) ([]string, error) {
	raw, err := memory.ListRawTraces(ctx, c.store, 0)
	if err != nil {
		return nil, fmt.Errorf("context: select compaction window: %w", err)
	}
	turnIDs := memory.DistinctTurnIDs(raw)
	if len(turnIDs) <= c.policy.RawTailTurns {
		return []string{}, nil
	}
	return turnIDs[:len(turnIDs)-c.policy.RawTailTurns], nil
}

// TracesForTurns returns every raw trace of turnIDs ordered by (turn, seq).
func (c *Compactor) TracesForTurns(ctx context.Context, turnIDs []string) ([]*memory.RawTraceItem, error) {
	raw, err := memory.ListRawTraces(ctx, c.store, 0)
	if err != nil {
		return nil, fmt.Errorf("context: read window traces: %w", err)
	}
	return memory.FilterTraces(raw, turnIDs), nil
}

// Compact summarizes turnIDs. An empty window returns (nil, nil) and touches
// nothing. If the summarizer fails the error is a *SummarizationError and the
// store is unchanged. On success one episodic item and one semantic item per
// fact are written, and only then are the window's raw traces archived.
func (c *Compactor) Compact(ctx context.Context, turnIDs []string) (*memory.CompactionResult, error) {
	if len(turnIDs) == 0 {
		return nil, nil
	}

	traces, err := c.TracesForTurns(ctx, turnIDs)
	if err != nil {
		return nil, err
	}
	c.emit(ctx, types.NewCompactionStartEvent(turnIDs, len(traces)))
	debugLog.Printf("Compacting %d turns (%s..%s), %d traces", len(turnIDs), turnIDs[0], turnIDs[len(turnIDs)-1], len(traces))

	start := time.Now()
	result, err := c.summarizer.Summarize(ctx, traces)
	if err == nil && result == nil {
		err = ErrEmptySummary
	}
	if err == nil {
		// A caller that gave up while the summarizer ran gets no writes.
		err = ctx.Err()
	}
	if err != nil {
		return nil, c.fail(ctx, turnIDs, &SummarizationError{TurnIDs: turnIDs, Err: err})
	}

	result = sanitizeResult(result)
	items := c.durableItems(turnIDs, result)
	if err := c.store.Add(ctx, items...); err != nil {
		return nil, c.fail(ctx, turnIDs, fmt.Errorf("context: write compaction result: %w", err))
	}

	keep, err := c.keepTurnIDs(ctx, turnIDs)
	if err != nil {
		return nil, c.fail(ctx, turnIDs, err)
	}
	if err := c.store.PruneRawTraces(ctx, keep, true); err != nil {
		return nil, c.fail(ctx, turnIDs, fmt.Errorf("context: archive compacted traces: %w", err))
	}

	duration := time.Since(start)
	facts := len(result.SemanticFacts)
	debugLog.Printf("Compacted %d traces into 1 episode and %d facts in %s", len(traces), facts, duration)
	c.metrics.ObserveCompaction(observability.ResultSuccess, duration, len(traces), facts)
	c.emit(ctx, types.NewCompactionCompleteEvent(turnIDs, len(traces), facts, duration.String()))
	return result, nil
}

func (c *Compactor) durableItems(turnIDs []string, result *memory.CompactionResult) []memory.Item {
	ts := c.now().UTC()
	window := append([]string(nil), turnIDs...)
	items := []memory.Item{&memory.EpisodicItem{
		ID:       c.newID("ep"),
		TS:       ts,
		TurnIDs:  window,
		Summary:  result.EpisodicSummary,
		Tags:     []string{},
		Salience: defaultEpisodicSalience,
	}}
	for _, fact := range result.SemanticFacts {
		items = append(items, &memory.SemanticItem{
			ID:         c.newID("sem"),
			TS:         ts,
			Fact:       fact.Fact,
			Tags:       fact.Tags,
			Confidence: fact.Confidence,
			Salience:   fact.Confidence,
		})
	}
	return items
}

// sanitizeResult returns a copy of result holding only the facts that get
// written: blank facts are dropped, confidence is clamped to [0, 1] and nil
// tags become empty.
func sanitizeResult(result *memory.CompactionResult) *memory.CompactionResult {
	out := &memory.CompactionResult{
		EpisodicSummary: result.EpisodicSummary,
		SemanticFacts:   make([]memory.SemanticFact, 0, len(result.SemanticFacts)),
	}
	for _, fact := range result.SemanticFacts {
		if strings.TrimSpace(fact.Fact) == "" {
			continue
		}
		if fact.Tags == nil {
			fact.Tags = []string{}
		}
		fact.Confidence = clampConfidence(fact.Confidence)
		out.SemanticFacts = append(out.SemanticFacts, fact)
	}
	return out
}

// keepTurnIDs lists every raw turn outside the window, read at prune time.
func (c *Compactor) keepTurnIDs(ctx context.Context, window []string) ([]string, error) {
	raw, err := memory.ListRawTraces(ctx, c.store, 0)
	if err != nil {
		return nil, fmt.Errorf("context: read turns to keep: %w", err)
	}
	inWindow := make(map[string]bool, len(window))
	for _, id := range window {
		inWindow[id] = true
	}
	var keep []string
	for _, id := range memory.DistinctTurnIDs(raw) {
		if !inWindow[id] {
			keep = append(keep, id)
		}
	}
	return keep, nil
}

func (c *Compactor) fail(ctx context.Context, turnIDs []string, err error) error {
	debugLog.Errorf("Compaction of %d turns failed: %v", len(turnIDs), err)
	c.metrics.ObserveCompaction(observability.ResultError, 0, 0, 0)
	c.emit(ctx, types.NewCompactionErrorEvent(turnIDs, err))
	return err
}

func (c *Compactor) emit(ctx context.Context, ev *types.MemoryEvent) {
	if c.eventChannel == nil {
		return
	}
	select {
	case c.eventChannel <- ev:
	case <-ctx.Done():
	}
}
