package context

import (
	"context"
	"fmt"
	"strings"

	"github.com/AutoByteus/autobyteus-sub006/pkg/agent/memory"
	"github.com/AutoByteus/autobyteus-sub006/pkg/agent/prompts"
)

// Summarizer condenses the raw traces of a compaction window.
type Summarizer interface {
	Summarize(ctx context.Context, traces []*memory.RawTraceItem) (*memory.CompactionResult, error)
}

// SummarizerFunc adapts a function to Summarizer.
type SummarizerFunc func(ctx context.Context, traces []*memory.RawTraceItem) (*memory.CompactionResult, error)

// Summarize implements Summarizer.
func (f SummarizerFunc) Summarize(ctx context.Context, traces []*memory.RawTraceItem) (*memory.CompactionResult, error) {
	return f(ctx, traces)
}

// ExtractiveSummarizer compacts without a model: the summary is the
// transcript's user and assistant lines, and every finished tool call becomes
// a fact. It is used for offline compaction and demos.
type ExtractiveSummarizer struct {
	// MaxLineChars caps each transcript line; 0 means 200.
	MaxLineChars int
}

// Summarize implements Summarizer.
func (s *ExtractiveSummarizer) Summarize(ctx context.Context, traces []*memory.RawTraceItem) (*memory.CompactionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	limit := s.MaxLineChars
	if limit <= 0 {
		limit = 200
	}

	var lines []string
	for _, tr := range traces {
		switch tr.TraceType {
		case memory.TraceUser:
			lines = append(lines, fmt.Sprintf("%s user: %s", tr.TurnID, clipText(tr.Content, limit)))
		case memory.TraceAssistant:
			lines = append(lines, fmt.Sprintf("%s assistant: %s", tr.TurnID, clipText(tr.Content, limit)))
		}
	}

	result := &memory.CompactionResult{EpisodicSummary: strings.Join(lines, "\n")}
	for _, ti := range memory.BuildToolInteractions(traces) {
		if ti.Status == memory.ToolStatusPending {
			continue
		}
		fact := fmt.Sprintf("Tool %s finished with %s in %s", ti.ToolName, ti.Status, ti.TurnID)
		result.SemanticFacts = append(result.SemanticFacts, memory.SemanticFact{
			Fact:       fact,
			Tags:       []string{"tool", ti.ToolName},
			Confidence: 1,
		})
	}
	if result.EpisodicSummary == "" {
		result.EpisodicSummary = fmt.Sprintf("%d traces without conversation text", len(traces))
	}
	return result, nil
}

func clipText(s string, limit int) string {
	return prompts.Truncate(strings.Join(strings.Fields(s), " "), limit)
}
