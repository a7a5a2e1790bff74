package context

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/AutoByteus/autobyteus-sub006/pkg/agent/memory"
	"github.com/AutoByteus/autobyteus-sub006/pkg/agent/prompts"
	"github.com/AutoByteus/autobyteus-sub006/pkg/llm"
	"github.com/AutoByteus/autobyteus-sub006/pkg/types"
)

// ErrEmptySummary is returned when the model produced nothing usable.
var ErrEmptySummary = errors.New("context: summarizer returned an empty summary")

const defaultFactConfidence = 1.0

// LLMSummarizer asks an LLM provider to summarize a compaction window.
type LLMSummarizer struct {
	provider           llm.Provider
	summarizationModel string
	maxTraceChars      int
}

// LLMSummarizerOption configures an LLMSummarizer.
type LLMSummarizerOption func(*LLMSummarizer)

// WithSummarizationModel sends summarization calls to a different model of
// the same provider. The provider must implement llm.ModelCloner.
func WithSummarizationModel(model string) LLMSummarizerOption {
	return func(s *LLMSummarizer) {
		s.summarizationModel = model
	}
}

// WithMaxTraceChars caps how much of each trace is sent to the model.
func WithMaxTraceChars(n int) LLMSummarizerOption {
	return func(s *LLMSummarizer) {
		s.maxTraceChars = n
	}
}

// NewLLMSummarizer returns a summarizer backed by provider.
func NewLLMSummarizer(provider llm.Provider, opts ...LLMSummarizerOption) *LLMSummarizer {
	s := &LLMSummarizer{provider: provider, maxTraceChars: 4000}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Summarize implements Summarizer.
func (s *LLMSummarizer) Summarize(ctx context.Context, traces []*memory.RawTraceItem) (*memory.CompactionResult, error) {
	provider := llm.ForModel(s.provider, s.summarizationModel)
	messages := []*types.Message{
		types.NewSystemMessage(compactionSystemPrompt),
		types.NewUserMessage(fmt.Sprintf(compactionUserPrompt, RenderTranscript(traces, s.maxTraceChars))),
	}

	debugLog.Debugf("Summarizing %d traces with %s", len(traces), provider.GetModel())
	reply, err := provider.Complete(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("summarization call: %w", err)
	}
	return ParseCompactionOutput(reply.Content)
}

// RenderTranscript formats traces one per line for the summarization prompt.
func RenderTranscript(traces []*memory.RawTraceItem, maxChars int) string {
	var b strings.Builder
	for _, tr := range traces {
		content := prompts.Truncate(tr.Content, maxChars)
		switch tr.TraceType {
		case memory.TraceToolCall:
			fmt.Fprintf(&b, "[%s #%d] tool_call %s (%s): %s\n", tr.TurnID, tr.Seq, tr.ToolName, tr.ToolCallID, content)
		case memory.TraceToolResult:
			if tr.ToolError != "" {
				fmt.Fprintf(&b, "[%s #%d] tool_error %s (%s): %s\n", tr.TurnID, tr.Seq, tr.ToolName, tr.ToolCallID, tr.ToolError)
				continue
			}
			fmt.Fprintf(&b, "[%s #%d] tool_result %s (%s): %s\n", tr.TurnID, tr.Seq, tr.ToolName, tr.ToolCallID, content)
		default:
			fmt.Fprintf(&b, "[%s #%d] %s: %s\n", tr.TurnID, tr.Seq, tr.TraceType, content)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// ParseCompactionOutput reads the model's JSON reply. Output wrapped in prose
// or code fences is tolerated; output with no JSON object becomes the
// episodic summary verbatim with no facts.
func ParseCompactionOutput(text string) (*memory.CompactionResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptySummary
	}

	raw, ok := extractJSONObject(text)
	if !ok {
		return &memory.CompactionResult{EpisodicSummary: text}, nil
	}

	parsed := gjson.Parse(raw)
	result := &memory.CompactionResult{
		EpisodicSummary: strings.TrimSpace(parsed.Get("episodic_summary").String()),
	}
	if result.EpisodicSummary == "" {
		result.EpisodicSummary = strings.TrimSpace(parsed.Get("summary").String())
	}

	parsed.Get("semantic_facts").ForEach(func(_, value gjson.Result) bool {
		if fact, ok := parseFact(value); ok {
			result.SemanticFacts = append(result.SemanticFacts, fact)
		}
		return true
	})

	if result.EpisodicSummary == "" {
		return nil, ErrEmptySummary
	}
	return result, nil
}

func parseFact(value gjson.Result) (memory.SemanticFact, bool) {
	if value.Type == gjson.String {
		text := strings.TrimSpace(value.String())
		return memory.SemanticFact{Fact: text, Confidence: defaultFactConfidence}, text != ""
	}
	if !value.IsObject() {
		return memory.SemanticFact{}, false
	}

	fact := memory.SemanticFact{
		Fact:       strings.TrimSpace(value.Get("fact").String()),
		Confidence: defaultFactConfidence,
	}
	if c := value.Get("confidence"); c.Exists() {
		fact.Confidence = clampConfidence(c.Float())
	}
	value.Get("tags").ForEach(func(_, tag gjson.Result) bool {
		if t := strings.TrimSpace(tag.String()); t != "" {
			fact.Tags = append(fact.Tags, t)
		}
		return true
	})
	return fact, fact.Fact != ""
}

func clampConfidence(c float64) float64 {
	switch {
	case c < 0:
		return 0
	case c > 1:
		return 1
	}
	return c
}

// extractJSONObject returns the outermost {...} span of text when it is
// valid JSON.
func extractJSONObject(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", false
	}
	candidate := text[start : end+1]
	if !gjson.Valid(candidate) {
		return "", false
	}
	return candidate, true
}
