package context

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/AutoByteus/autobyteus-sub006/pkg/agent/memory"
	"github.com/AutoByteus/autobyteus-sub006/pkg/llm"
	"github.com/AutoByteus/autobyteus-sub006/pkg/types"
)

// MockLLMProvider is a mock implementation of llm.Provider for testing.
type MockLLMProvider struct {
	mock.Mock
}

func (m *MockLLMProvider) Complete(ctx context.Context, messages []*types.Message) (*types.Message, error) {
	args := m.Called(ctx, messages)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Message), args.Error(1)
}

func (m *MockLLMProvider) GetModelInfo() *types.ModelInfo {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*types.ModelInfo)
}

func (m *MockLLMProvider) GetModel() string {
	args := m.Called()
	return args.String(0)
}

// cloningProvider records which model a summarization call was routed to.
type cloningProvider struct {
	MockLLMProvider
	clonedWith string
	clone      *MockLLMProvider
}

func (c *cloningProvider) CloneWithModel(model string) llm.Provider {
	c.clonedWith = model
	return c.clone
}

func windowTraces() []*memory.RawTraceItem {
	return []*memory.RawTraceItem{
		{TurnID: "turn_0001", Seq: 1, TraceType: memory.TraceUser, Content: "My name is Ada."},
		{TurnID: "turn_0001", Seq: 2, TraceType: memory.TraceToolCall, ToolCallID: "c1", ToolName: "lookup", Content: "lookup()"},
		{TurnID: "turn_0001", Seq: 3, TraceType: memory.TraceToolResult, ToolCallID: "c1", ToolName: "lookup", ToolError: "offline"},
		{TurnID: "turn_0001", Seq: 4, TraceType: memory.TraceAssistant, Content: "Nice to meet you, Ada."},
	}
}

func TestLLMSummarizer_Summarize(t *testing.T) {
	provider := new(MockLLMProvider)
	provider.On("GetModel").Return("gpt-4o-mini")
	provider.On("Complete", mock.Anything, mock.MatchedBy(func(msgs []*types.Message) bool {
		return len(msgs) == 2 &&
			msgs[0].Role == types.RoleSystem &&
			msgs[1].Role == types.RoleUser &&
			strings.Contains(msgs[1].Content, "[turn_0001 #1] user: My name is Ada.") &&
			strings.Contains(msgs[1].Content, "tool_error lookup (c1): offline")
	})).Return(types.NewAssistantMessage(
		"```json\n{\"episodic_summary\": \"The user introduced themselves as Ada.\", "+
			"\"semantic_facts\": [{\"fact\": \"User's name is Ada\", \"tags\": [\"user\"], \"confidence\": 0.95}, \"Lookup tool was offline\", {\"fact\": \"\"}]}\n```",
	), nil)

	result, err := NewLLMSummarizer(provider).Summarize(context.Background(), windowTraces())
	require.NoError(t, err)
	assert.Equal(t, "The user introduced themselves as Ada.", result.EpisodicSummary)
	require.Len(t, result.SemanticFacts, 2)
	assert.Equal(t, "User's name is Ada", result.SemanticFacts[0].Fact)
	assert.Equal(t, []string{"user"}, result.SemanticFacts[0].Tags)
	assert.InDelta(t, 0.95, result.SemanticFacts[0].Confidence, 1e-9)
	assert.Equal(t, 1.0, result.SemanticFacts[1].Confidence)
	provider.AssertExpectations(t)
}

func TestLLMSummarizer_ProviderError(t *testing.T) {
	provider := new(MockLLMProvider)
	provider.On("GetModel").Return("gpt-4o-mini")
	provider.On("Complete", mock.Anything, mock.Anything).Return(nil, errors.New("rate limited"))

	_, err := NewLLMSummarizer(provider).Summarize(context.Background(), windowTraces())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestLLMSummarizer_UsesSummarizationModel(t *testing.T) {
	clone := new(MockLLMProvider)
	clone.On("GetModel").Return("cheap-model")
	clone.On("Complete", mock.Anything, mock.Anything).Return(types.NewAssistantMessage(`{"episodic_summary":"ok"}`), nil)

	provider := &cloningProvider{clone: clone}
	provider.On("GetModel").Return("big-model")

	result, err := NewLLMSummarizer(provider, WithSummarizationModel("cheap-model")).Summarize(context.Background(), windowTraces())
	require.NoError(t, err)
	assert.Equal(t, "ok", result.EpisodicSummary)
	assert.Equal(t, "cheap-model", provider.clonedWith)
	provider.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
	clone.AssertExpectations(t)
}

func TestParseCompactionOutput(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantSummary string
		wantFacts   int
		wantErr     bool
	}{
		{name: "plain json", input: `{"episodic_summary":"did X","semantic_facts":[{"fact":"f1"}]}`, wantSummary: "did X", wantFacts: 1},
		{name: "prose around json", input: "Here you go:\n{\"episodic_summary\":\"did Y\"}\nThanks", wantSummary: "did Y"},
		{name: "summary alias", input: `{"summary":"did Z"}`, wantSummary: "did Z"},
		{name: "not json", input: "The user asked about the weather.", wantSummary: "The user asked about the weather."},
		{name: "broken json falls back to text", input: `{"episodic_summary": "x"`, wantSummary: `{"episodic_summary": "x"`},
		{name: "empty", input: "   ", wantErr: true},
		{name: "json without summary", input: `{"semantic_facts":["a"]}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseCompactionOutput(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrEmptySummary)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSummary, result.EpisodicSummary)
			assert.Len(t, result.SemanticFacts, tt.wantFacts)
		})
	}
}

func TestParseCompactionOutputClampsConfidence(t *testing.T) {
	result, err := ParseCompactionOutput(`{"episodic_summary":"s","semantic_facts":[{"fact":"hi","confidence":7},{"fact":"lo","confidence":-1}]}`)
	require.NoError(t, err)
	require.Len(t, result.SemanticFacts, 2)
	assert.Equal(t, 1.0, result.SemanticFacts[0].Confidence)
	assert.Equal(t, 0.0, result.SemanticFacts[1].Confidence)
}

func TestRenderTranscriptClipsContent(t *testing.T) {
	traces := []*memory.RawTraceItem{{TurnID: "turn_0001", Seq: 1, TraceType: memory.TraceUser, Content: "abcdefghij"}}
	assert.Equal(t, "[turn_0001 #1] user: abcde...", RenderTranscript(traces, 5))
}

func TestRenderTranscriptKeepsRunesWhole(t *testing.T) {
	traces := []*memory.RawTraceItem{{TurnID: "turn_0001", Seq: 1, TraceType: memory.TraceUser, Content: "日本語のテキスト"}}
	out := RenderTranscript(traces, 4)
	assert.True(t, utf8.ValidString(out))
	assert.Equal(t, "[turn_0001 #1] user: 日...", out)
}

func TestExtractiveSummarizerKeepsRunesWhole(t *testing.T) {
	traces := []*memory.RawTraceItem{
		{TurnID: "turn_0001", Seq: 1, TraceType: memory.TraceUser, Content: "héllo wörld"},
	}
	result, err := (&ExtractiveSummarizer{MaxLineChars: 2}).Summarize(context.Background(), traces)
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(result.EpisodicSummary))
	assert.Contains(t, result.EpisodicSummary, "turn_0001 user: h...")
}

func TestExtractiveSummarizer(t *testing.T) {
	result, err := (&ExtractiveSummarizer{}).Summarize(context.Background(), windowTraces())
	require.NoError(t, err)
	assert.Contains(t, result.EpisodicSummary, "turn_0001 user: My name is Ada.")
	assert.Contains(t, result.EpisodicSummary, "turn_0001 assistant: Nice to meet you, Ada.")
	require.Len(t, result.SemanticFacts, 1)
	assert.Equal(t, "Tool lookup finished with ERROR in turn_0001", result.SemanticFacts[0].Fact)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = (&ExtractiveSummarizer{}).Summarize(ctx, windowTraces())
	assert.ErrorIs(t, err, context.Canceled)
}
