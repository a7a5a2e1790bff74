package memory

import (
	"time"
)

// Kind identifies the collection an item is stored in.
type Kind string

const (
	KindRawTrace Kind = "raw_trace"
	KindEpisodic Kind = "episodic"
	KindSemantic Kind = "semantic"
)

// Item is implemented by every persisted memory record.
type Item interface {
	Kind() Kind
	Validate() error
}

// TraceType classifies a raw trace.
type TraceType string

const (
	TraceUser       TraceType = "user"
	TraceAssistant  TraceType = "assistant"
	TraceToolCall   TraceType = "tool_call"
	TraceToolResult TraceType = "tool_result"
)

func (t TraceType) valid() bool {
	switch t {
	case TraceUser, TraceAssistant, TraceToolCall, TraceToolResult:
		return true
	}
	return false
}

// Source events recorded on raw traces.
const (
	SourceUserMessage       = "user_message"
	SourceAssistantResponse = "assistant_response"
	SourceToolInvocation    = "tool_invocation"
	SourceToolResult        = "tool_result"
)

// RawTraceItem is the verbatim record of one ingestion event within a turn.
// (TurnID, Seq) is unique and Seq runs 1..N without gaps inside a turn.
type RawTraceItem struct {
	ID          string                 `json:"id"`
	TS          time.Time              `json:"ts"`
	TurnID      string                 `json:"turn_id"`
	Seq         int                    `json:"seq"`
	TraceType   TraceType              `json:"trace_type"`
	Content     string                 `json:"content"`
	SourceEvent string                 `json:"source_event"`
	ToolName    string                 `json:"tool_name,omitempty"`
	ToolCallID  string                 `json:"tool_call_id,omitempty"`
	ToolArgs    map[string]interface{} `json:"tool_args,omitempty"`
	ToolResult  interface{}            `json:"tool_result,omitempty"`
	ToolError   string                 `json:"tool_error,omitempty"`
}

// Kind implements Item.
func (r *RawTraceItem) Kind() Kind { return KindRawTrace }

// Validate implements Item.
func (r *RawTraceItem) Validate() error {
	switch {
	case r == nil:
		return newValidationError("raw_trace", "item is nil")
	case r.ID == "":
		return newValidationError("id", "missing")
	case r.TurnID == "":
		return newValidationError("turn_id", "missing")
	case r.Seq < 1:
		return newValidationError("seq", "must be >= 1")
	case !r.TraceType.valid():
		return newValidationError("trace_type", "unknown value "+string(r.TraceType))
	case (r.TraceType == TraceToolCall || r.TraceType == TraceToolResult) && r.ToolCallID == "":
		return newValidationError("tool_call_id", "required for "+string(r.TraceType))
	}
	return nil
}

// EpisodicItem is a narrative summary of a compacted window of turns.
type EpisodicItem struct {
	ID       string    `json:"id"`
	TS       time.Time `json:"ts"`
	TurnIDs  []string  `json:"turn_ids"`
	Summary  string    `json:"summary"`
	Tags     []string  `json:"tags"`
	Salience float64   `json:"salience"`
}

// Kind implements Item.
func (e *EpisodicItem) Kind() Kind { return KindEpisodic }

// Validate implements Item.
func (e *EpisodicItem) Validate() error {
	switch {
	case e == nil:
		return newValidationError("episodic", "item is nil")
	case e.ID == "":
		return newValidationError("id", "missing")
	case len(e.TurnIDs) == 0:
		return newValidationError("turn_ids", "empty")
	}
	return nil
}

// SemanticItem is an atomic fact extracted during compaction.
type SemanticItem struct {
	ID         string    `json:"id"`
	TS         time.Time `json:"ts"`
	Fact       string    `json:"fact"`
	Tags       []string  `json:"tags"`
	Confidence float64   `json:"confidence"`
	Salience   float64   `json:"salience"`
}

// Kind implements Item.
func (s *SemanticItem) Kind() Kind { return KindSemantic }

// Validate implements Item.
func (s *SemanticItem) Validate() error {
	switch {
	case s == nil:
		return newValidationError("semantic", "item is nil")
	case s.ID == "":
		return newValidationError("id", "missing")
	case s.Fact == "":
		return newValidationError("fact", "missing")
	case s.Confidence < 0 || s.Confidence > 1:
		return newValidationError("confidence", "must be within [0,1]")
	}
	return nil
}

// SemanticFact is one fact proposed by a summarizer.
type SemanticFact struct {
	Fact       string   `json:"fact"`
	Tags       []string `json:"tags"`
	Confidence float64  `json:"confidence"`
}

// CompactionResult is what a summarizer returns for a compaction window.
type CompactionResult struct {
	EpisodicSummary string         `json:"episodic_summary"`
	SemanticFacts   []SemanticFact `json:"semantic_facts"`
}

// ToolStatus is the derived state of a tool interaction.
type ToolStatus string

const (
	ToolStatusPending ToolStatus = "PENDING"
	ToolStatusSuccess ToolStatus = "SUCCESS"
	ToolStatusError   ToolStatus = "ERROR"
)

// ToolInteraction joins a tool_call trace with its tool_result, if any.
// It is derived on demand and never persisted.
type ToolInteraction struct {
	TurnID     string
	ToolCallID string
	ToolName   string
	Arguments  map[string]interface{}
	Result     interface{}
	Error      string
	Status     ToolStatus
}
