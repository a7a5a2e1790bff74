package prompts

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/AutoByteus/autobyteus-sub006/pkg/agent/memory"
	"github.com/AutoByteus/autobyteus-sub006/pkg/types"
)

// SnapshotBuilder renders durable memory and the recent raw tail into the
// text of a single memory message.
type SnapshotBuilder struct {
	episodic    []*memory.EpisodicItem
	semantic    []*memory.SemanticItem
	recent      []*memory.RawTraceItem
	preamble    string
	maxToolText int
}

// NewSnapshotBuilder creates a builder with the default preamble.
func NewSnapshotBuilder() *SnapshotBuilder {
	return &SnapshotBuilder{
		preamble:    MemorySnapshotPreamble,
		maxToolText: maxToolPayload,
	}
}

// WithBundle sets the episodic and semantic items from a retrieval bundle.
func (sb *SnapshotBuilder) WithBundle(b *memory.Bundle) *SnapshotBuilder {
	if b != nil {
		sb.episodic = b.Episodic
		sb.semantic = b.Semantic
	}
	return sb
}

// WithEpisodic sets the episodic items.
func (sb *SnapshotBuilder) WithEpisodic(items []*memory.EpisodicItem) *SnapshotBuilder {
	sb.episodic = items
	return sb
}

// WithSemantic sets the semantic items.
func (sb *SnapshotBuilder) WithSemantic(items []*memory.SemanticItem) *SnapshotBuilder {
	sb.semantic = items
	return sb
}

// WithRecentTurns sets the raw tail, ordered by (turn, seq).
func (sb *SnapshotBuilder) WithRecentTurns(traces []*memory.RawTraceItem) *SnapshotBuilder {
	sb.recent = traces
	return sb
}

// WithPreamble replaces the introductory sentence. An empty preamble is
// omitted.
func (sb *SnapshotBuilder) WithPreamble(preamble string) *SnapshotBuilder {
	sb.preamble = preamble
	return sb
}

// Build renders the snapshot. Every section marker is always present.
func (sb *SnapshotBuilder) Build() string {
	var builder strings.Builder

	if sb.preamble != "" {
		builder.WriteString(sb.preamble)
		builder.WriteString("\n\n")
	}

	builder.WriteString(EpisodicMarker)
	builder.WriteString("\n")
	if len(sb.episodic) == 0 {
		builder.WriteString(EmptySection + "\n")
	}
	for _, ep := range sb.episodic {
		fmt.Fprintf(&builder, "- %s%s\n", turnRange(ep.TurnIDs), oneLine(ep.Summary))
	}

	builder.WriteString("\n")
	builder.WriteString(SemanticMarker)
	builder.WriteString("\n")
	if len(sb.semantic) == 0 {
		builder.WriteString(EmptySection + "\n")
	}
	for _, fact := range sb.semantic {
		builder.WriteString("- ")
		builder.WriteString(oneLine(fact.Fact))
		if len(fact.Tags) > 0 {
			fmt.Fprintf(&builder, " [%s]", strings.Join(fact.Tags, ", "))
		}
		builder.WriteString("\n")
	}

	builder.WriteString("\n")
	builder.WriteString(RecentTurnsMarker)
	builder.WriteString("\n")
	if len(sb.recent) == 0 {
		builder.WriteString(EmptySection + "\n")
	}
	sb.writeRecent(&builder)

	return strings.TrimRight(builder.String(), "\n")
}

func (sb *SnapshotBuilder) writeRecent(builder *strings.Builder) {
	interactions := make(map[memory.InteractionKey]*memory.ToolInteraction)
	for _, ti := range memory.BuildToolInteractions(sb.recent) {
		interactions[ti.Key()] = ti
	}

	currentTurn := ""
	for _, tr := range sb.recent {
		if tr.TurnID != currentTurn {
			currentTurn = tr.TurnID
			fmt.Fprintf(builder, "(%s)\n", currentTurn)
		}
		switch tr.TraceType {
		case memory.TraceUser:
			fmt.Fprintf(builder, "USER: %s\n", tr.Content)
		case memory.TraceAssistant:
			fmt.Fprintf(builder, "ASSISTANT: %s\n", tr.Content)
		case memory.TraceToolCall:
			if ti, ok := interactions[memory.KeyOf(tr)]; ok {
				builder.WriteString(sb.toolLine(ti))
			}
		case memory.TraceToolResult:
			// Folded into the call's line; a result with no call still shows.
			if _, ok := interactions[memory.KeyOf(tr)]; !ok {
				builder.WriteString(sb.toolLine(&memory.ToolInteraction{
					ToolCallID: tr.ToolCallID,
					ToolName:   tr.ToolName,
					Result:     tr.ToolResult,
					Error:      tr.ToolError,
					Status:     resultStatus(tr),
				}))
			}
		}
	}
}

func (sb *SnapshotBuilder) toolLine(ti *memory.ToolInteraction) string {
	var line strings.Builder
	fmt.Fprintf(&line, "%s %s", ToolLinePrefix, ti.ToolName)
	if len(ti.Arguments) > 0 {
		fmt.Fprintf(&line, " args=%s", sb.clip(renderPayload(ti.Arguments)))
	}
	fmt.Fprintf(&line, " status=%s", ti.Status)
	switch ti.Status {
	case memory.ToolStatusSuccess:
		if ti.Result != nil {
			fmt.Fprintf(&line, " result=%s", sb.clip(renderPayload(ti.Result)))
		}
	case memory.ToolStatusError:
		fmt.Fprintf(&line, " error=%s", sb.clip(oneLine(ti.Error)))
	}
	line.WriteString("\n")
	return line.String()
}

func (sb *SnapshotBuilder) clip(s string) string {
	return Truncate(s, sb.maxToolText)
}

// Truncate cuts s to at most limit bytes and marks the cut with "...". The
// cut never splits a multi-byte rune. A non-positive limit disables it.
func Truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func resultStatus(tr *memory.RawTraceItem) memory.ToolStatus {
	if tr.ToolError != "" {
		return memory.ToolStatusError
	}
	return memory.ToolStatusSuccess
}

func turnRange(turnIDs []string) string {
	switch len(turnIDs) {
	case 0:
		return ""
	case 1:
		return "(" + turnIDs[0] + ") "
	}
	return "(" + turnIDs[0] + ".." + turnIDs[len(turnIDs)-1] + ") "
}

func renderPayload(v interface{}) string {
	if s, ok := v.(string); ok {
		return oneLine(s)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// BuildMessages creates the final request: the system prompt, the memory
// snapshot as a second system message, then the current user message.
// Empty parts are omitted.
func BuildMessages(systemPrompt, snapshot, userMessage string) []*types.Message {
	messages := make([]*types.Message, 0, 3)
	if systemPrompt != "" {
		messages = append(messages, types.NewSystemMessage(systemPrompt))
	}
	if snapshot != "" {
		messages = append(messages, types.NewSystemMessage(snapshot).WithMetadata("memory_snapshot", true))
	}
	if userMessage != "" {
		messages = append(messages, types.NewUserMessage(userMessage))
	}
	return messages
}
