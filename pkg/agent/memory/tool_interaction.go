package memory

// BuildToolInteractions pairs tool_call and tool_result traces by
// tool_call_id within a turn; a call id reused in a later turn is a separate
// interaction. Interactions are returned in the order their calls were
// recorded. A result without a matching call is ignored; a call without a
// result is PENDING.
func BuildToolInteractions(traces []*RawTraceItem) []*ToolInteraction {
	byID := make(map[InteractionKey]*ToolInteraction)
	var out []*ToolInteraction
	for _, tr := range traces {
		if tr.TraceType != TraceToolCall || tr.ToolCallID == "" {
			continue
		}
		key := KeyOf(tr)
		if _, seen := byID[key]; seen {
			continue
		}
		ti := &ToolInteraction{
			TurnID:     tr.TurnID,
			ToolCallID: tr.ToolCallID,
			ToolName:   tr.ToolName,
			Arguments:  tr.ToolArgs,
			Status:     ToolStatusPending,
		}
		byID[key] = ti
		out = append(out, ti)
	}

	for _, tr := range traces {
		if tr.TraceType != TraceToolResult {
			continue
		}
		ti, ok := byID[KeyOf(tr)]
		if !ok || ti.Status != ToolStatusPending {
			continue
		}
		if ti.ToolName == "" {
			ti.ToolName = tr.ToolName
		}
		ti.Result = tr.ToolResult
		ti.Error = tr.ToolError
		if tr.ToolError != "" {
			ti.Status = ToolStatusError
		} else {
			ti.Status = ToolStatusSuccess
		}
	}
	return out
}

// InteractionKey identifies a tool interaction: call ids are only unique
// inside a turn.
type InteractionKey struct {
	TurnID     string
	ToolCallID string
}

// KeyOf returns the interaction key of a tool trace.
func KeyOf(tr *RawTraceItem) InteractionKey {
	return InteractionKey{TurnID: tr.TurnID, ToolCallID: tr.ToolCallID}
}

// Key returns the interaction's key.
func (ti *ToolInteraction) Key() InteractionKey {
	return InteractionKey{TurnID: ti.TurnID, ToolCallID: ti.ToolCallID}
}
