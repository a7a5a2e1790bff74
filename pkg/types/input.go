package types

// ToolInvocation is the agent runtime's intent to call a tool, as handed to
// the memory manager before the tool runs.
type ToolInvocation struct {
	// Arguments holds the decoded tool arguments.
	Arguments map[string]interface{}

	// TurnID is the turn the invocation belongs to.
	TurnID string

	// ID is the tool call id that links the invocation to its result.
	ID string

	// Name is the tool name.
	Name string
}

// NewToolInvocation creates a tool invocation for the given turn.
func NewToolInvocation(turnID, id, name string, args map[string]interface{}) *ToolInvocation {
	if args == nil {
		args = make(map[string]interface{})
	}
	return &ToolInvocation{
		TurnID:    turnID,
		ID:        id,
		Name:      name,
		Arguments: args,
	}
}

// ToolResultEvent reports the outcome of a tool invocation.
type ToolResultEvent struct {
	// Result is the tool output. Nil when the tool failed.
	Result interface{}

	// TurnID is the turn the originating invocation belongs to.
	TurnID string

	// ToolCallID links the result to its ToolInvocation.
	ToolCallID string

	// ToolName is the tool name.
	ToolName string

	// Error is the tool error message, empty on success.
	Error string
}

// NewToolResultEvent creates a successful tool result.
func NewToolResultEvent(turnID, toolCallID, toolName string, result interface{}) *ToolResultEvent {
	return &ToolResultEvent{
		TurnID:     turnID,
		ToolCallID: toolCallID,
		ToolName:   toolName,
		Result:     result,
	}
}

// NewToolErrorEvent creates a failed tool result.
func NewToolErrorEvent(turnID, toolCallID, toolName, errMsg string) *ToolResultEvent {
	return &ToolResultEvent{
		TurnID:     turnID,
		ToolCallID: toolCallID,
		ToolName:   toolName,
		Error:      errMsg,
	}
}

// IsError returns true if the tool failed.
func (e *ToolResultEvent) IsError() bool {
	return e.Error != ""
}
