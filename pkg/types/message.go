package types

// MessageRole identifies the author of a message in an LLM conversation.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"    // RoleSystem is a system prompt or injected memory block.
	RoleUser      MessageRole = "user"      // RoleUser is end-user input.
	RoleAssistant MessageRole = "assistant" // RoleAssistant is model output.
	RoleTool      MessageRole = "tool"      // RoleTool is a tool result fed back to the model.
)

// Message is a single provider-neutral chat message.
type Message struct {
	// Metadata holds optional additional information about the message.
	Metadata map[string]interface{}

	// Role is the author of the message.
	Role MessageRole

	// Content is the text content of the message.
	Content string
}

// NewSystemMessage creates a system message.
func NewSystemMessage(content string) *Message {
	return &Message{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a user message.
func NewUserMessage(content string) *Message {
	return &Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates an assistant message.
func NewAssistantMessage(content string) *Message {
	return &Message{Role: RoleAssistant, Content: content}
}

// WithMetadata adds metadata to the message and returns the message for chaining.
func (m *Message) WithMetadata(key string, value interface{}) *Message {
	if m.Metadata == nil {
		m.Metadata = make(map[string]interface{})
	}
	m.Metadata[key] = value
	return m
}

// ModelInfo describes the model behind an LLM provider.
type ModelInfo struct {
	// Name is the model identifier sent to the provider.
	Name string

	// ContextWindow is the total context window in tokens, 0 if unknown.
	ContextWindow int

	// MaxOutputTokens is the maximum completion size in tokens, 0 if unknown.
	MaxOutputTokens int
}

// InputBudget returns the tokens available for the prompt after reserving
// room for the completion. Returns 0 when the context window is unknown.
func (mi *ModelInfo) InputBudget() int {
	if mi == nil || mi.ContextWindow <= 0 {
		return 0
	}
	budget := mi.ContextWindow - mi.MaxOutputTokens
	if budget < 0 {
		return 0
	}
	return budget
}
