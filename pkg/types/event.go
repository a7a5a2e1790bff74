package types

// MemoryEventType defines the type of event emitted by the memory subsystem.
type MemoryEventType string

const (
	EventTypeCompactionStart    MemoryEventType = "compaction_start"    // EventTypeCompactionStart indicates a compaction window was handed to the summarizer.
	EventTypeCompactionComplete MemoryEventType = "compaction_complete" // EventTypeCompactionComplete indicates compacted memory was written and raw traces pruned.
	EventTypeCompactionError    MemoryEventType = "compaction_error"    // EventTypeCompactionError indicates compaction aborted and the store is unchanged.
	EventTypeCompactionSkipped  MemoryEventType = "compaction_skipped"  // EventTypeCompactionSkipped indicates a pending request was evaluated and not needed.
)

// MemoryEvent represents an event emitted while maintaining agent memory.
type MemoryEvent struct {
	// Metadata holds optional additional information about the event.
	Metadata map[string]interface{}

	// Error contains error information for error events.
	Error error

	// Compaction contains compaction details for compaction events.
	Compaction *Compaction

	// Type indicates the kind of event.
	Type MemoryEventType
}

// Compaction contains information about a compaction run.
type Compaction struct {
	// TurnIDs is the compaction window.
	TurnIDs []string

	// PromptTokens is the estimated prompt size that triggered the run.
	PromptTokens int

	// InputBudget is the prompt token budget in effect.
	InputBudget int

	// TracesCompacted is the number of raw traces moved to the archive.
	TracesCompacted int

	// FactsWritten is the number of semantic items written.
	FactsWritten int

	// Duration is how long the run took.
	Duration string

	// ErrorMessage contains error information if compaction failed.
	ErrorMessage string
}

// NewCompactionStartEvent creates a compaction start event.
func NewCompactionStartEvent(turnIDs []string, traces int) *MemoryEvent {
	return &MemoryEvent{
		Type: EventTypeCompactionStart,
		Compaction: &Compaction{
			TurnIDs:         turnIDs,
			TracesCompacted: traces,
		},
		Metadata: make(map[string]interface{}),
	}
}

// NewCompactionCompleteEvent creates a compaction complete event.
func NewCompactionCompleteEvent(turnIDs []string, traces, facts int, duration string) *MemoryEvent {
	return &MemoryEvent{
		Type: EventTypeCompactionComplete,
		Compaction: &Compaction{
			TurnIDs:         turnIDs,
			TracesCompacted: traces,
			FactsWritten:    facts,
			Duration:        duration,
		},
		Metadata: make(map[string]interface{}),
	}
}

// NewCompactionErrorEvent creates a compaction error event.
func NewCompactionErrorEvent(turnIDs []string, err error) *MemoryEvent {
	return &MemoryEvent{
		Type:  EventTypeCompactionError,
		Error: err,
		Compaction: &Compaction{
			TurnIDs:      turnIDs,
			ErrorMessage: err.Error(),
		},
		Metadata: make(map[string]interface{}),
	}
}

// NewCompactionSkippedEvent creates an event for a pending compaction
// request that the policy declined.
func NewCompactionSkippedEvent(promptTokens, inputBudget int) *MemoryEvent {
	return &MemoryEvent{
		Type: EventTypeCompactionSkipped,
		Compaction: &Compaction{
			PromptTokens: promptTokens,
			InputBudget:  inputBudget,
		},
		Metadata: make(map[string]interface{}),
	}
}

// WithMetadata adds metadata to the event and returns the event for chaining.
func (e *MemoryEvent) WithMetadata(key string, value interface{}) *MemoryEvent {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// IsError returns true if this is an error event.
func (e *MemoryEvent) IsError() bool {
	return e.Type == EventTypeCompactionError
}

// IsCompactionEvent returns true if this is any compaction-related event.
func (e *MemoryEvent) IsCompactionEvent() bool {
	return e.Type == EventTypeCompactionStart ||
		e.Type == EventTypeCompactionComplete ||
		e.Type == EventTypeCompactionError ||
		e.Type == EventTypeCompactionSkipped
}
