package prompts

// Section markers in a rendered memory snapshot. Downstream prompt parsers
// and tests look for these literally.
const (
	EpisodicMarker    = "[MEMORY:EPISODIC]"
	SemanticMarker    = "[MEMORY:SEMANTIC]"
	RecentTurnsMarker = "[RECENT TURNS]"
	ToolLinePrefix    = "TOOL:"
)

// EmptySection is printed under a marker with nothing to show.
const EmptySection = "(none)"

// MemorySnapshotPreamble introduces the memory block to the model.
const MemorySnapshotPreamble = `The following is your memory of this conversation so far. Episodic entries summarize earlier turns, semantic entries are durable facts, and recent turns are verbatim. Treat it as context; do not repeat it back to the user.`

// maxToolPayload caps how much of a tool argument or result is inlined into a
// TOOL: line.
const maxToolPayload = 400
