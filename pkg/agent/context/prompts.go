package context

// compactionSystemPrompt instructs the summarizing LLM to write episodic
// memory in the agent's own voice and to extract durable facts as JSON.
const compactionSystemPrompt = "You are writing long-term memory for an AI agent. " +
	"You will receive a transcript of earlier conversation turns, including tool calls and their results. " +
	"Your output will be injected into the agent's context as its own recalled experience. " +
	"Write the episodic summary in operational first-person: declarative statements of what happened " +
	"('the user asked X', 'I ran Y, result was Z'), not reflective narrative. " +
	"Preserve every concrete artifact (file paths, names, numbers, error strings, decisions). " +
	"Then extract atomic facts that will stay true beyond this conversation, such as user preferences, " +
	"project constraints and established results. Omit transient chatter.\n\n" +
	"Respond with a single JSON object and nothing else:\n" +
	`{"episodic_summary": "<dense summary>", "semantic_facts": [{"fact": "<one fact>", "tags": ["<topic>"], "confidence": 0.0-1.0}]}`

// compactionUserPrompt wraps the rendered transcript.
const compactionUserPrompt = "Summarize the following turns.\n\n<transcript>\n%s\n</transcript>"
