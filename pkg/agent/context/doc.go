// Package context turns an agent's memory log into a bounded prompt.
//
// The Assembler builds each request from the system prompt, a memory
// snapshot and the current user message. When the memory manager has a
// pending compaction request and the Policy says the prompt is too large,
// the Compactor summarizes the oldest turns into episodic and semantic
// memory and archives their raw traces before the snapshot is rendered.
package context
