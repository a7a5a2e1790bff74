// Package memory implements the per-agent memory log: an append-only,
// turn-indexed record of raw traces (user input, assistant output, tool calls
// and tool results) plus the durable episodic and semantic items that
// compaction distils from them.
//
// Layout:
//   - Store: typed, append-only persistence (InMemoryStore, FileStore)
//   - TurnTracker: monotonic turn id allocation (turn_0001, turn_0002, ...)
//   - Manager: ingestion API used by the agent runtime
//   - Retriever: bounded read of episodic and semantic memory
//
// Every agent owns its own Manager and Store. Nothing in this package holds
// process-wide state, and no locking is required across agents.
package memory
