package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/AutoByteus/autobyteus-sub006/pkg/logging"
	"github.com/AutoByteus/autobyteus-sub006/pkg/types"
)

var debugLog *logging.Logger

func init() {
	var err error
	debugLog, err = logging.NewLogger("memory")
	if err != nil {
		debugLog.Warnf("Failed to initialize memory logger, using stderr fallback: %v", err)
	}
}

// IngestObserver is notified after every successful ingestion.
type IngestObserver interface {
	ObserveIngest(traceType TraceType)
}

// Manager is the ingestion surface the agent runtime writes through. It owns
// the turn tracker and the per-turn sequence counters for one agent.
//
// A Manager is used by a single writer: the owning agent's control flow.
type Manager struct {
	store    Store
	turns    *TurnTracker
	seq      map[string]int
	now      func() time.Time
	newID    IDGenerator
	observer IngestObserver

	compactionRequested bool
}

type managerConfig struct {
	origin   int
	resume   bool
	now      func() time.Time
	newID    IDGenerator
	observer IngestObserver
}

// ManagerOption configures a Manager.
type ManagerOption func(*managerConfig)

// WithTurnOrigin sets the number of the first turn id handed out.
func WithTurnOrigin(n int) ManagerOption {
	return func(c *managerConfig) {
		c.origin = n
	}
}

// WithResume continues turn numbering after the highest turn already
// recorded in the store. It takes precedence over WithTurnOrigin when the
// store is not empty.
func WithResume() ManagerOption {
	return func(c *managerConfig) {
		c.resume = true
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) ManagerOption {
	return func(c *managerConfig) {
		if now != nil {
			c.now = now
		}
	}
}

// WithIDGenerator overrides item id generation.
func WithIDGenerator(gen IDGenerator) ManagerOption {
	return func(c *managerConfig) {
		if gen != nil {
			c.newID = gen
		}
	}
}

// WithIngestObserver registers an observer for ingested traces.
func WithIngestObserver(o IngestObserver) ManagerOption {
	return func(c *managerConfig) {
		c.observer = o
	}
}

// NewManager returns a manager writing to store.
func NewManager(ctx context.Context, store Store, opts ...ManagerOption) (*Manager, error) {
	if store == nil {
		return nil, newValidationError("store", "missing")
	}
	cfg := &managerConfig{
		origin: 1,
		now:    time.Now,
		newID:  NewItemID,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	origin := cfg.origin
	if cfg.resume {
		last, err := LastTurnNumber(ctx, store)
		if err != nil {
			return nil, err
		}
		if last > 0 {
			origin = last + 1
			debugLog.Infof("Resuming turn numbering at %s", FormatTurnID(origin))
		}
	}

	return &Manager{
		store:    store,
		turns:    NewTurnTracker(origin),
		seq:      make(map[string]int),
		now:      cfg.now,
		newID:    cfg.newID,
		observer: cfg.observer,
	}, nil
}

// Store returns the underlying store.
func (m *Manager) Store() Store {
	return m.store
}

// StartTurn allocates a new turn id and resets its sequence counter.
func (m *Manager) StartTurn() string {
	id := m.turns.NextTurnID()
	m.seq[id] = 0
	debugLog.Debugf("Started %s", id)
	return id
}

// IngestUserMessage records the user's input for turnID.
func (m *Manager) IngestUserMessage(ctx context.Context, turnID, content string) (*RawTraceItem, error) {
	return m.ingest(ctx, &RawTraceItem{
		TurnID:      turnID,
		TraceType:   TraceUser,
		Content:     content,
		SourceEvent: SourceUserMessage,
	})
}

// IngestAssistantResponse records the assistant's reply for turnID.
func (m *Manager) IngestAssistantResponse(ctx context.Context, turnID, content string) (*RawTraceItem, error) {
	return m.ingest(ctx, &RawTraceItem{
		TurnID:      turnID,
		TraceType:   TraceAssistant,
		Content:     content,
		SourceEvent: SourceAssistantResponse,
	})
}

// IngestToolIntent records a tool call the assistant decided to make.
func (m *Manager) IngestToolIntent(ctx context.Context, inv *types.ToolInvocation) (*RawTraceItem, error) {
	if inv == nil {
		return nil, newValidationError("tool_invocation", "missing")
	}
	return m.ingest(ctx, &RawTraceItem{
		TurnID:      inv.TurnID,
		TraceType:   TraceToolCall,
		Content:     renderToolCall(inv.Name, inv.Arguments),
		SourceEvent: SourceToolInvocation,
		ToolName:    inv.Name,
		ToolCallID:  inv.ID,
		ToolArgs:    inv.Arguments,
	})
}

// IngestToolResult records the outcome of a tool call.
func (m *Manager) IngestToolResult(ctx context.Context, ev *types.ToolResultEvent) (*RawTraceItem, error) {
	if ev == nil {
		return nil, newValidationError("tool_result", "missing")
	}
	content := ev.Error
	if !ev.IsError() {
		content = renderValue(ev.Result)
	}
	return m.ingest(ctx, &RawTraceItem{
		TurnID:      ev.TurnID,
		TraceType:   TraceToolResult,
		Content:     content,
		SourceEvent: SourceToolResult,
		ToolName:    ev.ToolName,
		ToolCallID:  ev.ToolCallID,
		ToolResult:  ev.Result,
		ToolError:   ev.Error,
	})
}

func (m *Manager) ingest(ctx context.Context, item *RawTraceItem) (*RawTraceItem, error) {
	if item.TurnID == "" {
		return nil, newValidationError("turn_id", "missing")
	}
	seq, err := m.nextSeq(ctx, item.TurnID)
	if err != nil {
		return nil, err
	}
	item.ID = m.newID("rt")
	item.TS = m.now().UTC()
	item.Seq = seq

	if err := m.store.Add(ctx, item); err != nil {
		return nil, fmt.Errorf("memory: ingest %s for %s: %w", item.TraceType, item.TurnID, err)
	}
	// The counter only advances once the trace is durable.
	m.seq[item.TurnID] = seq
	if m.observer != nil {
		m.observer.ObserveIngest(item.TraceType)
	}
	return item, nil
}

// nextSeq returns the sequence number the next trace of turnID gets. Turns not
// started by this manager are seeded from the traces already stored.
func (m *Manager) nextSeq(ctx context.Context, turnID string) (int, error) {
	if n, ok := m.seq[turnID]; ok {
		return n + 1, nil
	}
	raw, err := ListRawTraces(ctx, m.store, 0)
	if err != nil {
		return 0, fmt.Errorf("memory: seed sequence for %s: %w", turnID, err)
	}
	last := 0
	for _, tr := range raw {
		if tr.TurnID == turnID && tr.Seq > last {
			last = tr.Seq
		}
	}
	m.seq[turnID] = last
	return last + 1, nil
}

// GetRawTail returns every raw trace of the most recent tailTurns distinct
// turns, ordered by (turn, seq). excludeTurnID, when set, is removed before
// the most recent turns are chosen.
func (m *Manager) GetRawTail(ctx context.Context, tailTurns int, excludeTurnID string) ([]*RawTraceItem, error) {
	if tailTurns <= 0 {
		return []*RawTraceItem{}, nil
	}
	raw, err := ListRawTraces(ctx, m.store, 0)
	if err != nil {
		return nil, fmt.Errorf("memory: read raw tail: %w", err)
	}

	turnIDs := DistinctTurnIDs(raw)
	if excludeTurnID != "" {
		filtered := turnIDs[:0:0]
		for _, id := range turnIDs {
			if id != excludeTurnID {
				filtered = append(filtered, id)
			}
		}
		turnIDs = filtered
	}
	return FilterTraces(raw, tail(turnIDs, tailTurns)), nil
}

// GetToolInteractions reconstructs the tool calls of turnID, or of every
// raw turn when turnID is empty. An unknown turn yields an empty slice.
func (m *Manager) GetToolInteractions(ctx context.Context, turnID string) ([]*ToolInteraction, error) {
	raw, err := ListRawTraces(ctx, m.store, 0)
	if err != nil {
		return nil, fmt.Errorf("memory: read tool interactions: %w", err)
	}
	turnIDs := []string{turnID}
	if turnID == "" {
		turnIDs = DistinctTurnIDs(raw)
	}
	out := BuildToolInteractions(FilterTraces(raw, turnIDs))
	if out == nil {
		out = []*ToolInteraction{}
	}
	return out, nil
}

// RequestCompaction marks that the next request assembly should evaluate
// the compaction policy.
func (m *Manager) RequestCompaction() {
	m.compactionRequested = true
}

// CompactionRequested reports whether a compaction request is pending.
func (m *Manager) CompactionRequested() bool {
	return m.compactionRequested
}

// ClearCompactionRequest drops a pending compaction request.
func (m *Manager) ClearCompactionRequest() {
	m.compactionRequested = false
}

// DistinctTurnIDs returns the turn ids present in traces in ascending turn
// order.
func DistinctTurnIDs(traces []*RawTraceItem) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, tr := range traces {
		if _, ok := seen[tr.TurnID]; ok {
			continue
		}
		seen[tr.TurnID] = struct{}{}
		ids = append(ids, tr.TurnID)
	}
	sort.Slice(ids, func(i, j int) bool {
		return compareTurnIDs(ids[i], ids[j]) < 0
	})
	return ids
}

// FilterTraces returns the traces belonging to turnIDs ordered by
// (turn, seq).
func FilterTraces(traces []*RawTraceItem, turnIDs []string) []*RawTraceItem {
	want := keepSet(turnIDs)
	out := []*RawTraceItem{}
	for _, tr := range traces {
		if _, ok := want[tr.TurnID]; ok {
			out = append(out, tr)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if c := compareTurnIDs(out[i].TurnID, out[j].TurnID); c != 0 {
			return c < 0
		}
		return out[i].Seq < out[j].Seq
	})
	return out
}

func renderToolCall(name string, args map[string]interface{}) string {
	if len(args) == 0 {
		return name + "()"
	}
	return name + "(" + renderValue(args) + ")"
}

// renderValue turns a tool payload into text for the content field.
func renderValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
