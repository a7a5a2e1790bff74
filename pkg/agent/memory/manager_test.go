package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AutoByteus/autobyteus-sub006/pkg/types"
)

func newTestManager(t *testing.T, store Store, opts ...ManagerOption) *Manager {
	t.Helper()
	counter := 0
	base := []ManagerOption{
		WithClock(func() time.Time { return testTime }),
		WithIDGenerator(func(prefix string) string {
			counter++
			return fmt.Sprintf("%s_%d", prefix, counter)
		}),
	}
	m, err := NewManager(context.Background(), store, append(base, opts...)...)
	require.NoError(t, err)
	return m
}

type countingObserver struct {
	counts map[TraceType]int
}

func (o *countingObserver) ObserveIngest(tt TraceType) {
	if o.counts == nil {
		o.counts = make(map[TraceType]int)
	}
	o.counts[tt]++
}

func TestManagerSequenceIsGaplessPerTurn(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, NewInMemoryStore())

	t1 := m.StartTurn()
	assert.Equal(t, "turn_0001", t1)
	_, err := m.IngestUserMessage(ctx, t1, "list files")
	require.NoError(t, err)
	_, err = m.IngestToolIntent(ctx, types.NewToolInvocation(t1, "call_1", "list_files", map[string]interface{}{"dir": "."}))
	require.NoError(t, err)
	_, err = m.IngestToolResult(ctx, types.NewToolResultEvent(t1, "call_1", "list_files", []string{"a.go"}))
	require.NoError(t, err)
	_, err = m.IngestAssistantResponse(ctx, t1, "one file")
	require.NoError(t, err)

	t2 := m.StartTurn()
	assert.Equal(t, "turn_0002", t2)
	_, err = m.IngestUserMessage(ctx, t2, "thanks")
	require.NoError(t, err)

	raw, err := ListRawTraces(ctx, m.Store(), 0)
	require.NoError(t, err)
	require.Len(t, raw, 5)

	seqs := map[string][]int{}
	for _, tr := range raw {
		seqs[tr.TurnID] = append(seqs[tr.TurnID], tr.Seq)
	}
	assert.Equal(t, []int{1, 2, 3, 4}, seqs[t1])
	assert.Equal(t, []int{1}, seqs[t2])

	assert.Equal(t, TraceToolCall, raw[1].TraceType)
	assert.Equal(t, `list_files({"dir":"."})`, raw[1].Content)
	assert.Equal(t, `["a.go"]`, raw[2].Content)
	assert.Equal(t, testTime, raw[0].TS)
	assert.Equal(t, "rt_1", raw[0].ID)
}

func TestManagerRejectedIngestDoesNotConsumeSeq(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, NewInMemoryStore())
	turn := m.StartTurn()

	_, err := m.IngestToolIntent(ctx, types.NewToolInvocation(turn, "", "broken", nil))
	require.ErrorIs(t, err, ErrValidation)

	item, err := m.IngestUserMessage(ctx, turn, "hello")
	require.NoError(t, err)
	assert.Equal(t, 1, item.Seq)

	_, err = m.IngestUserMessage(ctx, "", "no turn")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = m.IngestToolIntent(ctx, nil)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = m.IngestToolResult(ctx, nil)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestManagerGetRawTail(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, NewInMemoryStore())
	for i := 0; i < 4; i++ {
		turn := m.StartTurn()
		_, err := m.IngestUserMessage(ctx, turn, fmt.Sprintf("u%d", i+1))
		require.NoError(t, err)
		_, err = m.IngestAssistantResponse(ctx, turn, fmt.Sprintf("a%d", i+1))
		require.NoError(t, err)
	}

	t.Run("last two turns", func(t *testing.T) {
		tail, err := m.GetRawTail(ctx, 2, "")
		require.NoError(t, err)
		require.Len(t, tail, 4)
		assert.Equal(t, []string{"u3", "a3", "u4", "a4"}, contents(tail))
	})

	t.Run("excluding current turn", func(t *testing.T) {
		tail, err := m.GetRawTail(ctx, 2, "turn_0004")
		require.NoError(t, err)
		assert.Equal(t, []string{"u2", "a2", "u3", "a3"}, contents(tail))
	})

	t.Run("more turns than exist", func(t *testing.T) {
		tail, err := m.GetRawTail(ctx, 10, "")
		require.NoError(t, err)
		assert.Len(t, tail, 8)
	})

	t.Run("zero turns", func(t *testing.T) {
		tail, err := m.GetRawTail(ctx, 0, "")
		require.NoError(t, err)
		assert.NotNil(t, tail)
		assert.Empty(t, tail)
	})
}

func TestManagerRawTailOrdersByTurnNumberNotTimestamp(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	later := testTime.Add(time.Hour)
	// Insert turn 10 before turn 9 with an older timestamp.
	require.NoError(t, store.Add(ctx,
		&RawTraceItem{ID: "x1", TS: testTime, TurnID: "turn_0010", Seq: 1, TraceType: TraceUser, Content: "ten"},
		&RawTraceItem{ID: "x2", TS: later, TurnID: "turn_0009", Seq: 2, TraceType: TraceAssistant, Content: "nine-b"},
		&RawTraceItem{ID: "x3", TS: later, TurnID: "turn_0009", Seq: 1, TraceType: TraceUser, Content: "nine-a"},
	))
	m := newTestManager(t, store)

	tail, err := m.GetRawTail(ctx, 1, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"ten"}, contents(tail))

	tail, err = m.GetRawTail(ctx, 2, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"nine-a", "nine-b", "ten"}, contents(tail))
}

func TestManagerGetToolInteractions(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, NewInMemoryStore())
	turn := m.StartTurn()

	_, err := m.IngestToolIntent(ctx, types.NewToolInvocation(turn, "call_1", "read_file", map[string]interface{}{"path": "a"}))
	require.NoError(t, err)
	_, err = m.IngestToolIntent(ctx, types.NewToolInvocation(turn, "call_2", "write_file", nil))
	require.NoError(t, err)
	_, err = m.IngestToolResult(ctx, types.NewToolErrorEvent(turn, "call_2", "write_file", "read-only"))
	require.NoError(t, err)

	got, err := m.GetToolInteractions(ctx, turn)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, ToolStatusPending, got[0].Status)
	assert.Equal(t, ToolStatusError, got[1].Status)
	assert.Equal(t, "read-only", got[1].Error)

	unknown, err := m.GetToolInteractions(ctx, "turn_9999")
	require.NoError(t, err)
	assert.NotNil(t, unknown)
	assert.Empty(t, unknown)
}

func TestManagerGetToolInteractionsAcrossTurns(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, NewInMemoryStore())

	first := m.StartTurn()
	_, err := m.IngestToolIntent(ctx, types.NewToolInvocation(first, "call_a", "ls", nil))
	require.NoError(t, err)
	_, err = m.IngestToolResult(ctx, types.NewToolResultEvent(first, "call_a", "ls", "a b"))
	require.NoError(t, err)

	second := m.StartTurn()
	_, err = m.IngestToolIntent(ctx, types.NewToolInvocation(second, "call_b", "rm", nil))
	require.NoError(t, err)

	// A runtime that restarts call ids each turn.
	third := m.StartTurn()
	_, err = m.IngestToolIntent(ctx, types.NewToolInvocation(third, "call_a", "cat", nil))
	require.NoError(t, err)
	_, err = m.IngestToolResult(ctx, types.NewToolErrorEvent(third, "call_a", "cat", "denied"))
	require.NoError(t, err)

	all, err := m.GetToolInteractions(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, first, all[0].TurnID)
	assert.Equal(t, "ls", all[0].ToolName)
	assert.Equal(t, ToolStatusSuccess, all[0].Status)
	assert.Equal(t, second, all[1].TurnID)
	assert.Equal(t, ToolStatusPending, all[1].Status)
	assert.Equal(t, third, all[2].TurnID)
	assert.Equal(t, "cat", all[2].ToolName)
	assert.Equal(t, ToolStatusError, all[2].Status)
	assert.Equal(t, "denied", all[2].Error)

	one, err := m.GetToolInteractions(ctx, first)
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "ls", one[0].ToolName)

	empty, err := newTestManager(t, NewInMemoryStore()).GetToolInteractions(ctx, "")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestManagerCompactionFlag(t *testing.T) {
	m := newTestManager(t, NewInMemoryStore())
	assert.False(t, m.CompactionRequested())
	m.RequestCompaction()
	m.RequestCompaction()
	assert.True(t, m.CompactionRequested())
	m.ClearCompactionRequest()
	assert.False(t, m.CompactionRequested())
}

func TestManagerTurnOriginAndResume(t *testing.T) {
	ctx := context.Background()

	m := newTestManager(t, NewInMemoryStore(), WithTurnOrigin(42))
	assert.Equal(t, "turn_0042", m.StartTurn())

	store, err := NewFileStore(t.TempDir(), "agent")
	require.NoError(t, err)
	first := newTestManager(t, store)
	for i := 0; i < 3; i++ {
		turn := first.StartTurn()
		_, err := first.IngestUserMessage(ctx, turn, "x")
		require.NoError(t, err)
	}
	require.NoError(t, store.PruneRawTraces(ctx, nil, true))

	resumed := newTestManager(t, store, WithResume())
	assert.Equal(t, "turn_0004", resumed.StartTurn())

	fresh := newTestManager(t, NewInMemoryStore(), WithResume(), WithTurnOrigin(7))
	assert.Equal(t, "turn_0007", fresh.StartTurn())
}

func TestManagerSeedsSequenceForUnstartedTurn(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	first := newTestManager(t, store)
	turn := first.StartTurn()
	_, err := first.IngestUserMessage(ctx, turn, "hello")
	require.NoError(t, err)

	second := newTestManager(t, store)
	item, err := second.IngestAssistantResponse(ctx, turn, "hi")
	require.NoError(t, err)
	assert.Equal(t, 2, item.Seq)
}

func TestManagerNotifiesObserver(t *testing.T) {
	ctx := context.Background()
	obs := &countingObserver{}
	m := newTestManager(t, NewInMemoryStore(), WithIngestObserver(obs))
	turn := m.StartTurn()
	_, err := m.IngestUserMessage(ctx, turn, "a")
	require.NoError(t, err)
	_, err = m.IngestAssistantResponse(ctx, turn, "b")
	require.NoError(t, err)
	_, _ = m.IngestUserMessage(ctx, "", "rejected")

	assert.Equal(t, 1, obs.counts[TraceUser])
	assert.Equal(t, 1, obs.counts[TraceAssistant])
}

func TestNewManagerRequiresStore(t *testing.T) {
	_, err := NewManager(context.Background(), nil)
	assert.ErrorIs(t, err, ErrValidation)
}

func contents(traces []*RawTraceItem) []string {
	out := make([]string, len(traces))
	for i, tr := range traces {
		out[i] = tr.Content
	}
	return out
}
