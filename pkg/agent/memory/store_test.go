package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func rawTrace(id, turnID string, seq int, tt TraceType, content string) *RawTraceItem {
	return &RawTraceItem{
		ID:          id,
		TS:          testTime,
		TurnID:      turnID,
		Seq:         seq,
		TraceType:   tt,
		Content:     content,
		SourceEvent: SourceUserMessage,
	}
}

// storeFactories runs the shared contract against every Store implementation.
func storeFactories(t *testing.T) map[string]func() Store {
	return map[string]func() Store{
		"memory": func() Store { return NewInMemoryStore() },
		"file": func() Store {
			s, err := NewFileStore(t.TempDir(), "agent-1")
			require.NoError(t, err)
			return s
		},
	}
}

func TestStoreAddAndListPreservesOrder(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore()

			require.NoError(t, s.Add(ctx,
				rawTrace("rt_1", "turn_0001", 1, TraceUser, "hello"),
				&EpisodicItem{ID: "ep_1", TS: testTime, TurnIDs: []string{"turn_0000"}, Summary: "before"},
				rawTrace("rt_2", "turn_0001", 2, TraceAssistant, "hi"),
				&SemanticItem{ID: "sem_1", TS: testTime, Fact: "user says hello", Confidence: 0.9},
			))
			require.NoError(t, s.Add(ctx, rawTrace("rt_3", "turn_0002", 1, TraceUser, "again")))

			raw, err := ListRawTraces(ctx, s, 0)
			require.NoError(t, err)
			require.Len(t, raw, 3)
			assert.Equal(t, []string{"rt_1", "rt_2", "rt_3"}, []string{raw[0].ID, raw[1].ID, raw[2].ID})
			assert.Equal(t, "hi", raw[1].Content)

			episodes, err := ListEpisodic(ctx, s, 0)
			require.NoError(t, err)
			require.Len(t, episodes, 1)
			assert.Equal(t, "before", episodes[0].Summary)

			facts, err := ListSemantic(ctx, s, 0)
			require.NoError(t, err)
			require.Len(t, facts, 1)
			assert.InDelta(t, 0.9, facts[0].Confidence, 1e-9)
		})
	}
}

func TestStoreListLimitReturnsMostRecent(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore()
			for i, id := range []string{"a", "b", "c", "d", "e"} {
				require.NoError(t, s.Add(ctx, &SemanticItem{ID: id, TS: testTime, Fact: "fact " + id, Confidence: float64(i) / 10}))
			}

			got, err := ListSemantic(ctx, s, 2)
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, "d", got[0].ID)
			assert.Equal(t, "e", got[1].ID)

			all, err := ListSemantic(ctx, s, 10)
			require.NoError(t, err)
			assert.Len(t, all, 5)

			items, err := s.List(ctx, KindSemantic, -1)
			require.NoError(t, err)
			assert.Len(t, items, 5)
		})
	}
}

func TestStoreAddRejectsInvalidBatch(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore()

			err := s.Add(ctx,
				rawTrace("rt_1", "turn_0001", 1, TraceUser, "ok"),
				rawTrace("rt_2", "", 2, TraceUser, "no turn"),
			)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation))

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, "turn_id", verr.Field)

			raw, err := ListRawTraces(ctx, s, 0)
			require.NoError(t, err)
			assert.Empty(t, raw, "nothing from a rejected batch may be written")
		})
	}
}

func TestStorePruneRawTracesArchives(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore()
			require.NoError(t, s.Add(ctx,
				rawTrace("rt_1", "turn_0001", 1, TraceUser, "one"),
				rawTrace("rt_2", "turn_0002", 1, TraceUser, "two"),
				rawTrace("rt_3", "turn_0003", 1, TraceUser, "three"),
			))

			require.NoError(t, s.PruneRawTraces(ctx, []string{"turn_0003"}, true))

			raw, err := ListRawTraces(ctx, s, 0)
			require.NoError(t, err)
			require.Len(t, raw, 1)
			assert.Equal(t, "rt_3", raw[0].ID)

			archived, err := s.ReadArchiveRawTraces(ctx)
			require.NoError(t, err)
			require.Len(t, archived, 2)
			assert.Equal(t, "one", archived[0].Content)
			assert.Equal(t, "two", archived[1].Content)

			// A second prune appends to the archive.
			require.NoError(t, s.PruneRawTraces(ctx, nil, true))
			archived, err = s.ReadArchiveRawTraces(ctx)
			require.NoError(t, err)
			assert.Len(t, archived, 3)
		})
	}
}

func TestStorePruneWithoutArchive(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore()
			require.NoError(t, s.Add(ctx,
				rawTrace("rt_1", "turn_0001", 1, TraceUser, "one"),
				rawTrace("rt_2", "turn_0002", 1, TraceUser, "two"),
			))

			require.NoError(t, s.PruneRawTraces(ctx, []string{"turn_0002"}, false))

			raw, err := ListRawTraces(ctx, s, 0)
			require.NoError(t, err)
			require.Len(t, raw, 1)

			archived, err := s.ReadArchiveRawTraces(ctx)
			require.NoError(t, err)
			assert.Empty(t, archived)
		})
	}
}

func TestStoreHonorsCancelledContext(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			s := newStore()

			err := s.Add(ctx, rawTrace("rt_1", "turn_0001", 1, TraceUser, "x"))
			assert.ErrorIs(t, err, context.Canceled)

			_, err = s.List(ctx, KindRawTrace, 0)
			assert.ErrorIs(t, err, context.Canceled)
		})
	}
}

func TestItemValidate(t *testing.T) {
	tests := []struct {
		item  Item
		name  string
		field string
	}{
		{name: "missing id", item: &RawTraceItem{TurnID: "turn_0001", Seq: 1, TraceType: TraceUser}, field: "id"},
		{name: "zero seq", item: &RawTraceItem{ID: "x", TurnID: "turn_0001", TraceType: TraceUser}, field: "seq"},
		{name: "unknown trace type", item: &RawTraceItem{ID: "x", TurnID: "turn_0001", Seq: 1, TraceType: "note"}, field: "trace_type"},
		{name: "tool call without id", item: &RawTraceItem{ID: "x", TurnID: "turn_0001", Seq: 1, TraceType: TraceToolCall}, field: "tool_call_id"},
		{name: "episode without turns", item: &EpisodicItem{ID: "ep"}, field: "turn_ids"},
		{name: "empty fact", item: &SemanticItem{ID: "sem"}, field: "fact"},
		{name: "confidence too high", item: &SemanticItem{ID: "sem", Fact: "f", Confidence: 1.5}, field: "confidence"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.item.Validate()
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}
