package memory

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetrieverBoundsAndIdempotence(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	for i := 1; i <= 4; i++ {
		require.NoError(t, store.Add(ctx,
			&EpisodicItem{ID: fmt.Sprintf("ep_%d", i), TS: testTime, TurnIDs: []string{FormatTurnID(i)}, Summary: fmt.Sprintf("episode %d", i)},
			&SemanticItem{ID: fmt.Sprintf("sem_%d", i), TS: testTime, Fact: fmt.Sprintf("fact %d", i), Confidence: 0.5},
		))
	}

	r := NewRetriever(store)
	first, err := r.Retrieve(ctx, 2, 3)
	require.NoError(t, err)
	require.Len(t, first.Episodic, 2)
	require.Len(t, first.Semantic, 3)
	assert.Equal(t, "episode 3", first.Episodic[0].Summary)
	assert.Equal(t, "episode 4", first.Episodic[1].Summary)
	assert.Equal(t, "fact 2", first.Semantic[0].Fact)

	second, err := r.Retrieve(ctx, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	raw, err := ListRawTraces(ctx, store, 0)
	require.NoError(t, err)
	assert.Empty(t, raw)
}

func TestBundleEmpty(t *testing.T) {
	var nilBundle *Bundle
	assert.True(t, nilBundle.Empty())
	assert.True(t, (&Bundle{}).Empty())
	assert.False(t, (&Bundle{Semantic: []*SemanticItem{{ID: "s", Fact: "f"}}}).Empty())
}
