package memory

import (
	"context"
	"fmt"
)

// Bundle is the durable memory selected for a prompt.
type Bundle struct {
	Episodic []*EpisodicItem
	Semantic []*SemanticItem
}

// Empty reports whether the bundle carries no memory.
func (b *Bundle) Empty() bool {
	return b == nil || (len(b.Episodic) == 0 && len(b.Semantic) == 0)
}

// Retriever reads episodic and semantic memory. It never writes.
type Retriever struct {
	store Store
}

// NewRetriever returns a retriever over store.
func NewRetriever(store Store) *Retriever {
	return &Retriever{store: store}
}

// Retrieve returns the most recent maxEpisodic episodes and maxSemantic facts
// in insertion order. A max of 0 or less returns all items of that kind.
func (r *Retriever) Retrieve(ctx context.Context, maxEpisodic, maxSemantic int) (*Bundle, error) {
	episodic, err := ListEpisodic(ctx, r.store, maxEpisodic)
	if err != nil {
		return nil, fmt.Errorf("memory: retrieve episodic: %w", err)
	}
	semantic, err := ListSemantic(ctx, r.store, maxSemantic)
	if err != nil {
		return nil, fmt.Errorf("memory: retrieve semantic: %w", err)
	}
	return &Bundle{Episodic: episodic, Semantic: semantic}, nil
}
