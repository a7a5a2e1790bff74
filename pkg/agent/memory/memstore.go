package memory

import (
	"context"
	"sync"
)

// InMemoryStore keeps all collections in process memory. It backs tests and
// ephemeral agents that need no persistence.
type InMemoryStore struct {
	mu       sync.RWMutex
	raw      []*RawTraceItem
	archive  []*RawTraceItem
	episodic []*EpisodicItem
	semantic []*SemanticItem
}

// NewInMemoryStore returns an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

// Add implements Store.
func (s *InMemoryStore) Add(ctx context.Context, items ...Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateAll(items); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range items {
		switch v := it.(type) {
		case *RawTraceItem:
			s.raw = append(s.raw, v)
		case *EpisodicItem:
			s.episodic = append(s.episodic, v)
		case *SemanticItem:
			s.semantic = append(s.semantic, v)
		}
	}
	return nil
}

// List implements Store.
func (s *InMemoryStore) List(ctx context.Context, kind Kind, limit int) ([]Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	switch kind {
	case KindRawTrace:
		return toItems(tail(s.raw, limit)), nil
	case KindEpisodic:
		return toItems(tail(s.episodic, limit)), nil
	case KindSemantic:
		return toItems(tail(s.semantic, limit)), nil
	}
	return nil, newValidationError("kind", "unknown value "+string(kind))
}

// PruneRawTraces implements Store.
func (s *InMemoryStore) PruneRawTraces(ctx context.Context, keepTurnIDs []string, archive bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	kept, removed := splitByTurn(s.raw, keepSet(keepTurnIDs))
	if archive {
		s.archive = append(s.archive, removed...)
	}
	s.raw = kept
	return nil
}

// ReadArchiveRawTraces implements Store.
func (s *InMemoryStore) ReadArchiveRawTraces(ctx context.Context) ([]*RawTraceItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*RawTraceItem, len(s.archive))
	copy(out, s.archive)
	return out, nil
}

func toItems[T Item](in []T) []Item {
	out := make([]Item, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}
