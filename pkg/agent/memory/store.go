package memory

import (
	"context"
	"fmt"
)

// Store is the append-only persistence contract for one agent's memory.
//
// Add validates every item before writing any of them and appends each to the
// collection named by its Kind, preserving call order. List returns items in
// insertion order; limit <= 0 returns everything, limit > 0 the most recent
// limit items. PruneRawTraces drops every raw trace whose turn is not in
// keepTurnIDs, archiving the removed traces first when archive is set. It is
// all-or-nothing.
type Store interface {
	Add(ctx context.Context, items ...Item) error
	List(ctx context.Context, kind Kind, limit int) ([]Item, error)
	PruneRawTraces(ctx context.Context, keepTurnIDs []string, archive bool) error
	ReadArchiveRawTraces(ctx context.Context) ([]*RawTraceItem, error)
}

// ListRawTraces is List(KindRawTrace) with typed results.
func ListRawTraces(ctx context.Context, s Store, limit int) ([]*RawTraceItem, error) {
	return listTyped[*RawTraceItem](ctx, s, KindRawTrace, limit)
}

// ListEpisodic is List(KindEpisodic) with typed results.
func ListEpisodic(ctx context.Context, s Store, limit int) ([]*EpisodicItem, error) {
	return listTyped[*EpisodicItem](ctx, s, KindEpisodic, limit)
}

// ListSemantic is List(KindSemantic) with typed results.
func ListSemantic(ctx context.Context, s Store, limit int) ([]*SemanticItem, error) {
	return listTyped[*SemanticItem](ctx, s, KindSemantic, limit)
}

func listTyped[T Item](ctx context.Context, s Store, kind Kind, limit int) ([]T, error) {
	items, err := s.List(ctx, kind, limit)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(items))
	for _, it := range items {
		typed, ok := it.(T)
		if !ok {
			return nil, fmt.Errorf("memory: unexpected %T in %s collection", it, kind)
		}
		out = append(out, typed)
	}
	return out, nil
}

// validateAll checks every item up front so a bad batch writes nothing.
func validateAll(items []Item) error {
	for i, it := range items {
		if it == nil {
			return newValidationError("item", fmt.Sprintf("index %d is nil", i))
		}
		if err := it.Validate(); err != nil {
			return err
		}
		switch it.Kind() {
		case KindRawTrace, KindEpisodic, KindSemantic:
		default:
			return newValidationError("kind", "unknown value "+string(it.Kind()))
		}
	}
	return nil
}

// tail returns the last limit elements of s, or all of s when limit <= 0.
func tail[T any](s []T, limit int) []T {
	if limit <= 0 || limit >= len(s) {
		return s
	}
	return s[len(s)-limit:]
}

func keepSet(turnIDs []string) map[string]struct{} {
	set := make(map[string]struct{}, len(turnIDs))
	for _, id := range turnIDs {
		set[id] = struct{}{}
	}
	return set
}

// splitByTurn partitions raw traces into kept and removed, preserving order.
func splitByTurn(traces []*RawTraceItem, keep map[string]struct{}) (kept, removed []*RawTraceItem) {
	for _, tr := range traces {
		if _, ok := keep[tr.TurnID]; ok {
			kept = append(kept, tr)
		} else {
			removed = append(removed, tr)
		}
	}
	return kept, removed
}
