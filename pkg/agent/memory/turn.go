package memory

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

const turnPrefix = "turn_"

// TurnTracker allocates monotonically increasing turn ids of the form
// turn_0001. It is owned by a single writer.
type TurnTracker struct {
	next int
}

// NewTurnTracker starts numbering at origin. Origins below 1 start at 1.
func NewTurnTracker(origin int) *TurnTracker {
	if origin < 1 {
		origin = 1
	}
	return &TurnTracker{next: origin}
}

// NextTurnID returns the next id and advances the counter.
func (t *TurnTracker) NextTurnID() string {
	id := FormatTurnID(t.next)
	t.next++
	return id
}

// FormatTurnID renders n as a zero-padded turn id.
func FormatTurnID(n int) string {
	return fmt.Sprintf("%s%04d", turnPrefix, n)
}

// ParseTurnNumber extracts the numeric part of a turn id.
func ParseTurnNumber(turnID string) (int, bool) {
	if !strings.HasPrefix(turnID, turnPrefix) {
		return 0, false
	}
	n, err := strconv.Atoi(turnID[len(turnPrefix):])
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// compareTurnIDs orders turn ids numerically, falling back to string order
// for ids that do not parse.
func compareTurnIDs(a, b string) int {
	na, oka := ParseTurnNumber(a)
	nb, okb := ParseTurnNumber(b)
	switch {
	case oka && okb:
		return na - nb
	case oka:
		return -1
	case okb:
		return 1
	}
	return strings.Compare(a, b)
}

// LastTurnNumber returns the highest turn number recorded anywhere in s:
// live raw traces, archived raw traces and episodic windows. It is 0 for an
// empty store.
func LastTurnNumber(ctx context.Context, s Store) (int, error) {
	last := 0
	observe := func(turnID string) {
		if n, ok := ParseTurnNumber(turnID); ok && n > last {
			last = n
		}
	}

	raw, err := ListRawTraces(ctx, s, 0)
	if err != nil {
		return 0, fmt.Errorf("memory: scan raw traces: %w", err)
	}
	for _, tr := range raw {
		observe(tr.TurnID)
	}
	archived, err := s.ReadArchiveRawTraces(ctx)
	if err != nil {
		return 0, fmt.Errorf("memory: scan archive: %w", err)
	}
	for _, tr := range archived {
		observe(tr.TurnID)
	}
	episodes, err := ListEpisodic(ctx, s, 0)
	if err != nil {
		return 0, fmt.Errorf("memory: scan episodic: %w", err)
	}
	for _, ep := range episodes {
		for _, id := range ep.TurnIDs {
			observe(id)
		}
	}
	return last, nil
}
