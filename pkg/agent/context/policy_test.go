package context

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestNewPolicy tests constructor clamping.
func TestNewPolicy(t *testing.T) {
	tests := []struct {
		name      string
		ratio     float64
		tail      int
		wantRatio float64
		wantTail  int
	}{
		{name: "valid input", ratio: 0.7, tail: 2, wantRatio: 0.7, wantTail: 2},
		{name: "zero ratio uses default", ratio: 0, tail: 1, wantRatio: DefaultTriggerRatio, wantTail: 1},
		{name: "negative ratio uses default", ratio: -0.5, tail: 1, wantRatio: DefaultTriggerRatio, wantTail: 1},
		{name: "ratio clamped to 1", ratio: 1.5, tail: 0, wantRatio: 1, wantTail: 0},
		{name: "negative tail clamped", ratio: 0.8, tail: -3, wantRatio: 0.8, wantTail: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPolicy(tt.ratio, tt.tail)
			assert.Equal(t, tt.wantRatio, p.TriggerRatio)
			assert.Equal(t, tt.wantTail, p.RawTailTurns)
		})
	}
}

// TestPolicy_ShouldCompact tests trigger conditions.
func TestPolicy_ShouldCompact(t *testing.T) {
	tests := []struct {
		name   string
		ratio  float64
		tokens int
		budget int
		want   bool
	}{
		{"below ratio", 0.8, 799, 1000, false},
		{"at ratio", 0.8, 800, 1000, true},
		{"above ratio", 0.8, 900, 1000, true},
		{"at budget with ratio 1", 1, 1000, 1000, true},
		{"below budget with ratio 1", 1, 999, 1000, false},
		{"over budget", 0.5, 5000, 1000, true},
		{"zero budget always compacts", 0.8, 0, 0, true},
		{"empty prompt", 0.8, 0, 1000, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewPolicy(tt.ratio, 0).ShouldCompact(tt.tokens, tt.budget))
		})
	}
}
