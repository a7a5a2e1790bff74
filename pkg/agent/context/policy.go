package context

// DefaultTriggerRatio is used when a non-positive ratio is configured.
const DefaultTriggerRatio = 0.8

// Policy decides when a prompt is large enough to compact and how many recent
// turns are exempt from compaction.
type Policy struct {
	TriggerRatio float64
	RawTailTurns int
}

// NewPolicy clamps triggerRatio into (0,1] and rawTailTurns to >= 0.
func NewPolicy(triggerRatio float64, rawTailTurns int) *Policy {
	if triggerRatio <= 0 {
		triggerRatio = DefaultTriggerRatio
	}
	if triggerRatio > 1 {
		triggerRatio = 1
	}
	if rawTailTurns < 0 {
		rawTailTurns = 0
	}
	return &Policy{TriggerRatio: triggerRatio, RawTailTurns: rawTailTurns}
}

// ShouldCompact reports whether promptTokens has reached the input budget or
// the trigger ratio of it.
func (p *Policy) ShouldCompact(promptTokens, inputBudget int) bool {
	if promptTokens >= inputBudget {
		return true
	}
	return float64(promptTokens) >= p.TriggerRatio*float64(inputBudget)
}
