package context

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSummarization matches every *SummarizationError.
var ErrSummarization = errors.New("context: summarization failed")

// SummarizationError reports that the summarizer could not produce a result
// for a compaction window. The store is left exactly as it was.
type SummarizationError struct {
	TurnIDs []string
	Err     error
}

func (e *SummarizationError) Error() string {
	return fmt.Sprintf("context: summarize %s: %v", strings.Join(e.TurnIDs, ","), e.Err)
}

// Unwrap returns the summarizer's error.
func (e *SummarizationError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrSummarization) match.
func (e *SummarizationError) Is(target error) bool {
	return target == ErrSummarization
}
