package openai

import (
	"strings"

	"github.com/AutoByteus/autobyteus-sub006/pkg/types"
)

type modelLimits struct {
	contextWindow int
	maxOutput     int
}

// Ordered longest prefix first so "gpt-4o" wins over "gpt-4".
var knownModels = []struct {
	prefix string
	limits modelLimits
}{
	{"gpt-4.1", modelLimits{1047576, 32768}},
	{"gpt-4o", modelLimits{128000, 16384}},
	{"gpt-4-turbo", modelLimits{128000, 4096}},
	{"gpt-4", modelLimits{8192, 4096}},
	{"gpt-3.5-turbo", modelLimits{16385, 4096}},
	{"o3", modelLimits{200000, 100000}},
	{"o1", modelLimits{200000, 100000}},
}

const (
	fallbackContextWindow = 8192
	fallbackMaxOutput     = 2048
)

// LookupModelInfo returns the context limits known for model. Unknown models
// get a conservative 8k window.
func LookupModelInfo(model string) *types.ModelInfo {
	info := &types.ModelInfo{
		Name:            model,
		ContextWindow:   fallbackContextWindow,
		MaxOutputTokens: fallbackMaxOutput,
	}
	for _, m := range knownModels {
		if strings.HasPrefix(model, m.prefix) {
			info.ContextWindow = m.limits.contextWindow
			info.MaxOutputTokens = m.limits.maxOutput
			break
		}
	}
	return info
}
