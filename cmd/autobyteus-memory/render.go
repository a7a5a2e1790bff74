package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/lipgloss"
	"github.com/gobwas/glob"

	"github.com/AutoByteus/autobyteus-sub006/pkg/agent/memory"
)

var (
	salmonPink = lipgloss.Color("#FFB3BA")
	mintGreen  = lipgloss.Color("#A8E6CF")
	mutedGray  = lipgloss.Color("#6B7280")

	headingStyle = lipgloss.NewStyle().
			Foreground(salmonPink).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(mintGreen)

	mutedStyle = lipgloss.NewStyle().
			Foreground(mutedGray)

	errorStyle = lipgloss.NewStyle().
			Foreground(salmonPink).
			Italic(true)
)

// printer writes command output, styled unless color is off.
type printer struct {
	w     io.Writer
	color bool
}

func newPrinter(w io.Writer, color bool) *printer {
	return &printer{w: w, color: color}
}

func (p *printer) style(s lipgloss.Style, text string) string {
	if !p.color {
		return text
	}
	return s.Render(text)
}

func (p *printer) Heading(format string, args ...interface{}) {
	fmt.Fprintln(p.w, p.style(headingStyle, fmt.Sprintf(format, args...)))
}

func (p *printer) Line(format string, args ...interface{}) {
	fmt.Fprintf(p.w, format+"\n", args...)
}

func (p *printer) Muted(text string) string { return p.style(mutedStyle, text) }

func (p *printer) Label(text string) string { return p.style(labelStyle, text) }

func (p *printer) Error(text string) string { return p.style(errorStyle, text) }

// JSON writes v as indented JSON, highlighted when color is on.
func (p *printer) JSON(v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %T: %w", v, err)
	}
	if p.color {
		var sb strings.Builder
		if err := quick.Highlight(&sb, string(b), "json", "terminal256", "monokai"); err == nil {
			fmt.Fprintln(p.w, sb.String())
			return nil
		}
	}
	fmt.Fprintln(p.w, string(b))
	return nil
}

// turnFilter matches turn ids against a glob such as "turn_00{01,02}" or
// "turn_001*". A nil filter matches everything.
type turnFilter struct {
	pattern string
	g       glob.Glob
}

func newTurnFilter(pattern string) (*turnFilter, error) {
	if pattern == "" {
		return nil, nil
	}
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid -turns pattern %q: %w", pattern, err)
	}
	return &turnFilter{pattern: pattern, g: g}, nil
}

func (f *turnFilter) Match(turnID string) bool {
	return f == nil || f.g.Match(turnID)
}

// MatchAny reports whether any of turnIDs matches.
func (f *turnFilter) MatchAny(turnIDs []string) bool {
	if f == nil {
		return true
	}
	for _, id := range turnIDs {
		if f.g.Match(id) {
			return true
		}
	}
	return false
}

func (f *turnFilter) Traces(traces []*memory.RawTraceItem) []*memory.RawTraceItem {
	if f == nil {
		return traces
	}
	out := make([]*memory.RawTraceItem, 0, len(traces))
	for _, tr := range traces {
		if f.Match(tr.TurnID) {
			out = append(out, tr)
		}
	}
	return out
}

// printTraces renders traces grouped under a heading per turn.
func (p *printer) printTraces(traces []*memory.RawTraceItem) {
	current := ""
	for _, tr := range traces {
		if tr.TurnID != current {
			current = tr.TurnID
			p.Heading("%s", current)
		}
		p.Line("  %s %s %s", p.Muted(fmt.Sprintf("#%-3d", tr.Seq)), p.Label(fmt.Sprintf("%-11s", tr.TraceType)), traceText(p, tr))
	}
}

func traceText(p *printer, tr *memory.RawTraceItem) string {
	text := strings.ReplaceAll(tr.Content, "\n", " ")
	switch {
	case tr.TraceType == memory.TraceToolResult && tr.ToolError != "":
		return fmt.Sprintf("%s %s %s", tr.ToolName, p.Error("error: "+text), p.Muted("["+tr.ToolCallID+"]"))
	case tr.TraceType == memory.TraceToolResult:
		return fmt.Sprintf("%s -> %s %s", tr.ToolName, text, p.Muted("["+tr.ToolCallID+"]"))
	case tr.TraceType == memory.TraceToolCall:
		return fmt.Sprintf("%s %s", text, p.Muted("["+tr.ToolCallID+"]"))
	}
	return text
}

func turnSpan(turnIDs []string) string {
	switch len(turnIDs) {
	case 0:
		return ""
	case 1:
		return turnIDs[0]
	}
	return turnIDs[0] + ".." + turnIDs[len(turnIDs)-1]
}
