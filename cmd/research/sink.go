package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/researchcli/research/internal/llm/contract"
)

var (
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	toolStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
)

// consoleSink renders turn events for a terminal. Model text goes out raw
// so the reply stays pipeable; tool activity and notices are styled.
type consoleSink struct {
	out io.Writer
}

func newConsoleSink(out io.Writer) *consoleSink {
	return &consoleSink{out: out}
}

func (s *consoleSink) TextDelta(delta string) {
	fmt.Fprint(s.out, delta)
}

func (s *consoleSink) ToolCallStarted(req contract.ToolCallRequest) {
	fmt.Fprintln(s.out, toolStyle.Render(fmt.Sprintf("⚙ %s(%s)", req.Name, summarizeArgs(req.Args))))
}

func (s *consoleSink) ToolCallFinished(res contract.ToolCallResult) {
	if res.Success {
		fmt.Fprintln(s.out, toolStyle.Render(fmt.Sprintf("✓ %s", res.Name)))
		return
	}
	fmt.Fprintln(s.out, errorStyle.Render(fmt.Sprintf("✗ %s: %s", res.Name, res.Error)))
}

func (s *consoleSink) Notice(message string) {
	fmt.Fprintln(s.out, noticeStyle.Render(message))
}

// summarizeArgs renders tool arguments compactly, truncating long values.
func summarizeArgs(args map[string]any) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v := fmt.Sprintf("%v", args[k])
		if len(v) > 40 {
			v = v[:37] + "..."
		}
		parts = append(parts, fmt.Sprintf("%s=%s", k, v))
	}
	return strings.Join(parts, ", ")
}
