package debug

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/danpilch/foldstack/pkg/collapse"
)

var (
	debugTitle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	debugHeader = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("62")).Padding(0, 1)
	debugDim    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// RenderStats prints a styled summary of one collapse run.
func RenderStats(w io.Writer, format string, s collapse.Stats) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, debugTitle.Render("Collapse Report"))
	fmt.Fprintln(w, debugDim.Render(strings.Repeat("═", 40)))
	fmt.Fprintf(w, "  %s  %s\n",
		debugHeader.Render("METRIC             "),
		debugHeader.Render("VALUE       "))
	fmt.Fprintln(w, "  "+debugDim.Render(strings.Repeat("─", 40)))

	rows := []struct {
		name  string
		value string
	}{
		{"format", format},
		{"threads", fmt.Sprintf("%d", s.Threads)},
		{"input", formatBytes(s.Bytes)},
		{"stacks", fmt.Sprintf("%d", s.Stacks)},
		{"samples", fmt.Sprintf("%d", s.Samples)},
		{"unique stacks", fmt.Sprintf("%d", s.Unique)},
		{"chunks", fmt.Sprintf("%d", s.Chunks)},
		{"duration", s.Duration.String()},
	}
	for _, r := range rows {
		fmt.Fprintf(w, "  %-20s %s\n", r.name, r.value)
	}
	fmt.Fprintln(w, "  "+debugDim.Render(strings.Repeat("─", 40)))
	fmt.Fprintf(w, "  %-20s %.1f MiB/s\n",
		lipgloss.NewStyle().Bold(true).Render("THROUGHPUT"), s.Throughput())
}

func formatBytes(b uint64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := uint64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
