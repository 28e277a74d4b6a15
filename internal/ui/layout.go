package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/akashrathod3565/Vendor-Automation-Application/internal/theme"
)

// StatusSeparator joins header status segments.
const StatusSeparator = " | "

// Layout holds the console's terminal dimensions. From top to bottom the
// screen is a header, a context line (the manual address input), the
// active view and a status bar.
type Layout struct {
	Width           int
	Height          int
	HeaderHeight    int
	ContextHeight   int
	StatusBarHeight int
}

// NewLayout creates a Layout with single-line header, context line and
// status bar.
func NewLayout(width, height int) Layout {
	return Layout{
		Width:           width,
		Height:          height,
		HeaderHeight:    1,
		ContextHeight:   1,
		StatusBarHeight: 1,
	}
}

// ContentWidth returns the full available width.
func (l Layout) ContentWidth() int {
	return l.Width
}

// ContentHeight returns the rows left for the active view, never less
// than one.
func (l Layout) ContentHeight() int {
	h := l.Height - l.HeaderHeight - l.ContextHeight - l.StatusBarHeight
	if h < 1 {
		return 1
	}
	return h
}

// RenderHeader renders the title on the left and the status segments on
// the right. Trailing segments are dropped, the first one last, when the
// line would overflow the terminal.
func (l Layout) RenderHeader(title string, segments ...string) string {
	titleRendered := theme.HeaderStyle.Render(title)

	status := fitSegments(segments, l.Width-lipgloss.Width(titleRendered)-2)
	statusRendered := theme.HeaderStyle.
		Align(lipgloss.Right).
		Render(status)

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		titleRendered,
		l.fill(theme.HeaderStyle, lipgloss.Width(titleRendered)+lipgloss.Width(statusRendered)),
		statusRendered,
	)
}

// fitSegments joins as many leading segments as fit in width. The first
// segment is truncated rather than dropped.
func fitSegments(segments []string, width int) string {
	var kept []string
	for _, s := range segments {
		if s == "" {
			continue
		}
		kept = append(kept, s)
	}
	for len(kept) > 1 && lipgloss.Width(strings.Join(kept, StatusSeparator)) > width {
		kept = kept[:len(kept)-1]
	}
	joined := strings.Join(kept, StatusSeparator)
	if width > 0 && lipgloss.Width(joined) > width {
		joined = truncate(joined, width)
	}
	return joined
}

// RenderContext renders the line under the header: a label followed by
// the input's own rendering.
func (l Layout) RenderContext(label, input string) string {
	line := theme.LabelStyle.Render(label) + input
	if w := lipgloss.Width(line); w < l.Width {
		line += strings.Repeat(" ", l.Width-w)
	}
	return line
}

// RenderStatusBar renders the bottom status bar with keyboard hints. The
// hints are cut to the terminal width.
func (l Layout) RenderStatusBar(hints string) string {
	if max := l.Width - 2; max > 0 && lipgloss.Width(hints) > max {
		hints = truncate(hints, max)
	}
	rendered := theme.StatusBarStyle.Render(hints)
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered, l.fill(theme.StatusBarStyle, lipgloss.Width(rendered)))
}

// fill pads a bar drawn in style from used columns to the full width.
func (l Layout) fill(style lipgloss.Style, used int) string {
	gap := l.Width - used
	if gap <= 0 {
		return ""
	}
	return lipgloss.NewStyle().
		Width(gap).
		Background(style.GetBackground()).
		Render("")
}

// RenderWithFrame stacks the header, context line, active view and
// status bar.
func (l Layout) RenderWithFrame(header, context, content, statusBar string) string {
	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		context,
		content,
		statusBar,
	)
}

func truncate(s string, width int) string {
	if width <= 1 {
		return ""
	}
	out := []rune(s)
	for len(out) > 0 && lipgloss.Width(string(out))+1 > width {
		out = out[:len(out)-1]
	}
	return string(out) + "…"
}
