package theme

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue   = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen  = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed    = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorOrange = lipgloss.AdaptiveColor{Dark: "#FFA94D", Light: "#C05621"}
	ColorGray   = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite  = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorSubtle = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#CBD5E0"}
	ColorBorder = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// HeaderStyle is used for top-level section headers and the application title.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// StatusBarStyle is used for the bottom status bar.
var StatusBarStyle = lipgloss.NewStyle().
	Foreground(ColorWhite).
	Background(ColorSubtle).
	Padding(0, 1)

// DetailPanelStyle wraps overlay content such as the compose form.
var DetailPanelStyle = lipgloss.NewStyle().
	Padding(1, 2).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// HelpStyle is used for keyboard shortcut hints and help text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Italic(true)

// BorderStyle provides a standard rounded border for panels.
var BorderStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// LabelStyle renders field labels in the header and manual input line.
var LabelStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorBlue)

// Status line styles.
var (
	ErrorStyle   = lipgloss.NewStyle().Foreground(ColorRed).Bold(true)
	WarningStyle = lipgloss.NewStyle().Foreground(ColorOrange)
	SuccessStyle = lipgloss.NewStyle().Foreground(ColorGreen)
	NoticeStyle  = lipgloss.NewStyle().Foreground(ColorYellow)
	DimmedStyle  = lipgloss.NewStyle().Foreground(ColorGray)
)

// LineStyle picks the style of a status line from its wording.
func LineStyle(line string) lipgloss.Style {
	lower := strings.ToLower(line)
	switch {
	case strings.HasPrefix(lower, "error"), strings.HasPrefix(lower, "could not"):
		return ErrorStyle
	case strings.HasPrefix(lower, "warning"):
		return WarningStyle
	case strings.HasPrefix(lower, "skipped"), strings.Contains(lower, "skipping"):
		return DimmedStyle
	case strings.Contains(lower, "completed"), strings.HasPrefix(lower, "saved"),
		strings.HasPrefix(lower, "loaded"):
		return SuccessStyle
	case strings.HasPrefix(lower, "scheduled"), strings.HasPrefix(lower, "fetch started"),
		strings.HasPrefix(lower, "send started"):
		return NoticeStyle
	default:
		return lipgloss.NewStyle()
	}
}
