// Package logview is the scrollable status log shown in the console body.
package logview

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/akashrathod3565/Vendor-Automation-Application/internal/theme"
)

// DefaultMaxLines bounds the retained history.
const DefaultMaxLines = 1000

type entry struct {
	at   time.Time
	text string
}

// Model keeps status lines and renders them in a viewport that follows the
// newest line unless the user has scrolled up.
type Model struct {
	viewport viewport.Model
	entries  []entry
	maxLines int
}

// New creates a log view of the given size.
func New(width, height int) Model {
	vp := viewport.New(width, height)
	return Model{viewport: vp, maxLines: DefaultMaxLines}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update forwards scrolling keys and mouse events to the viewport.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// Append adds a line stamped with at.
func (m *Model) Append(at time.Time, line string) {
	follow := m.viewport.AtBottom() || len(m.entries) == 0
	m.entries = append(m.entries, entry{at: at, text: line})
	if over := len(m.entries) - m.maxLines; over > 0 {
		m.entries = append([]entry(nil), m.entries[over:]...)
	}
	m.refresh()
	if follow {
		m.viewport.GotoBottom()
	}
}

// Lines returns the raw retained lines, oldest first.
func (m Model) Lines() []string {
	out := make([]string, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.text
	}
	return out
}

// Len returns the number of retained lines.
func (m Model) Len() int {
	return len(m.entries)
}

// View renders the viewport.
func (m Model) View() string {
	return m.viewport.View()
}

// SetSize updates the viewport dimensions.
func (m *Model) SetSize(width, height int) {
	m.viewport.Width = width
	m.viewport.Height = height
	m.refresh()
}

func (m *Model) refresh() {
	var b strings.Builder
	for i, e := range m.entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(theme.DimmedStyle.Render(e.at.Format("15:04:05")))
		b.WriteByte(' ')
		b.WriteString(theme.LineStyle(e.text).Render(e.text))
	}
	m.viewport.SetContent(b.String())
}
