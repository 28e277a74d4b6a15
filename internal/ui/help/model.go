package help

import (
	"strings"

	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/akashrathod3565/Vendor-Automation-Application/internal/keys"
	"github.com/akashrathod3565/Vendor-Automation-Application/internal/theme"
)

// Model is the help overlay view.
type Model struct {
	keys     *keys.KeyMap
	help     help.Model
	schedule []string
	width    int
	height   int
}

// New creates a new help view model.
func New(keys *keys.KeyMap, width, height int) Model {
	h := help.New()
	h.Width = width
	return Model{
		keys:   keys,
		help:   h,
		width:  width,
		height: height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the help view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	return m, nil
}

// SetSchedule sets the daily fetch times listed under the shortcuts.
func (m *Model) SetSchedule(times []string) {
	m.schedule = times
}

// View renders the help overlay.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	title := titleStyle.Render("Keyboard Shortcuts")

	m.help.Width = m.width - 4
	m.help.ShowAll = true
	helpText := m.help.View(m.keys)

	schedule := "Automatic fetch: off"
	if len(m.schedule) > 0 {
		schedule = "Automatic fetch daily at " + strings.Join(m.schedule, ", ")
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		title,
		helpText,
		"",
		theme.HelpStyle.Render(schedule),
		theme.HelpStyle.Render("Commands: fetch, send, open [email], manual <email>, reload, history, quit"),
	)

	return theme.DetailPanelStyle.
		Width(m.width - 4).
		Height(m.height - 4).
		Render(content)
}

// SetSize updates the help view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = width - 4
}
